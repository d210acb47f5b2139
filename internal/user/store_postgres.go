package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"infobroker/pkg/sentinel"
)

// PostgresStore persists users in PostgreSQL. This store is pure I/O; balance
// policy (refunds, grant sizes) belongs in the services.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, username, first_name, last_name, credits, total_lookups,
	banned, ban_reason, banned_by, banned_at, joined_at, last_active`

// GetOrCreate inserts the user with the starting grant if absent.
// ON CONFLICT DO NOTHING makes concurrent first contact safe: one row, one
// grant, exactly one caller sees created == true.
func (s *PostgresStore) GetOrCreate(ctx context.Context, u *User, startingCredits int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, last_name, credits)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, u.ID, u.Username, u.FirstName, u.LastName, startingCredits)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}

	stored, err := s.Get(ctx, u.ID)
	if err != nil {
		return false, err
	}
	*u = *stored
	return inserted == 1, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) TouchActivity(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_active = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*User, error) {
	return s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY joined_at DESC`)
}

func (s *PostgresStore) ListBanned(ctx context.Context) ([]*User, error) {
	return s.query(ctx, `SELECT `+userColumns+` FROM users WHERE banned ORDER BY banned_at DESC`)
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (s *PostgresStore) CountBanned(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users WHERE banned`)
}

func (s *PostgresStore) IsBanned(ctx context.Context, id int64) (bool, error) {
	var banned bool
	err := s.db.QueryRowContext(ctx, `SELECT banned FROM users WHERE id = $1`, id).Scan(&banned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is banned: %w", err)
	}
	return banned, nil
}

func (s *PostgresStore) SetBanned(ctx context.Context, id, byAdmin int64, reason string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET banned = TRUE, ban_reason = $2, banned_by = $3, banned_at = $4
		WHERE id = $1
	`, id, reason, byAdmin, at)
	if err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	return requireRow(res, id)
}

func (s *PostgresStore) ClearBan(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET banned = FALSE, ban_reason = '', banned_by = NULL, banned_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("unban user: %w", err)
	}
	return requireRow(res, id)
}

func (s *PostgresStore) Balance(ctx context.Context, id int64) (int64, error) {
	var credits int64
	err := s.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = $1`, id).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return credits, nil
}

// TryDebit relies on a conditional UPDATE: the WHERE clause re-checks the
// balance at commit time, so concurrent debits against the same row cannot
// overdraw it.
func (s *PostgresStore) TryDebit(ctx context.Context, id, amount int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET credits = credits - $2
		WHERE id = $1 AND credits >= $2
	`, id, amount)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("debit %d from user %d: %w", amount, id, sentinel.ErrInsufficientFunds)
	}
	return nil
}

func (s *PostgresStore) Credit(ctx context.Context, id, amount int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET credits = credits + $2 WHERE id = $1`, id, amount)
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return requireRow(res, id)
}

func (s *PostgresStore) IncrementLookups(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET total_lookups = total_lookups + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment lookups: %w", err)
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, q string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) count(ctx context.Context, q string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Credits, &u.TotalLookups,
		&u.Banned, &u.BanReason, &u.BannedBy, &u.BannedAt, &u.JoinedAt, &u.LastActive,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
