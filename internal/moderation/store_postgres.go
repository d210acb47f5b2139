package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresProtectedStore persists protected records in PostgreSQL.
type PostgresProtectedStore struct {
	db *sql.DB
}

func NewPostgresProtectedStore(db *sql.DB) *PostgresProtectedStore {
	return &PostgresProtectedStore{db: db}
}

func (s *PostgresProtectedStore) IsProtected(ctx context.Context, value string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM protected_records WHERE value = $1)`, value).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is protected: %w", err)
	}
	return exists, nil
}

// Put inserts the record; the unique-violation from a concurrent or earlier
// insert is reported as "already protected", not as an error.
func (s *PostgresProtectedStore) Put(ctx context.Context, rec ProtectedRecord) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO protected_records (value, protected_by, protected_at, reason)
		VALUES ($1, $2, $3, $4)
	`, rec.Value, rec.ProtectedBy, rec.ProtectedAt, rec.Reason)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return false, nil
		}
		return false, fmt.Errorf("protect value: %w", err)
	}
	return true, nil
}

func (s *PostgresProtectedStore) Remove(ctx context.Context, value string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM protected_records WHERE value = $1`, value)
	if err != nil {
		return false, fmt.Errorf("unprotect value: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unprotect value: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresProtectedStore) List(ctx context.Context) ([]ProtectedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT value, protected_by, protected_at, reason
		FROM protected_records
		ORDER BY protected_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list protected: %w", err)
	}
	defer rows.Close()

	var out []ProtectedRecord
	for rows.Next() {
		var rec ProtectedRecord
		if err := rows.Scan(&rec.Value, &rec.ProtectedBy, &rec.ProtectedAt, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan protected record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresProtectedStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM protected_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count protected: %w", err)
	}
	return n, nil
}
