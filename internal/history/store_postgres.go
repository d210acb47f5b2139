package history

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists the lookup log in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lookup_history (user_id, service_key, query, created_at)
		VALUES ($1, $2, $3, $4)
	`, entry.UserID, entry.ServiceKey, entry.Query, entry.At)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *PostgresStore) UsageByService(ctx context.Context) ([]ServiceCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service_key, COUNT(*) AS n
		FROM lookup_history
		GROUP BY service_key
		ORDER BY n DESC, service_key
	`)
	if err != nil {
		return nil, fmt.Errorf("usage by service: %w", err)
	}
	defer rows.Close()

	var out []ServiceCount
	for rows.Next() {
		var sc ServiceCount
		if err := rows.Scan(&sc.ServiceKey, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Total(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lookup_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("total lookups: %w", err)
	}
	return n, nil
}
