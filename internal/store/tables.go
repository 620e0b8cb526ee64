package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gridwell/gridwell/internal/grid"
)

// CreateTable creates an empty table. Name must be non-blank.
func (s *Store) CreateTable(ctx context.Context, name string) (grid.Table, error) {
	if strings.TrimSpace(name) == "" {
		return grid.Table{}, validation("table", "", "create", "name must not be empty")
	}

	now := time.Now().UTC()
	t := grid.Table{
		ID:        grid.NewID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tables (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, t.ID, t.Name, formatTime(now), formatTime(now))
	if err != nil {
		return grid.Table{}, fmt.Errorf("create table: %w", err)
	}

	s.logger.Info("table created", "table_id", t.ID, "name", t.Name)
	return t, nil
}

// GetTable retrieves a table by id.
func (s *Store) GetTable(ctx context.Context, id string) (grid.Table, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM tables WHERE id = ?
	`, id)

	var t grid.Table
	var created, updated string
	err := row.Scan(&t.ID, &t.Name, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return grid.Table{}, notFound("table", id, "get")
	}
	if err != nil {
		return grid.Table{}, fmt.Errorf("get table: %w", err)
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

// ListTables returns all tables ordered by creation time then id.
// The id tie-break keeps results deterministic across replays.
func (s *Store) ListTables(ctx context.Context) ([]grid.Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM tables
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []grid.Table{}
	for rows.Next() {
		var t grid.Table
		var created, updated string
		if err := rows.Scan(&t.ID, &t.Name, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		t.CreatedAt = parseTime(created)
		t.UpdatedAt = parseTime(updated)
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// DeleteTable removes a table and everything it owns (columns, rows,
// cells, views) via foreign-key cascade.
func (s *Store) DeleteTable(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tables WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete table: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete table: rows affected: %w", err)
	}
	if n == 0 {
		return notFound("table", id, "delete")
	}
	s.logger.Info("table deleted", "table_id", id)
	return nil
}

// touchTable bumps updated_at inside an existing transaction.
func touchTable(ctx context.Context, tx *sql.Tx, tableID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE tables SET updated_at = ? WHERE id = ?
	`, formatTime(time.Now().UTC()), tableID)
	if err != nil {
		return fmt.Errorf("touch table: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
