package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gridwell/gridwell/internal/grid"
)

// CreateColumn appends a column at the end of the table and creates one
// empty cell per existing row, all in one transaction. Column names are
// unique within a table (case-insensitive).
func (s *Store) CreateColumn(ctx context.Context, tableID, name string, kind grid.ColumnKind) (grid.Column, error) {
	if strings.TrimSpace(name) == "" {
		return grid.Column{}, validation("column", "", "create", "name must not be empty")
	}
	if !kind.Valid() {
		return grid.Column{}, validation("column", "", "create", fmt.Sprintf("invalid kind %q", kind))
	}

	var col grid.Column
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := tableExists(ctx, tx, tableID, "create column"); err != nil {
			return err
		}
		if err := columnNameFree(ctx, tx, tableID, name, ""); err != nil {
			return err
		}

		ord, err := nextOrd(ctx, tx, "columns", tableID)
		if err != nil {
			return err
		}

		col = grid.Column{
			ID:      grid.NewID(),
			TableID: tableID,
			Name:    name,
			Kind:    kind,
			Ord:     ord,
			Width:   grid.DefaultColumnWidth,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO columns (id, table_id, name, kind, ord, width)
			VALUES (?, ?, ?, ?, ?, ?)
		`, col.ID, col.TableID, col.Name, string(col.Kind), col.Ord, col.Width); err != nil {
			return fmt.Errorf("insert column: %w", err)
		}

		// Every existing row gets its counterpart cell.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cells (id, row_id, column_id)
			SELECT ? || '-' || rows.id, rows.id, ? FROM rows WHERE rows.table_id = ?
			ON CONFLICT (row_id, column_id) DO NOTHING
		`, col.ID, col.ID, tableID); err != nil {
			return fmt.Errorf("seed column cells: %w", err)
		}
		return touchTable(ctx, tx, tableID)
	})
	if err != nil {
		return grid.Column{}, err
	}

	s.logger.Debug("column created", "table_id", tableID, "column_id", col.ID, "name", col.Name, "kind", string(col.Kind))
	return col, nil
}

// RenameColumn changes a column's name, enforcing uniqueness within the
// owning table.
func (s *Store) RenameColumn(ctx context.Context, columnID, name string) (grid.Column, error) {
	if strings.TrimSpace(name) == "" {
		return grid.Column{}, validation("column", columnID, "rename", "name must not be empty")
	}

	var col grid.Column
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		col, err = getColumnTx(ctx, tx, columnID, "rename")
		if err != nil {
			return err
		}
		if err := columnNameFree(ctx, tx, col.TableID, name, columnID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE columns SET name = ? WHERE id = ?
		`, name, columnID); err != nil {
			return fmt.Errorf("rename column: %w", err)
		}
		col.Name = name
		return touchTable(ctx, tx, col.TableID)
	})
	if err != nil {
		return grid.Column{}, err
	}

	s.logger.Debug("column renamed", "column_id", columnID, "name", name)
	return col, nil
}

// ResizeColumn updates a column's display width. Width must be positive.
func (s *Store) ResizeColumn(ctx context.Context, columnID string, width int) (grid.Column, error) {
	if width <= 0 {
		return grid.Column{}, validation("column", columnID, "resize", "width must be positive")
	}

	var col grid.Column
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		col, err = getColumnTx(ctx, tx, columnID, "resize")
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE columns SET width = ? WHERE id = ?
		`, width, columnID); err != nil {
			return fmt.Errorf("resize column: %w", err)
		}
		col.Width = width
		return nil
	})
	if err != nil {
		return grid.Column{}, err
	}
	return col, nil
}

// DeleteColumn removes a column, its cells (cascade), and compacts the
// ord of every subsequent column.
func (s *Store) DeleteColumn(ctx context.Context, columnID string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		col, err := getColumnTx(ctx, tx, columnID, "delete")
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, columnID); err != nil {
			return fmt.Errorf("delete column: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE columns SET ord = ord - 1 WHERE table_id = ? AND ord > ?
		`, col.TableID, col.Ord); err != nil {
			return fmt.Errorf("delete column: compact ords: %w", err)
		}
		return touchTable(ctx, tx, col.TableID)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("column deleted", "column_id", columnID)
	return nil
}

// ListColumns returns a table's columns in ord order.
func (s *Store) ListColumns(ctx context.Context, tableID string) ([]grid.Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_id, name, kind, ord, width
		FROM columns
		WHERE table_id = ?
		ORDER BY ord ASC, id COLLATE BINARY ASC
	`, tableID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	cols := []grid.Column{}
	for rows.Next() {
		var c grid.Column
		var kind string
		if err := rows.Scan(&c.ID, &c.TableID, &c.Name, &kind, &c.Ord, &c.Width); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Kind = grid.ColumnKind(kind)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

func getColumnTx(ctx context.Context, tx *sql.Tx, columnID, op string) (grid.Column, error) {
	var c grid.Column
	var kind string
	err := tx.QueryRowContext(ctx, `
		SELECT id, table_id, name, kind, ord, width FROM columns WHERE id = ?
	`, columnID).Scan(&c.ID, &c.TableID, &c.Name, &kind, &c.Ord, &c.Width)
	if errors.Is(err, sql.ErrNoRows) {
		return grid.Column{}, notFound("column", columnID, op)
	}
	if err != nil {
		return grid.Column{}, fmt.Errorf("%s column: lookup: %w", op, err)
	}
	c.Kind = grid.ColumnKind(kind)
	return c, nil
}

// columnNameFree rejects a duplicate column name within a table before
// the UNIQUE constraint fires, so callers get a typed validation error.
// excludeID skips the column being renamed.
func columnNameFree(ctx context.Context, tx *sql.Tx, tableID, name, excludeID string) error {
	var count int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM columns
		WHERE table_id = ? AND name = ? COLLATE NOCASE AND id != ?
	`, tableID, name, excludeID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check column name: %w", err)
	}
	if count > 0 {
		return validation("column", "", "name check", fmt.Sprintf("duplicate column name %q", name))
	}
	return nil
}
