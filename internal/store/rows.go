package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gridwell/gridwell/internal/grid"
)

// InsertPosition places a new row relative to a target row.
type InsertPosition string

const (
	// InsertBefore places the new row at the target's ord, shifting the
	// target and everything after it down by one.
	InsertBefore InsertPosition = "before"
	// InsertAfter places the new row at target ord + 1.
	InsertAfter InsertPosition = "after"
)

// Valid reports whether the position is before or after.
func (p InsertPosition) Valid() bool {
	return p == InsertBefore || p == InsertAfter
}

// CreateRow appends a row at the end of the table and creates one empty
// cell per existing column, all in one transaction.
//
// optionalID lets the caller supply the row id (idempotent retries);
// empty means the store assigns a fresh id. Temporary-prefixed ids are
// rejected - the store must never persist a client placeholder.
func (s *Store) CreateRow(ctx context.Context, tableID, optionalID string) (grid.Row, []grid.Cell, error) {
	id := optionalID
	if id == "" {
		id = grid.NewID()
	} else if grid.IsTempID(id) {
		return grid.Row{}, nil, validation("row", id, "create", "temporary ids cannot be persisted")
	}

	var row grid.Row
	var cells []grid.Cell
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := tableExists(ctx, tx, tableID, "create row"); err != nil {
			return err
		}

		ord, err := nextOrd(ctx, tx, "rows", tableID)
		if err != nil {
			return err
		}

		row = grid.Row{ID: id, TableID: tableID, Ord: ord}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rows (id, table_id, ord) VALUES (?, ?, ?)
		`, row.ID, row.TableID, row.Ord); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}

		cells, err = seedRowCells(ctx, tx, row)
		if err != nil {
			return err
		}
		return touchTable(ctx, tx, tableID)
	})
	if err != nil {
		return grid.Row{}, nil, err
	}

	s.logger.Debug("row created", "table_id", tableID, "row_id", row.ID, "ord", row.Ord)
	return row, cells, nil
}

// InsertRowAt inserts a row before or after a target row, shifting the
// ord of every subsequent row by +1 inside the same transaction so the
// dense-order invariant holds when the transaction commits.
func (s *Store) InsertRowAt(ctx context.Context, tableID, targetRowID string, pos InsertPosition) (grid.Row, []grid.Cell, error) {
	if !pos.Valid() {
		return grid.Row{}, nil, validation("row", "", "insert at", fmt.Sprintf("invalid position %q", pos))
	}
	if grid.IsTempID(targetRowID) {
		// The server has no knowledge of temporary ids; the client
		// resolves them to a confirmed neighbor before calling.
		return grid.Row{}, nil, precondition("row", targetRowID, "insert at", "target row not yet confirmed")
	}

	var row grid.Row
	var cells []grid.Cell
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var targetOrd int
		err := tx.QueryRowContext(ctx, `
			SELECT ord FROM rows WHERE id = ? AND table_id = ?
		`, targetRowID, tableID).Scan(&targetOrd)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("row", targetRowID, "insert at")
		}
		if err != nil {
			return fmt.Errorf("insert row at: target ord: %w", err)
		}

		newOrd := targetOrd
		if pos == InsertAfter {
			newOrd = targetOrd + 1
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE rows SET ord = ord + 1 WHERE table_id = ? AND ord >= ?
		`, tableID, newOrd); err != nil {
			return fmt.Errorf("insert row at: shift ords: %w", err)
		}

		row = grid.Row{ID: grid.NewID(), TableID: tableID, Ord: newOrd}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rows (id, table_id, ord) VALUES (?, ?, ?)
		`, row.ID, row.TableID, row.Ord); err != nil {
			return fmt.Errorf("insert row at: %w", err)
		}

		cells, err = seedRowCells(ctx, tx, row)
		if err != nil {
			return err
		}
		return touchTable(ctx, tx, tableID)
	})
	if err != nil {
		return grid.Row{}, nil, err
	}

	s.logger.Debug("row inserted", "table_id", tableID, "row_id", row.ID, "ord", row.Ord, "position", string(pos))
	return row, cells, nil
}

// DeleteRow removes a row, its cells (cascade), and compacts the ord of
// every subsequent row so the dense-order invariant holds.
func (s *Store) DeleteRow(ctx context.Context, rowID string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var tableID string
		var ord int
		err := tx.QueryRowContext(ctx, `
			SELECT table_id, ord FROM rows WHERE id = ?
		`, rowID).Scan(&tableID, &ord)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("row", rowID, "delete")
		}
		if err != nil {
			return fmt.Errorf("delete row: lookup: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM rows WHERE id = ?`, rowID); err != nil {
			return fmt.Errorf("delete row: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE rows SET ord = ord - 1 WHERE table_id = ? AND ord > ?
		`, tableID, ord); err != nil {
			return fmt.Errorf("delete row: compact ords: %w", err)
		}
		return touchTable(ctx, tx, tableID)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("row deleted", "row_id", rowID)
	return nil
}

// seedRowCells creates one empty cell per existing column for a new row,
// so every (row, column) pair has its counterpart from the start.
func seedRowCells(ctx context.Context, tx *sql.Tx, row grid.Row) ([]grid.Cell, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM columns WHERE table_id = ? ORDER BY ord ASC
	`, row.TableID)
	if err != nil {
		return nil, fmt.Errorf("seed cells: list columns: %w", err)
	}
	defer rows.Close()

	var columnIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("seed cells: scan column: %w", err)
		}
		columnIDs = append(columnIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seed cells: iterate columns: %w", err)
	}

	cells := make([]grid.Cell, 0, len(columnIDs))
	for _, colID := range columnIDs {
		cell := grid.Cell{ID: grid.NewID(), RowID: row.ID, ColumnID: colID, Value: grid.Empty{}}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cells (id, row_id, column_id) VALUES (?, ?, ?)
			ON CONFLICT (row_id, column_id) DO NOTHING
		`, cell.ID, cell.RowID, cell.ColumnID); err != nil {
			return nil, fmt.Errorf("seed cells: insert: %w", err)
		}
		cells = append(cells, cell)
	}
	return cells, nil
}

// nextOrd returns the next dense ord for rows or columns of a table.
// Must run inside the mutation's transaction so concurrent appends
// cannot claim the same slot.
func nextOrd(ctx context.Context, tx *sql.Tx, table, tableID string) (int, error) {
	var next int
	// table is a compile-time constant ("rows"/"columns"), never user input.
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE table_id = ?`, table)
	if err := tx.QueryRowContext(ctx, q, tableID).Scan(&next); err != nil {
		return 0, fmt.Errorf("next ord: %w", err)
	}
	return next, nil
}

// tableExists verifies the table is present, for clean errors before
// any dependent insert runs.
func tableExists(ctx context.Context, tx *sql.Tx, tableID, op string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM tables WHERE id = ?`, tableID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("table", tableID, op)
	}
	if err != nil {
		return fmt.Errorf("%s: check table: %w", op, err)
	}
	return nil
}
