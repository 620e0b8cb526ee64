package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gridwell/gridwell/internal/grid"
)

// UpsertCell writes a cell value, creating the cell if the (row, column)
// pair has none yet. A concurrent create/edit race on the unique
// (row_id, column_id) constraint resolves as an update of the existing
// cell - the caller never sees a conflict error.
//
// Fails with a PRECONDITION error when the row or column does not (yet)
// exist. The client engine relies on this during the optimistic-id
// window: edits against unconfirmed rows are buffered and retried once
// the owning entity is confirmed.
func (s *Store) UpsertCell(ctx context.Context, rowID, columnID string, value grid.Value) (grid.Cell, error) {
	if grid.IsTempID(rowID) {
		return grid.Cell{}, precondition("row", rowID, "upsert cell", "row not yet confirmed")
	}
	if grid.IsTempID(columnID) {
		return grid.Cell{}, precondition("column", columnID, "upsert cell", "column not yet confirmed")
	}

	payload, err := grid.MarshalValue(value)
	if err != nil {
		return grid.Cell{}, validation("cell", "", "upsert", err.Error())
	}

	var cell grid.Cell
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM rows WHERE id = ?`, rowID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return precondition("row", rowID, "upsert cell", "row does not exist")
		}
		if err != nil {
			return fmt.Errorf("upsert cell: check row: %w", err)
		}

		err = tx.QueryRowContext(ctx, `SELECT 1 FROM columns WHERE id = ?`, columnID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return precondition("column", columnID, "upsert cell", "column does not exist")
		}
		if err != nil {
			return fmt.Errorf("upsert cell: check column: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cells (id, row_id, column_id, value)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (row_id, column_id) DO UPDATE SET value = excluded.value
		`, grid.NewID(), rowID, columnID, string(payload)); err != nil {
			return fmt.Errorf("upsert cell: %w", err)
		}

		// Read back the winning cell so the caller sees the stored id
		// (the insert's id loses when the pair already existed).
		var raw string
		err = tx.QueryRowContext(ctx, `
			SELECT id, row_id, column_id, value FROM cells
			WHERE row_id = ? AND column_id = ?
		`, rowID, columnID).Scan(&cell.ID, &cell.RowID, &cell.ColumnID, &raw)
		if err != nil {
			return fmt.Errorf("upsert cell: read back: %w", err)
		}
		cell.Value, err = grid.UnmarshalValue([]byte(raw))
		if err != nil {
			return fmt.Errorf("upsert cell: decode value: %w", err)
		}
		return nil
	})
	if err != nil {
		return grid.Cell{}, err
	}

	s.logger.Debug("cell upserted", "row_id", rowID, "column_id", columnID)
	return cell, nil
}

// GetCell retrieves the cell for a (row, column) pair. A missing cell
// returns a NOT_FOUND error; callers treating absence as Empty should
// check IsNotFound.
func (s *Store) GetCell(ctx context.Context, rowID, columnID string) (grid.Cell, error) {
	var cell grid.Cell
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, row_id, column_id, value FROM cells
		WHERE row_id = ? AND column_id = ?
	`, rowID, columnID).Scan(&cell.ID, &cell.RowID, &cell.ColumnID, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return grid.Cell{}, notFound("cell", rowID+"/"+columnID, "get")
	}
	if err != nil {
		return grid.Cell{}, fmt.Errorf("get cell: %w", err)
	}
	cell.Value, err = grid.UnmarshalValue([]byte(raw))
	if err != nil {
		return grid.Cell{}, fmt.Errorf("get cell: decode value: %w", err)
	}
	return cell, nil
}
