package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gridwell/gridwell/internal/grid"
)

// Population batch sizing.
//
// Each batch commits its rows and their cells in one transaction, so
// the transaction's write count is rows x columns. The budget bounds
// that product; batch row-count is floor(budget / columnCount) with a
// floor so very wide tables still make progress.
const (
	// DefaultPopulateBudget caps cell writes per batch transaction.
	DefaultPopulateBudget = 10_000

	// MinBatchRows is the lower bound on rows per batch regardless of
	// how wide the table is.
	MinBatchRows = 200

	// FastBatchCap bounds the first batch of an interactive population
	// so the caller sees visible progress quickly.
	FastBatchCap = 1000

	// DefaultBatchTimeout is the per-batch ceiling. A batch that blows
	// the ceiling fails alone; the continuation retries the remainder.
	DefaultBatchTimeout = 30 * time.Second
)

// Continuation is the resumable state of a population job. The caller
// invokes ContinuePopulate with it until Done reports true. Each call
// independently recomputes a safe batch size from the table's current
// column count - columns may have changed between calls.
type Continuation struct {
	TableID   string `json:"table_id"`
	JobID     string `json:"job_id"`
	Requested int    `json:"requested"`
	Inserted  int    `json:"inserted"`
	Remaining int    `json:"remaining"`
	NextOrd   int    `json:"next_ord"`
}

// Done reports whether the job has inserted everything it was asked to.
func (c Continuation) Done() bool {
	return c.Remaining <= 0
}

// Progress returns completion as a percentage in [0,100].
func (c Continuation) Progress() float64 {
	if c.Requested <= 0 {
		return 100
	}
	return float64(c.Inserted) / float64(c.Requested) * 100
}

// Status renders a human-readable progress line for UI surfaces.
func (c Continuation) Status() string {
	if c.Done() {
		return fmt.Sprintf("inserted %d rows", c.Inserted)
	}
	return fmt.Sprintf("inserting rows… %d of %d (%.0f%%)", c.Inserted, c.Requested, c.Progress())
}

// SetPopulateBudget overrides the per-batch cell-write budget.
// Values below 1 restore the default. Intended for tests.
func (s *Store) SetPopulateBudget(budget int) {
	if budget < 1 {
		budget = DefaultPopulateBudget
	}
	s.populateBudget = budget
}

// BulkPopulate starts a population job that inserts count generated rows
// (and one cell per row x existing column) into the table.
//
// When fastFirst is set - a live user action is waiting - the first
// batch is additionally capped at FastBatchCap rows so the UI reflects
// progress immediately; the rest runs through ContinuePopulate calls.
func (s *Store) BulkPopulate(ctx context.Context, tableID string, count int, fastFirst bool) (Continuation, error) {
	if count <= 0 {
		return Continuation{}, validation("table", tableID, "populate", "count must be positive")
	}
	if _, err := s.GetTable(ctx, tableID); err != nil {
		return Continuation{}, err
	}

	var startOrd int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rows WHERE table_id = ?
	`, tableID).Scan(&startOrd); err != nil {
		return Continuation{}, fmt.Errorf("populate: count rows: %w", err)
	}

	cont := Continuation{
		TableID:   tableID,
		JobID:     grid.NewID(),
		Requested: count,
		Remaining: count,
		NextOrd:   startOrd,
	}

	s.logger.Info("population started",
		"table_id", tableID, "job_id", cont.JobID, "requested", count, "fast_first", fastFirst)
	return s.runBatch(ctx, cont, fastFirst)
}

// ContinuePopulate runs the next batch of a population job and returns
// the updated continuation. Invoke repeatedly until Done.
func (s *Store) ContinuePopulate(ctx context.Context, cont Continuation) (Continuation, error) {
	if cont.TableID == "" || cont.JobID == "" {
		return cont, validation("table", cont.TableID, "populate", "malformed continuation")
	}
	if cont.Done() {
		return cont, nil
	}
	return s.runBatch(ctx, cont, false)
}

// runBatch executes one batch under the per-batch deadline.
func (s *Store) runBatch(ctx context.Context, cont Continuation, fastFirst bool) (Continuation, error) {
	batchCtx, cancel := context.WithTimeout(ctx, DefaultBatchTimeout)
	defer cancel()

	columns, err := s.ListColumns(batchCtx, cont.TableID)
	if err != nil {
		return cont, err
	}

	batch := batchRows(s.populateBudget, len(columns))
	if fastFirst && batch > FastBatchCap {
		batch = FastBatchCap
	}
	if batch > cont.Remaining {
		batch = cont.Remaining
	}

	if err := s.insertBatch(batchCtx, cont, columns, batch); err != nil {
		return cont, err
	}

	cont.Inserted += batch
	cont.Remaining -= batch
	cont.NextOrd += batch

	s.logger.Debug("population batch committed",
		"job_id", cont.JobID, "batch_rows", batch, "inserted", cont.Inserted, "remaining", cont.Remaining)
	return cont, nil
}

// batchRows computes rows per batch from the cell-write budget and the
// current column count: floor(budget / columns), never below MinBatchRows.
func batchRows(budget, columnCount int) int {
	if columnCount < 1 {
		columnCount = 1
	}
	n := budget / columnCount
	if n < MinBatchRows {
		n = MinBatchRows
	}
	return n
}

// insertBatch writes one batch of rows and their cells in a single
// transaction. The table or its columns disappearing mid-job surfaces
// as an INTEGRITY error for this batch; prior batches stay committed.
func (s *Store) insertBatch(ctx context.Context, cont Continuation, columns []grid.Column, batch int) error {
	gen := newRowGenerator(cont.JobID)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := tableExists(ctx, tx, cont.TableID, "populate"); err != nil {
			if IsNotFound(err) {
				return integrity("table", cont.TableID, "populate", "table deleted mid-population", err)
			}
			return err
		}

		rowStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rows (id, table_id, ord) VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("populate: prepare rows: %w", err)
		}
		defer rowStmt.Close()

		cellStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cells (id, row_id, column_id, value) VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("populate: prepare cells: %w", err)
		}
		defer cellStmt.Close()

		for i := 0; i < batch; i++ {
			ord := cont.NextOrd + i
			rowID := grid.NewID()
			if _, err := rowStmt.ExecContext(ctx, rowID, cont.TableID, ord); err != nil {
				return integrity("row", rowID, "populate", "row insert failed", err)
			}
			for _, col := range columns {
				v := gen.valueFor(col, ord)
				payload, err := grid.MarshalValue(v)
				if err != nil {
					return fmt.Errorf("populate: marshal value: %w", err)
				}
				if _, err := cellStmt.ExecContext(ctx, grid.NewID(), rowID, col.ID, string(payload)); err != nil {
					// Foreign-key violation here means a column vanished
					// mid-batch; the whole batch rolls back cleanly.
					return integrity("cell", rowID+"/"+col.ID, "populate", "cell insert failed", err)
				}
			}
		}
		return touchTable(ctx, tx, cont.TableID)
	})
	if err != nil {
		s.logger.Warn("population batch failed", "job_id", cont.JobID, "error", err)
	}
	return err
}
