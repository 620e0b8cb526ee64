package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/query"
	"github.com/gridwell/gridwell/internal/store"
)

// Engine ties the sync core together for one table: the cache, the
// windowed fetch controller, the optimistic mutation coordinator, and
// the navigation state machine.
//
// All mutating methods take the engine mutex; the backend call inside
// each is the only suspension point. The Navigator lives outside the
// lock and re-enters through SetCell on its commit path.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	tableID string
	logger  *slog.Logger
	sink    EventSink

	cache *TableCache
	fetch *FetchController
	coord *Coordinator
	nav   *Navigator
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSink sets the event sink change notifications go through.
func WithSink(s EventSink) Option {
	return func(e *Engine) { e.sink = s }
}

// New builds an engine for one table. The flush delay governs the
// navigator's trailing edit flush.
func New(backend Backend, tableID string, flushDelay time.Duration, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		tableID: tableID,
		logger:  slog.Default(),
		sink:    NopSink{},
	}
	for _, opt := range opts {
		opt(e)
	}

	e.cache = NewTableCache()
	e.fetch = NewFetchController(backend, e.cache, tableID, e.sink, e.logger)
	e.coord = NewCoordinator(e.cache, e.sink, e.logger)
	e.nav = NewNavigator(e.cache, e.commitCell, NewDebouncedFlush(flushDelay), e.sink)
	return e
}

// Navigator returns the cell focus/edit state machine.
func (e *Engine) Navigator() *Navigator { return e.nav }

// Cache exposes the table cache for read-only rendering access.
func (e *Engine) Cache() *TableCache { return e.cache }

// Open loads the first page under the current view parameters.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetch.LoadFirstPage(ctx)
}

// SetView installs new sort/filter/hidden parameters and reloads from
// the first page. The navigator's hidden set follows the view.
func (e *Engine) SetView(ctx context.Context, cfg grid.ViewConfig) error {
	e.mu.Lock()
	e.fetch.SetParams(cfg)
	err := e.fetch.LoadFirstPage(ctx)
	e.mu.Unlock()

	e.nav.SetHidden(cfg.HiddenSet())
	return err
}

// Scrolled reports the new visible end index; the next page loads when
// the window has entered the trailing fetch margin.
func (e *Engine) Scrolled(ctx context.Context, visibleEnd int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.fetch.ShouldFetch(visibleEnd) {
		return nil
	}
	return e.fetch.LoadNextPage(ctx)
}

// InsertRowBefore optimistically inserts a row above the target.
func (e *Engine) InsertRowBefore(ctx context.Context, targetRowID string) (grid.Row, error) {
	return e.insertRow(ctx, targetRowID, store.InsertBefore)
}

// InsertRowAfter optimistically inserts a row below the target. An
// empty target appends at the end.
func (e *Engine) InsertRowAfter(ctx context.Context, targetRowID string) (grid.Row, error) {
	return e.insertRow(ctx, targetRowID, store.InsertAfter)
}

func (e *Engine) insertRow(ctx context.Context, targetRowID string, pos store.InsertPosition) (grid.Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.coord.StageInsertRow(targetRowID, pos)
	resolvedTarget, resolvedPos := e.coord.ResolveTarget(targetRowID, pos)

	var (
		row   grid.Row
		cells []grid.Cell
		err   error
	)
	if resolvedTarget == "" {
		row, cells, err = e.backend.CreateRow(ctx, e.tableID, "")
	} else {
		row, cells, err = e.backend.InsertRowAt(ctx, e.tableID, resolvedTarget, resolvedPos)
	}
	if err != nil {
		return grid.Row{}, e.coord.Rollback(st, err)
	}

	edits := e.coord.ResolveInsert(st, row, cells)
	e.sendBuffered(ctx, row.ID, edits)
	e.refetchIfInvalid(ctx)
	return row, nil
}

// DeleteRow optimistically removes a row. Deleting a row whose insert
// has not confirmed yet is purely local.
func (e *Engine) DeleteRow(ctx context.Context, rowID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if grid.IsTempID(rowID) {
		e.coord.DiscardTempRow(rowID)
		return nil
	}

	st, ok := e.coord.StageDeleteRow(rowID)
	if !ok {
		return nil
	}
	if err := e.backend.DeleteRow(ctx, rowID); err != nil {
		return e.coord.Rollback(st, err)
	}
	e.coord.ResolveDelete(st)
	e.refetchIfInvalid(ctx)
	return nil
}

// SetCell optimistically writes one cell. Writes identical to the
// cached value are dropped. Writes against an unconfirmed row or
// column are buffered and sent after the owner's insert resolves.
func (e *Engine) SetCell(ctx context.Context, rowID, columnID string, v grid.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if grid.IsTempID(rowID) {
		if !e.coord.BufferEdit(rowID, columnID, v) {
			return &StaleTempIDError{TempID: rowID}
		}
		return nil
	}
	if grid.IsTempID(columnID) {
		if !e.coord.BufferColumnEdit(rowID, columnID, v) {
			return &StaleTempIDError{TempID: columnID}
		}
		return nil
	}

	st, ok := e.coord.StageCellEdit(rowID, columnID, v)
	if !ok {
		return nil
	}
	cell, err := e.backend.UpsertCell(ctx, rowID, columnID, v)
	if err != nil {
		return e.coord.Rollback(st, err)
	}
	e.coord.ResolveCell(st, cell)
	e.refetchIfInvalid(ctx)
	return nil
}

// AddColumn optimistically appends a column: a temp-id placeholder is
// visible immediately and re-keys to the confirmed column on response.
// Edits buffered against the temp column are sent under the permanent
// id once it is known.
func (e *Engine) AddColumn(ctx context.Context, name string, kind grid.ColumnKind) (grid.Column, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.coord.StageInsertColumn(name, kind)
	col, err := e.backend.CreateColumn(ctx, e.tableID, name, kind)
	if err != nil {
		return grid.Column{}, e.coord.Rollback(st, err)
	}
	edits := e.coord.ResolveInsertColumn(st, col)
	e.sendBufferedColumn(ctx, col.ID, edits)
	e.refetchIfInvalid(ctx)
	return col, nil
}

// RenameColumn optimistically renames a column in place.
func (e *Engine) RenameColumn(ctx context.Context, columnID, name string) (grid.Column, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cached, ok := e.cache.ColumnByID(columnID)
	if !ok {
		// Not loaded: nothing to patch, straight through.
		return e.backend.RenameColumn(ctx, columnID, name)
	}
	cached.Name = name
	st, _ := e.coord.StageUpdateColumn(cached)
	col, err := e.backend.RenameColumn(ctx, columnID, name)
	if err != nil {
		return grid.Column{}, e.coord.Rollback(st, err)
	}
	e.coord.ResolveUpdateColumn(st, col)
	e.refetchIfInvalid(ctx)
	return col, nil
}

// ResizeColumn optimistically updates a column's display width.
func (e *Engine) ResizeColumn(ctx context.Context, columnID string, width int) (grid.Column, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cached, ok := e.cache.ColumnByID(columnID)
	if !ok {
		return e.backend.ResizeColumn(ctx, columnID, width)
	}
	cached.Width = width
	st, _ := e.coord.StageUpdateColumn(cached)
	col, err := e.backend.ResizeColumn(ctx, columnID, width)
	if err != nil {
		return grid.Column{}, e.coord.Rollback(st, err)
	}
	e.coord.ResolveUpdateColumn(st, col)
	e.refetchIfInvalid(ctx)
	return col, nil
}

// DeleteColumn optimistically removes a column and its cached values.
// Deleting a column whose create has not confirmed yet is purely local.
func (e *Engine) DeleteColumn(ctx context.Context, columnID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if grid.IsTempID(columnID) {
		e.coord.DiscardTempColumn(columnID)
		return nil
	}

	st, ok := e.coord.StageDeleteColumn(columnID)
	if !ok {
		return e.backend.DeleteColumn(ctx, columnID)
	}
	if err := e.backend.DeleteColumn(ctx, columnID); err != nil {
		return e.coord.Rollback(st, err)
	}
	e.coord.ResolveDeleteColumn(st)
	e.refetchIfInvalid(ctx)
	return nil
}

// Populate drives a bulk population job to completion, emitting a
// progress event per batch, then reloads the first page. The mutex is
// not held across batches: population touches the cache only at the
// final reload, and progress subscribers may call back into the engine.
func (e *Engine) Populate(ctx context.Context, count int, fastFirst bool) error {
	cont, err := e.backend.BulkPopulate(ctx, e.tableID, count, fastFirst)
	if err != nil {
		return err
	}
	e.emitPopulateProgress(cont)
	for !cont.Done() {
		cont, err = e.backend.ContinuePopulate(ctx, cont)
		if err != nil {
			return err
		}
		e.emitPopulateProgress(cont)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetch.LoadFirstPage(ctx)
}

// Search runs the shared matcher client-side over the loaded rows in
// their evaluated order.
func (e *Engine) Search(q string) query.SearchResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows := make([]query.RowData, 0, e.cache.Len())
	for _, r := range e.cache.Rows() {
		cells := make(map[string]grid.Value)
		for _, col := range e.cache.Columns() {
			if v := e.cache.Value(r.ID, col.ID); !grid.IsEmptyValue(v) {
				cells[col.ID] = v
			}
		}
		rows = append(rows, query.RowData{Row: r, Cells: cells})
	}
	return query.Search(e.cache.Columns(), rows, q)
}

// commitCell is the navigator's persistence path.
func (e *Engine) commitCell(rowID, columnID string, v grid.Value) {
	if err := e.SetCell(context.Background(), rowID, columnID, v); err != nil {
		e.logger.Warn("edit flush failed", "row_id", rowID, "column_id", columnID, "error", err)
	}
}

// sendBuffered flushes edits that were buffered against a temp row,
// now addressed by the confirmed row id. A failed flush is surfaced as
// an edit-failure event and invalidates the cache so the grid converges
// on the server state instead of silently losing the edit.
func (e *Engine) sendBuffered(ctx context.Context, rowID string, edits []BufferedEdit) {
	for _, ed := range edits {
		if grid.IsTempID(ed.ColumnID) {
			// The owning column is itself unconfirmed; hold the edit
			// under the column instead.
			e.coord.BufferColumnEdit(rowID, ed.ColumnID, ed.Value)
			continue
		}
		cell, err := e.backend.UpsertCell(ctx, rowID, ed.ColumnID, ed.Value)
		if err != nil {
			e.logger.Warn("buffered edit flush failed", "row_id", rowID, "column_id", ed.ColumnID, "error", err)
			e.sink.Emit(EventEditFailed, EditFailure{RowID: rowID, ColumnID: ed.ColumnID, Err: err})
			e.coord.Invalidate()
			continue
		}
		e.cache.SetValue(rowID, ed.ColumnID, cell.Value)
	}
	if len(edits) > 0 {
		e.sink.Emit(EventCellsChanged, rowID)
	}
}

// sendBufferedColumn flushes edits that were buffered against a temp
// column, now addressed by the confirmed column id.
func (e *Engine) sendBufferedColumn(ctx context.Context, columnID string, edits []BufferedColumnEdit) {
	for _, ed := range edits {
		if grid.IsTempID(ed.RowID) {
			e.coord.BufferEdit(ed.RowID, columnID, ed.Value)
			continue
		}
		cell, err := e.backend.UpsertCell(ctx, ed.RowID, columnID, ed.Value)
		if err != nil {
			e.logger.Warn("buffered edit flush failed", "row_id", ed.RowID, "column_id", columnID, "error", err)
			e.sink.Emit(EventEditFailed, EditFailure{RowID: ed.RowID, ColumnID: columnID, Err: err})
			e.coord.Invalidate()
			continue
		}
		e.cache.SetValue(ed.RowID, columnID, cell.Value)
		e.sink.Emit(EventCellsChanged, ed.RowID)
	}
}

// refetchIfInvalid reloads the first page when reconciliation gave up.
func (e *Engine) refetchIfInvalid(ctx context.Context) {
	if !e.coord.NeedsRefetch() {
		return
	}
	e.coord.ClearRefetch()
	if err := e.fetch.LoadFirstPage(ctx); err != nil {
		e.logger.Warn("invalidation refetch failed", "table_id", e.tableID, "error", err)
	}
}

func (e *Engine) emitPopulateProgress(cont store.Continuation) {
	e.sink.Emit(EventPopulateProgress, PopulateProgress{
		Percent: cont.Progress(),
		Status:  cont.Status(),
		Done:    cont.Done(),
	})
}
