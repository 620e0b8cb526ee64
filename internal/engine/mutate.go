package engine

import (
	"log/slog"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
)

// MutationKind categorizes optimistic mutations. In-flight counts are
// tracked per kind: a confirmation arriving while another mutation of
// the same kind is still outstanding cannot be reconciled positionally,
// so it flips the refetch flag instead.
type MutationKind string

const (
	MutateInsertRow    MutationKind = "insert_row"
	MutateDeleteRow    MutationKind = "delete_row"
	MutateSetCell      MutationKind = "set_cell"
	MutateInsertColumn MutationKind = "insert_column"
	MutateUpdateColumn MutationKind = "update_column"
	MutateDeleteColumn MutationKind = "delete_column"
)

// Staged is the handle for one in-flight optimistic mutation. The
// caller passes it back to Resolve* or Rollback when the backend
// responds; responses may arrive in any order.
type Staged struct {
	ID       string
	Kind     MutationKind
	TempID   string
	RowID    string
	ColumnID string
}

// BufferedEdit is a cell edit made against a row that has not been
// confirmed yet. It is held back and sent once the row's permanent id
// is known.
type BufferedEdit struct {
	ColumnID string
	Value    grid.Value
}

// BufferedColumnEdit is a cell edit made against a column that has not
// been confirmed yet, held back until the column's permanent id is
// known.
type BufferedColumnEdit struct {
	RowID string
	Value grid.Value
}

type stagedState struct {
	st   Staged
	snap *CacheSnapshot // row-level mutations rewind the whole cache
	prev grid.Value     // cell edits rewind just the one value
}

// Coordinator implements the optimistic mutation protocol over a
// TableCache: Stage patches the cache immediately and snapshots the
// prior state; Resolve reconciles the confirmed entity in (re-keying
// temp ids); Rollback rewinds the snapshot.
type Coordinator struct {
	cache  *TableCache
	sink   EventSink
	logger *slog.Logger

	inflight     map[MutationKind]int
	pending      map[string]*stagedState
	buffered     map[string][]BufferedEdit
	bufferedCols map[string][]BufferedColumnEdit
	needsRefetch bool
}

// NewCoordinator wires a coordinator to the cache it patches.
func NewCoordinator(cache *TableCache, sink EventSink, logger *slog.Logger) *Coordinator {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cache:        cache,
		sink:         sink,
		logger:       logger,
		inflight:     make(map[MutationKind]int),
		pending:      make(map[string]*stagedState),
		buffered:     make(map[string][]BufferedEdit),
		bufferedCols: make(map[string][]BufferedColumnEdit),
	}
}

// InFlight returns the outstanding mutation count for one kind.
func (c *Coordinator) InFlight(kind MutationKind) int { return c.inflight[kind] }

// TotalInFlight returns the outstanding count across all kinds.
func (c *Coordinator) TotalInFlight() int {
	n := 0
	for _, v := range c.inflight {
		n += v
	}
	return n
}

// NeedsRefetch reports whether reconciliation was abandoned at some
// point and the cache should be reloaded from the backend.
func (c *Coordinator) NeedsRefetch() bool { return c.needsRefetch }

// ClearRefetch resets the flag after the caller has reloaded.
func (c *Coordinator) ClearRefetch() { c.needsRefetch = false }

// Invalidate raises the refetch flag directly, for callers that detect
// divergence outside the resolve path.
func (c *Coordinator) Invalidate() { c.needsRefetch = true }

// StageInsertRow inserts a placeholder row under a fresh temp id at the
// requested position and returns the staging handle. An unknown or
// empty target appends at the end of the loaded slice.
func (c *Coordinator) StageInsertRow(targetRowID string, pos store.InsertPosition) Staged {
	tempID := grid.NewTempID()
	snap := c.cache.Snapshot()

	at := c.cache.Len()
	if idx, ok := c.cache.PositionOf(targetRowID); ok {
		if pos == store.InsertBefore {
			at = idx
		} else {
			at = idx + 1
		}
	}
	c.cache.InsertRow(at, grid.Row{ID: tempID, Ord: at})

	st := Staged{ID: grid.NewID(), Kind: MutateInsertRow, TempID: tempID}
	c.track(st, &stagedState{st: st, snap: snap})
	c.sink.Emit(EventRowsChanged, c.cache.Len())
	return st
}

// StageDeleteRow removes the row from the cache and returns the staging
// handle. The second result is false when the row is not loaded.
func (c *Coordinator) StageDeleteRow(rowID string) (Staged, bool) {
	snap := c.cache.Snapshot()
	if !c.cache.RemoveRow(rowID) {
		return Staged{}, false
	}
	st := Staged{ID: grid.NewID(), Kind: MutateDeleteRow, RowID: rowID}
	c.track(st, &stagedState{st: st, snap: snap})
	c.sink.Emit(EventRowsChanged, c.cache.Len())
	return st, true
}

// StageCellEdit patches one cell value and returns the staging handle.
// An edit identical to the cached value stages nothing: the second
// result is false and nothing should be sent.
func (c *Coordinator) StageCellEdit(rowID, columnID string, v grid.Value) (Staged, bool) {
	prev := c.cache.Value(rowID, columnID)
	if grid.ValueEqual(prev, v) {
		return Staged{}, false
	}
	c.cache.SetValue(rowID, columnID, v)

	st := Staged{ID: grid.NewID(), Kind: MutateSetCell, RowID: rowID, ColumnID: columnID}
	c.track(st, &stagedState{st: st, prev: prev})
	c.sink.Emit(EventCellsChanged, rowID)
	return st, true
}

// BufferEdit records an edit against an unconfirmed row. The cache is
// patched so the value is visible immediately; the write is sent after
// ResolveInsert hands the buffered edits back under the permanent id.
// Reports false when the temp id is no longer loaded (the insert
// already resolved or rolled back): such an edit has no destination.
func (c *Coordinator) BufferEdit(tempRowID, columnID string, v grid.Value) bool {
	if _, ok := c.cache.PositionOf(tempRowID); !ok {
		return false
	}
	c.cache.SetValue(tempRowID, columnID, v)
	c.buffered[tempRowID] = append(c.buffered[tempRowID], BufferedEdit{ColumnID: columnID, Value: v})
	c.sink.Emit(EventCellsChanged, tempRowID)
	return true
}

// BufferColumnEdit records an edit against an unconfirmed column,
// mirroring BufferEdit for the column axis.
func (c *Coordinator) BufferColumnEdit(rowID, tempColumnID string, v grid.Value) bool {
	if _, ok := c.cache.ColumnByID(tempColumnID); !ok {
		return false
	}
	c.cache.SetValue(rowID, tempColumnID, v)
	c.bufferedCols[tempColumnID] = append(c.bufferedCols[tempColumnID], BufferedColumnEdit{RowID: rowID, Value: v})
	c.sink.Emit(EventCellsChanged, rowID)
	return true
}

// StageInsertColumn appends a placeholder column under a fresh temp id
// and returns the staging handle.
func (c *Coordinator) StageInsertColumn(name string, kind grid.ColumnKind) Staged {
	tempID := grid.NewTempID()
	snap := c.cache.Snapshot()

	cols := c.cache.Columns()
	c.cache.SetColumns(append(cols, grid.Column{ID: tempID, Name: name, Kind: kind, Ord: len(cols)}))

	st := Staged{ID: grid.NewID(), Kind: MutateInsertColumn, TempID: tempID}
	c.track(st, &stagedState{st: st, snap: snap})
	c.sink.Emit(EventColumnsChanged, len(cols)+1)
	return st
}

// StageUpdateColumn patches column metadata (rename, resize) ahead of
// the backend call. ok is false when the column is not loaded.
func (c *Coordinator) StageUpdateColumn(col grid.Column) (Staged, bool) {
	snap := c.cache.Snapshot()
	if !c.cache.PatchColumn(col) {
		return Staged{}, false
	}
	st := Staged{ID: grid.NewID(), Kind: MutateUpdateColumn, ColumnID: col.ID}
	c.track(st, &stagedState{st: st, snap: snap})
	c.sink.Emit(EventColumnsChanged, len(c.cache.Columns()))
	return st, true
}

// StageDeleteColumn removes the column and its cached values and
// returns the staging handle. ok is false when the column is not
// loaded.
func (c *Coordinator) StageDeleteColumn(columnID string) (Staged, bool) {
	snap := c.cache.Snapshot()
	if !c.cache.RemoveColumn(columnID) {
		return Staged{}, false
	}
	st := Staged{ID: grid.NewID(), Kind: MutateDeleteColumn, ColumnID: columnID}
	c.track(st, &stagedState{st: st, snap: snap})
	c.sink.Emit(EventColumnsChanged, len(c.cache.Columns()))
	return st, true
}

// ResolveInsertColumn reconciles a confirmed column onto its staged
// temp id: column metadata and every cached Cell.columnID re-key in
// place, and edits buffered against the temp column come back for the
// caller to send under the permanent id.
func (c *Coordinator) ResolveInsertColumn(st Staged, confirmed grid.Column) []BufferedColumnEdit {
	c.settle(st)

	if !c.cache.RekeyColumn(st.TempID, confirmed) {
		delete(c.bufferedCols, st.TempID)
		c.logger.Debug("confirmed column has no local counterpart", "temp_id", st.TempID, "column_id", confirmed.ID)
		return nil
	}

	edits := c.bufferedCols[st.TempID]
	delete(c.bufferedCols, st.TempID)
	c.sink.Emit(EventColumnsChanged, len(c.cache.Columns()))
	return edits
}

// ResolveUpdateColumn installs the backend's canonical column metadata.
func (c *Coordinator) ResolveUpdateColumn(st Staged, col grid.Column) {
	c.settle(st)
	c.cache.PatchColumn(col)
	c.sink.Emit(EventColumnsChanged, len(c.cache.Columns()))
}

// ResolveDeleteColumn acknowledges a confirmed column delete. The cache
// was already patched at stage time.
func (c *Coordinator) ResolveDeleteColumn(st Staged) {
	c.settle(st)
}

// DiscardTempColumn removes an unconfirmed column locally, along with
// its buffered edits.
func (c *Coordinator) DiscardTempColumn(tempColumnID string) bool {
	if !c.cache.RemoveColumn(tempColumnID) {
		return false
	}
	delete(c.bufferedCols, tempColumnID)
	c.sink.Emit(EventColumnsChanged, len(c.cache.Columns()))
	return true
}

// ResolveTarget maps an insert target to something the backend can
// address. A confirmed target passes through. A temp target resolves to
// the nearest confirmed neighbor in the intended direction; when no
// confirmed row exists that way, the insert degrades to a plain append
// (empty target id).
func (c *Coordinator) ResolveTarget(targetRowID string, pos store.InsertPosition) (string, store.InsertPosition) {
	if targetRowID == "" || !grid.IsTempID(targetRowID) {
		return targetRowID, pos
	}
	idx, ok := c.cache.PositionOf(targetRowID)
	if !ok {
		return "", store.InsertAfter
	}
	if pos == store.InsertBefore {
		for i := idx - 1; i >= 0; i-- {
			if r, _ := c.cache.RowAt(i); !grid.IsTempID(r.ID) {
				return r.ID, store.InsertAfter
			}
		}
	} else {
		for i := idx + 1; i < c.cache.Len(); i++ {
			if r, _ := c.cache.RowAt(i); !grid.IsTempID(r.ID) {
				return r.ID, store.InsertBefore
			}
		}
	}
	return "", store.InsertAfter
}

// ResolveInsert reconciles a confirmed row onto its staged temp id: the
// cache is re-keyed in place, server cell values fill only positions
// the user has not edited in the meantime, and any edits buffered
// against the temp id are returned for the caller to send under the
// permanent id.
func (c *Coordinator) ResolveInsert(st Staged, confirmed grid.Row, cells []grid.Cell) []BufferedEdit {
	c.settle(st)

	if !c.cache.Rekey(st.TempID, confirmed) {
		// Row vanished locally (discarded or rolled over); nothing to
		// reconcile onto, but the buffered edits are dead too.
		delete(c.buffered, st.TempID)
		c.logger.Debug("confirmed row has no local counterpart", "temp_id", st.TempID, "row_id", confirmed.ID)
		return nil
	}
	for _, cell := range cells {
		if grid.IsEmptyValue(c.cache.Value(confirmed.ID, cell.ColumnID)) {
			c.cache.SetValue(confirmed.ID, cell.ColumnID, cell.Value)
		}
	}

	edits := c.buffered[st.TempID]
	delete(c.buffered, st.TempID)
	c.sink.Emit(EventRowsChanged, c.cache.Len())
	return edits
}

// ResolveDelete acknowledges a confirmed delete. The cache was already
// patched at stage time.
func (c *Coordinator) ResolveDelete(st Staged) {
	c.settle(st)
}

// ResolveCell reconciles the server's canonical cell value.
func (c *Coordinator) ResolveCell(st Staged, cell grid.Cell) {
	c.settle(st)
	c.cache.SetValue(st.RowID, st.ColumnID, cell.Value)
	c.sink.Emit(EventCellsChanged, st.RowID)
}

// Rollback rewinds the mutation's snapshot and returns a RollbackError
// wrapping the cause. Rolling back while other mutations are still in
// flight may rewind their optimistic patches too, so the refetch flag
// is raised in that case.
func (c *Coordinator) Rollback(st Staged, cause error) error {
	state, ok := c.pending[st.ID]
	if !ok {
		return &RollbackError{Kind: st.Kind, TempID: st.TempID, Cause: cause}
	}
	if c.TotalInFlight() > 1 {
		c.needsRefetch = true
	}
	delete(c.pending, st.ID)
	c.inflight[st.Kind]--

	switch st.Kind {
	case MutateSetCell:
		c.cache.SetValue(st.RowID, st.ColumnID, state.prev)
		c.sink.Emit(EventCellsChanged, st.RowID)
	case MutateInsertColumn, MutateUpdateColumn, MutateDeleteColumn:
		c.cache.Restore(state.snap)
		delete(c.bufferedCols, st.TempID)
		c.sink.Emit(EventColumnsChanged, len(c.cache.Columns()))
	default:
		c.cache.Restore(state.snap)
		delete(c.buffered, st.TempID)
		c.sink.Emit(EventRowsChanged, c.cache.Len())
	}

	c.logger.Warn("mutation rolled back", "kind", string(st.Kind), "error", cause)
	c.emitSaving()
	return &RollbackError{Kind: st.Kind, TempID: st.TempID, Cause: cause}
}

// DiscardTempRow removes an unconfirmed row locally, along with its
// buffered edits. Used when the user deletes a row whose insert has not
// confirmed yet: there is nothing to tell the backend.
func (c *Coordinator) DiscardTempRow(tempRowID string) bool {
	if !c.cache.RemoveRow(tempRowID) {
		return false
	}
	delete(c.buffered, tempRowID)
	c.sink.Emit(EventRowsChanged, c.cache.Len())
	return true
}

func (c *Coordinator) track(st Staged, state *stagedState) {
	c.pending[st.ID] = state
	c.inflight[st.Kind]++
	c.emitSaving()
}

// settle removes a pending mutation on success, raising the refetch
// flag when the confirmation raced other mutations of the same kind.
func (c *Coordinator) settle(st Staged) {
	if _, ok := c.pending[st.ID]; !ok {
		return
	}
	if c.inflight[st.Kind] > 1 {
		c.needsRefetch = true
	}
	delete(c.pending, st.ID)
	c.inflight[st.Kind]--
	c.emitSaving()
}

func (c *Coordinator) emitSaving() {
	c.sink.Emit(EventSavingState, c.TotalInFlight() > 0)
}
