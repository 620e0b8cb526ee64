package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
)

func newTestCoordinator(rowIDs ...string) (*Coordinator, *TableCache) {
	cache := NewTableCache()
	cols := []grid.Column{{ID: "col", Name: "a", Kind: grid.KindText}}
	cache.Reset(pageOf(len(rowIDs), "", cols, rowIDs...))
	return NewCoordinator(cache, nil, nil), cache
}

func TestStageInsertRowPatchesCache(t *testing.T) {
	c, cache := newTestCoordinator("r1", "r2")

	st := c.StageInsertRow("r1", store.InsertAfter)
	require.True(t, grid.IsTempID(st.TempID))
	assert.Equal(t, 3, cache.Len())

	pos, ok := cache.PositionOf(st.TempID)
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	assert.Equal(t, 1, c.InFlight(MutateInsertRow))
}

func TestStageInsertRowUnknownTargetAppends(t *testing.T) {
	c, cache := newTestCoordinator("r1")

	st := c.StageInsertRow("", store.InsertAfter)
	pos, _ := cache.PositionOf(st.TempID)
	assert.Equal(t, 1, pos)
}

func TestResolveInsertRekeysEverything(t *testing.T) {
	c, cache := newTestCoordinator("r1", "r2")
	st := c.StageInsertRow("r1", store.InsertAfter)

	confirmed := grid.Row{ID: "perm", TableID: "t1", Ord: 1}
	c.ResolveInsert(st, confirmed, []grid.Cell{
		{ID: "cell1", RowID: "perm", ColumnID: "col", Value: grid.Empty{}},
	})

	// No temp ids survive reconciliation.
	for _, r := range cache.Rows() {
		assert.False(t, grid.IsTempID(r.ID), "temp id %q left in cache", r.ID)
	}
	pos, ok := cache.PositionOf("perm")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	assert.Zero(t, c.InFlight(MutateInsertRow))
	assert.False(t, c.NeedsRefetch())
}

func TestResolveInsertPreservesInFlightEdit(t *testing.T) {
	c, cache := newTestCoordinator("r1")
	st := c.StageInsertRow("r1", store.InsertAfter)

	// The user edits the still-unconfirmed row.
	c.BufferEdit(st.TempID, "col", grid.Text("typed while pending"))

	// The server confirms with an empty seeded cell.
	edits := c.ResolveInsert(st, grid.Row{ID: "perm", Ord: 1}, []grid.Cell{
		{ID: "cell1", RowID: "perm", ColumnID: "col", Value: grid.Empty{}},
	})

	// The edit survives reconciliation onto the permanent id and comes
	// back for sending.
	assert.Equal(t, grid.Text("typed while pending"), cache.Value("perm", "col"))
	require.Len(t, edits, 1)
	assert.Equal(t, "col", edits[0].ColumnID)
	assert.Equal(t, grid.Text("typed while pending"), edits[0].Value)
}

func TestBufferEditStaleTempIDRejected(t *testing.T) {
	c, cache := newTestCoordinator("r1")
	st := c.StageInsertRow("r1", store.InsertAfter)
	c.ResolveInsert(st, grid.Row{ID: "perm", Ord: 1}, nil)

	// The temp id was re-keyed away; a late edit against it has no
	// destination and must not leave an orphan cell entry behind.
	ok := c.BufferEdit(st.TempID, "col", grid.Text("late"))
	assert.False(t, ok)
	assert.Equal(t, grid.Value(grid.Empty{}), cache.Value(st.TempID, "col"))
}

func TestStageInsertColumnRekeysCells(t *testing.T) {
	c, cache := newTestCoordinator("r1")

	st := c.StageInsertColumn("extra", grid.KindText)
	require.True(t, grid.IsTempID(st.TempID))
	require.Len(t, cache.Columns(), 2)
	assert.Equal(t, 1, c.InFlight(MutateInsertColumn))

	// The user types into the unconfirmed column.
	require.True(t, c.BufferColumnEdit("r1", st.TempID, grid.Text("typed while pending")))

	edits := c.ResolveInsertColumn(st, grid.Column{ID: "cperm", Name: "extra", Kind: grid.KindText, Ord: 1})

	// No temp ids survive, and the cached value moved with the rekey.
	for _, col := range cache.Columns() {
		assert.False(t, grid.IsTempID(col.ID), "temp id %q left in cache", col.ID)
	}
	assert.Equal(t, grid.Text("typed while pending"), cache.Value("r1", "cperm"))
	require.Len(t, edits, 1)
	assert.Equal(t, "r1", edits[0].RowID)
	assert.Zero(t, c.InFlight(MutateInsertColumn))
}

func TestRollbackInsertColumnRestores(t *testing.T) {
	c, cache := newTestCoordinator("r1")

	st := c.StageInsertColumn("extra", grid.KindText)
	err := c.Rollback(st, errors.New("backend down"))

	require.True(t, IsRolledBack(err))
	require.Len(t, cache.Columns(), 1)
	assert.Equal(t, "col", cache.Columns()[0].ID)
	assert.Zero(t, c.InFlight(MutateInsertColumn))
}

func TestStageUpdateColumnAndRollback(t *testing.T) {
	c, cache := newTestCoordinator("r1")

	st, ok := c.StageUpdateColumn(grid.Column{ID: "col", Name: "renamed", Kind: grid.KindText})
	require.True(t, ok)
	assert.Equal(t, "renamed", cache.Columns()[0].Name)

	err := c.Rollback(st, errors.New("write failed"))
	require.True(t, IsRolledBack(err))
	assert.Equal(t, "a", cache.Columns()[0].Name)

	_, ok = c.StageUpdateColumn(grid.Column{ID: "missing"})
	assert.False(t, ok)
}

func TestStageDeleteColumnAndResolve(t *testing.T) {
	c, cache := newTestCoordinator("r1")
	cache.SetValue("r1", "col", grid.Text("doomed"))

	st, ok := c.StageDeleteColumn("col")
	require.True(t, ok)
	assert.Empty(t, cache.Columns())
	assert.Equal(t, grid.Value(grid.Empty{}), cache.Value("r1", "col"))

	c.ResolveDeleteColumn(st)
	assert.Zero(t, c.InFlight(MutateDeleteColumn))
	assert.False(t, c.NeedsRefetch())

	_, ok = c.StageDeleteColumn("missing")
	assert.False(t, ok)
}

func TestDiscardTempColumn(t *testing.T) {
	c, cache := newTestCoordinator("r1")
	st := c.StageInsertColumn("extra", grid.KindText)
	c.BufferColumnEdit("r1", st.TempID, grid.Text("doomed"))

	require.True(t, c.DiscardTempColumn(st.TempID))
	require.Len(t, cache.Columns(), 1)

	// A late confirmation finds no local counterpart and drops cleanly.
	edits := c.ResolveInsertColumn(st, grid.Column{ID: "cperm", Ord: 1})
	assert.Empty(t, edits)
	_, ok := cache.ColumnByID("cperm")
	assert.False(t, ok)
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	c, cache := newTestCoordinator("r1", "r2")
	cache.SetValue("r1", "col", grid.Text("original"))
	before := cache.Snapshot()

	st := c.StageInsertRow("r2", store.InsertBefore)
	err := c.Rollback(st, errors.New("backend down"))

	require.True(t, IsRolledBack(err))
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, grid.Text("original"), cache.Value("r1", "col"))
	assert.Zero(t, c.InFlight(MutateInsertRow))

	// Cache state equals the pre-mutation snapshot.
	restored := NewTableCache()
	restored.Restore(before)
	assert.Equal(t, restored.Rows(), cache.Rows())
}

func TestStageCellEditAndResolve(t *testing.T) {
	c, cache := newTestCoordinator("r1")
	cache.SetValue("r1", "col", grid.Text("old"))

	st, ok := c.StageCellEdit("r1", "col", grid.Text("new"))
	require.True(t, ok)
	assert.Equal(t, grid.Text("new"), cache.Value("r1", "col"))

	c.ResolveCell(st, grid.Cell{ID: "cell1", RowID: "r1", ColumnID: "col", Value: grid.Text("new")})
	assert.Equal(t, grid.Text("new"), cache.Value("r1", "col"))
	assert.Zero(t, c.InFlight(MutateSetCell))
}

func TestStageCellEditIdenticalValueSkipped(t *testing.T) {
	c, cache := newTestCoordinator("r1")
	cache.SetValue("r1", "col", grid.Text("same"))

	_, ok := c.StageCellEdit("r1", "col", grid.Text("same"))
	assert.False(t, ok)
	assert.Zero(t, c.InFlight(MutateSetCell))
}

func TestRollbackCellEditRestoresValue(t *testing.T) {
	c, cache := newTestCoordinator("r1")
	cache.SetValue("r1", "col", grid.Text("old"))

	st, _ := c.StageCellEdit("r1", "col", grid.Text("new"))
	err := c.Rollback(st, errors.New("write failed"))

	require.True(t, IsRolledBack(err))
	assert.Equal(t, grid.Text("old"), cache.Value("r1", "col"))
}

func TestStageDeleteRowAndResolve(t *testing.T) {
	c, cache := newTestCoordinator("r1", "r2")

	st, ok := c.StageDeleteRow("r1")
	require.True(t, ok)
	assert.Equal(t, 1, cache.Len())

	c.ResolveDelete(st)
	assert.Zero(t, c.InFlight(MutateDeleteRow))
	assert.False(t, c.NeedsRefetch())

	_, ok = c.StageDeleteRow("missing")
	assert.False(t, ok)
}

func TestConcurrentSameKindMutationsForceRefetch(t *testing.T) {
	c, _ := newTestCoordinator("r1", "r2")

	first := c.StageInsertRow("r1", store.InsertAfter)
	second := c.StageInsertRow("r2", store.InsertAfter)
	assert.Equal(t, 2, c.InFlight(MutateInsertRow))

	// Two outstanding at success time: positional reconciliation cannot
	// be trusted, the cache must be refetched.
	c.ResolveInsert(first, grid.Row{ID: "p1", Ord: 1}, nil)
	assert.True(t, c.NeedsRefetch())

	c.ResolveInsert(second, grid.Row{ID: "p2", Ord: 3}, nil)

	c.ClearRefetch()
	assert.False(t, c.NeedsRefetch())
}

func TestSingleInFlightDoesNotForceRefetch(t *testing.T) {
	c, _ := newTestCoordinator("r1")

	st := c.StageInsertRow("r1", store.InsertAfter)
	c.ResolveInsert(st, grid.Row{ID: "p1", Ord: 1}, nil)
	assert.False(t, c.NeedsRefetch())

	st2, _ := c.StageDeleteRow("r1")
	c.ResolveDelete(st2)
	assert.False(t, c.NeedsRefetch())
}

func TestResolveTargetTempBeforeFindsConfirmedNeighbor(t *testing.T) {
	c, cache := newTestCoordinator("r1", "r2")
	st := c.StageInsertRow("r1", store.InsertAfter) // [r1, temp, r2]

	// Inserting before the temp row resolves to "after r1".
	target, pos := c.ResolveTarget(st.TempID, store.InsertBefore)
	assert.Equal(t, "r1", target)
	assert.Equal(t, store.InsertAfter, pos)

	// Inserting after the temp row resolves to "before r2".
	target, pos = c.ResolveTarget(st.TempID, store.InsertAfter)
	assert.Equal(t, "r2", target)
	assert.Equal(t, store.InsertBefore, pos)
	_ = cache
}

func TestResolveTargetNoConfirmedNeighborAppends(t *testing.T) {
	cache := NewTableCache()
	c := NewCoordinator(cache, nil, nil)
	st := c.StageInsertRow("", store.InsertAfter) // only the temp row loaded

	target, pos := c.ResolveTarget(st.TempID, store.InsertBefore)
	assert.Empty(t, target)
	assert.Equal(t, store.InsertAfter, pos)
}

func TestResolveTargetConfirmedPassesThrough(t *testing.T) {
	c, _ := newTestCoordinator("r1")

	target, pos := c.ResolveTarget("r1", store.InsertBefore)
	assert.Equal(t, "r1", target)
	assert.Equal(t, store.InsertBefore, pos)
}

func TestDiscardTempRow(t *testing.T) {
	c, cache := newTestCoordinator("r1")
	st := c.StageInsertRow("r1", store.InsertAfter)
	c.BufferEdit(st.TempID, "col", grid.Text("doomed"))

	require.True(t, c.DiscardTempRow(st.TempID))
	assert.Equal(t, 1, cache.Len())

	// A late confirmation finds no local counterpart and drops cleanly.
	edits := c.ResolveInsert(st, grid.Row{ID: "perm", Ord: 1}, nil)
	assert.Empty(t, edits)
	_, ok := cache.PositionOf("perm")
	assert.False(t, ok)
}

func TestSavingStateEvents(t *testing.T) {
	cache := NewTableCache()
	cache.Reset(pageOf(1, "", nil, "r1"))
	sink := &RecordingSink{}
	c := NewCoordinator(cache, sink, nil)

	st, _ := c.StageCellEdit("r1", "col", grid.Text("x"))
	c.ResolveCell(st, grid.Cell{RowID: "r1", ColumnID: "col", Value: grid.Text("x")})

	var states []bool
	for _, e := range sink.Events() {
		if e.Event == EventSavingState {
			states = append(states, e.Data.(bool))
		}
	}
	assert.Equal(t, []bool{true, false}, states)
}
