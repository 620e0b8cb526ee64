package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
	"github.com/gridwell/gridwell/internal/testutil"
)

// newTestEngine spins up an engine over a real SQLite store with one
// table (a TEXT, n NUMBER) and returns both plus the recording sink.
func newTestEngine(t *testing.T) (*Engine, *store.Store, grid.Table, *RecordingSink) {
	t.Helper()
	s := testutil.TempStore(t)

	ctx := context.Background()
	table, err := s.CreateTable(ctx, "test")
	require.NoError(t, err)
	_, err = s.CreateColumn(ctx, table.ID, "a", grid.KindText)
	require.NoError(t, err)
	_, err = s.CreateColumn(ctx, table.ID, "n", grid.KindNumber)
	require.NoError(t, err)

	sink := &RecordingSink{}
	e := New(s, table.ID, 10*time.Millisecond, WithSink(sink))
	return e, s, table, sink
}

func seedRows(t *testing.T, s *store.Store, tableID string, nums ...float64) []grid.Row {
	t.Helper()
	ctx := context.Background()
	cols, err := s.ListColumns(ctx, tableID)
	require.NoError(t, err)

	var rows []grid.Row
	for _, v := range nums {
		row, _, err := s.CreateRow(ctx, tableID, "")
		require.NoError(t, err)
		_, err = s.UpsertCell(ctx, row.ID, cols[1].ID, grid.Number(v))
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func TestEngineOpenLoadsFirstPage(t *testing.T) {
	e, s, table, _ := newTestEngine(t)
	seedRows(t, s, table.ID, 1, 2, 3)

	require.NoError(t, e.Open(context.Background()))
	assert.Equal(t, 3, e.Cache().Len())
	assert.Len(t, e.Cache().Columns(), 2)
}

func TestEngineInsertRowRoundTrip(t *testing.T) {
	e, s, table, _ := newTestEngine(t)
	rows := seedRows(t, s, table.ID, 1, 2)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	inserted, err := e.InsertRowAfter(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.False(t, grid.IsTempID(inserted.ID))

	// Cache holds the confirmed row at the optimistic position with no
	// temp ids left behind.
	pos, ok := e.Cache().PositionOf(inserted.ID)
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	for _, r := range e.Cache().Rows() {
		assert.False(t, grid.IsTempID(r.ID))
	}

	// And it is really persisted.
	page, err := s.ListRows(ctx, table.ID, "", 10, grid.ViewConfig{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
}

func TestEngineInsertRowAppend(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	row, err := e.InsertRowAfter(ctx, "")
	require.NoError(t, err)
	pos, ok := e.Cache().PositionOf(row.ID)
	require.True(t, ok)
	assert.Equal(t, 0, pos)
	assert.Equal(t, 1, e.Cache().Total())
}

func TestEngineDeleteRowRoundTrip(t *testing.T) {
	e, s, table, _ := newTestEngine(t)
	rows := seedRows(t, s, table.ID, 1, 2)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	require.NoError(t, e.DeleteRow(ctx, rows[0].ID))
	assert.Equal(t, 1, e.Cache().Len())

	page, err := s.ListRows(ctx, table.ID, "", 10, grid.ViewConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
}

func TestEngineDeleteRowRollsBackOnBackendError(t *testing.T) {
	e, s, table, _ := newTestEngine(t)
	rows := seedRows(t, s, table.ID, 1, 2)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	// The row disappears server-side behind the engine's back.
	require.NoError(t, s.DeleteRow(ctx, rows[1].ID))

	err := e.DeleteRow(ctx, rows[1].ID)
	require.Error(t, err)
	assert.True(t, IsRolledBack(err))
	assert.True(t, store.IsNotFound(err), "cause should unwrap to NOT_FOUND")

	// The optimistic removal was rewound.
	_, ok := e.Cache().PositionOf(rows[1].ID)
	assert.True(t, ok)
}

func TestEngineSetCellRoundTrip(t *testing.T) {
	e, s, table, _ := newTestEngine(t)
	rows := seedRows(t, s, table.ID, 1)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	cols := e.Cache().Columns()
	require.NoError(t, e.SetCell(ctx, rows[0].ID, cols[0].ID, grid.Text("hello")))
	assert.Equal(t, grid.Text("hello"), e.Cache().Value(rows[0].ID, cols[0].ID))

	cell, err := s.GetCell(ctx, rows[0].ID, cols[0].ID)
	require.NoError(t, err)
	assert.Equal(t, grid.Text("hello"), cell.Value)
}

func TestEngineSetViewSortsAndFilters(t *testing.T) {
	// The 5,1,3 scenario: sort asc gives 1,3,5; filtering > 2 leaves 3,5.
	e, s, table, _ := newTestEngine(t)
	seedRows(t, s, table.ID, 5, 1, 3)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))
	numCol := e.Cache().Columns()[1]

	require.NoError(t, e.SetView(ctx, grid.ViewConfig{
		Sorts: []grid.SortRule{{ColumnID: numCol.ID, Direction: grid.SortAsc}},
	}))
	assert.Equal(t, []float64{1, 3, 5}, cachedNums(e, numCol.ID))

	require.NoError(t, e.SetView(ctx, grid.ViewConfig{
		Sorts:   []grid.SortRule{{ColumnID: numCol.ID, Direction: grid.SortAsc}},
		Filters: []grid.FilterRule{{ColumnID: numCol.ID, Operator: grid.OpGreaterThan, Operand: "2"}},
	}))
	assert.Equal(t, []float64{3, 5}, cachedNums(e, numCol.ID))
	assert.Equal(t, 2, e.Cache().Total())
}

func TestEngineScrolledPagesIn(t *testing.T) {
	e, s, table, _ := newTestEngine(t)
	ctx := context.Background()
	cont, err := s.BulkPopulate(ctx, table.ID, 25, false)
	require.NoError(t, err)
	require.True(t, cont.Done())

	e.fetch.SetPageSize(10)
	require.NoError(t, e.Open(ctx))
	assert.Equal(t, 10, e.Cache().Len())
	assert.Equal(t, 25, e.Cache().Total())

	// Mid-window scroll: outside the trailing margin, nothing loads.
	require.NoError(t, e.Scrolled(ctx, 4))
	assert.Equal(t, 10, e.Cache().Len())

	// Scroll into the last 20% of loaded rows: the next page arrives.
	require.NoError(t, e.Scrolled(ctx, 9))
	assert.Equal(t, 20, e.Cache().Len())

	require.NoError(t, e.Scrolled(ctx, 19))
	assert.Equal(t, 25, e.Cache().Len())

	// Fully loaded: scrolling is quiet.
	require.NoError(t, e.Scrolled(ctx, 24))
	assert.Equal(t, 25, e.Cache().Len())
}

func TestEnginePopulateEmitsProgress(t *testing.T) {
	e, _, _, sink := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	require.NoError(t, e.Populate(ctx, 50, false))
	assert.Equal(t, 50, e.Cache().Total())

	events := sink.Events()
	var last PopulateProgress
	found := false
	for _, ev := range events {
		if ev.Event == EventPopulateProgress {
			last = ev.Data.(PopulateProgress)
			found = true
		}
	}
	require.True(t, found, "populate must emit progress")
	assert.True(t, last.Done)
	assert.Equal(t, float64(100), last.Percent)
}

func TestEngineSearchClientSide(t *testing.T) {
	e, s, table, _ := newTestEngine(t)
	rows := seedRows(t, s, table.ID, 1, 2)
	ctx := context.Background()
	cols, _ := s.ListColumns(ctx, table.ID)
	_, err := s.UpsertCell(ctx, rows[0].ID, cols[0].ID, grid.Text("needle in row"))
	require.NoError(t, err)
	require.NoError(t, e.Open(ctx))

	res := e.Search("needle")
	assert.Equal(t, 1, res.Stats.MatchedCells)
	assert.Equal(t, 1, res.Stats.MatchedRows)

	res = e.Search("")
	assert.Zero(t, res.Stats.MatchedCells)
}

func TestEngineColumnOps(t *testing.T) {
	e, _, _, sink := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	col, err := e.AddColumn(ctx, "extra", grid.KindText)
	require.NoError(t, err)
	assert.Len(t, e.Cache().Columns(), 3)
	for _, c := range e.Cache().Columns() {
		assert.False(t, grid.IsTempID(c.ID), "temp id %q left after reconciliation", c.ID)
	}

	renamed, err := e.RenameColumn(ctx, col.ID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.Name)
	assert.Equal(t, "renamed", e.Cache().Columns()[2].Name)

	resized, err := e.ResizeColumn(ctx, col.ID, 320)
	require.NoError(t, err)
	assert.Equal(t, 320, resized.Width)

	require.NoError(t, e.DeleteColumn(ctx, col.ID))
	assert.Len(t, e.Cache().Columns(), 2)

	assert.GreaterOrEqual(t, sink.Count(EventColumnsChanged), 4)
}

func TestEngineAddColumnRollsBackOnBackendError(t *testing.T) {
	cols := []grid.Column{{ID: "a", Name: "a", Kind: grid.KindText}}
	backend := &fakeBackend{
		listRows: func(string, int, grid.ViewConfig) (store.Page, error) {
			return pageOf(1, "", cols, "r1"), nil
		},
		createColumn: func(string, grid.ColumnKind) (grid.Column, error) {
			return grid.Column{}, errors.New("backend down")
		},
	}
	e := New(backend, "t1", time.Minute)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	_, err := e.AddColumn(ctx, "extra", grid.KindText)
	require.Error(t, err)
	assert.True(t, IsRolledBack(err))

	// The placeholder column was rewound.
	require.Len(t, e.Cache().Columns(), 1)
	assert.Equal(t, "a", e.Cache().Columns()[0].ID)
}

func TestEngineSetCellStaleTempIDRejected(t *testing.T) {
	e, s, table, _ := newTestEngine(t)
	rows := seedRows(t, s, table.ID, 1)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	err := e.SetCell(ctx, grid.NewTempID(), e.Cache().Columns()[0].ID, grid.Text("late"))
	require.Error(t, err)
	assert.True(t, IsStaleTempID(err))

	err = e.SetCell(ctx, rows[0].ID, grid.NewTempID(), grid.Text("late"))
	require.Error(t, err)
	assert.True(t, IsStaleTempID(err))
}

func TestEngineBufferedEditFailureSurfaces(t *testing.T) {
	cols := []grid.Column{{ID: "a", Name: "a", Kind: grid.KindText}}
	var e *Engine
	backend := &fakeBackend{
		listRows: func(string, int, grid.ViewConfig) (store.Page, error) {
			return pageOf(1, "", cols, "r1"), nil
		},
		insertRowAt: func(string, store.InsertPosition) (grid.Row, []grid.Cell, error) {
			// The user types into the unconfirmed row while the insert
			// request is in flight.
			for _, r := range e.cache.Rows() {
				if grid.IsTempID(r.ID) {
					e.coord.BufferEdit(r.ID, "a", grid.Text("typed in flight"))
				}
			}
			return grid.Row{ID: "p1", Ord: 1}, nil, nil
		},
		upsertCell: func(string, string, grid.Value) (grid.Cell, error) {
			return grid.Cell{}, errors.New("write refused")
		},
	}
	sink := &RecordingSink{}
	e = New(backend, "t1", time.Minute, WithSink(sink))
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	_, err := e.InsertRowAfter(ctx, "r1")
	require.NoError(t, err)

	// The lost edit is surfaced, and the cache was reloaded so it does
	// not keep showing a value the server never accepted.
	require.Equal(t, 1, sink.Count(EventEditFailed))
	var failure EditFailure
	for _, ev := range sink.Events() {
		if ev.Event == EventEditFailed {
			failure = ev.Data.(EditFailure)
		}
	}
	assert.Equal(t, "p1", failure.RowID)
	assert.Equal(t, "a", failure.ColumnID)
	assert.Error(t, failure.Err)
	assert.Equal(t, 1, e.Cache().Len())
	assert.Equal(t, grid.Value(grid.Empty{}), e.Cache().Value("p1", "a"))
}

type reentrantSink struct {
	e     *Engine
	calls int
}

func (s *reentrantSink) Emit(event string, _ any) {
	if event == EventPopulateProgress && s.e != nil {
		s.e.Search("")
		s.calls++
	}
}

func TestEnginePopulateProgressSinkMayReenter(t *testing.T) {
	s := testutil.TempStore(t)
	ctx := context.Background()
	table, err := s.CreateTable(ctx, "test")
	require.NoError(t, err)
	_, err = s.CreateColumn(ctx, table.ID, "a", grid.KindText)
	require.NoError(t, err)

	// A progress subscriber that reads back through the engine must not
	// deadlock against a lock held across population batches.
	sink := &reentrantSink{}
	e := New(s, table.ID, time.Minute, WithSink(sink))
	sink.e = e
	require.NoError(t, e.Open(ctx))

	require.NoError(t, e.Populate(ctx, 30, false))
	assert.Greater(t, sink.calls, 0)
	assert.Equal(t, 30, e.Cache().Total())
}

func TestEngineNavigatorCommitReachesStore(t *testing.T) {
	e, s, table, _ := newTestEngine(t)
	rows := seedRows(t, s, table.ID, 1)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))

	nav := e.Navigator()
	nav.Click(0, 0)
	nav.Type('o')
	nav.Type('k')
	nav.Enter()

	cols := e.Cache().Columns()
	cell, err := s.GetCell(ctx, rows[0].ID, cols[0].ID)
	require.NoError(t, err)
	assert.Equal(t, grid.Text("ok"), cell.Value)
}

func cachedNums(e *Engine, columnID string) []float64 {
	var out []float64
	for _, r := range e.Cache().Rows() {
		out = append(out, grid.ValueNumber(e.Cache().Value(r.ID, columnID)))
	}
	return out
}
