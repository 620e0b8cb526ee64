package engine

import (
	"context"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
)

// fakeBackend is a scriptable Backend. Each func field, when set,
// handles its method; unset methods return zero values.
type fakeBackend struct {
	listRows     func(cursor string, pageSize int, cfg grid.ViewConfig) (store.Page, error)
	createRow    func(id string) (grid.Row, []grid.Cell, error)
	insertRowAt  func(targetRowID string, pos store.InsertPosition) (grid.Row, []grid.Cell, error)
	deleteRow    func(rowID string) error
	createColumn func(name string, kind grid.ColumnKind) (grid.Column, error)
	upsertCell   func(rowID, columnID string, v grid.Value) (grid.Cell, error)
}

func (f *fakeBackend) ListRows(_ context.Context, _, cursor string, pageSize int, cfg grid.ViewConfig) (store.Page, error) {
	if f.listRows == nil {
		return store.Page{}, nil
	}
	return f.listRows(cursor, pageSize, cfg)
}

func (f *fakeBackend) CreateRow(_ context.Context, _, id string) (grid.Row, []grid.Cell, error) {
	if f.createRow == nil {
		return grid.Row{ID: grid.NewID()}, nil, nil
	}
	return f.createRow(id)
}

func (f *fakeBackend) InsertRowAt(_ context.Context, _, targetRowID string, pos store.InsertPosition) (grid.Row, []grid.Cell, error) {
	if f.insertRowAt == nil {
		return grid.Row{ID: grid.NewID()}, nil, nil
	}
	return f.insertRowAt(targetRowID, pos)
}

func (f *fakeBackend) DeleteRow(_ context.Context, rowID string) error {
	if f.deleteRow == nil {
		return nil
	}
	return f.deleteRow(rowID)
}

func (f *fakeBackend) CreateColumn(_ context.Context, _, name string, kind grid.ColumnKind) (grid.Column, error) {
	if f.createColumn == nil {
		return grid.Column{ID: grid.NewID(), Name: name, Kind: kind}, nil
	}
	return f.createColumn(name, kind)
}

func (f *fakeBackend) RenameColumn(_ context.Context, columnID, name string) (grid.Column, error) {
	return grid.Column{ID: columnID, Name: name}, nil
}

func (f *fakeBackend) ResizeColumn(_ context.Context, columnID string, width int) (grid.Column, error) {
	return grid.Column{ID: columnID, Width: width}, nil
}

func (f *fakeBackend) DeleteColumn(context.Context, string) error { return nil }

func (f *fakeBackend) UpsertCell(_ context.Context, rowID, columnID string, v grid.Value) (grid.Cell, error) {
	if f.upsertCell == nil {
		return grid.Cell{ID: grid.NewID(), RowID: rowID, ColumnID: columnID, Value: v}, nil
	}
	return f.upsertCell(rowID, columnID, v)
}

func (f *fakeBackend) BulkPopulate(_ context.Context, tableID string, count int, _ bool) (store.Continuation, error) {
	return store.Continuation{TableID: tableID, JobID: "job", Requested: count, Inserted: count}, nil
}

func (f *fakeBackend) ContinuePopulate(_ context.Context, cont store.Continuation) (store.Continuation, error) {
	return cont, nil
}

// pageOf builds a store.Page from row ids with sequential ords.
func pageOf(total int, next string, cols []grid.Column, rowIDs ...string) store.Page {
	rows := make([]grid.Row, len(rowIDs))
	for i, id := range rowIDs {
		rows[i] = grid.Row{ID: id, Ord: i}
	}
	return store.Page{Rows: rows, Columns: cols, NextCursor: next, TotalCount: total}
}
