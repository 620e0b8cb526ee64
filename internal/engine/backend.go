package engine

import (
	"context"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
)

// Backend is the persistence surface the engine synchronizes against.
// Implemented by *store.Store (production) and by fakes in tests.
type Backend interface {
	ListRows(ctx context.Context, tableID, cursor string, pageSize int, cfg grid.ViewConfig) (store.Page, error)

	CreateRow(ctx context.Context, tableID, id string) (grid.Row, []grid.Cell, error)
	InsertRowAt(ctx context.Context, tableID, targetRowID string, pos store.InsertPosition) (grid.Row, []grid.Cell, error)
	DeleteRow(ctx context.Context, rowID string) error

	CreateColumn(ctx context.Context, tableID, name string, kind grid.ColumnKind) (grid.Column, error)
	RenameColumn(ctx context.Context, columnID, name string) (grid.Column, error)
	ResizeColumn(ctx context.Context, columnID string, width int) (grid.Column, error)
	DeleteColumn(ctx context.Context, columnID string) error

	UpsertCell(ctx context.Context, rowID, columnID string, value grid.Value) (grid.Cell, error)

	BulkPopulate(ctx context.Context, tableID string, count int, fastFirst bool) (store.Continuation, error)
	ContinuePopulate(ctx context.Context, cont store.Continuation) (store.Continuation, error)
}

var _ Backend = (*store.Store)(nil)
