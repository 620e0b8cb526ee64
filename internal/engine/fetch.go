package engine

import (
	"context"
	"log/slog"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
)

// FetchState is the controller's loading state.
type FetchState int

const (
	FetchIdle FetchState = iota
	FetchLoading
)

// DefaultPageSize is the rows-per-page the controller requests.
const DefaultPageSize = 100

// fetchMarginDivisor sets the trailing trigger: a fetch fires once the
// visible end enters the last 1/5 (20%) of the loaded rows.
const fetchMarginDivisor = 5

// FetchController pages rows into the cache with an offset cursor bound
// to the current view parameters.
//
// Parameter changes bump an epoch counter; a page that comes back after
// the epoch moved is discarded rather than applied over the wrong
// parameter set. The backend independently rejects cursors minted under
// old parameters, so a stale continuation can never smuggle rows in.
type FetchController struct {
	backend Backend
	cache   *TableCache
	tableID string
	logger  *slog.Logger
	sink    EventSink

	cfg      grid.ViewConfig
	pageSize int
	cursor   string
	hasMore  bool
	state    FetchState
	epoch    uint64
}

// NewFetchController wires a controller to its backend and cache.
func NewFetchController(backend Backend, cache *TableCache, tableID string, sink EventSink, logger *slog.Logger) *FetchController {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchController{
		backend:  backend,
		cache:    cache,
		tableID:  tableID,
		logger:   logger,
		sink:     sink,
		pageSize: DefaultPageSize,
		hasMore:  true,
	}
}

// SetPageSize overrides the page size. Values below 1 keep the default.
func (f *FetchController) SetPageSize(n int) {
	if n >= 1 {
		f.pageSize = n
	}
}

// SetParams installs new view parameters, invalidating the cursor and
// any in-flight page. The caller follows up with LoadFirstPage.
func (f *FetchController) SetParams(cfg grid.ViewConfig) {
	f.cfg = cfg
	f.epoch++
	f.cursor = ""
	f.hasMore = true
}

// Params returns the active view parameters.
func (f *FetchController) Params() grid.ViewConfig { return f.cfg }

// State reports whether a page is in flight.
func (f *FetchController) State() FetchState { return f.state }

// HasMore reports whether the backend has rows beyond the loaded slice.
func (f *FetchController) HasMore() bool { return f.hasMore }

// LoadFirstPage fetches page one under the current parameters and
// resets the cache to it.
func (f *FetchController) LoadFirstPage(ctx context.Context) error {
	return f.load(ctx, true)
}

// LoadNextPage appends the next page. No-op when a fetch is in flight
// or every row is already loaded. A cursor the backend rejects as stale
// falls back to a first-page reload.
func (f *FetchController) LoadNextPage(ctx context.Context) error {
	if f.state == FetchLoading || !f.hasMore {
		return nil
	}
	if f.cursor == "" && f.cache.Len() > 0 {
		return nil
	}
	err := f.load(ctx, false)
	if store.IsValidation(err) {
		f.logger.Warn("cursor rejected, reloading from start", "table_id", f.tableID, "error", err)
		return f.load(ctx, true)
	}
	return err
}

// ShouldFetch reports whether scrolling to visibleEnd (an index into
// the loaded rows) should trigger the next page.
func (f *FetchController) ShouldFetch(visibleEnd int) bool {
	if !f.hasMore || f.state == FetchLoading {
		return false
	}
	loaded := f.cache.Len()
	if loaded == 0 {
		return true
	}
	return visibleEnd >= loaded-loaded/fetchMarginDivisor
}

// VisibleWindow returns the loaded rows covering [start, end) plus
// overscan rows on each side.
func (f *FetchController) VisibleWindow(start, end, overscan int) []grid.Row {
	return f.cache.Window(start, end, overscan)
}

func (f *FetchController) load(ctx context.Context, reset bool) error {
	epoch := f.epoch
	cursor := f.cursor
	if reset {
		cursor = ""
	}

	f.state = FetchLoading
	page, err := f.backend.ListRows(ctx, f.tableID, cursor, f.pageSize, f.cfg)
	f.state = FetchIdle

	if epoch != f.epoch {
		// Parameters changed underneath the request. The page answers a
		// question nobody is asking anymore.
		f.logger.Debug("stale page discarded", "table_id", f.tableID, "epoch", epoch)
		return nil
	}
	if err != nil {
		return err
	}

	if reset {
		f.cache.Reset(page)
	} else {
		f.cache.Append(page)
	}
	f.cursor = page.NextCursor
	f.hasMore = page.NextCursor != ""
	f.sink.Emit(EventRowsChanged, f.cache.Len())
	return nil
}
