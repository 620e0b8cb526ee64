package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gridwell/gridwell/internal/engine"
	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/query"
	"github.com/gridwell/gridwell/internal/store"
)

// TraceEvent records one executed step. Only deterministic fields
// appear: positions, names, rendered values and counts, never generated
// ids. The zero-value pointers drop fields that do not apply to the op,
// keeping the serialized trace minimal.
type TraceEvent struct {
	Seq      int                `json:"seq"`
	Op       string             `json:"op"`
	Row      *int               `json:"row,omitempty"`
	Column   string             `json:"column,omitempty"`
	Value    string             `json:"value,omitempty"`
	Query    string             `json:"query,omitempty"`
	Count    int                `json:"count,omitempty"`
	RowCount *int               `json:"row_count,omitempty"`
	Total    *int               `json:"total,omitempty"`
	Matched  *query.SearchStats `json:"matched,omitempty"`
	Columns  []string           `json:"columns,omitempty"`
	Grid     [][]string         `json:"grid,omitempty"`
}

// OpGrid is the synthetic trace op appended after the last step,
// snapshotting the rendered grid in evaluated order.
const OpGrid = "grid"

// Result holds the trace and the final grid state used by assertions.
type Result struct {
	Trace []TraceEvent

	// Columns holds the declared column names in display order and Grid
	// the rendered cell values, one slice per row in evaluated order.
	Columns  []string
	Grid     [][]string
	RowCount int
	Total    int

	// Searches records the stats of every search step keyed by query.
	Searches map[string]query.SearchStats
}

// runner executes one scenario against a throwaway store.
type runner struct {
	eng     *engine.Engine
	byName  map[string]grid.Column
	columns []grid.Column
}

// Run executes a scenario: it opens a store in a temporary directory,
// materializes the declared table, runs setup untraced, then runs the
// main steps recording one trace event each plus a final grid snapshot.
func Run(s *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "gridwell-harness-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	ctx := context.Background()
	table, err := st.CreateTable(ctx, s.Name)
	if err != nil {
		return nil, err
	}

	r := &runner{byName: make(map[string]grid.Column, len(s.Columns))}
	for _, def := range s.Columns {
		kind := grid.ColumnKind(def.Kind)
		if def.Kind == "" {
			kind = grid.KindText
		}
		col, err := st.CreateColumn(ctx, table.ID, def.Name, kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", def.Name, err)
		}
		r.byName[strings.ToLower(def.Name)] = col
		r.columns = append(r.columns, col)
	}

	// The navigator's trailing flush never runs here; steps persist
	// edits synchronously through SetCell.
	r.eng = engine.New(st, table.ID, time.Minute)
	if err := r.eng.Open(ctx); err != nil {
		return nil, err
	}

	res := &Result{Searches: make(map[string]query.SearchStats)}

	for i, step := range s.Setup {
		if _, err := r.apply(ctx, step, res); err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Op, err)
		}
	}
	for i, step := range s.Steps {
		ev, err := r.apply(ctx, step, res)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
		ev.Seq = len(res.Trace) + 1
		res.Trace = append(res.Trace, ev)
	}

	r.snapshot(res)
	return res, nil
}

// apply executes one step and builds its trace event (Seq unset).
func (r *runner) apply(ctx context.Context, step Step, res *Result) (TraceEvent, error) {
	cache := r.eng.Cache()
	switch step.Op {
	case OpAppendRow:
		if _, err := r.eng.InsertRowAfter(ctx, ""); err != nil {
			return TraceEvent{}, err
		}
		return TraceEvent{Op: step.Op, RowCount: intp(cache.Len())}, nil

	case OpInsertAfter, OpInsertBefore:
		row, err := r.rowAt(step.Row)
		if err != nil {
			return TraceEvent{}, err
		}
		if step.Op == OpInsertAfter {
			_, err = r.eng.InsertRowAfter(ctx, row.ID)
		} else {
			_, err = r.eng.InsertRowBefore(ctx, row.ID)
		}
		if err != nil {
			return TraceEvent{}, err
		}
		return TraceEvent{Op: step.Op, Row: intp(step.Row), RowCount: intp(cache.Len())}, nil

	case OpDeleteRow:
		row, err := r.rowAt(step.Row)
		if err != nil {
			return TraceEvent{}, err
		}
		if err := r.eng.DeleteRow(ctx, row.ID); err != nil {
			return TraceEvent{}, err
		}
		return TraceEvent{Op: step.Op, Row: intp(step.Row), RowCount: intp(cache.Len())}, nil

	case OpSetCell:
		row, err := r.rowAt(step.Row)
		if err != nil {
			return TraceEvent{}, err
		}
		col := r.byName[strings.ToLower(step.Column)]
		v := grid.ValueForKind(col.Kind, step.Value)
		if err := r.eng.SetCell(ctx, row.ID, col.ID, v); err != nil {
			return TraceEvent{}, err
		}
		return TraceEvent{Op: step.Op, Row: intp(step.Row), Column: col.Name, Value: step.Value}, nil

	case OpSetView:
		cfg, err := r.viewConfig(step)
		if err != nil {
			return TraceEvent{}, err
		}
		if err := r.eng.SetView(ctx, cfg); err != nil {
			return TraceEvent{}, err
		}
		return TraceEvent{Op: step.Op, RowCount: intp(cache.Len()), Total: intp(cache.Total())}, nil

	case OpPopulate:
		if err := r.eng.Populate(ctx, step.Count, false); err != nil {
			return TraceEvent{}, err
		}
		return TraceEvent{Op: step.Op, Count: step.Count, Total: intp(cache.Total())}, nil

	case OpSearch:
		sr := r.eng.Search(step.Query)
		res.Searches[step.Query] = sr.Stats
		stats := sr.Stats
		return TraceEvent{Op: step.Op, Query: step.Query, Matched: &stats}, nil

	default:
		return TraceEvent{}, fmt.Errorf("unknown op %q", step.Op)
	}
}

// snapshot renders the final grid into the result and appends the
// closing trace event.
func (r *runner) snapshot(res *Result) {
	cache := r.eng.Cache()

	res.Columns = make([]string, len(r.columns))
	for i, c := range r.columns {
		res.Columns[i] = c.Name
	}
	res.Grid = make([][]string, 0, cache.Len())
	for _, row := range cache.Rows() {
		vals := make([]string, len(r.columns))
		for i, c := range r.columns {
			vals[i] = grid.ValueString(cache.Value(row.ID, c.ID))
		}
		res.Grid = append(res.Grid, vals)
	}
	res.RowCount = cache.Len()
	res.Total = cache.Total()

	res.Trace = append(res.Trace, TraceEvent{
		Seq:     len(res.Trace) + 1,
		Op:      OpGrid,
		Columns: res.Columns,
		Grid:    res.Grid,
	})
}

// rowAt resolves a row position in the current evaluated order.
func (r *runner) rowAt(pos int) (grid.Row, error) {
	row, ok := r.eng.Cache().RowAt(pos)
	if !ok {
		return grid.Row{}, fmt.Errorf("row %d out of range (loaded %d)", pos, r.eng.Cache().Len())
	}
	return row, nil
}

// viewConfig resolves a set_view step's by-name rules to column ids.
func (r *runner) viewConfig(step Step) (grid.ViewConfig, error) {
	cfg := grid.ViewConfig{}
	for _, rule := range step.Sorts {
		dir := grid.SortDirection(rule.Direction)
		if rule.Direction == "" {
			dir = grid.SortAsc
		}
		cfg.Sorts = append(cfg.Sorts, grid.SortRule{
			ColumnID:  r.byName[strings.ToLower(rule.Column)].ID,
			Direction: dir,
		})
	}
	for _, rule := range step.Filters {
		cfg.Filters = append(cfg.Filters, grid.FilterRule{
			ColumnID: r.byName[strings.ToLower(rule.Column)].ID,
			Operator: grid.FilterOperator(rule.Operator),
			Operand:  rule.Operand,
		})
	}
	for _, h := range step.Hidden {
		cfg.Hidden = append(cfg.Hidden, r.byName[strings.ToLower(h)].ID)
	}
	return cfg, cfg.Validate()
}

func intp(i int) *int { return &i }
