package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
)

// Apply materializes table schemas into the store: the table, its
// columns in declared order, and its views with column names resolved
// to the freshly assigned ids. A table declaring no views gets the
// lazily created default.
func Apply(ctx context.Context, s *store.Store, tables []TableSchema) ([]grid.Table, error) {
	created := make([]grid.Table, 0, len(tables))
	for _, t := range tables {
		table, err := applyTable(ctx, s, t)
		if err != nil {
			return created, err
		}
		created = append(created, table)
	}
	return created, nil
}

func applyTable(ctx context.Context, s *store.Store, t TableSchema) (grid.Table, error) {
	if err := t.Validate(); err != nil {
		return grid.Table{}, err
	}

	table, err := s.CreateTable(ctx, t.Name)
	if err != nil {
		return grid.Table{}, fmt.Errorf("table %q: %w", t.Key, err)
	}

	colIDs := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		col, err := s.CreateColumn(ctx, table.ID, c.Name, c.Kind)
		if err != nil {
			return table, fmt.Errorf("table %q: column %q: %w", t.Key, c.Name, err)
		}
		if c.Width > 0 && c.Width != grid.DefaultColumnWidth {
			if _, err := s.ResizeColumn(ctx, col.ID, c.Width); err != nil {
				return table, fmt.Errorf("table %q: column %q: %w", t.Key, c.Name, err)
			}
		}
		colIDs[strings.ToLower(c.Name)] = col.ID
	}

	if len(t.Views) == 0 {
		if _, err := s.EnsureDefaultView(ctx, table.ID); err != nil {
			return table, fmt.Errorf("table %q: default view: %w", t.Key, err)
		}
		return table, nil
	}

	for _, v := range t.Views {
		cfg := resolveConfig(v, colIDs)
		view, err := s.CreateView(ctx, table.ID, v.Name, cfg)
		if err != nil {
			return table, fmt.Errorf("table %q: view %q: %w", t.Key, v.Name, err)
		}
		if v.Default && !view.IsDefault {
			if err := s.SetDefaultView(ctx, view.ID); err != nil {
				return table, fmt.Errorf("table %q: view %q: %w", t.Key, v.Name, err)
			}
		}
	}
	return table, nil
}

// resolveConfig maps by-name rules to by-id rules. Validate already
// guaranteed every referenced name exists.
func resolveConfig(v ViewSchema, colIDs map[string]string) grid.ViewConfig {
	cfg := grid.ViewConfig{}
	for _, s := range v.Sorts {
		cfg.Sorts = append(cfg.Sorts, grid.SortRule{
			ColumnID:  colIDs[strings.ToLower(s.Column)],
			Direction: s.Direction,
		})
	}
	for _, f := range v.Filters {
		cfg.Filters = append(cfg.Filters, grid.FilterRule{
			ColumnID: colIDs[strings.ToLower(f.Column)],
			Operator: f.Operator,
			Operand:  f.Operand,
		})
	}
	for _, h := range v.Hidden {
		cfg.Hidden = append(cfg.Hidden, colIDs[strings.ToLower(h)])
	}
	return cfg
}
