package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
)

// openStore opens the database named by the global --db flag.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// formatterFor builds an output formatter writing to the command's
// stdout.
func formatterFor(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

// resolveTable finds a table by name (case-insensitive) or id.
func resolveTable(ctx context.Context, st *store.Store, nameOrID string) (grid.Table, error) {
	tables, err := st.ListTables(ctx)
	if err != nil {
		return grid.Table{}, WrapExitError(ExitCommandError, "failed to list tables", err)
	}
	for _, t := range tables {
		if t.ID == nameOrID || strings.EqualFold(t.Name, nameOrID) {
			return t, nil
		}
	}
	return grid.Table{}, NewExitError(ExitCommandError, fmt.Sprintf("table not found: %s", nameOrID))
}

// resolveColumn finds a column by name (case-insensitive) or id.
func resolveColumn(ctx context.Context, st *store.Store, tableID, nameOrID string) (grid.Column, error) {
	cols, err := st.ListColumns(ctx, tableID)
	if err != nil {
		return grid.Column{}, WrapExitError(ExitCommandError, "failed to list columns", err)
	}
	for _, c := range cols {
		if c.ID == nameOrID || strings.EqualFold(c.Name, nameOrID) {
			return c, nil
		}
	}
	return grid.Column{}, NewExitError(ExitCommandError, fmt.Sprintf("column not found: %s", nameOrID))
}

// resolveView finds a view by name (case-insensitive) or id.
func resolveView(ctx context.Context, st *store.Store, tableID, nameOrID string) (grid.View, error) {
	views, err := st.ListViews(ctx, tableID)
	if err != nil {
		return grid.View{}, WrapExitError(ExitCommandError, "failed to list views", err)
	}
	for _, v := range views {
		if v.ID == nameOrID || strings.EqualFold(v.Name, nameOrID) {
			return v, nil
		}
	}
	return grid.View{}, NewExitError(ExitCommandError, fmt.Sprintf("view not found: %s", nameOrID))
}

// viewConfigFor selects the parameters a listing runs under: an
// explicitly named view, else the table's default view, else none.
func viewConfigFor(ctx context.Context, st *store.Store, tableID, viewName string) (grid.ViewConfig, error) {
	if viewName != "" {
		v, err := resolveView(ctx, st, tableID, viewName)
		if err != nil {
			return grid.ViewConfig{}, err
		}
		return v.Config, nil
	}
	views, err := st.ListViews(ctx, tableID)
	if err != nil {
		return grid.ViewConfig{}, WrapExitError(ExitCommandError, "failed to list views", err)
	}
	for _, v := range views {
		if v.IsDefault {
			return v.Config, nil
		}
	}
	return grid.ViewConfig{}, nil
}

// parseSortRule parses "column:direction" (direction optional, asc by
// default) into a by-id sort rule.
func parseSortRule(ctx context.Context, st *store.Store, tableID, spec string) (grid.SortRule, error) {
	name, rest, _ := strings.Cut(spec, ":")
	dir := grid.SortAsc
	if rest != "" {
		dir = grid.SortDirection(rest)
		if !dir.Valid() {
			return grid.SortRule{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid sort direction %q", rest))
		}
	}
	col, err := resolveColumn(ctx, st, tableID, name)
	if err != nil {
		return grid.SortRule{}, err
	}
	return grid.SortRule{ColumnID: col.ID, Direction: dir}, nil
}

// parseFilterRule parses "column:operator[:operand]" into a by-id
// filter rule.
func parseFilterRule(ctx context.Context, st *store.Store, tableID, spec string) (grid.FilterRule, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 {
		return grid.FilterRule{}, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid filter %q: want column:operator[:operand]", spec))
	}
	col, err := resolveColumn(ctx, st, tableID, parts[0])
	if err != nil {
		return grid.FilterRule{}, err
	}
	rule := grid.FilterRule{ColumnID: col.ID, Operator: grid.FilterOperator(parts[1])}
	if len(parts) == 3 {
		rule.Operand = parts[2]
	}
	return rule, nil
}

// buildConfig assembles a view config from repeated --sort/--filter
// flags and --hide column names.
func buildConfig(ctx context.Context, st *store.Store, tableID string, sorts, filters, hidden []string) (grid.ViewConfig, error) {
	cfg := grid.ViewConfig{}
	for _, s := range sorts {
		rule, err := parseSortRule(ctx, st, tableID, s)
		if err != nil {
			return grid.ViewConfig{}, err
		}
		cfg.Sorts = append(cfg.Sorts, rule)
	}
	for _, f := range filters {
		rule, err := parseFilterRule(ctx, st, tableID, f)
		if err != nil {
			return grid.ViewConfig{}, err
		}
		cfg.Filters = append(cfg.Filters, rule)
	}
	for _, h := range hidden {
		col, err := resolveColumn(ctx, st, tableID, h)
		if err != nil {
			return grid.ViewConfig{}, err
		}
		cfg.Hidden = append(cfg.Hidden, col.ID)
	}
	return cfg, nil
}
