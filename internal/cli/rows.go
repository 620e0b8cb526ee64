package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridwell/gridwell/internal/grid"
	"github.com/gridwell/gridwell/internal/store"
)

// RowsOptions holds flags for the rows command.
type RowsOptions struct {
	*RootOptions
	View    string
	Sorts   []string
	Filters []string
	Hidden  []string
	Limit   int
	Cursor  string
	All     bool
}

// rowsPage is the JSON payload for one printed page.
type rowsPage struct {
	Columns    []grid.Column       `json:"columns"`
	Rows       []map[string]string `json:"rows"`
	NextCursor string              `json:"next_cursor,omitempty"`
	TotalCount int                 `json:"total_count"`
}

// NewRowsCommand creates the rows command.
func NewRowsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RowsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rows <table>",
		Short: "List a table's rows page by page",
		Long: `List rows in evaluated order under a view's sort/filter parameters.

The listing runs under the named --view, or the table's default view
when none is given. Explicit --sort/--filter/--hide flags replace the
view's parameters entirely. Pass the printed next cursor back via
--cursor to fetch the following page, or --all to page to the end.

Example:
  gridwell rows inventory --limit 50
  gridwell rows inventory --sort qty:desc --filter 'status:contains:low'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRows(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.View, "view", "", "view to list under (name or id)")
	cmd.Flags().StringArrayVar(&opts.Sorts, "sort", nil, "sort rule column[:asc|desc] (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "filter rule column:operator[:operand] (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Hidden, "hide", nil, "column to hide (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", store.DefaultPageSize, "rows per page")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "resume from a previous page's next cursor")
	cmd.Flags().BoolVar(&opts.All, "all", false, "page through every row")

	return cmd
}

func runRows(cmd *cobra.Command, opts *RowsOptions, tableArg string) error {
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	table, err := resolveTable(ctx, st, tableArg)
	if err != nil {
		return err
	}

	cfg, err := rowsConfig(ctx, st, table.ID, opts)
	if err != nil {
		return err
	}

	formatter := formatterFor(cmd, opts.RootOptions)
	cursor := opts.Cursor
	for {
		page, err := st.ListRows(ctx, table.ID, cursor, opts.Limit, cfg)
		if err != nil {
			if store.IsValidation(err) {
				return WrapExitError(ExitCommandError, "listing rejected", err)
			}
			return WrapExitError(ExitFailure, "failed to list rows", err)
		}
		if err := printPage(formatter, page, cfg); err != nil {
			return err
		}
		if !opts.All || page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

// rowsConfig picks the parameter set: explicit flags win over --view.
func rowsConfig(ctx context.Context, st *store.Store, tableID string, opts *RowsOptions) (grid.ViewConfig, error) {
	if len(opts.Sorts) > 0 || len(opts.Filters) > 0 || len(opts.Hidden) > 0 {
		return buildConfig(ctx, st, tableID, opts.Sorts, opts.Filters, opts.Hidden)
	}
	return viewConfigFor(ctx, st, tableID, opts.View)
}

func printPage(f *OutputFormatter, page store.Page, cfg grid.ViewConfig) error {
	hidden := cfg.HiddenSet()
	visible := make([]grid.Column, 0, len(page.Columns))
	for _, c := range page.Columns {
		if !hidden[c.ID] {
			visible = append(visible, c)
		}
	}

	values := make(map[string]map[string]grid.Value, len(page.Rows))
	for _, cell := range page.Cells {
		row, ok := values[cell.RowID]
		if !ok {
			row = make(map[string]grid.Value)
			values[cell.RowID] = row
		}
		row[cell.ColumnID] = cell.Value
	}

	payload := rowsPage{
		Columns:    visible,
		NextCursor: page.NextCursor,
		TotalCount: page.TotalCount,
	}
	for _, r := range page.Rows {
		rendered := make(map[string]string, len(visible))
		for _, c := range visible {
			rendered[c.Name] = grid.ValueString(values[r.ID][c.ID])
		}
		payload.Rows = append(payload.Rows, rendered)
	}

	return f.Success(payload, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for i, c := range visible {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, c.Name)
		}
		fmt.Fprintln(tw)
		for _, r := range page.Rows {
			for i, c := range visible {
				if i > 0 {
					fmt.Fprint(tw, "\t")
				}
				fmt.Fprint(tw, grid.ValueString(values[r.ID][c.ID]))
			}
			fmt.Fprintln(tw)
		}
		tw.Flush()
		fmt.Fprintf(w, "%d of %d rows\n", len(page.Rows), page.TotalCount)
		if page.NextCursor != "" {
			fmt.Fprintf(w, "next cursor: %s\n", page.NextCursor)
		}
	})
}
