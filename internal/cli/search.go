package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	View string
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <table> <query>",
		Short: "Search column names and cell values",
		Long: `Case-insensitive substring search over a table's column names and
cell values. Matches come back in evaluated order under the view the
search runs under (--view, or the table's default).

Example:
  gridwell search inventory widget`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.View, "view", "", "view the search runs under (name or id)")
	return cmd
}

func runSearch(cmd *cobra.Command, opts *SearchOptions, tableArg, q string) error {
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
	cfg, err := viewConfigFor(ctx, st, table.ID, opts.View)
	if err != nil {
		return err
	}

	res, err := st.SearchTable(ctx, table.ID, q, cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "search failed", err)
	}

	return formatterFor(cmd, opts.RootOptions).Success(res, func(w io.Writer) {
		for _, f := range res.Fields {
			fmt.Fprintf(w, "field  %s\n", f.Name)
		}
		for _, c := range res.Cells {
			fmt.Fprintf(w, "cell   row %d: %s\n", c.RowPos, c.Text)
		}
		fmt.Fprintf(w, "%d fields, %d cells in %d rows\n",
			res.Stats.MatchedFields, res.Stats.MatchedCells, res.Stats.MatchedRows)
	})
}
