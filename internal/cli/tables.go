package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridwell/gridwell/internal/grid"
)

// NewTablesCommand creates the tables command group.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List and create tables",
	}
	cmd.AddCommand(newTablesListCommand(rootOpts))
	cmd.AddCommand(newTablesCreateCommand(rootOpts))
	cmd.AddCommand(newColumnsAddCommand(rootOpts))
	return cmd
}

func newTablesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List all tables",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			tables, err := st.ListTables(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list tables", err)
			}

			return formatterFor(cmd, rootOpts).Success(tables, func(w io.Writer) {
				if len(tables) == 0 {
					fmt.Fprintln(w, "No tables.")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tID")
				for _, t := range tables {
					fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.ID)
				}
				tw.Flush()
			})
		},
	}
}

func newTablesCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "create <name>",
		Short:         "Create an empty table",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			table, err := st.CreateTable(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "failed to create table", err)
			}

			return formatterFor(cmd, rootOpts).Success(table, func(w io.Writer) {
				fmt.Fprintf(w, "created table %s (%s)\n", table.Name, table.ID)
			})
		},
	}
}

func newColumnsAddCommand(rootOpts *RootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:           "add-column <table> <name>",
		Short:         "Add a column to a table",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			table, err := resolveTable(ctx, st, args[0])
			if err != nil {
				return err
			}
			col, err := st.CreateColumn(ctx, table.ID, args[1], grid.ColumnKind(kind))
			if err != nil {
				return WrapExitError(ExitFailure, "failed to create column", err)
			}

			return formatterFor(cmd, rootOpts).Success(col, func(w io.Writer) {
				fmt.Fprintf(w, "created column %s (%s) on %s\n", col.Name, col.Kind, table.Name)
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "TEXT", "column kind (TEXT|NUMBER)")
	return cmd
}
