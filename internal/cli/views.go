package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gridwell/gridwell/internal/store"
)

// NewViewsCommand creates the views command group.
func NewViewsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Manage a table's saved views",
	}
	cmd.AddCommand(newViewsListCommand(rootOpts))
	cmd.AddCommand(newViewsCreateCommand(rootOpts))
	cmd.AddCommand(newViewsUpdateCommand(rootOpts))
	cmd.AddCommand(newViewsRenameCommand(rootOpts))
	cmd.AddCommand(newViewsSetDefaultCommand(rootOpts))
	cmd.AddCommand(newViewsDeleteCommand(rootOpts))
	return cmd
}

func newViewsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <table>",
		Short:         "List a table's views, default first",
		Args:          cobra.ExactArgs(1),
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
			views, err := st.ListViews(ctx, table.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list views", err)
			}

			return formatterFor(cmd, rootOpts).Success(views, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tDEFAULT\tSORTS\tFILTERS\tHIDDEN")
				for _, v := range views {
					def := ""
					if v.IsDefault {
						def = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
						v.Name, def, len(v.Config.Sorts), len(v.Config.Filters), len(v.Config.Hidden))
				}
				tw.Flush()
			})
		},
	}
}

func newViewsCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		sorts   []string
		filters []string
		hidden  []string
		def     bool
	)

	cmd := &cobra.Command{
		Use:   "create <table> <name>",
		Short: "Create a saved view",
		Long: `Create a saved view with sort, filter and hidden-column rules.

Example:
  gridwell views create inventory "Low stock" --sort qty:asc --filter 'qty:less_than:10'`,
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
			cfg, err := buildConfig(ctx, st, table.ID, sorts, filters, hidden)
			if err != nil {
				return err
			}
			view, err := st.CreateView(ctx, table.ID, args[1], cfg)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to create view", err)
			}
			if def && !view.IsDefault {
				if err := st.SetDefaultView(ctx, view.ID); err != nil {
					return WrapExitError(ExitFailure, "failed to set default view", err)
				}
				view.IsDefault = true
			}

			return formatterFor(cmd, rootOpts).Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "created view %s (%s)\n", view.Name, view.ID)
			})
		},
	}

	cmd.Flags().StringArrayVar(&sorts, "sort", nil, "sort rule column[:asc|desc] (repeatable)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter rule column:operator[:operand] (repeatable)")
	cmd.Flags().StringArrayVar(&hidden, "hide", nil, "column to hide (repeatable)")
	cmd.Flags().BoolVar(&def, "default", false, "make this the table's default view")
	return cmd
}

func newViewsUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		sorts   []string
		filters []string
		hidden  []string
	)

	cmd := &cobra.Command{
		Use:           "update <table> <view>",
		Short:         "Replace a view's sort/filter/hidden rules",
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
			view, err := resolveView(ctx, st, table.ID, args[1])
			if err != nil {
				return err
			}
			cfg, err := buildConfig(ctx, st, table.ID, sorts, filters, hidden)
			if err != nil {
				return err
			}
			view, err = st.UpdateViewConfig(ctx, view.ID, cfg)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to update view", err)
			}

			return formatterFor(cmd, rootOpts).Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "updated view %s\n", view.Name)
			})
		},
	}

	cmd.Flags().StringArrayVar(&sorts, "sort", nil, "sort rule column[:asc|desc] (repeatable)")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter rule column:operator[:operand] (repeatable)")
	cmd.Flags().StringArrayVar(&hidden, "hide", nil, "column to hide (repeatable)")
	return cmd
}

func newViewsRenameCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rename <table> <view> <new-name>",
		Short:         "Rename a view",
		Args:          cobra.ExactArgs(3),
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
			view, err := resolveView(ctx, st, table.ID, args[1])
			if err != nil {
				return err
			}
			view, err = st.RenameView(ctx, view.ID, args[2])
			if err != nil {
				return WrapExitError(ExitFailure, "failed to rename view", err)
			}

			return formatterFor(cmd, rootOpts).Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "renamed view to %s\n", view.Name)
			})
		},
	}
}

func newViewsSetDefaultCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set-default <table> <view>",
		Short:         "Make a view the table's default",
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
			view, err := resolveView(ctx, st, table.ID, args[1])
			if err != nil {
				return err
			}
			if err := st.SetDefaultView(ctx, view.ID); err != nil {
				return WrapExitError(ExitFailure, "failed to set default view", err)
			}

			return formatterFor(cmd, rootOpts).Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "default view of %s is now %s\n", table.Name, view.Name)
			})
		},
	}
}

func newViewsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <table> <view>",
		Short:         "Delete a non-default view",
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
			view, err := resolveView(ctx, st, table.ID, args[1])
			if err != nil {
				return err
			}
			if err := st.DeleteView(ctx, view.ID); err != nil {
				if store.IsValidation(err) {
					return WrapExitError(ExitCommandError, "cannot delete view", err)
				}
				return WrapExitError(ExitFailure, "failed to delete view", err)
			}

			return formatterFor(cmd, rootOpts).Success(view.Name, func(w io.Writer) {
				fmt.Fprintf(w, "deleted view %s\n", view.Name)
			})
		},
	}
}
