package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gridwell/gridwell/internal/store"
)

// PopulateOptions holds flags for the populate command.
type PopulateOptions struct {
	*RootOptions
	Fast bool
}

// NewPopulateCommand creates the populate command.
func NewPopulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PopulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "populate <table> <count>",
		Short: "Bulk-insert generated rows",
		Long: `Insert generated rows in adaptively sized batches. Each batch commits
on its own, so an interrupted population keeps the rows inserted so
far. --fast caps the first batch small for quick visible progress.

Example:
  gridwell populate inventory 10000
  gridwell populate inventory 100000 --fast`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPopulate(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Fast, "fast", false, "small first batch for quick feedback")
	return cmd
}

func runPopulate(cmd *cobra.Command, opts *PopulateOptions, tableArg, countArg string) error {
	count, err := strconv.Atoi(countArg)
	if err != nil || count <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid row count %q", countArg))
	}

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

	out := cmd.OutOrStdout()
	cont, err := st.BulkPopulate(ctx, table.ID, count, opts.Fast)
	if err != nil {
		return WrapExitError(ExitFailure, "population failed", err)
	}
	reportProgress(out, opts, cont)
	for !cont.Done() {
		cont, err = st.ContinuePopulate(ctx, cont)
		if err != nil {
			return WrapExitError(ExitFailure, "population failed", err)
		}
		reportProgress(out, opts, cont)
	}

	return formatterFor(cmd, opts.RootOptions).Success(cont, func(w io.Writer) {
		fmt.Fprintf(w, "%s into %s\n", cont.Status(), table.Name)
	})
}

// reportProgress prints per-batch progress in text mode. JSON mode
// stays quiet until the final envelope so stdout remains one document.
func reportProgress(w io.Writer, opts *PopulateOptions, cont store.Continuation) {
	if opts.Format == "json" || cont.Done() {
		return
	}
	fmt.Fprintln(w, cont.Status())
}
