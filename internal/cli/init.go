package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gridwell/gridwell/internal/schema"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <schema-path>",
		Short: "Create tables from a CUE schema",
		Long: `Compile a CUE schema file or directory and materialize its tables,
columns and views into the database.

Example:
  gridwell init --db ./grid.db ./schema.cue
  gridwell init --db ./grid.db ./schemas/`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, rootOpts, args[0])
		},
	}
}

func runInit(cmd *cobra.Command, opts *RootOptions, path string) error {
	tables, err := schema.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	created, err := schema.Apply(cmd.Context(), st, tables)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to apply schema", err)
	}

	return formatterFor(cmd, opts).Success(created, func(w io.Writer) {
		for _, t := range created {
			fmt.Fprintf(w, "created table %s (%s)\n", t.Name, t.ID)
		}
	})
}
