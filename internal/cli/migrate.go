package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GetBreeze/breezedb/migrate"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	Database string
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate <dir>",
		Short: "Apply pending migration scripts",
		Long: `Apply *.sql migration scripts from a directory, in filename order.

Scripts already recorded in the ledger are skipped. The whole run is one
transaction: if any script fails, everything this run applied is rolled
back and the ledger is left untouched.

Example:
  breezedb migrate --db ./app.db ./migrations`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runMigrate(opts *MigrateOptions, dir string, cmd *cobra.Command) error {
	units, err := migrate.FromFS(os.DirFS(dir))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load migrations", err)
	}
	if len(units) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no migrations found")
		return nil
	}

	conn, err := openConnection(opts.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	runner := migrate.NewRunner(migrate.WithNotify(func(n migrate.Notification) {
		switch n.Kind {
		case migrate.NoteSkip:
			fmt.Fprintf(out, "skip   %s\n", n.Unit)
		case migrate.NoteRunSuccess:
			fmt.Fprintf(out, "apply  %s\n", n.Unit)
		case migrate.NoteRunError:
			fmt.Fprintf(out, "error  %s: %v\n", n.Unit, n.Err)
		case migrate.NoteFinish:
			fmt.Fprintln(out, "done")
		}
	}))

	done := make(chan error, 1)
	runner.Run(conn, units, func(err error) {
		done <- err
	})

	if err := <-done; err != nil {
		return WrapExitError(ExitFailure, "migration failed", err)
	}
	return nil
}
