package cli

import (
	"github.com/spf13/cobra"

	"github.com/GetBreeze/breezedb/db"
	"github.com/GetBreeze/breezedb/sqlite"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Database string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <sql> [args...]",
		Short: "Execute one statement",
		Long: `Execute a single SQL statement through the coordinator queue.

Positional arguments after the statement are bound as parameters.

Example:
  breezedb exec --db ./app.db "SELECT * FROM users WHERE name = ?" alice
  breezedb exec --db ./app.db "DELETE FROM sessions"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runExec(opts *ExecOptions, statement string, params []string, cmd *cobra.Command) error {
	conn, err := openConnection(opts.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p
	}

	type outcome struct {
		res db.Result
		err error
	}
	done := make(chan outcome, 1)

	if _, err := conn.Exec(statement, args, func(res db.Result, err error) {
		done <- outcome{res: res, err: err}
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to enqueue statement", err)
	}

	out := <-done
	if out.err != nil {
		return WrapExitError(ExitFailure, "statement failed", out.err)
	}

	return renderResult(cmd.OutOrStdout(), opts.Format, out.res)
}

// openConnection opens the SQLite adapter and wires a ready connection.
func openConnection(path string) (*db.Connection, error) {
	adapter, err := sqlite.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	conn := db.NewConnection("main")
	if err := conn.Setup(adapter); err != nil {
		adapter.Close()
		return nil, WrapExitError(ExitCommandError, "failed to set up connection", err)
	}
	return conn, nil
}
