package cli

import (
	"github.com/spf13/cobra"

	"github.com/GetBreeze/breezedb/db"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	Database string
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Execute a statement batch from a YAML manifest",
		Long: `Execute an ordered list of statements under one failure policy.

The manifest declares the policy (continue-on-error, fail-fast, or
fail-fast-rollback) and the statements with their bound parameters.
All statements route through the connection's queue in order.

Example:
  breezedb batch --db ./app.db ./seed.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runBatch(opts *BatchOptions, manifestPath string, cmd *cobra.Command) error {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifest", err)
	}
	policy, err := manifest.BatchPolicy()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid manifest", err)
	}

	conn, err := openConnection(opts.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	statements, params := manifest.Split()

	type outcome struct {
		err     error
		entries []db.BatchEntry
	}
	done := make(chan outcome, 1)

	conn.RunBatch(statements, params, policy, func(err error, entries []db.BatchEntry) {
		done <- outcome{err: err, entries: entries}
	})

	out := <-done
	renderBatchReport(cmd.OutOrStdout(), policy, len(statements), out.entries, out.err)

	if out.err != nil {
		return WrapExitError(ExitFailure, "batch failed", out.err)
	}
	return nil
}
