package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/GetBreeze/breezedb/db"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Statement, batch, or migration failure
	ExitCommandError = 2 // Command error (bad flags, unreadable files, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// renderResult writes one statement result in the selected format.
func renderResult(w io.Writer, format string, res db.Result) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"rows":           res.Rows,
			"rows_affected":  res.RowsAffected,
			"last_insert_id": res.LastInsertID,
		})
	}

	if len(res.Rows) == 0 {
		fmt.Fprintf(w, "rows affected: %d\n", res.RowsAffected)
		if res.LastInsertID != 0 {
			fmt.Fprintf(w, "last insert id: %d\n", res.LastInsertID)
		}
		return nil
	}

	for i, row := range res.Rows {
		fmt.Fprintf(w, "row %d: %s\n", i+1, formatRow(row))
	}
	fmt.Fprintf(w, "%d row(s)\n", len(res.Rows))
	return nil
}

// formatRow renders a row with sorted column names for stable output.
func formatRow(row db.Row) string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s=%v", col, row[col])
	}
	return strings.Join(parts, " ")
}

// renderBatchReport writes the per-entry batch outcome. The layout is
// stable so it can be compared against golden files.
func renderBatchReport(w io.Writer, policy db.BatchPolicy, total int, entries []db.BatchEntry, err error) {
	fmt.Fprintf(w, "policy:     %s\n", policy)
	fmt.Fprintf(w, "statements: %d\n", total)
	fmt.Fprintf(w, "attempted:  %d\n", len(entries))

	for i, entry := range entries {
		if entry.Err != nil {
			fmt.Fprintf(w, "  %d error %s: %v\n", i+1, entry.Statement, entry.Err)
			continue
		}
		if len(entry.Rows) > 0 {
			fmt.Fprintf(w, "  %d ok    %s (%d rows)\n", i+1, entry.Statement, len(entry.Rows))
			continue
		}
		fmt.Fprintf(w, "  %d ok    %s (rows affected: %d)\n", i+1, entry.Statement, entry.RowsAffected)
	}

	if err != nil {
		fmt.Fprintf(w, "result: error: %v\n", err)
		return
	}
	fmt.Fprintln(w, "result: ok")
}
