package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GetBreeze/breezedb/db"
)

const waitTimeout = 2 * time.Second

func openTemp(t *testing.T, opts ...Option) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

// submitSync drives one statement through the asynchronous Submit path
// and waits for its completion.
func submitSync(t *testing.T, d *DB, statement string, args []any) (db.Result, error) {
	t.Helper()

	type outcome struct {
		res db.Result
		err error
	}
	ch := make(chan outcome, 1)
	d.Submit(statement, args, func(res db.Result, err error) {
		ch <- outcome{res: res, err: err}
	})

	select {
	case out := <-ch:
		return out.res, out.err
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %q", statement)
		return db.Result{}, nil
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	d := openTemp(t, WithBusyTimeout(2500))

	var journal string
	require.NoError(t, d.Handle().QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)

	var fk int
	require.NoError(t, d.Handle().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var busy int
	require.NoError(t, d.Handle().QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 2500, busy)
}

func TestSubmit_ExecReportsCounts(t *testing.T) {
	d := openTemp(t)

	_, err := submitSync(t, d, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)", nil)
	require.NoError(t, err)

	res, err := submitSync(t, d, "INSERT INTO t (v) VALUES (?)", []any{"one"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(1), res.LastInsertID)

	res, err = submitSync(t, d, "INSERT INTO t (v) VALUES (?)", []any{"two"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.LastInsertID)

	res, err = submitSync(t, d, "UPDATE t SET v = 'x'", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)
}

func TestSubmit_QueryReturnsRows(t *testing.T) {
	d := openTemp(t)

	_, err := d.Handle().Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = d.Handle().Exec("INSERT INTO t (name) VALUES ('ada'), ('grace')")
	require.NoError(t, err)

	res, err := submitSync(t, d, "SELECT id, name FROM t ORDER BY id", nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(1), res.Rows[0]["id"])
	assert.Equal(t, "ada", res.Rows[0]["name"])
	assert.Equal(t, int64(2), res.Rows[1]["id"])
	assert.Equal(t, "grace", res.Rows[1]["name"])
}

func TestSubmit_QueryBindsParameters(t *testing.T) {
	d := openTemp(t)

	_, err := d.Handle().Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = d.Handle().Exec("INSERT INTO t (name) VALUES ('ada'), ('grace')")
	require.NoError(t, err)

	res, err := submitSync(t, d, "SELECT name FROM t WHERE id = ?", []any{2})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "grace", res.Rows[0]["name"])
}

func TestSubmit_ErrorPassedThrough(t *testing.T) {
	d := openTemp(t)

	_, err := submitSync(t, d, "INSERT INTO no_such_table (x) VALUES (1)", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}

func TestReturnsRows(t *testing.T) {
	cases := []struct {
		statement string
		want      bool
	}{
		{"SELECT 1", true},
		{"select * from t", true},
		{"  \n\tSELECT 1", true},
		{"WITH cte AS (SELECT 1) SELECT * FROM cte", true},
		{"PRAGMA journal_mode", true},
		{"EXPLAIN SELECT 1", true},
		{"VALUES (1), (2)", true},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET x = 1", false},
		{"DELETE FROM t", false},
		{"CREATE TABLE t (id INTEGER)", false},
		{"BEGIN", false},
		{"COMMIT;", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, returnsRows(tc.statement), "statement %q", tc.statement)
	}
}
