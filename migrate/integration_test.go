package migrate

import (
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GetBreeze/breezedb/db"
	"github.com/GetBreeze/breezedb/sqlite"
)

// openSQLite opens a throwaway on-disk database and wires it to a
// connection, both closed with the test.
func openSQLite(t *testing.T) *db.Connection {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.db")
	adapter, err := sqlite.Open(path)
	require.NoError(t, err)

	c := db.NewConnection("it")
	require.NoError(t, c.Setup(adapter))
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

// querySync runs a statement through the connection and waits for its
// result.
func querySync(t *testing.T, c *db.Connection, statement string) db.Result {
	t.Helper()

	type outcome struct {
		res db.Result
		err error
	}
	ch := make(chan outcome, 1)
	_, err := c.Exec(statement, nil, func(res db.Result, err error) {
		ch <- outcome{res: res, err: err}
	})
	require.NoError(t, err)

	select {
	case out := <-ch:
		require.NoError(t, out.err)
		return out.res
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %q", statement)
		return db.Result{}
	}
}

func ledgerIDs(t *testing.T, c *db.Connection) []string {
	t.Helper()

	res := querySync(t, c, "SELECT id FROM "+LedgerTable+" ORDER BY id")
	ids := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		id, ok := row["id"].(string)
		require.True(t, ok)
		ids = append(ids, id)
	}
	return ids
}

func tableExists(t *testing.T, c *db.Connection, name string) bool {
	t.Helper()

	res := querySync(t, c,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = '"+name+"'")
	return len(res.Rows) > 0
}

func TestRunner_SQLiteReplayIsIdempotent(t *testing.T) {
	c := openSQLite(t)

	first := []Unit{
		&Script{Name: "0001_users", Statements: []string{
			"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
			"INSERT INTO users (name) VALUES ('ada')",
		}},
		&Script{Name: "0002_posts", Statements: []string{
			"CREATE TABLE posts (id INTEGER PRIMARY KEY, author INTEGER REFERENCES users (id))",
		}},
	}

	require.NoError(t, runSync(t, NewRunner(), c, first))
	assert.Equal(t, []string{"0001_users", "0002_posts"}, ledgerIDs(t, c))

	// Replaying the same units plus a new one applies only the new one.
	second := append(first, &Script{Name: "0003_tags", Statements: []string{
		"CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT NOT NULL)",
	}})

	var notes []Notification
	runner := NewRunner(WithNotify(func(n Notification) {
		notes = append(notes, n)
	}))
	require.NoError(t, runSync(t, runner, c, second))

	assert.Equal(t, []string{"0001_users", "0002_posts", "0003_tags"}, ledgerIDs(t, c))
	require.Len(t, notes, 4)
	assert.Equal(t, Notification{Unit: "0001_users", Kind: NoteSkip}, notes[0])
	assert.Equal(t, Notification{Unit: "0002_posts", Kind: NoteSkip}, notes[1])
	assert.Equal(t, Notification{Unit: "0003_tags", Kind: NoteRunSuccess}, notes[2])
	assert.Equal(t, NoteFinish, notes[3].Kind)

	// The seed row from the first invocation survived the replay.
	res := querySync(t, c, "SELECT name FROM users")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ada", res.Rows[0]["name"])
}

func TestRunner_SQLiteFailureRollsBackInvocation(t *testing.T) {
	c := openSQLite(t)

	units := []Unit{
		&Script{Name: "0001_accounts", Statements: []string{
			"CREATE TABLE accounts (id INTEGER PRIMARY KEY, balance INTEGER NOT NULL)",
			"INSERT INTO accounts (balance) VALUES (100)",
		}},
		&Script{Name: "0002_broken", Statements: []string{
			"INSERT INTO no_such_table (x) VALUES (1)",
		}},
	}

	err := runSync(t, NewRunner(), c, units)
	require.Error(t, err)

	// The first unit's schema change and its ledger row were both undone.
	assert.False(t, tableExists(t, c, "accounts"))
	assert.Empty(t, ledgerIDs(t, c))
	assert.Equal(t, db.TxIdle, c.TxState())
}

func TestFromFS_LoadsScriptsInOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_posts.sql": {Data: []byte("CREATE TABLE posts (id INTEGER)")},
		"0001_users.sql": {Data: []byte("CREATE TABLE users (id INTEGER)")},
		"notes.txt":      {Data: []byte("not a migration")},
	}

	units, err := FromFS(fsys)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "0001_users", units[0].ID())
	assert.Equal(t, "0002_posts", units[1].ID())
}

func TestFromFS_AppliesAgainstSQLite(t *testing.T) {
	c := openSQLite(t)

	fsys := fstest.MapFS{
		"0001_events.sql": {Data: []byte(
			"CREATE TABLE events (id INTEGER PRIMARY KEY, kind TEXT NOT NULL)")},
	}

	units, err := FromFS(fsys)
	require.NoError(t, err)
	require.NoError(t, runSync(t, NewRunner(), c, units))

	assert.True(t, tableExists(t, c, "events"))
	assert.Equal(t, []string{"0001_events"}, ledgerIDs(t, c))
}
