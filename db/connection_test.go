package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GetBreeze/breezedb/db"
	"github.com/GetBreeze/breezedb/internal/testutil"
)

func TestConnection_Lifecycle(t *testing.T) {
	c := db.NewConnection("main")
	assert.Equal(t, "main", c.Name())
	assert.Equal(t, db.ConnUnconfigured, c.State())

	// No operations before setup.
	_, err := c.Exec("SELECT 1", nil, nil)
	assert.ErrorIs(t, err, db.ErrNotReady)

	adapter := testutil.NewAutoAdapter()
	require.NoError(t, c.Setup(adapter))
	assert.Equal(t, db.ConnReady, c.State())

	_, err = awaitCompletionOn(t, c, "SELECT 1")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.Equal(t, db.ConnClosed, c.State())

	_, err = c.Exec("SELECT 1", nil, nil)
	assert.ErrorIs(t, err, db.ErrClosed)

	// Close is idempotent.
	require.NoError(t, c.Close())
}

func TestConnection_SetupTwiceFails(t *testing.T) {
	c := db.NewConnection("main")
	require.NoError(t, c.Setup(testutil.NewAutoAdapter()))
	t.Cleanup(func() { _ = c.Close() })

	err := c.Setup(testutil.NewAutoAdapter())
	assert.Error(t, err)
}

func TestConnection_SetupAfterCloseFails(t *testing.T) {
	c := db.NewConnection("main")
	require.NoError(t, c.Close())

	err := c.Setup(testutil.NewAutoAdapter())
	assert.ErrorIs(t, err, db.ErrClosed)
}

func TestConnection_CloseUnconfigured(t *testing.T) {
	c := db.NewConnection("main")
	require.NoError(t, c.Close())
	assert.Equal(t, db.ConnClosed, c.State())
}

func TestConnection_TransactionBeforeSetup(t *testing.T) {
	c := db.NewConnection("main")

	err := awaitErr(t, c.Begin)
	assert.ErrorIs(t, err, db.ErrNotReady)
}

func TestManager_GetCreatesOnFirstReference(t *testing.T) {
	m := db.NewManager()

	first := m.Get("app")
	assert.Equal(t, db.ConnUnconfigured, first.State())

	second := m.Get("app")
	assert.Same(t, first, second, "same name must yield the same connection")

	other := m.Get("cache")
	assert.NotSame(t, first, other)

	assert.Equal(t, []string{"app", "cache"}, m.Names())
}

func TestManager_CloseAll(t *testing.T) {
	m := db.NewManager()

	app := m.Get("app")
	require.NoError(t, app.Setup(testutil.NewAutoAdapter()))
	m.Get("cache") // never configured

	require.NoError(t, m.CloseAll())
	assert.Equal(t, db.ConnClosed, app.State())
	assert.Equal(t, db.ConnClosed, m.Get("cache").State())
}
