package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GetBreeze/breezedb/db"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadManifest_Valid(t *testing.T) {
	path := writeManifest(t, `
policy: fail-fast-rollback
statements:
  - sql: INSERT INTO users (name) VALUES (?)
    args: [alice]
  - sql: DELETE FROM sessions
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	policy, err := m.BatchPolicy()
	require.NoError(t, err)
	assert.Equal(t, db.BatchFailFastRollback, policy)

	statements, params := m.Split()
	assert.Equal(t, []string{
		"INSERT INTO users (name) VALUES (?)",
		"DELETE FROM sessions",
	}, statements)
	require.Len(t, params, 2)
	assert.Equal(t, []any{"alice"}, params[0])
	assert.Nil(t, params[1])
}

func TestLoadManifest_DefaultPolicy(t *testing.T) {
	path := writeManifest(t, `
statements:
  - sql: SELECT 1
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	policy, err := m.BatchPolicy()
	require.NoError(t, err)
	assert.Equal(t, db.BatchContinueOnError, policy)
}

func TestLoadManifest_Invalid(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		want     string
	}{
		{
			name:     "no statements",
			contents: "policy: fail-fast\n",
			want:     "no statements",
		},
		{
			name: "missing sql",
			contents: `
statements:
  - args: [1]
`,
			want: "statement 1 has no sql",
		},
		{
			name: "unknown policy",
			contents: `
policy: retry-forever
statements:
  - sql: SELECT 1
`,
			want: `unknown policy "retry-forever"`,
		},
		{
			name:     "malformed yaml",
			contents: "statements: [",
			want:     "parse manifest",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, tc.contents))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read manifest")
}
