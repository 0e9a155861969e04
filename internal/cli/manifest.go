package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GetBreeze/breezedb/db"
)

// Manifest is a YAML batch definition.
//
// Example:
//
//	policy: fail-fast-rollback
//	statements:
//	  - sql: INSERT INTO users (name) VALUES (?)
//	    args: [alice]
//	  - sql: DELETE FROM sessions
type Manifest struct {
	// Policy selects the batch failure policy. One of
	// "continue-on-error", "fail-fast", "fail-fast-rollback".
	Policy string `yaml:"policy"`

	// Statements are executed in declaration order.
	Statements []ManifestStatement `yaml:"statements"`
}

// ManifestStatement is one statement with optional bound parameters.
type ManifestStatement struct {
	SQL  string `yaml:"sql"`
	Args []any  `yaml:"args,omitempty"`
}

// LoadManifest reads and validates a batch manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if len(m.Statements) == 0 {
		return nil, fmt.Errorf("manifest has no statements")
	}
	for i, s := range m.Statements {
		if s.SQL == "" {
			return nil, fmt.Errorf("statement %d has no sql", i+1)
		}
	}
	if _, err := m.BatchPolicy(); err != nil {
		return nil, err
	}

	return &m, nil
}

// BatchPolicy maps the manifest's policy name to a db.BatchPolicy.
// An empty policy defaults to continue-on-error.
func (m *Manifest) BatchPolicy() (db.BatchPolicy, error) {
	switch m.Policy {
	case "", "continue-on-error":
		return db.BatchContinueOnError, nil
	case "fail-fast":
		return db.BatchFailFast, nil
	case "fail-fast-rollback":
		return db.BatchFailFastRollback, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", m.Policy)
	}
}

// Split returns the manifest's statements and parameter sets in the shape
// db.Connection.RunBatch expects.
func (m *Manifest) Split() ([]string, [][]any) {
	statements := make([]string, len(m.Statements))
	params := make([][]any, len(m.Statements))
	for i, s := range m.Statements {
		statements[i] = s.SQL
		params[i] = s.Args
	}
	return statements, params
}
