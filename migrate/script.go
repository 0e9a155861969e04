package migrate

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/GetBreeze/breezedb/db"
)

// Script is a migration unit made of ordered SQL statements executed
// through the connection's queue. Statements run inside the invocation's
// transaction; the first failure aborts the unit.
type Script struct {
	Name       string
	Statements []string
}

// ID returns the script's name, which is its ledger identifier.
func (s *Script) ID() string { return s.Name }

// Run executes the script's statements in order.
func (s *Script) Run(c *db.Connection, done func(error)) {
	s.step(c, 0, done)
}

func (s *Script) step(c *db.Connection, i int, done func(error)) {
	if i == len(s.Statements) {
		done(nil)
		return
	}
	_, err := c.Exec(s.Statements[i], nil, func(_ db.Result, err error) {
		if err != nil {
			done(err)
			return
		}
		s.step(c, i+1, done)
	})
	if err != nil {
		done(err)
	}
}

// FromFS loads migration scripts from the root of a filesystem. Every
// *.sql file becomes one Script whose identifier is the filename without
// the extension and whose single statement is the file's contents.
// Scripts are ordered lexicographically by filename, which is how
// migration order is declared.
func FromFS(fsys fs.FS) ([]Unit, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate: read dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	units := make([]Unit, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", name, err)
		}
		units = append(units, &Script{
			Name:       strings.TrimSuffix(name, ".sql"),
			Statements: []string{string(data)},
		})
	}

	return units, nil
}
