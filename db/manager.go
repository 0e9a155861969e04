package db

import (
	"errors"
	"sort"
	"sync"
)

// Manager is a registry of named connections. A connection is created,
// unconfigured, on first reference to its name; later lookups return the
// same instance.
//
// There is no process-global registry: construct one manager per
// application and pass it where needed.
type Manager struct {
	mu    sync.Mutex
	conns map[string]*Connection
	opts  []ConnectionOption
}

// NewManager creates an empty registry. The given options are applied to
// every connection the manager creates.
func NewManager(opts ...ConnectionOption) *Manager {
	return &Manager{
		conns: make(map[string]*Connection),
		opts:  opts,
	}
}

// Get returns the connection registered under name, creating it on first
// reference.
func (m *Manager) Get(name string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conns[name]; ok {
		return c
	}
	c := NewConnection(name, m.opts...)
	m.conns[name] = c
	return c
}

// Names returns the registered connection names in sorted order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every registered connection, joining any errors.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
