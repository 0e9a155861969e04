// Package testutil provides deterministic fakes for coordinator tests.
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/GetBreeze/breezedb/db"
)

// Adapter is a scriptable fake engine adapter. It records every
// submission in dispatch order and either completes them immediately
// (auto mode) or holds them until the test calls Complete, which is how
// the at-most-one-in-flight and ordering properties are observed.
//
// Outcomes can be scripted per statement with Respond and FailWith;
// unscripted statements succeed with a zero result.
type Adapter struct {
	mu       sync.Mutex
	auto     bool
	subs     []*Submission
	results  map[string]db.Result
	failures map[string]error
}

// Submission is one recorded Submit call.
type Submission struct {
	Statement string
	Args      []any

	done      func(db.Result, error)
	completed bool
}

// NewAdapter creates a fake adapter in manual mode: submissions stay
// pending until Complete is called.
func NewAdapter() *Adapter {
	return &Adapter{
		results:  make(map[string]db.Result),
		failures: make(map[string]error),
	}
}

// NewAutoAdapter creates a fake adapter that completes every submission
// as soon as it arrives.
func NewAutoAdapter() *Adapter {
	a := NewAdapter()
	a.auto = true
	return a
}

// Respond scripts a success result for the given statement.
func (a *Adapter) Respond(statement string, res db.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[statement] = res
}

// FailWith scripts a failure for the given statement.
func (a *Adapter) FailWith(statement string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[statement] = err
}

// Submit implements db.Adapter.
func (a *Adapter) Submit(statement string, args []any, done func(db.Result, error)) {
	a.mu.Lock()
	sub := &Submission{Statement: statement, Args: args, done: done}
	a.subs = append(a.subs, sub)
	auto := a.auto
	res, err := a.outcomeLocked(statement)
	if auto {
		sub.completed = true
	}
	a.mu.Unlock()

	if auto {
		done(res, err)
	}
}

func (a *Adapter) outcomeLocked(statement string) (db.Result, error) {
	if err, ok := a.failures[statement]; ok {
		return db.Result{}, err
	}
	return a.results[statement], nil
}

// Statements returns the recorded statements in dispatch order.
func (a *Adapter) Statements() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.subs))
	for i, sub := range a.subs {
		out[i] = sub.Statement
	}
	return out
}

// Submitted returns the number of Submit calls seen so far.
func (a *Adapter) Submitted() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

// PendingAt reports whether the i-th submission is still awaiting
// completion.
func (a *Adapter) PendingAt(i int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return i < len(a.subs) && !a.subs[i].completed
}

// Complete finishes the i-th submission with its scripted outcome, or a
// zero success if nothing was scripted.
func (a *Adapter) Complete(i int) error {
	a.mu.Lock()
	if i < 0 || i >= len(a.subs) {
		a.mu.Unlock()
		return fmt.Errorf("testutil: no submission %d", i)
	}
	sub := a.subs[i]
	if sub.completed {
		a.mu.Unlock()
		return fmt.Errorf("testutil: submission %d already completed", i)
	}
	sub.completed = true
	res, err := a.outcomeLocked(sub.Statement)
	a.mu.Unlock()

	sub.done(res, err)
	return nil
}

// CompleteWith finishes the i-th submission with an explicit outcome.
func (a *Adapter) CompleteWith(i int, res db.Result, err error) error {
	a.mu.Lock()
	if i < 0 || i >= len(a.subs) {
		a.mu.Unlock()
		return fmt.Errorf("testutil: no submission %d", i)
	}
	sub := a.subs[i]
	if sub.completed {
		a.mu.Unlock()
		return fmt.Errorf("testutil: submission %d already completed", i)
	}
	sub.completed = true
	a.mu.Unlock()

	sub.done(res, err)
	return nil
}

// WaitSubmitted polls until at least n submissions arrived or the
// timeout elapses. Returns true if the count was reached.
func (a *Adapter) WaitSubmitted(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if a.Submitted() >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return a.Submitted() >= n
}
