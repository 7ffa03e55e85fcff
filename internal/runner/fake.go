package runner

import (
	"context"
	"strings"
	"sync"
)

// Call is one command recorded by Fake.
type Call struct {
	Name string
	Args []string
}

// String renders the call as a shell-like command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Fake is a Runner that records invocations instead of starting processes.
// Handler decides the result of each call; without one every call succeeds.
type Fake struct {
	Handler func(call Call) (*Result, error)

	mu    sync.Mutex
	calls []Call
}

// Run implements Runner.
func (f *Fake) Run(_ context.Context, name string, args ...string) (*Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Handler == nil {
		return &Result{}, nil
	}
	return f.Handler(call)
}

// Calls returns the recorded invocations in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CommandLines returns the recorded invocations rendered with Call.String.
func (f *Fake) CommandLines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}
