package proc

import (
	"context"
	"os/exec"
	"sync"

	"github.com/hyunjaekim/crossbackup/internal/errors"
)

// Result is one scripted response for a Fake runner.
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// Fake is a scripted Runner for tests. Responses are consumed in call
// order; once the script is exhausted every call succeeds with empty
// output. Handler, when set, takes precedence over the script.
type Fake struct {
	mu sync.Mutex

	// Script is consumed one Result per Run call.
	Script []Result

	// Handler, when non-nil, computes the response for each call.
	Handler func(cmd Command) (Output, error)

	// Binaries maps names to paths for LookPath. A nil map resolves
	// every name to /usr/bin/<name>; an entry with an empty value
	// reports the binary as missing.
	Binaries map[string]string

	// Calls records every Run invocation in order.
	Calls []Command
}

var _ Runner = (*Fake)(nil)

// Run implements Runner.
func (f *Fake) Run(_ context.Context, cmd Command) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, cmd)

	if f.Handler != nil {
		return f.Handler(cmd)
	}
	if len(f.Script) == 0 {
		return Output{}, nil
	}
	res := f.Script[0]
	f.Script = f.Script[1:]
	out := Output{Stdout: []byte(res.Stdout), Stderr: []byte(res.Stderr)}
	if res.Err != nil {
		return out, errors.Wrapf(res.Err, "%s", cmd.Name)
	}
	return out, nil
}

// LookPath implements Runner.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Binaries == nil {
		return "/usr/bin/" + name, nil
	}
	if path, ok := f.Binaries[name]; ok && path != "" {
		return path, nil
	}
	return "", errors.Wrapf(exec.ErrNotFound, "%s", name)
}

// Argv returns the recorded call at index i as bin followed by its args,
// or nil when fewer calls were made.
func (f *Fake) Argv(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if i >= len(f.Calls) {
		return nil
	}
	c := f.Calls[i]
	return append([]string{c.Name}, c.Args...)
}
