// Package gatewaytest provides a scripted gateway.Invoker for tests.
package gatewaytest

import (
	"context"
	"sync"
)

// Call records one Invoke.
type Call struct {
	Prompt string
	Model  string
}

// Fake is a scripted Invoker. Responses are taken from Respond when set,
// otherwise from the Queue in order, otherwise Default.
type Fake struct {
	mu      sync.Mutex
	Respond func(prompt, model string) string
	Queue   []string
	Default string
	calls   []Call
}

// New returns a Fake answering every prompt with reply.
func New(reply string) *Fake {
	return &Fake{Default: reply}
}

// Failing returns a Fake that behaves like an unreachable model server.
func Failing() *Fake {
	return &Fake{}
}

// Scripted returns a Fake answering with replies in order, then "".
func Scripted(replies ...string) *Fake {
	return &Fake{Queue: replies}
}

// Func returns a Fake backed by fn.
func Func(fn func(prompt, model string) string) *Fake {
	return &Fake{Respond: fn}
}

// Invoke implements gateway.Invoker.
func (f *Fake) Invoke(_ context.Context, prompt, model string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Prompt: prompt, Model: model})
	if f.Respond != nil {
		return f.Respond(prompt, model)
	}
	if len(f.Queue) > 0 {
		next := f.Queue[0]
		f.Queue = f.Queue[1:]
		return next
	}
	return f.Default
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Last returns the most recent call.
func (f *Fake) Last() (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Call{}, false
	}
	return f.calls[len(f.calls)-1], true
}
