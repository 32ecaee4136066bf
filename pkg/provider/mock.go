package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockReply scripts one Invoke outcome for a MockAdapter.
type MockReply struct {
	Output string
	Err    error
	Delay  time.Duration
}

// MockCall records the arguments of one Invoke for assertions.
type MockCall struct {
	Model  string
	Prompt string
}

// MockAdapter returns scripted responses for local runs and tests.
type MockAdapter struct {
	name string

	mu            sync.Mutex
	script        []MockReply
	defaultOutput string
	calls         []MockCall
}

// NewMockAdapter creates a mock adapter answering with a default output.
func NewMockAdapter(name string) *MockAdapter {
	if name == "" {
		name = "mock"
	}
	return &MockAdapter{name: name, defaultOutput: "mock output"}
}

// Enqueue appends scripted replies consumed in order by Invoke.
func (a *MockAdapter) Enqueue(replies ...MockReply) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.script = append(a.script, replies...)
	return a
}

// Calls returns a copy of all recorded invocations.
func (a *MockAdapter) Calls() []MockCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	calls := make([]MockCall, len(a.calls))
	copy(calls, a.calls)
	return calls
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return a.name
}

// Invoke pops the next scripted reply, or answers with the default output.
func (a *MockAdapter) Invoke(ctx context.Context, model string, prompt string) (*Result, error) {
	a.mu.Lock()
	a.calls = append(a.calls, MockCall{Model: model, Prompt: prompt})
	var reply MockReply
	if len(a.script) > 0 {
		reply = a.script[0]
		a.script = a.script[1:]
	} else {
		reply = MockReply{Output: fmt.Sprintf("%s\n%s", a.defaultOutput, prompt)}
	}
	a.mu.Unlock()

	if reply.Delay > 0 {
		timer := time.NewTimer(reply.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &Result{Output: reply.Output}, nil
}
