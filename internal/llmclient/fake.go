package llmclient

import (
	"context"
	"sync"
)

var _ Client = (*FakeClient)(nil)

// FakeClient is a scripted adapter for tests. Each Generate call pops the
// next scripted result; when the script runs out it repeats the last entry.
type FakeClient struct {
	mu      sync.Mutex
	Label   string
	Script  []FakeResult
	Calls   int
	LastCtx string
}

// FakeResult is one scripted Generate outcome.
type FakeResult struct {
	Resp *Response
	Err  error
}

func (f *FakeClient) Name() string {
	if f.Label == "" {
		return "Fake:test"
	}
	return f.Label
}
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Generate(_ context.Context, cachedContext, _ string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastCtx = cachedContext
	i := f.Calls
	f.Calls++
	if len(f.Script) == 0 {
		return &Response{}, nil
	}
	if i >= len(f.Script) {
		i = len(f.Script) - 1
	}
	return f.Script[i].Resp, f.Script[i].Err
}

func (f *FakeClient) TestConnection(context.Context) (bool, string) {
	return true, f.Name() + " reachable"
}
