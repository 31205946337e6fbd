package llm

import (
	"context"
	"sync"
)

// FakeReply is the canned verdict the offline client returns.
const FakeReply = `{"is_misplaced": false, "suggested_path": null, "reasoning": "offline fake adjudication"}`

// FakeClient returns deterministic replies for offline runs and tests.
// Reply, when set, computes the reply from the request; otherwise FakeReply
// is returned. Err, when set, is returned from every call.
type FakeClient struct {
	Reply func(req Request) string
	Err   error

	mu       sync.Mutex
	requests []Request
}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) Complete(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Err != nil {
		return "", f.Err
	}
	if f.Reply != nil {
		return f.Reply(req), nil
	}
	return FakeReply, nil
}

// Requests returns a copy of every request seen so far.
func (f *FakeClient) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}
