package printing

import (
	"context"
	"sync"
)

// HandleTable tracks the engine process of every in-flight request so that
// a cancel call terminates exactly the targeted render. Each entry is owned
// by the render that acquired it and released on every exit path.
type HandleTable struct {
	mu      sync.Mutex
	handles map[string]*handle
}

type handle struct {
	cancel context.CancelFunc
}

// NewHandleTable creates an empty HandleTable
func NewHandleTable() *HandleTable {
	return &HandleTable{handles: make(map[string]*handle)}
}

// Acquire derives a cancellable context for requestID. The returned release
// function must be called when the render finishes; it cancels the context
// and removes the entry if it still belongs to this render. A second render
// with the same id replaces the earlier entry.
func (t *HandleTable) Acquire(ctx context.Context, requestID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	if requestID == "" {
		return ctx, cancel
	}

	h := &handle{cancel: cancel}
	t.mu.Lock()
	t.handles[requestID] = h
	t.mu.Unlock()

	return ctx, func() {
		t.mu.Lock()
		if t.handles[requestID] == h {
			delete(t.handles, requestID)
		}
		t.mu.Unlock()
		cancel()
	}
}

// Cancel terminates the render registered under requestID. It reports
// whether a render was found.
func (t *HandleTable) Cancel(requestID string) bool {
	t.mu.Lock()
	h, ok := t.handles[requestID]
	if ok {
		delete(t.handles, requestID)
	}
	t.mu.Unlock()

	if ok {
		h.cancel()
	}
	return ok
}

// Len returns the number of in-flight renders
func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// CancelAll terminates every in-flight render.
func (t *HandleTable) CancelAll() int {
	t.mu.Lock()
	handles := t.handles
	t.handles = make(map[string]*handle)
	t.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	return len(handles)
}
