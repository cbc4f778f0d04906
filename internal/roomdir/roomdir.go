// Package roomdir reserves room ids so that no two live rooms share one.
package roomdir

import (
	"context"
	"sync"
)

// Directory hands out exclusive claims on room ids.
type Directory interface {
	// Reserve claims id. It reports false when id is already held.
	Reserve(ctx context.Context, id string) (bool, error)
	// Release gives id back. Releasing an unknown id, or one another owner
	// holds, is not an error and leaves the other claim alone.
	Release(ctx context.Context, id string) error
	// Touch keeps a claim alive while its room lives. It reports false when
	// the id is now held by someone else.
	Touch(ctx context.Context, id string) (bool, error)
}

// Local is an in-process Directory; it only guarantees uniqueness within
// the current process.
type Local struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewLocal() *Local { return &Local{ids: make(map[string]struct{})} }

func (l *Local) Reserve(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.ids[id]; taken {
		return false, nil
	}
	l.ids[id] = struct{}{}
	return true, nil
}

func (l *Local) Release(_ context.Context, id string) error {
	l.mu.Lock()
	delete(l.ids, id)
	l.mu.Unlock()
	return nil
}

// Touch re-asserts the claim; in-process claims never expire.
func (l *Local) Touch(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	l.ids[id] = struct{}{}
	l.mu.Unlock()
	return true, nil
}

// Len returns the number of reserved ids.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}
