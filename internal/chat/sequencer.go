package chat

import (
	"context"
	"sync"
)

// Sequencer runs work for the same key one at a time, in the order Do was
// called. Different keys run in parallel.
type Sequencer struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func NewSequencer() *Sequencer {
	return &Sequencer{tails: make(map[string]chan struct{})}
}

// Do waits for earlier work on key to finish, then runs fn. If ctx ends
// while waiting, fn is skipped but the slot is only released once the
// predecessor is done, so later callers still never overlap it.
func (s *Sequencer) Do(ctx context.Context, key string, fn func() error) error {
	done := make(chan struct{})

	s.mu.Lock()
	prev := s.tails[key]
	s.tails[key] = done
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if s.tails[key] == done {
			delete(s.tails, key)
		}
		s.mu.Unlock()
		close(done)
	}

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			go func() {
				<-prev
				release()
			}()
			return ctx.Err()
		}
	}

	defer release()
	return fn()
}

// Pending reports how many keys currently have work queued or running.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tails)
}
