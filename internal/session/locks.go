package session

import (
	"context"
	"sync"
)

// gameLocks hands out one semaphore per game id so mutations on a single
// game are serialized while different games proceed independently. Entries
// are reference-counted and removed once nobody holds or waits on them.
// Acquisition honors context cancellation, so a caller stuck behind a busy
// game fails cleanly instead of queueing forever.
type gameLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newGameLocks() *gameLocks {
	return &gameLocks{locks: make(map[string]*lockEntry)}
}

func (l *gameLocks) acquire(ctx context.Context, id string) (release func(), err error) {
	l.mu.Lock()
	e := l.locks[id]
	if e == nil {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.put(id, e)
		return nil, ctx.Err()
	}
	return func() {
		<-e.ch
		l.put(id, e)
	}, nil
}

func (l *gameLocks) put(id string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}
