// Package lock serializes work on a single game session, either inside one
// process or across instances sharing a Redis server.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLockLost is returned by a release when the lock expired and was taken by someone else.
var ErrLockLost = errors.New("lock expired before release")

// Release gives the lock back. Calling it more than once is a no-op.
type Release func(ctx context.Context) error

// Locker hands out exclusive locks keyed by session id.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// LocalLocker is a Locker for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	token chan struct{}
	refs  int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Acquire blocks until key is free or ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{token: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.token <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.token
			l.drop(key, s)
		})
		return nil
	}, nil
}

func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
