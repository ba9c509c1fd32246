package sessions

import (
	"context"
	"sync"
)

// ConversationLocker serializes turns on the same conversation so two inbound
// messages from one customer never interleave their loop runs. Entries are
// reference counted and removed once the last holder releases.
type ConversationLocker struct {
	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	ch   chan struct{}
	refs int
}

func NewConversationLocker() *ConversationLocker {
	return &ConversationLocker{locks: make(map[string]*convLock)}
}

// Lock acquires the lock for one conversation, waiting until the holder
// releases or ctx is cancelled.
func (l *ConversationLocker) Lock(ctx context.Context, conversationID string) error {
	l.mu.Lock()
	entry, ok := l.locks[conversationID]
	if !ok {
		entry = &convLock{ch: make(chan struct{}, 1)}
		l.locks[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(conversationID, entry)
		return ctx.Err()
	}
}

// Unlock releases the lock for one conversation.
func (l *ConversationLocker) Unlock(conversationID string) {
	l.mu.Lock()
	entry, ok := l.locks[conversationID]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-entry.ch
	l.release(conversationID, entry)
}

func (l *ConversationLocker) release(conversationID string, entry *convLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, conversationID)
	}
}
