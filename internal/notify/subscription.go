package notify

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription observes changes to the items of one type in one storage.
// Close stops further delivery and may be called any number of times.
type Subscription struct {
	hub    *Hub
	typeID uuid.UUID

	mu     sync.RWMutex
	local  []Handler
	remote []Handler
	closed bool
}

// TypeID returns the observed type.
func (s *Subscription) TypeID() uuid.UUID {
	return s.typeID
}

// OnLocalChanged adds a handler for changes made by this process.
func (s *Subscription) OnLocalChanged(fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.local = append(s.local, fn)
	}
}

// OnRemoteChanged adds a handler for changes made by other clients.
func (s *Subscription) OnRemoteChanged(fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.remote = append(s.remote, fn)
	}
}

// Channel returns a channel receiving every event of this subscription.
// Events are dropped when the buffer is full. The channel is never closed.
func (s *Subscription) Channel(buffer int) <-chan ChangeEvent {
	ch := make(chan ChangeEvent, buffer)
	send := func(ev ChangeEvent) {
		select {
		case ch <- ev:
		default:
		}
	}
	s.OnLocalChanged(send)
	s.OnRemoteChanged(send)
	return ch
}

// Closed returns true once Close has been called.
func (s *Subscription) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close removes the subscription from its hub.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.local = nil
	s.remote = nil
	s.mu.Unlock()

	s.hub.remove(s)
}

func (s *Subscription) deliver(ev ChangeEvent) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	handlers := s.local
	if ev.Remote {
		handlers = s.remote
	}
	handlers = append([]Handler(nil), handlers...)
	s.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
