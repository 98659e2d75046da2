// Package session carries in-process notifications about authentication
// state so portal components can react to sign-in, refresh and sign-out
// without polling the session store.
package session

import "sync"

// EventKind identifies an authentication state transition.
type EventKind string

const (
	EventSignedIn       EventKind = "signed-in"
	EventTokenRefreshed EventKind = "token-refreshed"
	EventSignedOut      EventKind = "signed-out"
)

// Event describes one authentication state change.
type Event struct {
	Kind   EventKind
	UserID string
}

// Broker fans authentication events out to subscribers. Publishing never
// blocks: subscribers that fall behind miss events instead of stalling
// the auth path.
type Broker struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered listener. The returned cancel function
// removes the subscription and closes the channel.
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber with room to receive it.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
