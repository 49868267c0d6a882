package platform

import (
	"slices"
	"sync"
	"time"
)

// Reasons carried by a session-invalidated Event.
const (
	ReasonRefreshFailed = "refresh_failed"
	ReasonRetryRejected = "retry_rejected"
)

// Event signals that the local session is no longer valid and the token
// store has been cleared.
type Event struct {
	Reason string
	At     time.Time
}

// Notifier fans out session-invalidated events to subscribers.
// Handlers run synchronously on the publishing goroutine.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn func(Event)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber in registration order.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, n.subs[id])
	}
	n.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

