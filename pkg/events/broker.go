package events

import (
	"sync"
	"time"
)

const subscriberBuffer = 16

const (
	TypeRefresh = "refresh"
	TypeDeleted = "deleted"
)

// Event tells clients that a book record changed and should be re-read.
type Event struct {
	Type      string    `json:"type"`
	BookID    string    `json:"book_id"`
	State     string    `json:"state,omitempty"`
	Timestamp time.Time `json:"ts"`
	// UserID scopes delivery. Guest events carry the empty id.
	UserID string `json:"-"`
}

// Broker fans events out to subscribers. Slow subscribers miss events
// rather than stalling the publisher; a refresh signal is idempotent.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	userID string
	ch     chan Event
}

func NewBroker() *Broker {
	return &Broker{subs: map[int]*subscription{}}
}

// Subscribe returns a channel of events for userID and a function that
// releases it.
func (b *Broker) Subscribe(userID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscription{userID: userID, ch: make(chan Event, subscriberBuffer)}
	b.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(sub.ch)
		})
	}
}

// Publish delivers evt to every subscriber of evt.UserID.
func (b *Broker) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.userID != evt.UserID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
