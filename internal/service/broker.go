package service

import (
	"sync"

	"github.com/photosnap/forge/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Broker manages per-generation status-event streaming to subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a generation finishes) receive a closed channel
// instead of blocking forever. Each marker is a few bytes, which is
// acceptable for the expected generation volume.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan model.GenerationEvent
	nextID int
	closed bool
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel that receives status events for the given
// generation and an unsubscribe function. If the generation has already
// finished (Close was called), the returned channel is immediately closed.
func (b *Broker) Subscribe(generationID string) (<-chan model.GenerationEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[generationID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan model.GenerationEvent)}
		b.topics[generationID] = t
	}

	ch := make(chan model.GenerationEvent, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends a status event to all subscribers of the given generation.
// Events are dropped for subscribers whose buffers are full.
func (b *Broker) Publish(generationID string, e model.GenerationEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[generationID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- e:
		default:
			// Drop event for slow subscribers to avoid blocking the poll loop.
		}
	}
}

// Close signals that no more events will be published for the given
// generation. All subscriber channels are closed and future Subscribe
// calls return a closed channel.
func (b *Broker) Close(generationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[generationID]
	if !ok {
		// Create a closed marker so late subscribers get a closed channel.
		b.topics[generationID] = &eventTopic{subs: make(map[int]chan model.GenerationEvent), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
