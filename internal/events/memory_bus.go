package events

import (
	"context"
	"errors"
	"sync"
)

var ErrBusClosed = errors.New("event bus closed")

// MemoryBus delivers events inside one process. Each subscription owns a
// mailbox drained by its own goroutine, so a slow handler never blocks the
// publisher or other subscribers and sees events in publish order.
type MemoryBus struct {
	mu     sync.Mutex
	topics map[string]map[uint64]*mailbox
	nextID uint64
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]map[uint64]*mailbox)}
}

func (b *MemoryBus) Publish(ctx context.Context, topic, name string, payload interface{}) error {
	evt, err := NewEvent(topic, name, payload)
	if err != nil {
		return err
	}

	// Pushing under the bus lock fixes one order per topic for all subscribers.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, mb := range b.topics[topic] {
		if matches(mb.filter, name) {
			mb.push(evt)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(topic, name string, handler Handler) func() {
	mb := newMailbox(name, handler)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.nextID++
	id := b.nextID
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]*mailbox)
	}
	b.topics[topic][id] = mb
	b.mu.Unlock()

	go mb.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.topics[topic]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.topics, topic)
				}
			}
			b.mu.Unlock()
			mb.close()
		})
	}
}

// SubscriberCount reports how many subscriptions a topic has.
func (b *MemoryBus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.topics {
		for _, mb := range subs {
			mb.close()
		}
		delete(b.topics, topic)
	}
	return nil
}

type mailbox struct {
	filter  string
	handler Handler

	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newMailbox(filter string, handler Handler) *mailbox {
	return &mailbox{
		filter:  filter,
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (m *mailbox) push(evt Event) {
	m.mu.Lock()
	m.pending = append(m.pending, evt)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) close() {
	m.once.Do(func() { close(m.done) })
}

func (m *mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}
		for {
			m.mu.Lock()
			batch := m.pending
			m.pending = nil
			m.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, evt := range batch {
				select {
				case <-m.done:
					return
				default:
				}
				deliverSafely(m.handler, evt)
			}
		}
	}
}
