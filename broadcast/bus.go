package broadcast

import (
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handler receives the raw payload published on a topic. Decoding is the
// listener's job; the bus never interprets payloads.
type Handler func(data json.RawMessage)

// Bus is the in-process publish/subscribe keyed by topic string. Every
// broadcast, locally originated or relayed from a peer process, lands here,
// so listeners see one delivery path regardless of topology.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	topics map[string]map[uint64]Handler
}

func NewBus() *Bus {
	return &Bus{
		topics: make(map[string]map[uint64]Handler),
	}
}

// Subscribe registers a handler for a topic and returns the unsubscribe
// capability. Topics are created lazily on first use and live for the
// process lifetime.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[uint64]Handler)
		b.topics[topic] = subs
	}
	id := b.nextID
	b.nextID++
	subs[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.topics[topic], id)
	}
}

// Publish delivers the payload synchronously to every current subscriber
// of the topic. A panicking handler is contained so one listener cannot
// take down the relay loop.
func (b *Bus) Publish(topic string, data json.RawMessage) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.topics[topic]))
	for _, h := range b.topics[topic] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("topic", topic).
						Errorf("panic in bus handler: %+v", r)
				}
			}()
			h(data)
		}()
	}
}
