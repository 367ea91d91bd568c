package broker

import (
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/domain"
)

var _ domain.EventsBroker = new(EventsInMemory)

// EventsInMemory stores subscriptions and runs handlers as separate
// goroutines. Subscriptions are registered during startup wiring only, so
// the map needs no locking afterwards.
type EventsInMemory struct {
	subscribers map[domain.EventType][]domain.EventHandler
}

func NewInMemory() *EventsInMemory {
	return &EventsInMemory{
		subscribers: make(map[domain.EventType][]domain.EventHandler),
	}
}

func (ps *EventsInMemory) Subscribe(
	tp domain.EventType,
	h domain.EventHandler,
) {
	if tp == "" && h == nil {
		return
	}

	ps.subscribers[tp] = append(ps.subscribers[tp], h)
}

func (ps *EventsInMemory) Publish(tp domain.EventType, ev *domain.Event) {
	for _, handler := range ps.subscribers[tp] {
		currHandler := handler

		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf(
						"panic while executing handler for %s tp: %+v", tp, r,
					)
				}
			}()

			if err := currHandler(ev); err != nil {
				log.Errorf(
					"error while executing handler for %s tp: %v", tp, err,
				)
			}
		}()
	}
}
