package domain

import "context"

type EventType = string

const (
	// EvTypeSnapshots fires after a snapshot is persisted.
	EvTypeSnapshots EventType = "snapshots"
	// EvTypeShutdown fires once when the process starts a fatal teardown.
	EvTypeShutdown EventType = "shutdown"
)

type EventHandler = func(m *Event) error

// EventsBroker is the local pub-sub for component events inside one
// process. Unrelated to the inter-process broadcast channel: events here
// never leave the process.
type EventsBroker interface {
	Subscribe(tp EventType, h EventHandler)
	Publish(tp EventType, data *Event)
}

type (
	meta  map[string]string
	Event struct {
		Ctx     context.Context
		payload interface{}
		meta    meta
	}
)

func NewEvent(ctx context.Context, payload interface{}) *Event {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Event{
		payload: payload,
		Ctx:     ctx,
	}
}

func (m *Event) WithMetaKV(key, value string) *Event {
	if m.meta == nil {
		m.meta = make(meta)
	}
	m.meta[key] = value
	return m
}

func (m *Event) GetMeta(key string) string {
	if m.meta == nil {
		return ""
	}
	return m.meta[key]
}

func (m *Event) MustGetSnapshot() Snapshot {
	return m.payload.(Snapshot)
}

func (m *Event) Payload() interface{} {
	return m.payload
}
