package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalworks/ccdumper/domain"
)

type capturingPublisher struct {
	channels []string
	payloads [][]byte
	ctxErrs  []error
	err      error
}

func (p *capturingPublisher) Publish(ctx context.Context, channel string, data []byte) error {
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, data)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

type directBroker struct {
	handlers map[domain.EventType][]domain.EventHandler
}

func newDirectBroker() *directBroker {
	return &directBroker{handlers: make(map[domain.EventType][]domain.EventHandler)}
}

func (b *directBroker) Subscribe(tp domain.EventType, h domain.EventHandler) {
	b.handlers[tp] = append(b.handlers[tp], h)
}

func (b *directBroker) Publish(tp domain.EventType, e *domain.Event) {
	for _, h := range b.handlers[tp] {
		_ = h(e)
	}
}

func TestNotifier(t *testing.T) {
	t.Parallel()
	snap := domain.Snapshot{
		Symbol:       "BTCUSDT",
		Kind:         "micro_term",
		Indicators:   map[string]float64{"rsi9": 55},
		CurrentPrice: 100,
		Date:         time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("publishes snapshots on their kind+symbol channel", func(t *testing.T) {
		pub := &capturingPublisher{}
		broker := newDirectBroker()
		NewNotifier(pub).Subscribe(broker)

		broker.Publish(domain.EvTypeSnapshots, domain.NewEvent(context.Background(), snap))

		require.Len(t, pub.channels, 1)
		assert.Equal(t, "snapshots_micro_term_BTCUSDT", pub.channels[0])

		var got domain.Snapshot
		require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
		assert.Equal(t, snap, got)
	})
	t.Run("canceled event context does not block the publish", func(t *testing.T) {
		pub := &capturingPublisher{}
		broker := newDirectBroker()
		NewNotifier(pub).Subscribe(broker)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		broker.Publish(domain.EvTypeSnapshots, domain.NewEvent(ctx, snap))

		require.Len(t, pub.ctxErrs, 1)
		assert.NoError(t, pub.ctxErrs[0])
	})
	t.Run("publish failure is swallowed", func(t *testing.T) {
		pub := &capturingPublisher{err: errors.New("centrifugo down")}
		broker := newDirectBroker()
		NewNotifier(pub).Subscribe(broker)

		broker.Publish(domain.EvTypeSnapshots, domain.NewEvent(context.Background(), snap))
		assert.Len(t, pub.channels, 1)
	})
}

func TestChannelName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "snapshots_long_term_ETHUSDT", ChannelName("long_term", "ETHUSDT"))
}
