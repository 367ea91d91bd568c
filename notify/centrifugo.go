// Package notify pushes freshly persisted snapshots to Centrifugo so
// dashboard clients see new analysis without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifugal/gocent/v3"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/domain"
	"github.com/signalworks/ccdumper/infra"
)

const channelPrefix = "snapshots"

type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte) error
}

type centrifugoPublisher struct {
	client *gocent.Client
}

func NewCentrifugoPublisher(cfg infra.CentrifugoConfig) Publisher {
	return &centrifugoPublisher{
		client: gocent.New(gocent.Config{
			Addr: cfg.Addr,
			Key:  cfg.APIKey,
		}),
	}
}

func (p *centrifugoPublisher) Publish(ctx context.Context, channel string, data []byte) error {
	result, err := p.client.Publish(ctx, channel, data)
	if err != nil {
		return err
	}
	log.WithField("channel", channel).
		Debugf("published, stream position {offset: %d, epoch: %s}", result.Offset, result.Epoch)
	return nil
}

// Notifier relays snapshot events from the in-process broker to the
// publisher. Channel name is snapshots_<kind>_<symbol>.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func ChannelName(kind, symbol string) string {
	return fmt.Sprintf("%s_%s_%s", channelPrefix, kind, symbol)
}

// Subscribe attaches the notifier to the events broker. Publish failures
// are logged and dropped; notification is best effort.
func (n *Notifier) Subscribe(events domain.EventsBroker) {
	events.Subscribe(domain.EvTypeSnapshots, func(e *domain.Event) error {
		snapshot := e.MustGetSnapshot()
		payload, err := json.Marshal(snapshot)
		if err != nil {
			log.Errorf("marshal snapshot for notify: %v", err)
			return nil
		}
		channel := ChannelName(snapshot.Kind, snapshot.Symbol)
		// The broker runs handlers asynchronously; the originating request
		// context may already be canceled by the time the publish happens.
		if err := n.pub.Publish(context.Background(), channel, payload); err != nil {
			log.WithField("channel", channel).
				Errorf("publish snapshot: %v", err)
		}
		return nil
	})
}
