package broadcast

import (
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/domain"
)

// Channel is what application code sees: broadcast(topic, data) and
// listen(topic, handler), identical whether this process is the supervisor
// or a worker. Every broadcast is also delivered synchronously to the
// local bus, so a process listening on a topic it broadcasts on does not
// need a round trip.
type Channel struct {
	role   domain.Role
	bus    *Bus
	sup    *Supervisor
	parent *ParentLink
}

// NewSupervisorChannel wires the channel for the supervisor process.
func NewSupervisorChannel(bus *Bus, sup *Supervisor) *Channel {
	return &Channel{role: domain.RoleNone, bus: bus, sup: sup}
}

// NewWorkerChannel wires the channel for a worker process. parent may be
// nil for a worker started by hand, in which case broadcasts stay local.
func NewWorkerChannel(role domain.Role, bus *Bus, parent *ParentLink) *Channel {
	return &Channel{role: role, bus: bus, parent: parent}
}

// Role returns the role this process was started with; RoleNone for the
// supervisor.
func (c *Channel) Role() domain.Role {
	return c.role
}

// Broadcast marshals data, wraps it in an envelope, and sends it to every
// other process in the topology plus the local bus.
func (c *Channel) Broadcast(topic string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "can't marshal broadcast payload for %s", topic)
	}
	env := domain.NewEnvelope(topic, payload)

	switch {
	case c.sup != nil:
		if err := c.sup.Broadcast(env); err != nil {
			return err
		}
	case c.parent != nil:
		if err := c.parent.Send(env); err != nil {
			return err
		}
	default:
		log.WithField("topic", topic).
			Debug("no peers attached, broadcast stays local")
	}

	c.bus.Publish(env.Topic, env.Data)
	return nil
}

// Listen subscribes the handler on the local bus. Because every broadcast,
// local or relayed, is published there, this is the single code path for
// both.
func (c *Channel) Listen(topic string, h Handler) (unsubscribe func()) {
	return c.bus.Subscribe(topic, h)
}
