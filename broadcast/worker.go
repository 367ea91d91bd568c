package broadcast

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/domain"
)

// ParentLink is the worker-side end of the IPC pipes. A worker started by
// hand (no supervisor, e.g. during development) has no usable pipes and
// OpenParentLink returns nil; broadcasts then stay process-local.
type ParentLink struct {
	encMu sync.Mutex
	enc   *json.Encoder
	in    *os.File
	out   *os.File
}

// OpenParentLink probes fds 3 and 4 for the pipes a supervisor passes to
// its children. Returns nil when the process was not spawned by one.
func OpenParentLink() *ParentLink {
	in := os.NewFile(childInboundFD, "supervisor-in")
	out := os.NewFile(childOutboundFD, "supervisor-out")
	if in == nil || out == nil {
		return nil
	}
	if _, err := in.Stat(); err != nil {
		return nil
	}
	if _, err := out.Stat(); err != nil {
		return nil
	}
	return &ParentLink{
		enc: json.NewEncoder(out),
		in:  in,
		out: out,
	}
}

// Send forwards one envelope to the supervisor, which fans it out to every
// sibling per the relay rule.
func (p *ParentLink) Send(env domain.Envelope) error {
	p.encMu.Lock()
	defer p.encMu.Unlock()
	if err := p.enc.Encode(env); err != nil {
		return errors.Wrap(err, "can't send to supervisor")
	}
	return nil
}

// Run reads relayed envelopes from the supervisor and publishes them on
// the local bus. Blocks until the pipe closes, which only happens when the
// supervisor goes away; the worker has no reason to outlive it.
func (p *ParentLink) Run(bus *Bus) error {
	dec := json.NewDecoder(p.in)
	for {
		var env domain.Envelope
		if err := dec.Decode(&env); err != nil {
			if err == io.EOF {
				return errors.Wrap(
					domain.ErrPeerUnavailable, "supervisor pipe closed",
				)
			}
			return errors.Wrap(err, "supervisor pipe read failed")
		}
		if !env.Valid() {
			continue
		}
		log.WithField("topic", env.Topic).Debug("received relayed envelope")
		bus.Publish(env.Topic, env.Data)
	}
}
