package broadcast

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/domain"
)

// SpawnFunc starts one worker process for a role. Injected so topology
// tests can run against fake links.
type SpawnFunc func(
	role domain.Role,
	onMessage func(from domain.Role, env domain.Envelope),
	onExit func(from domain.Role),
) (Link, error)

// Supervisor owns the fixed role->link table of a star topology. Workers
// have no links to each other: every worker envelope takes one hop through
// here and is fanned out to all other workers, which turns the star into
// an effective broadcast domain.
type Supervisor struct {
	bus     *Bus
	spawn   SpawnFunc
	onFatal func(err error)

	mu    sync.Mutex
	links map[domain.Role]Link
	down  bool
}

// NewSupervisor builds a supervisor over the given bus. onFatal is invoked
// exactly once if the topology must be torn down.
func NewSupervisor(bus *Bus, spawn SpawnFunc, onFatal func(err error)) *Supervisor {
	return &Supervisor{
		bus:     bus,
		spawn:   spawn,
		onFatal: onFatal,
		links:   make(map[domain.Role]Link),
	}
}

// Start spawns exactly one worker per role. Partial startup is treated as
// fatal: an already-spawned child is not left orphaned.
func (s *Supervisor) Start(roles []domain.Role) error {
	for _, role := range roles {
		link, err := s.spawn(role, s.relay, s.handleExit)
		if err != nil {
			s.Shutdown()
			return errors.Wrapf(err, "can't start worker %s", role)
		}
		s.mu.Lock()
		s.links[role] = link
		s.mu.Unlock()
	}
	return nil
}

// Broadcast sends the envelope to every recorded child. A dead child makes
// the whole call fail with ErrPeerUnavailable naming the role.
func (s *Supervisor) Broadcast(env domain.Envelope) error {
	s.mu.Lock()
	links := make([]Link, 0, len(s.links))
	for _, l := range s.links {
		links = append(links, l)
	}
	s.mu.Unlock()

	for _, l := range links {
		if !l.Alive() {
			return errors.Wrapf(
				domain.ErrPeerUnavailable,
				"broadcast %s: worker %s has exited", env.Topic, l.Role(),
			)
		}
		if err := l.Send(env); err != nil {
			return err
		}
	}
	return nil
}

// relay implements the relay rule: an envelope received from child A goes
// to every other child B != A and onto the local bus, never back to A.
func (s *Supervisor) relay(from domain.Role, env domain.Envelope) {
	s.mu.Lock()
	links := make([]Link, 0, len(s.links))
	for role, l := range s.links {
		if role == from {
			continue
		}
		links = append(links, l)
	}
	s.mu.Unlock()

	for _, l := range links {
		if err := l.Send(env); err != nil {
			s.fatal(errors.Wrapf(err, "relay %s from %s", env.Topic, from))
			return
		}
	}
	s.bus.Publish(env.Topic, env.Data)
}

// handleExit implements fail-fast shutdown: any unexpected child exit
// kills the remaining children and raises a process-level fatal error.
// Restart is an operator concern, never attempted here.
func (s *Supervisor) handleExit(role domain.Role) {
	s.fatal(errors.Wrapf(
		domain.ErrPeerUnavailable, "worker %s exited unexpectedly", role,
	))
}

func (s *Supervisor) fatal(err error) {
	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		return
	}
	s.down = true
	links := make([]Link, 0, len(s.links))
	for _, l := range s.links {
		links = append(links, l)
	}
	s.mu.Unlock()

	log.Errorf("supervisor teardown: %v", err)
	for _, l := range links {
		l.Kill()
	}
	if s.onFatal != nil {
		s.onFatal(err)
	}
}

// Shutdown force-kills every child. Safe to call more than once and
// concurrently with a failing child; the teardown runs at most once.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.down {
		s.mu.Unlock()
		return
	}
	s.down = true
	links := make([]Link, 0, len(s.links))
	for _, l := range s.links {
		links = append(links, l)
	}
	s.mu.Unlock()

	for _, l := range links {
		l.Kill()
	}
}
