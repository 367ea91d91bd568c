package broadcast

import (
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/domain"
)

// Link is one side of the supervisor's connection to a worker process.
// The interface exists so topology logic can be exercised in tests without
// spawning real processes.
type Link interface {
	Role() domain.Role
	Send(env domain.Envelope) error
	Alive() bool
	Kill()
}

// Pipe fd numbers inside the child: 3 carries supervisor->worker frames,
// 4 carries worker->supervisor frames. Stdout and stderr stay inherited
// so worker logs land in the supervisor's output untouched.
const (
	childInboundFD  = 3
	childOutboundFD = 4
)

// ProcessLink wraps one spawned worker. Frames are newline-delimited JSON
// envelopes over the two dedicated pipes.
type ProcessLink struct {
	role  domain.Role
	cmd   *exec.Cmd
	encMu sync.Mutex
	enc   *json.Encoder
	send  *os.File
	recv  *os.File
	dead  int32
}

var _ Link = (*ProcessLink)(nil)

// SpawnWorker re-executes the current binary with a --worker flag and wires
// the IPC pipes. onMessage fires for every valid envelope the child writes;
// onExit fires once when the child terminates for any reason.
func SpawnWorker(
	role domain.Role,
	onMessage func(from domain.Role, env domain.Envelope),
	onExit func(from domain.Role),
) (*ProcessLink, error) {
	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "can't allocate inbound pipe")
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		return nil, errors.Wrap(err, "can't allocate outbound pipe")
	}

	cmd := exec.Command(os.Args[0], "--worker="+role.String())
	cmd.Env = os.Environ()
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// ExtraFiles[0] becomes fd 3 in the child, ExtraFiles[1] fd 4.
	cmd.ExtraFiles = []*os.File{inR, outW}

	if err := cmd.Start(); err != nil {
		inR.Close()
		inW.Close()
		outR.Close()
		outW.Close()
		return nil, errors.Wrapf(err, "can't spawn worker %s", role)
	}
	// Child owns its ends now.
	inR.Close()
	outW.Close()

	l := &ProcessLink{
		role: role,
		cmd:  cmd,
		enc:  json.NewEncoder(inW),
		send: inW,
		recv: outR,
	}

	log.WithField("role", role).
		WithField("pid", cmd.Process.Pid).
		Info("spawned worker process")

	go l.readLoop(onMessage, onExit)

	return l, nil
}

func (l *ProcessLink) readLoop(
	onMessage func(from domain.Role, env domain.Envelope),
	onExit func(from domain.Role),
) {
	dec := json.NewDecoder(l.recv)
	for {
		var env domain.Envelope
		if err := dec.Decode(&env); err != nil {
			if err != io.EOF {
				log.WithField("role", l.role).
					Errorf("worker pipe read failed: %v", err)
			}
			break
		}
		if !env.Valid() {
			continue
		}
		onMessage(l.role, env)
	}

	atomic.StoreInt32(&l.dead, 1)
	l.recv.Close()
	_ = l.cmd.Wait()
	onExit(l.role)
}

func (l *ProcessLink) Role() domain.Role {
	return l.role
}

// Send writes one envelope to the child. Sending to an exited child fails
// with ErrPeerUnavailable naming the role: broadcast is all-or-nothing per
// peer, never silently partial.
func (l *ProcessLink) Send(env domain.Envelope) error {
	if !l.Alive() {
		return errors.Wrapf(
			domain.ErrPeerUnavailable, "worker %s has exited", l.role,
		)
	}
	l.encMu.Lock()
	defer l.encMu.Unlock()
	if err := l.enc.Encode(env); err != nil {
		return errors.Wrapf(err, "can't send to worker %s", l.role)
	}
	return nil
}

func (l *ProcessLink) Alive() bool {
	return atomic.LoadInt32(&l.dead) == 0
}

// Kill terminates the child immediately. The read loop notices the EOF
// and fires onExit.
func (l *ProcessLink) Kill() {
	atomic.StoreInt32(&l.dead, 1)
	if l.cmd.Process != nil {
		_ = l.cmd.Process.Kill()
	}
	l.send.Close()
}
