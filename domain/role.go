package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Role is the analysis domain a worker process is responsible for.
// Exactly one live process owns each role; the supervisor owns none.
type Role string

const (
	RoleLongTerm   Role = "long_term"
	RoleSwingTerm  Role = "swing_term"
	RoleShortTerm  Role = "short_term"
	RoleMicroTerm  Role = "micro_term"
	RoleSlopeData  Role = "slope_data"
	RoleVolumeData Role = "volume_data"

	// RoleNone marks the supervisor process.
	RoleNone Role = ""
)

// Workers lists every role spawned by the supervisor, in spawn order.
var Workers = []Role{
	RoleLongTerm,
	RoleSwingTerm,
	RoleShortTerm,
	RoleMicroTerm,
	RoleSlopeData,
	RoleVolumeData,
}

// requestTimeouts holds the per-role RPC budget. The ticker-style roles
// answer from hot caches and get the short budget, the heavy lookback
// roles get the long one.
var requestTimeouts = map[Role]time.Duration{
	RoleLongTerm:   2 * time.Minute,
	RoleSwingTerm:  90 * time.Second,
	RoleShortTerm:  90 * time.Second,
	RoleMicroTerm:  time.Minute,
	RoleSlopeData:  time.Minute,
	RoleVolumeData: time.Minute,
}

func (r Role) String() string {
	return string(r)
}

// RequestTopic is the broadcast topic this role serves requests on.
func (r Role) RequestTopic() string {
	return string(r) + "_request"
}

// ResponseTopic is the broadcast topic this role answers on.
func (r Role) ResponseTopic() string {
	return string(r) + "_response"
}

// RequestTimeout returns the RPC budget for calls into this role.
func (r Role) RequestTimeout() time.Duration {
	if d, ok := requestTimeouts[r]; ok {
		return d
	}
	return time.Minute
}

// ParseRole validates a role argument taken from the command line.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleNone, nil
	}
	for _, w := range Workers {
		if string(w) == s {
			return w, nil
		}
	}
	return RoleNone, errors.Errorf("unknown worker role %q", s)
}
