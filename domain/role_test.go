package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Parallel()
	t.Run("every worker role round-trips", func(t *testing.T) {
		for _, role := range Workers {
			got, err := ParseRole(role.String())
			require.NoError(t, err)
			assert.Equal(t, role, got)
		}
	})
	t.Run("empty string is the supervisor", func(t *testing.T) {
		got, err := ParseRole("")
		require.NoError(t, err)
		assert.Equal(t, RoleNone, got)
	})
	t.Run("unknown role is rejected", func(t *testing.T) {
		_, err := ParseRole("mega_term")
		assert.Error(t, err)
	})
}

func TestRoleTopics(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "long_term_request", RoleLongTerm.RequestTopic())
	assert.Equal(t, "long_term_response", RoleLongTerm.ResponseTopic())
	assert.NotEqual(t, RoleLongTerm.RequestTopic(), RoleSwingTerm.RequestTopic())
}

func TestRoleRequestTimeout(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 2*time.Minute, RoleLongTerm.RequestTimeout())
	assert.Equal(t, 90*time.Second, RoleSwingTerm.RequestTimeout())
	assert.Equal(t, 90*time.Second, RoleShortTerm.RequestTimeout())
	assert.Equal(t, time.Minute, RoleMicroTerm.RequestTimeout())
	assert.Equal(t, time.Minute, Role("unlisted").RequestTimeout(), "fallback budget")
}

func TestEnvelope(t *testing.T) {
	t.Parallel()
	t.Run("new envelopes carry the marker", func(t *testing.T) {
		env := NewEnvelope("tick", nil)
		assert.True(t, env.Valid())
		assert.Equal(t, BroadcastMarker, env.Kind)
	})
	t.Run("foreign frames are invalid", func(t *testing.T) {
		assert.False(t, Envelope{Kind: "other-protocol", Topic: "tick"}.Valid())
		assert.False(t, Envelope{}.Valid())
	})
}
