package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalworks/ccdumper/domain"
)

func TestChannel(t *testing.T) {
	t.Parallel()
	t.Run("broadcast is delivered to local listeners", func(t *testing.T) {
		ch := NewWorkerChannel(domain.RoleMicroTerm, NewBus(), nil)

		var got []string
		ch.Listen("tick", func(data json.RawMessage) {
			got = append(got, string(data))
		})

		require.NoError(t, ch.Broadcast("tick", map[string]int{"n": 1}))
		require.Len(t, got, 1)
		assert.JSONEq(t, `{"n":1}`, got[0])
	})
	t.Run("supervisor broadcast reaches children and the local bus", func(t *testing.T) {
		ft := newFakeTopology()
		bus := NewBus()
		sup := NewSupervisor(bus, ft.spawn, nil)
		require.NoError(t, sup.Start(domain.Workers))

		ch := NewSupervisorChannel(bus, sup)
		var local int
		ch.Listen("tick", func(json.RawMessage) { local++ })

		require.NoError(t, ch.Broadcast("tick", map[string]int{"n": 1}))

		assert.Equal(t, 1, local)
		for _, role := range domain.Workers {
			require.Len(t, ft.link(role).received(), 1)
			assert.True(t, ft.link(role).received()[0].Valid())
		}
	})
	t.Run("unmarshalable payload fails before any delivery", func(t *testing.T) {
		ch := NewWorkerChannel(domain.RoleMicroTerm, NewBus(), nil)
		var deliveries int
		ch.Listen("tick", func(json.RawMessage) { deliveries++ })

		err := ch.Broadcast("tick", func() {})
		require.Error(t, err)
		assert.Zero(t, deliveries)
	})
	t.Run("role is what the process was started with", func(t *testing.T) {
		assert.Equal(t, domain.RoleSlopeData,
			NewWorkerChannel(domain.RoleSlopeData, NewBus(), nil).Role())
		assert.Equal(t, domain.RoleNone,
			NewSupervisorChannel(NewBus(), NewSupervisor(NewBus(), nil, nil)).Role())
	})
}
