package events

import (
	"testing"

	"github.com/layer-3/walletsso/core"
	"github.com/stretchr/testify/assert"
)

func TestEmitOrderAndIsolation(t *testing.T) {
	e := NewEmitter(nil)
	var order []string

	e.On(core.EventAuthenticated, func(core.Event) { order = append(order, "first") })
	e.On(core.EventAuthenticated, func(core.Event) { panic("subscriber bug") })
	e.On(core.EventAuthenticated, func(ev core.Event) {
		order = append(order, "third:"+ev.User.Address)
	})
	e.OnAny(func(ev core.Event) { order = append(order, "any:"+string(ev.Type)) })
	e.On(core.EventLogout, func(core.Event) { order = append(order, "logout") })

	assert.NotPanics(t, func() {
		e.Emit(core.Event{Type: core.EventAuthenticated, User: &core.User{Address: "0xabc"}})
	})

	assert.Equal(t, []string{"first", "third:0xabc", "any:authenticated"}, order)
}

func TestOff(t *testing.T) {
	e := NewEmitter(nil)
	calls := 0

	off := e.On(core.EventError, func(core.Event) { calls++ })
	assert.Equal(t, 1, e.Count(core.EventError))

	e.Emit(core.Event{Type: core.EventError})
	off()
	e.Emit(core.Event{Type: core.EventError})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, e.Count(core.EventError))
}

func TestEmitStampsTime(t *testing.T) {
	e := NewEmitter(nil)
	var got core.Event
	e.On(core.EventLogout, func(ev core.Event) { got = ev })

	e.Emit(core.Event{Type: core.EventLogout})
	assert.False(t, got.At.IsZero())
}
