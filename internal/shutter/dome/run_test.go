package dome

import (
	"testing"

	"github.com/jkaflik/domeshutter/internal/shutter"
	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	t.Run("closed input ends closing", func(t *testing.T) {
		next, halt := transition(shutter.StateClosing, true, false, true)
		assert.Equal(t, shutter.StateClosed, next)
		assert.True(t, halt)
	})

	t.Run("closed input is ignored while opening", func(t *testing.T) {
		next, halt := transition(shutter.StateOpening, true, false, true)
		assert.Equal(t, shutter.StateOpening, next)
		assert.False(t, halt)
	})

	t.Run("one circuit for both switches resolves by travel direction", func(t *testing.T) {
		next, halt := transition(shutter.StateOpening, true, true, true)
		assert.Equal(t, shutter.StateOpen, next)
		assert.True(t, halt)

		next, halt = transition(shutter.StateClosing, true, true, true)
		assert.Equal(t, shutter.StateClosed, next)
		assert.True(t, halt)
	})

	t.Run("opened input is ignored while closing", func(t *testing.T) {
		next, halt := transition(shutter.StateClosing, false, true, true)
		assert.Equal(t, shutter.StateClosing, next)
		assert.False(t, halt)
	})

	t.Run("a switch found at power on settles the error state", func(t *testing.T) {
		next, _ := transition(shutter.StateError, true, false, false)
		assert.Equal(t, shutter.StateClosed, next)

		next, _ = transition(shutter.StateError, false, true, false)
		assert.Equal(t, shutter.StateOpen, next)
	})

	t.Run("motion ending between the limits is an error", func(t *testing.T) {
		next, halt := transition(shutter.StateOpening, false, false, false)
		assert.Equal(t, shutter.StateError, next)
		assert.False(t, halt)
	})

	t.Run("settled states survive idle polls", func(t *testing.T) {
		next, _ := transition(shutter.StateOpen, false, false, false)
		assert.Equal(t, shutter.StateOpen, next)

		next, _ = transition(shutter.StateClosed, false, false, false)
		assert.Equal(t, shutter.StateClosed, next)
	})
}

func TestRun(t *testing.T) {
	t.Run("closing into the closed switch halts and zeroes once stopped", func(t *testing.T) {
		r := newRig(t)
		r.stepper.current = 264000
		r.shutter.Close()

		r.shutter.Run()
		assert.Equal(t, shutter.StateClosing, r.shutter.State())
		assert.Zero(t, r.stepper.stops)

		r.closed.active = true
		r.stepper.current = 1200
		r.shutter.Run()
		assert.Equal(t, shutter.StateClosed, r.shutter.State())
		assert.Equal(t, 1, r.stepper.stops)
		assert.Equal(t, int64(1200), r.shutter.Position(), "position is kept while decelerating")

		r.stepper.halt(-35)
		r.shutter.Run()
		assert.Equal(t, shutter.StateClosed, r.shutter.State())
		assert.Equal(t, int64(0), r.shutter.Position())
	})

	t.Run("opening past the closed switch keeps going", func(t *testing.T) {
		r := newRig(t)
		r.closed.active = true
		r.shutter.Run()
		assert.Equal(t, shutter.StateClosed, r.shutter.State())

		r.shutter.Open()
		r.shutter.Run()
		assert.Equal(t, shutter.StateOpening, r.shutter.State())
		assert.True(t, r.stepper.running)
	})

	t.Run("opening into the opened switch halts without zeroing", func(t *testing.T) {
		r := newRig(t)
		r.shutter.Open()
		r.shutter.Run()

		r.opened.active = true
		r.stepper.current = 264100
		r.shutter.Run()
		assert.Equal(t, shutter.StateOpen, r.shutter.State())
		assert.Equal(t, 1, r.stepper.stops)

		r.stepper.halt(264150)
		r.shutter.Run()
		assert.Equal(t, shutter.StateOpen, r.shutter.State())
		assert.Equal(t, int64(264150), r.shutter.Position())
	})

	t.Run("motion ending without a switch is an error", func(t *testing.T) {
		r := newRig(t)
		r.shutter.GotoAltitude(30)
		r.shutter.Run()
		assert.Equal(t, shutter.StateOpening, r.shutter.State())

		r.stepper.halt(88000)
		r.shutter.Run()
		assert.Equal(t, shutter.StateError, r.shutter.State())
		assert.Equal(t, int64(88000), r.shutter.Position())
	})

	t.Run("stays in error after power on until a limit is seen", func(t *testing.T) {
		r := newRig(t)
		r.shutter.Run()
		r.shutter.Run()
		assert.Equal(t, shutter.StateError, r.shutter.State())
	})

	t.Run("failing switch reads count as released", func(t *testing.T) {
		r := newRig(t)
		r.closed.active = true
		r.closed.err = errBus
		r.shutter.Run()
		assert.Equal(t, shutter.StateError, r.shutter.State())
	})

	t.Run("update handler sees state changes and the end of motion", func(t *testing.T) {
		r := newRig(t)
		var updates []shutter.State
		r.shutter.OnUpdate(func(state shutter.State, position int64) {
			updates = append(updates, state)
		})

		r.shutter.Close()
		r.shutter.Run()
		r.closed.active = true
		r.shutter.Run()
		r.stepper.halt(0)
		r.shutter.Run()

		assert.Equal(t, []shutter.State{
			shutter.StateClosing,
			shutter.StateClosed,
			shutter.StateClosed,
		}, updates)
	})
}
