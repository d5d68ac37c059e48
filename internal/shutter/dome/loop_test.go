package dome

import (
	"context"
	"testing"
	"time"

	"github.com/jkaflik/domeshutter/internal/shutter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop(t *testing.T) {
	t.Run("commands run between polls and are observed afterwards", func(t *testing.T) {
		r := newRig(t)
		loop := NewLoop(r.shutter, time.Millisecond, time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- loop.Run(ctx) }()

		require.NoError(t, loop.Do(ctx, func(s *Shutter) { s.Close() }))

		var state shutter.State
		require.NoError(t, loop.Do(ctx, func(s *Shutter) { state = s.State() }))
		assert.Equal(t, shutter.StateClosing, state)

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("do gives up when the loop is not running", func(t *testing.T) {
		r := newRig(t)
		loop := NewLoop(r.shutter, 0, 0)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := loop.Do(ctx, func(s *Shutter) {})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("reports while the motor runs", func(t *testing.T) {
		r := newRig(t)
		r.clock.step = time.Millisecond
		loop := NewLoop(r.shutter, time.Millisecond, 10*time.Millisecond)

		reports := make(chan shutter.State, 100)
		r.shutter.OnUpdate(func(state shutter.State, position int64) {
			select {
			case reports <- state:
			default:
			}
		})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		go loop.Run(ctx)

		require.NoError(t, loop.Do(ctx, func(s *Shutter) { s.Open() }))

		seen := 0
		for seen < 3 {
			select {
			case state := <-reports:
				assert.Equal(t, shutter.StateOpening, state)
				seen++
			case <-ctx.Done():
				require.FailNow(t, "no periodic reports")
			}
		}
	})

	t.Run("reports follow the shutter clock", func(t *testing.T) {
		r := newRig(t)
		loop := NewLoop(r.shutter, time.Millisecond, time.Millisecond)

		updates := 0
		r.shutter.OnUpdate(func(state shutter.State, position int64) { updates++ })

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		go loop.Run(ctx)

		require.NoError(t, loop.Do(ctx, func(s *Shutter) { s.Open() }))
		time.Sleep(20 * time.Millisecond)

		var seen int
		require.NoError(t, loop.Do(ctx, func(s *Shutter) { seen = updates }))
		assert.Equal(t, 1, seen, "only the state change while the clock stands still")

		require.NoError(t, loop.Do(ctx, func(s *Shutter) { r.clock.advance(time.Millisecond) }))
		assert.Eventually(t, func() bool {
			var n int
			_ = loop.Do(ctx, func(s *Shutter) { n = updates })
			return n == 2
		}, 500*time.Millisecond, time.Millisecond)
	})
}
