package dome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// primeWireless starts a session and polls through both guard times.
func primeWireless(r *rig) {
	r.shutter.StartWirelessConfig()
	r.shutter.Run()
	r.clock.advance(DefaultWirelessGuard)
	r.shutter.Run()
	r.clock.advance(DefaultWirelessGuard)
	r.shutter.Run()
}

func TestWirelessConfig(t *testing.T) {
	t.Run("escape sequence waits for the guard time", func(t *testing.T) {
		r := newRig(t)
		r.shutter.StartWirelessConfig()
		assert.True(t, r.shutter.IsConfiguringWireless())

		r.shutter.Run()
		assert.Empty(t, r.wireless.String())

		r.clock.advance(DefaultWirelessGuard)
		r.shutter.Run()
		assert.Equal(t, "+++", r.wireless.String())

		r.clock.advance(DefaultWirelessGuard)
		r.shutter.Run()
		assert.Equal(t, "+++", r.wireless.String())
	})

	t.Run("first response sends the sleep settings", func(t *testing.T) {
		r := newRig(t)
		primeWireless(r)
		r.wireless.Reset()

		r.shutter.HandleWirelessResponse("OK")
		assert.Equal(t, "ATCE0,AP0,SM0,SP12C,ST7530,CN\r\n", r.wireless.String())
		assert.True(t, r.shutter.IsConfiguringWireless())
	})

	t.Run("session ends after every command is answered", func(t *testing.T) {
		r := newRig(t)
		primeWireless(r)
		r.wireless.Reset()

		for i := 1; i < wirelessConfigSteps; i++ {
			r.shutter.HandleWirelessResponse("OK")
			require.True(t, r.shutter.IsConfiguringWireless(), "response %d", i)
		}
		r.shutter.HandleWirelessResponse("OK")
		assert.False(t, r.shutter.IsConfiguringWireless())
		assert.Equal(t, "ATCE0,AP0,SM0,SP12C,ST7530,CN\r\n", r.wireless.String(), "settings are sent once")
	})

	t.Run("responses during the guard time are replayed", func(t *testing.T) {
		r := newRig(t)
		r.shutter.StartWirelessConfig()
		r.clock.advance(DefaultWirelessGuard)
		r.shutter.Run()
		r.wireless.Reset()

		r.shutter.HandleWirelessResponse("OK")
		assert.Empty(t, r.wireless.String())

		r.clock.advance(DefaultWirelessGuard)
		r.shutter.Run()
		assert.Equal(t, "ATCE0,AP0,SM0,SP12C,ST7530,CN\r\n", r.wireless.String())
	})

	t.Run("responses outside of a session are ignored", func(t *testing.T) {
		r := newRig(t)
		r.shutter.HandleWirelessResponse("OK")
		assert.Empty(t, r.wireless.String())
		assert.False(t, r.shutter.IsConfiguringWireless())
	})

	t.Run("a lost response stalls until restarted", func(t *testing.T) {
		r := newRig(t)
		primeWireless(r)
		r.shutter.HandleWirelessResponse("OK")
		r.shutter.HandleWirelessResponse("OK")

		for i := 0; i < 100; i++ {
			r.clock.advance(DefaultWirelessGuard)
			r.shutter.Run()
		}
		assert.True(t, r.shutter.IsConfiguringWireless())

		primeWireless(r)
		r.wireless.Reset()
		r.shutter.HandleWirelessResponse("OK")
		assert.Contains(t, r.wireless.String(), "ATCE0", "restart begins at the first step")
	})

	t.Run("stop leaves the session alone", func(t *testing.T) {
		r := newRig(t)
		primeWireless(r)

		r.shutter.Stop()
		assert.True(t, r.shutter.IsConfiguringWireless())
	})
}

func TestChangeSleepSettings(t *testing.T) {
	t.Run("settings persist and feed the AT string", func(t *testing.T) {
		r := newRig(t)

		require.NoError(t, r.shutter.ChangeSleepSettings("1,600,1000"))
		stored := r.stored(t)
		assert.Equal(t, uint8(1), stored.SleepMode)
		assert.Equal(t, uint16(600), stored.SleepPeriod)
		assert.Equal(t, uint16(1000), stored.SleepDelay)

		primeWireless(r)
		r.wireless.Reset()
		r.shutter.HandleWirelessResponse("OK")
		assert.Equal(t, "ATCE0,AP0,SM1,SP258,ST3E8,CN\r\n", r.wireless.String())
	})

	t.Run("malformed settings are rejected", func(t *testing.T) {
		r := newRig(t)

		assert.Error(t, r.shutter.ChangeSleepSettings("1,600"))
		assert.Error(t, r.shutter.ChangeSleepSettings("x,600,1000"))
		assert.Error(t, r.shutter.ChangeSleepSettings("1,600,99999"))
		assert.Equal(t, uint16(300), r.shutter.Config().SleepPeriod)
	})
}
