package dome

import (
	"github.com/jkaflik/domeshutter/internal/shutter"
)

// transition derives the next state from the limit switches and the motor.
//
// Both switches may be wired as one circuit, so an asserted input is
// attributed to the end the shutter was travelling towards: the closed input
// never closes a shutter that is opening and the opened input never opens one
// that is closing. halt is set when the motor must be stopped at a limit.
func transition(current shutter.State, closed, opened, running bool) (next shutter.State, halt bool) {
	switch {
	case closed && current != shutter.StateOpening:
		return shutter.StateClosed, true
	case opened && current != shutter.StateClosing:
		return shutter.StateOpen, true
	}

	// the motor stopped between the limits: stall, obstruction or power loss
	if !running && !current.Settled() {
		return shutter.StateError, false
	}

	return current, false
}
