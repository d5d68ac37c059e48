package dome

import (
	"github.com/jkaflik/domeshutter/internal/shutter"
	"github.com/sirupsen/logrus"
)

// Run advances the motor by at most one step, reconciles the limit switches
// with the motion, and runs the battery and wireless work that is due. It
// never blocks.
func (s *Shutter) Run() {
	s.stepper.Run()

	closed := s.limit(s.closedSwitch, "closed")
	opened := s.limit(s.openedSwitch, "opened")

	next, halt := transition(s.state, closed, opened, s.stepper.IsRunning())
	if halt {
		logrus.Tracef("%s: limit reached while %s", s.name, s.state)
		s.stepper.Stop()
	}
	s.setState(next)

	s.checkBattery()
	if s.IsConfiguringWireless() {
		s.advanceWireless()
	}

	if s.stepper.IsRunning() {
		s.wasRunning = true
		return
	}

	if s.wasRunning {
		logrus.Debugf("%s: motion ended %s at %d", s.name, s.state, s.stepper.CurrentPosition())
		if s.state == shutter.StateClosed {
			s.stepper.SetCurrentPosition(0)
		}
		s.wasRunning = false
		s.notify()
	}
}

func (s *Shutter) limit(in Input, name string) bool {
	active, err := in.IsActive()
	if err != nil {
		logrus.Errorf("%s: %s limit switch read failed: %s", s.name, name, err)
		return false
	}
	return active
}
