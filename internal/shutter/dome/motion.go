package dome

import (
	"github.com/jkaflik/domeshutter/internal/shutter"
	"github.com/sirupsen/logrus"
)

// fullOpenAltitude is the altitude of a full stroke.
const fullOpenAltitude = 90.0

func (s *Shutter) PositionToAltitude(position int64) float64 {
	return float64(position) / float64(s.cfg.StepsPerStroke) * fullOpenAltitude
}

// AltitudeToPosition truncates towards zero.
func (s *Shutter) AltitudeToPosition(altitude float64) int64 {
	return int64(float64(s.cfg.StepsPerStroke) * altitude / fullOpenAltitude)
}

// Open drives past the full stroke so the opened limit switch, not the step
// count, ends the travel.
func (s *Shutter) Open() {
	logrus.Infof("%s: open", s.name)
	s.setState(shutter.StateOpening)
	s.stepper.Move(2 * int64(s.cfg.StepsPerStroke))
}

func (s *Shutter) Close() {
	logrus.Infof("%s: close", s.name)
	s.setState(shutter.StateClosing)
	s.stepper.Move(-2 * int64(s.cfg.StepsPerStroke))
}

func (s *Shutter) GotoPosition(target int64) {
	current := s.stepper.CurrentPosition()

	switch {
	case target > current:
		logrus.Infof("%s: goto position %d (opening from %d)", s.name, target, current)
		s.setState(shutter.StateOpening)
	case target < current:
		logrus.Infof("%s: goto position %d (closing from %d)", s.name, target, current)
		s.setState(shutter.StateClosing)
	default:
		logrus.Debugf("%s: already on a position %d", s.name, target)
		return
	}

	s.stepper.MoveTo(target)
}

func (s *Shutter) GotoAltitude(altitude float64) {
	s.GotoPosition(s.AltitudeToPosition(altitude))
}

// MoveRelative moves without touching the state.
func (s *Shutter) MoveRelative(steps int64) {
	logrus.Infof("%s: move by %d", s.name, steps)
	s.stepper.Move(steps)
}

// Stop decelerates the motor. The state is left as is and resolved by the
// next polls.
func (s *Shutter) Stop() {
	logrus.Infof("%s: stop", s.name)
	s.stepper.Stop()
}

func (s *Shutter) State() shutter.State {
	return s.state
}

func (s *Shutter) Position() int64 {
	return s.stepper.CurrentPosition()
}

func (s *Shutter) Elevation() float64 {
	return s.PositionToAltitude(s.stepper.CurrentPosition())
}

func (s *Shutter) IsRunning() bool {
	return s.stepper.IsRunning()
}

func (s *Shutter) Acceleration() uint16 {
	return s.cfg.Acceleration
}

func (s *Shutter) SetAcceleration(acceleration uint16) {
	s.cfg.Acceleration = acceleration
	s.stepper.SetAcceleration(float64(acceleration))
}

func (s *Shutter) MaxSpeed() uint32 {
	return uint32(s.stepper.MaxSpeed())
}

func (s *Shutter) SetMaxSpeed(speed uint16) {
	s.cfg.MaxSpeed = speed
	s.stepper.SetMaxSpeed(float64(speed))
}

func (s *Shutter) StepsPerStroke() uint32 {
	return s.cfg.StepsPerStroke
}

// SetStepsPerStroke is not validated, zero breaks the altitude conversion.
func (s *Shutter) SetStepsPerStroke(steps uint32) {
	s.cfg.StepsPerStroke = steps
}

func (s *Shutter) Reversed() bool {
	return s.cfg.Reversed
}

// SetReversed flips the direction output and persists the configuration.
func (s *Shutter) SetReversed(reversed bool) error {
	s.cfg.Reversed = reversed
	s.stepper.SetDirectionInverted(reversed)
	return s.SaveConfig()
}
