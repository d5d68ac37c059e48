// Package accel generates step and direction pulses for a stepper driver
// following a constant acceleration profile. Run must be polled at least once
// per step interval; every call emits at most one step.
package accel

import (
	"math"
	"time"

	"github.com/jkaflik/domeshutter/internal/pin"
	"github.com/sirupsen/logrus"
)

type direction int

const (
	ccw direction = iota
	cw
)

// Pins of a step/direction driver. Enable is optional.
type Pins struct {
	Step      pin.SetPin
	Direction pin.SetPin
	Enable    pin.SetPin
}

type Stepper struct {
	pins Pins
	now  func() time.Duration

	currentPos int64
	targetPos  int64

	speed        float64 // steps per second, negative when running ccw
	maxSpeed     float64
	acceleration float64

	stepInterval time.Duration
	lastStepTime time.Duration
	minPulse     time.Duration

	n    int64   // step counter of the current ramp
	c0   float64 // initial step interval in microseconds
	cn   float64 // last step interval in microseconds
	cmin float64 // step interval at max speed in microseconds

	dir direction

	dirInverted    bool
	stepInverted   bool
	enableInverted bool
}

func New(pins Pins) *Stepper {
	start := time.Now()
	return NewWithClock(pins, func() time.Duration { return time.Since(start) })
}

// NewWithClock uses now as a monotonic clock, mostly for tests.
func NewWithClock(pins Pins, now func() time.Duration) *Stepper {
	s := &Stepper{
		pins:     pins,
		now:      now,
		maxSpeed: 1,
		cmin:     1e6,
		dir:      ccw,
		minPulse: time.Microsecond,
	}
	s.SetAcceleration(1)

	return s
}

func (s *Stepper) MoveTo(absolute int64) {
	if s.targetPos != absolute {
		s.targetPos = absolute
		s.computeNewSpeed()
	}
}

func (s *Stepper) Move(relative int64) {
	s.MoveTo(s.currentPos + relative)
}

// Run steps once if a step is due and recomputes the speed. It returns true
// while the target has not been reached.
func (s *Stepper) Run() bool {
	if s.runSpeed() {
		s.computeNewSpeed()
	}

	return s.speed != 0 || s.DistanceToGo() != 0
}

func (s *Stepper) Stop() {
	if s.speed == 0 {
		return
	}

	stepsToStop := int64((s.speed*s.speed)/(2*s.acceleration)) + 1
	if s.speed > 0 {
		s.Move(stepsToStop)
	} else {
		s.Move(-stepsToStop)
	}
}

func (s *Stepper) IsRunning() bool {
	return !(s.speed == 0 && s.targetPos == s.currentPos)
}

func (s *Stepper) CurrentPosition() int64 {
	return s.currentPos
}

func (s *Stepper) TargetPosition() int64 {
	return s.targetPos
}

func (s *Stepper) DistanceToGo() int64 {
	return s.targetPos - s.currentPos
}

func (s *Stepper) Speed() float64 {
	return s.speed
}

// SetCurrentPosition redefines the current position, the motor stops.
func (s *Stepper) SetCurrentPosition(position int64) {
	s.targetPos = position
	s.currentPos = position
	s.n = 0
	s.stepInterval = 0
	s.speed = 0
}

func (s *Stepper) MaxSpeed() float64 {
	return s.maxSpeed
}

func (s *Stepper) SetMaxSpeed(speed float64) {
	speed = math.Abs(speed)
	if speed == 0 || s.maxSpeed == speed {
		return
	}

	s.maxSpeed = speed
	s.cmin = 1e6 / speed
	if s.n > 0 {
		s.n = int64((s.speed * s.speed) / (2 * s.acceleration))
		s.computeNewSpeed()
	}
}

func (s *Stepper) Acceleration() float64 {
	return s.acceleration
}

func (s *Stepper) SetAcceleration(acceleration float64) {
	acceleration = math.Abs(acceleration)
	if acceleration == 0 || s.acceleration == acceleration {
		return
	}

	if s.acceleration != 0 {
		s.n = int64(float64(s.n) * (s.acceleration / acceleration))
	}
	// 0.676 corrects the error of the first step interval approximation
	s.c0 = 0.676 * math.Sqrt(2/acceleration) * 1e6
	s.acceleration = acceleration
	s.computeNewSpeed()
}

func (s *Stepper) SetPinsInverted(direction, step, enable bool) {
	s.dirInverted = direction
	s.stepInverted = step
	s.enableInverted = enable
}

func (s *Stepper) SetDirectionInverted(inverted bool) {
	s.dirInverted = inverted
}

func (s *Stepper) SetMinPulseWidth(width time.Duration) {
	s.minPulse = width
}

func (s *Stepper) EnableOutputs() error {
	if s.pins.Enable == nil {
		return nil
	}
	return write(s.pins.Enable, true, s.enableInverted)
}

func (s *Stepper) DisableOutputs() error {
	if s.pins.Enable == nil {
		return nil
	}
	return write(s.pins.Enable, false, s.enableInverted)
}

func (s *Stepper) runSpeed() bool {
	if s.stepInterval == 0 {
		return false
	}

	t := s.now()
	if t-s.lastStepTime < s.stepInterval {
		return false
	}

	if s.dir == cw {
		s.currentPos++
	} else {
		s.currentPos--
	}
	s.step()
	s.lastStepTime = t

	return true
}

func (s *Stepper) computeNewSpeed() {
	distanceTo := s.DistanceToGo()
	stepsToStop := int64((s.speed * s.speed) / (2 * s.acceleration))

	if distanceTo == 0 && stepsToStop <= 1 {
		s.stepInterval = 0
		s.speed = 0
		s.n = 0
		return
	}

	if distanceTo > 0 {
		if s.n > 0 {
			if stepsToStop >= distanceTo || s.dir == ccw {
				s.n = -stepsToStop
			}
		} else if s.n < 0 {
			if stepsToStop < distanceTo && s.dir == cw {
				s.n = -s.n
			}
		}
	} else if distanceTo < 0 {
		if s.n > 0 {
			if stepsToStop >= -distanceTo || s.dir == cw {
				s.n = -stepsToStop
			}
		} else if s.n < 0 {
			if stepsToStop < -distanceTo && s.dir == ccw {
				s.n = -s.n
			}
		}
	}

	if s.n == 0 {
		s.cn = s.c0
		if distanceTo > 0 {
			s.dir = cw
		} else {
			s.dir = ccw
		}
	} else {
		s.cn = s.cn - ((2 * s.cn) / ((4 * float64(s.n)) + 1))
		s.cn = math.Max(s.cn, s.cmin)
	}
	s.n++

	s.stepInterval = time.Duration(s.cn * float64(time.Microsecond))
	s.speed = 1e6 / s.cn
	if s.dir == ccw {
		s.speed = -s.speed
	}
}

func (s *Stepper) step() {
	if s.pins.Step == nil || s.pins.Direction == nil {
		return
	}

	if err := write(s.pins.Direction, s.dir == cw, s.dirInverted); err != nil {
		logrus.Errorf("accel: direction pin: %s", err)
		return
	}
	if err := write(s.pins.Step, true, s.stepInverted); err != nil {
		logrus.Errorf("accel: step pin: %s", err)
		return
	}
	if s.minPulse > 0 {
		spin(s.minPulse)
	}
	if err := write(s.pins.Step, false, s.stepInverted); err != nil {
		logrus.Errorf("accel: step pin: %s", err)
	}
}

func write(p pin.SetPin, high, inverted bool) error {
	if high != inverted {
		return p.High()
	}
	return p.Low()
}

// spin busy waits, time.Sleep cannot resolve microsecond pulses.
func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
