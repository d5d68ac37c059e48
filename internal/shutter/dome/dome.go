// Package dome drives an observatory dome shutter actuator: a stepper moving a
// rack between two limit switches, a battery sense channel and a wireless
// serial module. All state lives in Shutter and is advanced by polling Run from
// a single goroutine, see Loop.
package dome

import (
	"io"
	"time"

	"github.com/jkaflik/domeshutter/internal/eeprom"
	"github.com/jkaflik/domeshutter/internal/shutter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBatteryFirstCheck = 5 * time.Second
	DefaultBatteryInterval   = 2 * time.Minute
	DefaultWirelessGuard     = time.Second

	lineEnding = "\r\n"
)

// Stepper generates the step pulses of a motion profile. Run must be called
// on every poll and advances the motor by at most one step.
type Stepper interface {
	MoveTo(absolute int64)
	Move(relative int64)
	Run() bool
	Stop()
	IsRunning() bool

	CurrentPosition() int64
	SetCurrentPosition(position int64)

	SetAcceleration(acceleration float64)
	SetMaxSpeed(speed float64)
	MaxSpeed() float64
	SetDirectionInverted(inverted bool)
}

// Input is a limit switch.
type Input interface {
	IsActive() (bool, error)
}

// VoltageSensor samples the attenuated supply voltage.
type VoltageSensor interface {
	Read() (int, error)
}

type Hardware struct {
	Stepper      Stepper
	ClosedSwitch Input
	OpenedSwitch Input
	Battery      VoltageSensor
	Wireless     io.Writer
	Storage      eeprom.Storage
	Clock        func() time.Time
}

type Timing struct {
	BatteryFirstCheck time.Duration
	BatteryInterval   time.Duration
	WirelessGuard     time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.BatteryFirstCheck <= 0 {
		t.BatteryFirstCheck = DefaultBatteryFirstCheck
	}
	if t.BatteryInterval <= 0 {
		t.BatteryInterval = DefaultBatteryInterval
	}
	if t.WirelessGuard <= 0 {
		t.WirelessGuard = DefaultWirelessGuard
	}
	return t
}

type Shutter struct {
	name string

	stepper      Stepper
	closedSwitch Input
	openedSwitch Input
	battery      VoltageSensor
	wireless     io.Writer
	store        *eeprom.Store
	now          func() time.Time
	timing       Timing

	cfg eeprom.Record

	state      shutter.State
	wasRunning bool

	controllerVolts  int
	nextBatteryCheck time.Time

	session wirelessSession

	updateHandler shutter.UpdateHandler
}

// New restores the persisted configuration and applies it to the stepper.
// The shutter starts in the error state until a limit is reached.
func New(name string, hw Hardware, timing Timing) (*Shutter, error) {
	if hw.Stepper == nil || hw.ClosedSwitch == nil || hw.OpenedSwitch == nil || hw.Battery == nil || hw.Storage == nil {
		return nil, errors.Errorf("%s: stepper, limit switches, battery sensor and storage are required", name)
	}
	if hw.Wireless == nil {
		hw.Wireless = io.Discard
	}
	if hw.Clock == nil {
		hw.Clock = time.Now
	}

	s := &Shutter{
		name:         name,
		stepper:      hw.Stepper,
		closedSwitch: hw.ClosedSwitch,
		openedSwitch: hw.OpenedSwitch,
		battery:      hw.Battery,
		wireless:     hw.Wireless,
		store:        eeprom.NewStore(hw.Storage),
		now:          hw.Clock,
		timing:       timing.withDefaults(),
		state:        shutter.StateError,
	}

	cfg, err := s.store.Load()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: configuration load failed", name)
	}
	s.applyConfig(cfg)
	s.nextBatteryCheck = s.now().Add(s.timing.BatteryFirstCheck)

	logrus.Infof("%s: %d steps per stroke, acceleration %d, max speed %d, reversed %t",
		name, cfg.StepsPerStroke, cfg.Acceleration, cfg.MaxSpeed, cfg.Reversed)

	return s, nil
}

func (s *Shutter) Name() string {
	return s.name
}

func (s *Shutter) OnUpdate(h shutter.UpdateHandler) {
	s.updateHandler = h
}

// Config returns a copy of the in-memory configuration record.
func (s *Shutter) Config() eeprom.Record {
	return s.cfg
}

// SaveConfig persists the in-memory configuration record.
func (s *Shutter) SaveConfig() error {
	if err := s.store.Save(s.cfg); err != nil {
		return errors.Wrapf(err, "%s: configuration save failed", s.name)
	}
	return nil
}

func (s *Shutter) reloadConfig() error {
	cfg, err := s.store.Load()
	if err != nil {
		return errors.Wrapf(err, "%s: configuration reload failed", s.name)
	}
	s.applyConfig(cfg)
	return nil
}

func (s *Shutter) applyConfig(cfg eeprom.Record) {
	s.cfg = cfg
	s.stepper.SetAcceleration(float64(cfg.Acceleration))
	s.stepper.SetMaxSpeed(float64(cfg.MaxSpeed))
	s.stepper.SetDirectionInverted(cfg.Reversed)
}

func (s *Shutter) setState(state shutter.State) {
	if s.state == state {
		return
	}

	logrus.Infof("%s: state %s -> %s", s.name, s.state, state)
	s.state = state
	s.notify()
}

func (s *Shutter) notify() {
	if s.updateHandler != nil {
		s.updateHandler(s.state, s.stepper.CurrentPosition())
	}
}

func (s *Shutter) writeWireless(line string) {
	if _, err := io.WriteString(s.wireless, line); err != nil {
		logrus.Errorf("%s: wireless write failed: %s", s.name, err)
	}
}
