package dome

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// wirelessConfigSteps counts the responses of a session: one for the escape
// sequence and one per command of the settings string.
const wirelessConfigSteps = 7

const wirelessEscape = "+++"

type wirelessPhase int

const (
	wirelessIdle wirelessPhase = iota
	wirelessGuardBefore
	wirelessGuardAfter
	wirelessAwaiting
)

type wirelessSession struct {
	phase    wirelessPhase
	deadline time.Time
	step     int
	command  string
	pending  []string
}

// StartWirelessConfig opens a command mode session with the wireless module.
// The escape sequence needs a silent line for a guard time on both sides, the
// polls keep running meanwhile. Restarting a stalled session begins anew.
func (s *Shutter) StartWirelessConfig() {
	logrus.Infof("%s: wireless configuration started", s.name)
	s.session = wirelessSession{
		phase:    wirelessGuardBefore,
		deadline: s.now().Add(s.timing.WirelessGuard),
	}
}

func (s *Shutter) IsConfiguringWireless() bool {
	return s.session.phase != wirelessIdle
}

func (s *Shutter) advanceWireless() {
	now := s.now()
	if now.Before(s.session.deadline) {
		return
	}

	switch s.session.phase {
	case wirelessGuardBefore:
		logrus.Debugf("%s: sending %s", s.name, wirelessEscape)
		s.writeWireless(wirelessEscape)
		s.session.phase = wirelessGuardAfter
		s.session.deadline = now.Add(s.timing.WirelessGuard)
	case wirelessGuardAfter:
		s.session.phase = wirelessAwaiting
		pending := s.session.pending
		s.session.pending = nil
		for _, response := range pending {
			s.HandleWirelessResponse(response)
		}
	}
}

// HandleWirelessResponse consumes one response line of the wireless module.
// The first one sends the settings command, the session ends once every
// command has been answered. A response that never comes stalls the session.
func (s *Shutter) HandleWirelessResponse(response string) {
	switch s.session.phase {
	case wirelessIdle, wirelessGuardBefore:
		logrus.Debugf("%s: wireless response %q outside of a session", s.name, response)
		return
	case wirelessGuardAfter:
		s.session.pending = append(s.session.pending, response)
		return
	}

	if s.session.step == 0 {
		s.session.command = s.atCommand()
		logrus.Debugf("%s: AT string %s", s.name, s.session.command)
		s.writeWireless(s.session.command + lineEnding)
	}
	s.session.step++

	if s.session.step < wirelessConfigSteps {
		logrus.Debugf("%s: wireless response %d: %s", s.name, s.session.step, response)
		return
	}

	logrus.Infof("%s: wireless configured", s.name)
	s.session = wirelessSession{}
}

func (s *Shutter) atCommand() string {
	cmd := "ATCE0,AP0"
	cmd += fmt.Sprintf(",SM%x", s.cfg.SleepMode)
	cmd += fmt.Sprintf(",SP%x", s.cfg.SleepPeriod)
	cmd += fmt.Sprintf(",ST%x", s.cfg.SleepDelay)
	cmd += ",CN"
	return strings.ToUpper(cmd)
}

// ChangeSleepSettings parses "mode,period,delay" in decimal, persists the
// values and reloads the configuration.
func (s *Shutter) ChangeSleepSettings(values string) error {
	parts := strings.Split(values, ",")
	if len(parts) != 3 {
		return errors.Errorf("%s: sleep settings %q must be mode,period,delay", s.name, values)
	}

	mode, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 8)
	if err != nil {
		return errors.Wrapf(err, "%s: invalid sleep mode", s.name)
	}
	period, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
	if err != nil {
		return errors.Wrapf(err, "%s: invalid sleep period", s.name)
	}
	delay, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 16)
	if err != nil {
		return errors.Wrapf(err, "%s: invalid sleep delay", s.name)
	}

	s.cfg.SleepMode = uint8(mode)
	s.cfg.SleepPeriod = uint16(period)
	s.cfg.SleepDelay = uint16(delay)
	logrus.Infof("%s: sleep settings %d,%d,%d", s.name, mode, period, delay)

	if err := s.SaveConfig(); err != nil {
		return err
	}
	return s.reloadConfig()
}
