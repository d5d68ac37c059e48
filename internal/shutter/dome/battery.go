package dome

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// checkBattery samples the supply and reports it on the wireless link once
// the check is due. It stays quiet during a wireless configuration session,
// the check then fires on the first poll after the session.
func (s *Shutter) checkBattery() {
	if s.IsConfiguringWireless() {
		return
	}

	now := s.now()
	if now.Before(s.nextBatteryCheck) {
		return
	}

	logrus.Debugf("%s: measuring battery", s.name)
	s.measureVoltage()
	s.writeWireless("K" + s.VoltString() + lineEnding)
	s.nextBatteryCheck = now.Add(s.timing.BatteryInterval)
	s.notify()
}

// measureVoltage undoes the divider: halve, then triple.
func (s *Shutter) measureVoltage() {
	raw, err := s.battery.Read()
	if err != nil {
		logrus.Errorf("%s: battery read failed: %s", s.name, err)
		return
	}

	volts := raw / 2
	volts *= 3
	s.controllerVolts = volts
}

// VoltString reports the sensed and the cutoff voltage together, both in
// centivolts.
func (s *Shutter) VoltString() string {
	return fmt.Sprintf("%d,%d", s.controllerVolts, s.cfg.CutoffVolts)
}

func (s *Shutter) SensedVolts() int {
	return s.controllerVolts
}

func (s *Shutter) CutoffVolts() uint16 {
	return s.cfg.CutoffVolts
}

// SetCutoffVolts parses a decimal centivolt value and persists it.
func (s *Shutter) SetCutoffVolts(value string) error {
	v, err := strconv.ParseUint(strings.TrimSpace(value), 10, 16)
	if err != nil {
		return errors.Wrapf(err, "%s: invalid cutoff %q", s.name, value)
	}

	s.cfg.CutoffVolts = uint16(v)
	logrus.Infof("%s: cutoff set to %d", s.name, v)
	return s.SaveConfig()
}
