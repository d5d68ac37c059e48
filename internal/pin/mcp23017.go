package pin

import (
	"github.com/racerxdl/go-mcp23017"
)

type Mcp23017Pin struct {
	device *mcp23017.Device
	pin    uint8
}

func NewMcp23017Pin(device *mcp23017.Device, pin uint8) (p *Mcp23017Pin, err error) {
	p = &Mcp23017Pin{device: device, pin: pin}
	err = p.device.PinMode(pin, mcp23017.OUTPUT)
	return p, err
}

func (m *Mcp23017Pin) High() error {
	return m.device.DigitalWrite(m.pin, mcp23017.HIGH)
}

func (m *Mcp23017Pin) Low() error {
	return m.device.DigitalWrite(m.pin, mcp23017.LOW)
}

type Mcp23017Input struct {
	device *mcp23017.Device
	pin    uint8
}

func NewMcp23017Input(device *mcp23017.Device, pin uint8) (p *Mcp23017Input, err error) {
	p = &Mcp23017Input{device: device, pin: pin}
	err = p.device.PinMode(pin, mcp23017.INPUT)
	return p, err
}

func (m *Mcp23017Input) Read() (bool, error) {
	level, err := m.device.DigitalRead(m.pin)
	if err != nil {
		return false, err
	}

	return level == mcp23017.HIGH, nil
}
