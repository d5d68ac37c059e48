package pin

import (
	"github.com/stianeikeland/go-rpio/v4"
)

// RpioPin is a Raspberry Pi GPIO output (BCM numbering). rpio.Open must have
// been called before.
type RpioPin struct {
	pin rpio.Pin
}

func NewRpioPin(bcm uint8) *RpioPin {
	p := &RpioPin{pin: rpio.Pin(bcm)}
	p.pin.Output()
	p.pin.Low()
	return p
}

func (p *RpioPin) High() error {
	p.pin.High()
	return nil
}

func (p *RpioPin) Low() error {
	p.pin.Low()
	return nil
}

// RpioInput is a Raspberry Pi GPIO input with the internal pull-up enabled.
type RpioInput struct {
	pin rpio.Pin
}

func NewRpioInput(bcm uint8) *RpioInput {
	p := &RpioInput{pin: rpio.Pin(bcm)}
	p.pin.Input()
	p.pin.PullUp()
	return p
}

func (p *RpioInput) Read() (bool, error) {
	return p.pin.Read() == rpio.High, nil
}
