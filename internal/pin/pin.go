package pin

type SetPin interface {
	High() error
	Low() error
}

// LevelReader reads the electrical level of an input, true meaning high.
type LevelReader interface {
	Read() (bool, error)
}

// Switch is a limit switch input. Switches closing to ground against a
// pull-up are ActiveLow.
type Switch struct {
	Pin       LevelReader
	ActiveLow bool
}

func (s *Switch) IsActive() (bool, error) {
	high, err := s.Pin.Read()
	if err != nil {
		return false, err
	}

	return high != s.ActiveLow, nil
}

// Polarity drives an output with an inverted level when Inverted is set.
type Polarity struct {
	Pin      SetPin
	Inverted bool
}

func (p *Polarity) High() error {
	if p.Inverted {
		return p.Pin.Low()
	}
	return p.Pin.High()
}

func (p *Polarity) Low() error {
	if p.Inverted {
		return p.Pin.High()
	}
	return p.Pin.Low()
}
