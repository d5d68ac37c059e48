package shutter

type State int

const (
	StateOpen State = iota
	StateClosed
	StateOpening
	StateClosing
	StateError
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateClosing:
		return "closing"
	case StateError:
		return "error"
	}

	return "unknown"
}

// Settled reports whether the shutter rests at one of its limits.
func (s State) Settled() bool {
	return s == StateOpen || s == StateClosed
}

type UpdateHandler func(state State, position int64)
