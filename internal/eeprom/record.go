package eeprom

import (
	"encoding/binary"
)

const (
	Signature int32 = 4700
	Version   uint8 = 1

	// RecordSize is the encoded width of a Record in bytes.
	RecordSize = 4 + 1 + 1 + 2 + 2 + 4 + 2 + 2 + 1 + 1 + 2 + 2 + 2 + 1
)

// Record holds the tunable motion and safety parameters that survive power loss.
type Record struct {
	SleepMode      uint8
	SleepPeriod    uint16
	SleepDelay     uint16
	StepsPerStroke uint32
	Acceleration   uint16
	MaxSpeed       uint16
	StepMode       uint8
	Reversed       bool
	CutoffVolts    uint16 // centivolts
	JogStart       uint16 // milliseconds before a press becomes a sticky move
	JogMax         uint16 // milliseconds after which a sticky move expires
	EStopEnabled   bool
}

func Defaults() Record {
	return Record{
		SleepMode:      0,
		SleepPeriod:    300,
		SleepDelay:     30000,
		StepsPerStroke: 264000,
		Acceleration:   4000,
		MaxSpeed:       3000,
		StepMode:       8,
		Reversed:       false,
		CutoffVolts:    1220,
		JogStart:       1000,
		JogMax:         3000,
		EStopEnabled:   false,
	}
}

// MarshalBinary encodes the record field by field, signature and version first.
func (r Record) MarshalBinary() ([]byte, error) {
	b := make([]byte, RecordSize)
	w := writer{b: b}

	w.u32(uint32(Signature))
	w.u8(Version)
	w.u8(r.SleepMode)
	w.u16(r.SleepPeriod)
	w.u16(r.SleepDelay)
	w.u32(r.StepsPerStroke)
	w.u16(r.Acceleration)
	w.u16(r.MaxSpeed)
	w.u8(r.StepMode)
	w.bool(r.Reversed)
	w.u16(r.CutoffVolts)
	w.u16(r.JogStart)
	w.u16(r.JogMax)
	w.bool(r.EStopEnabled)

	return b, nil
}

// UnmarshalBinary decodes a record. ErrInvalidRecord is returned when the
// signature or version tag does not match, the fields are left untouched then.
func (r *Record) UnmarshalBinary(b []byte) error {
	if len(b) < RecordSize {
		return ErrInvalidRecord
	}

	rd := reader{b: b}
	if int32(rd.u32()) != Signature || rd.u8() != Version {
		return ErrInvalidRecord
	}

	r.SleepMode = rd.u8()
	r.SleepPeriod = rd.u16()
	r.SleepDelay = rd.u16()
	r.StepsPerStroke = rd.u32()
	r.Acceleration = rd.u16()
	r.MaxSpeed = rd.u16()
	r.StepMode = rd.u8()
	r.Reversed = rd.bool()
	r.CutoffVolts = rd.u16()
	r.JogStart = rd.u16()
	r.JogMax = rd.u16()
	r.EStopEnabled = rd.bool()

	return nil
}

type writer struct {
	b   []byte
	off int
}

func (w *writer) u8(v uint8) {
	w.b[w.off] = v
	w.off++
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.b[w.off:], v)
	w.off += 2
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.b[w.off:], v)
	w.off += 4
}

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) u8() uint8 {
	v := r.b[r.off]
	r.off++
	return v
}

func (r *reader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v
}

func (r *reader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v
}

func (r *reader) bool() bool {
	return r.u8() != 0
}
