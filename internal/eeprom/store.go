package eeprom

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Offset is where the record lives in the storage image.
const Offset = 100

var ErrInvalidRecord = errors.New("eeprom: invalid record signature")

// Storage is the raw non-volatile read/write primitive.
type Storage interface {
	io.ReaderAt
	io.WriterAt
}

type Store struct {
	storage Storage
	offset  int64
}

func NewStore(storage Storage) *Store {
	return &Store{storage: storage, offset: Offset}
}

// Load reads the record. A record with a foreign signature, or a storage too
// short to hold one, is replaced by the defaults which are written back.
func (s *Store) Load() (Record, error) {
	b := make([]byte, RecordSize)
	n, err := s.storage.ReadAt(b, s.offset)
	if err != nil && !(err == io.EOF || err == io.ErrUnexpectedEOF) {
		return Record{}, errors.Wrapf(err, "eeprom: read %d bytes at %d", RecordSize, s.offset)
	}

	var r Record
	if err := r.UnmarshalBinary(b[:n]); err != nil {
		logrus.Warnf("eeprom: invalid signature at %d, writing defaults", s.offset)
		r = Defaults()
		return r, s.Save(r)
	}

	logrus.Debugf("eeprom: good signature at %d", s.offset)
	return r, nil
}

// Save writes the record with a valid signature. The write is not atomic.
func (s *Store) Save(r Record) error {
	b, err := r.MarshalBinary()
	if err != nil {
		return err
	}

	if _, err := s.storage.WriteAt(b, s.offset); err != nil {
		return errors.Wrapf(err, "eeprom: write %d bytes at %d", len(b), s.offset)
	}

	logrus.Debugf("eeprom: wrote signature %d at %d", Signature, s.offset)
	return nil
}
