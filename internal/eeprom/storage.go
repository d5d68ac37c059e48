package eeprom

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Size of the emulated EEPROM image.
const Size = 1024

// Memory is a fixed size in-memory image, used by tests and the simulator.
type Memory struct {
	mu sync.Mutex
	b  [Size]byte
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off >= Size {
		return 0, io.EOF
	}
	n := copy(p, m.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off+int64(len(p)) > Size {
		return 0, errors.Errorf("eeprom: write of %d bytes at %d is out of range", len(p), off)
	}
	return copy(m.b[off:], p), nil
}

// File is an EEPROM image on disk. Writes are synced before returning.
type File struct {
	f *os.File
}

func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "eeprom: open %s", path)
	}

	return &File{f: f}, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	n, err := f.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, f.f.Sync()
}

func (f *File) Close() error {
	return f.f.Close()
}
