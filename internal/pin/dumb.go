package pin

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Dumb is a pin without hardware behind it. Outputs only log, inputs return
// whatever level was last set.
type Dumb struct {
	Name string

	mu   sync.Mutex
	high bool
}

func (d *Dumb) High() error {
	d.Set(true)
	logrus.Tracef("%s: dumb pin high", d.Name)
	return nil
}

func (d *Dumb) Low() error {
	d.Set(false)
	logrus.Tracef("%s: dumb pin low", d.Name)
	return nil
}

func (d *Dumb) Set(high bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.high = high
}

func (d *Dumb) Read() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.high, nil
}
