package pin

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IIOChannel reads a raw sample from a Linux industrial I/O ADC channel,
// e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type IIOChannel struct {
	Path string
}

func (c *IIOChannel) Read() (int, error) {
	b, err := os.ReadFile(c.Path)
	if err != nil {
		return 0, errors.Wrapf(err, "iio: read %s", c.Path)
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, errors.Wrapf(err, "iio: parse %s", c.Path)
	}

	return v, nil
}

// FixedChannel always samples the same raw value.
type FixedChannel struct {
	Raw int
}

func (c *FixedChannel) Read() (int, error) {
	return c.Raw, nil
}
