// Package link carries lines over the serial port of the wireless module.
package link

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Open opens a serial port, retrying for a few seconds since USB adapters
// tend to enumerate after the daemon starts.
func Open(name string, baud int) (io.ReadWriteCloser, error) {
	var port *serial.Port
	op := func() error {
		var err error
		port, err = serial.OpenPort(&serial.Config{Name: name, Baud: baud})
		if err != nil {
			logrus.Debugf("serial: open %s: %s", name, err)
		}
		return err
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      10 * time.Second,
		Clock:               backoff.SystemClock,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "serial: open %s at %d baud", name, baud)
	}

	logrus.Infof("serial: %s open at %d baud", name, baud)
	return port, nil
}

// ReadLines hands every non-empty CR or LF terminated line of r to fn until r
// fails or ctx is done. A closed reader ends it without an error.
func ReadLines(ctx context.Context, r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanLines)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := string(bytes.TrimSpace(scanner.Bytes()))
		if line == "" {
			continue
		}
		fn(line)
	}

	return scanner.Err()
}

// scanLines splits on CR as well as LF, the wireless module answers with a
// bare CR.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
