package link

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Log stands in for the wireless module when none is attached, every write
// is logged.
type Log struct {
	Name string
}

func (l *Log) Write(p []byte) (int, error) {
	logrus.Debugf("%s: wireless <- %q", l.Name, strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}
