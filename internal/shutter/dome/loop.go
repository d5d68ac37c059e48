package dome

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type command struct {
	fn   func(s *Shutter)
	done chan struct{}
}

// Loop is the only goroutine touching a Shutter. It polls back to back while
// the motor runs and every idle interval otherwise. Commands from other
// goroutines go through Do.
type Loop struct {
	shutter  *Shutter
	commands chan command

	idlePoll time.Duration
	report   time.Duration
}

func NewLoop(s *Shutter, idlePoll, report time.Duration) *Loop {
	if idlePoll <= 0 {
		idlePoll = 10 * time.Millisecond
	}
	if report <= 0 {
		report = time.Second
	}

	return &Loop{
		shutter:  s,
		commands: make(chan command),
		idlePoll: idlePoll,
		report:   report,
	}
}

// Do runs fn on the loop goroutine between two polls and waits for it.
func (l *Loop) Do(ctx context.Context, fn func(s *Shutter)) error {
	c := command{fn: fn, done: make(chan struct{})}

	select {
	case l.commands <- c:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Run(ctx context.Context) error {
	logrus.Infof("%s: poll loop started", l.shutter.name)
	defer logrus.Infof("%s: poll loop exit", l.shutter.name)

	idle := time.NewTicker(l.idlePoll)
	defer idle.Stop()

	// reports are paced on the shutter clock, the first one is due one
	// interval after start
	reports := rate.NewLimiter(rate.Every(l.report), 1)
	reports.AllowN(l.shutter.now(), 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-l.commands:
			l.exec(c)
		default:
		}

		l.shutter.Run()

		if l.shutter.IsRunning() {
			if reports.AllowN(l.shutter.now(), 1) {
				l.shutter.notify()
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-l.commands:
			l.exec(c)
		case <-idle.C:
		}
	}
}

func (l *Loop) exec(c command) {
	c.fn(l.shutter)
	close(c.done)
}
