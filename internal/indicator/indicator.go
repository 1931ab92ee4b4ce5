// Package indicator drives an optional GPIO status LED reflecting the
// session's connection state, the same role the teacher's ptt.go gives its
// push-to-talk output line -- generalized here from "keying a transmitter
// while a frame is being sent" to "lit while this client has an active
// secondary-screen session".
package indicator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/jrhodes/barrierscreen/internal/session"
)

// Line drives a single GPIO output line, active-high by default.
type Line struct {
	line *gpiocdev.Line

	activeLow bool
}

// Open requests offset on chip (e.g. "gpiochip0", 17) as an output,
// initially off. activeLow inverts the drive sense, matching the
// teacher's ptt.go support for inverted PTT signals on some interfaces.
func Open(chip string, offset int, activeLow bool) (*Line, error) {
	initial := 0
	if activeLow {
		initial = 1
	}

	l, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, fmt.Errorf("indicator: requesting %s:%d: %w", chip, offset, err)
	}

	return &Line{line: l, activeLow: activeLow}, nil
}

// Set drives the line on or off, accounting for activeLow polarity.
func (l *Line) Set(on bool) error {
	v := 0

	switch {
	case on && !l.activeLow:
		v = 1
	case !on && l.activeLow:
		v = 1
	}

	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("indicator: setting line: %w", err)
	}

	return nil
}

// Close releases the GPIO line, leaving it off.
func (l *Line) Close() error {
	_ = l.Set(false)

	if err := l.line.Close(); err != nil {
		return fmt.Errorf("indicator: closing line: %w", err)
	}

	return nil
}

// FollowSession drives the line on whenever state is Active and off for
// every other state, logging (but not failing on) a GPIO write error since
// a stuck indicator LED must never take down the session it reports on.
func FollowSession(l *Line, state session.State, warnf func(format string, args ...any)) {
	if err := l.Set(state == session.Active); err != nil {
		warnf("indicator: %v", err)
	}
}
