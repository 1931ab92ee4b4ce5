//go:build linux

package backend

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jochenvg/go-udev"
)

// sysfsLEDs reads Lock-key LED brightness directly from sysfs, never
// through a (possibly blocking) uinput write -- the reason given in §5 for
// why Lock-key state queries bypass the virtual device entirely. Device
// paths are discovered once by enumerating the udev "leds" subsystem instead
// of a hand-rolled glob over /sys/class/leds; each device is classified by
// the suffix of its sysfs name (see discoverLEDs).
type sysfsLEDs struct {
	capsPath, numPath, scrollPath string
}

// discoverLEDs enumerates the "leds" subsystem and classifies each device
// by its trailing name component (capslock/numlock/scrolllock), which is
// the kernel-assigned suffix for every input LED regardless of the input
// device's vendor prefix.
func discoverLEDs() (*sysfsLEDs, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()

	if err := enum.AddMatchSubsystem("leds"); err != nil {
		return nil, fmt.Errorf("backend: matching leds subsystem: %w", err)
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("backend: enumerating led devices: %w", err)
	}

	out := &sysfsLEDs{}

	for _, d := range devices {
		name := d.Sysname()

		path := d.Syspath() + "/brightness"

		switch {
		case strings.HasSuffix(name, "capslock"):
			out.capsPath = path
		case strings.HasSuffix(name, "numlock"):
			out.numPath = path
		case strings.HasSuffix(name, "scrolllock"):
			out.scrollPath = path
		}
	}

	return out, nil
}

func readBrightnessOn(path string) (bool, error) {
	if path == "" {
		// No LED of this kind was found (headless or virtual keyboard-only
		// box); treat as "off", so modifier sync taps the key whenever the
		// target mask has that Lock bit set.
		return false, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("backend: reading %s: %w", path, err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return false, fmt.Errorf("backend: parsing brightness %s: %w", path, err)
	}

	return n > 0, nil
}

func (l *sysfsLEDs) CapsLockOn() (bool, error)   { return readBrightnessOn(l.capsPath) }
func (l *sysfsLEDs) NumLockOn() (bool, error)    { return readBrightnessOn(l.numPath) }
func (l *sysfsLEDs) ScrollLockOn() (bool, error) { return readBrightnessOn(l.scrollPath) }
