//go:build linux

package backend

import "fmt"

// Select builds the Backend named by kind ("auto", "uinput", "wayland", or
// "pty"). "auto" tries uinput first (works under both X11 and Wayland
// compositors without a Wayland-specific protocol), falling back to
// Wayland virtual-input if uinput access is denied (common in a sandboxed
// Wayland session without CAP_SYS_ADMIN / uinput group membership).
func Select(kind string, width, height int32) (Backend, error) {
	switch kind {
	case "uinput":
		return newUInput(width, height)
	case "wayland":
		return newWayland(width, height)
	case "pty":
		return NewPTYBackend(width, height)
	case "auto", "":
		if be, err := newUInput(width, height); err == nil {
			return be, nil
		}

		return newWayland(width, height)
	default:
		return nil, fmt.Errorf("backend: unknown backend kind %q", kind)
	}
}

func newUInput(width, height int32) (Backend, error) {
	leds, err := discoverLEDs()
	if err != nil {
		leds = &sysfsLEDs{} // no LEDs found is not fatal; every Lock LED then reads as off
	}

	return NewUInputBackend(width, height, leds)
}

func newWayland(width, height int32) (Backend, error) {
	leds, err := discoverLEDs()
	if err != nil {
		leds = &sysfsLEDs{}
	}

	return NewWaylandBackend(width, height, leds)
}
