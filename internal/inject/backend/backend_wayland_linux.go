//go:build linux

package backend

import (
	"fmt"

	wvi "github.com/bnema/wayland-virtual-input-go"
)

// WaylandBackend drives the compositor's virtual-pointer and
// virtual-keyboard Wayland protocols instead of /dev/uinput, for desktops
// that don't grant uinput access to unprivileged clients (the common case
// under a Wayland session with no setuid helper).
type WaylandBackend struct {
	manager  *wvi.Manager
	pointer  *wvi.VirtualPointer
	keyboard *wvi.VirtualKeyboard
	leds     *sysfsLEDs
	width, height int32
}

// NewWaylandBackend connects to the compositor and creates one virtual
// pointer and one virtual keyboard.
func NewWaylandBackend(width, height int32, leds *sysfsLEDs) (*WaylandBackend, error) {
	mgr, err := wvi.Connect()
	if err != nil {
		return nil, fmt.Errorf("backend: connecting to wayland compositor: %w", err)
	}

	pointer, err := mgr.CreateVirtualPointer()
	if err != nil {
		mgr.Close() //nolint:errcheck

		return nil, fmt.Errorf("backend: creating virtual pointer: %w", err)
	}

	keyboard, err := mgr.CreateVirtualKeyboard()
	if err != nil {
		mgr.Close() //nolint:errcheck

		return nil, fmt.Errorf("backend: creating virtual keyboard: %w", err)
	}

	return &WaylandBackend{manager: mgr, pointer: pointer, keyboard: keyboard, leds: leds, width: width, height: height}, nil
}

func (b *WaylandBackend) Kind() string       { return "wayland" }
func (b *WaylandBackend) Mouse() Mouse       { return (*waylandMouse)(b) }
func (b *WaylandBackend) Keyboard() Keyboard { return (*waylandKeyboard)(b) }
func (b *WaylandBackend) LEDs() LEDReader    { return b.leds }
func (b *WaylandBackend) Geometry() Geometry { return (*waylandGeometry)(b) }

type waylandMouse WaylandBackend

func (m *waylandMouse) MoveAbsolute(x, y int32) error {
	return m.pointer.MotionAbsolute(uint32(x), uint32(y), uint32(m.width), uint32(m.height))
}

func (m *waylandMouse) MoveRelative(dx, dy int32) error {
	return m.pointer.Motion(float64(dx), float64(dy))
}

func (m *waylandMouse) Button(code uint16, down bool) error {
	return m.pointer.Button(uint32(code), down)
}

func (m *waylandMouse) Wheel(dx, dy int32) error {
	if dy != 0 {
		if err := m.pointer.Axis(wvi.AxisVertical, float64(dy)); err != nil {
			return err //nolint:wrapcheck
		}
	}

	if dx != 0 {
		if err := m.pointer.Axis(wvi.AxisHorizontal, float64(dx)); err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}

func (m *waylandMouse) Sync() error  { return m.pointer.Frame() }
func (m *waylandMouse) Close() error { return m.pointer.Close() }

type waylandKeyboard WaylandBackend

func (k *waylandKeyboard) Key(code uint16, down bool) error {
	return k.keyboard.Key(uint32(code), down)
}

func (k *waylandKeyboard) Sync() error  { return nil } // Wayland keyboard protocol has no explicit frame barrier.
func (k *waylandKeyboard) Close() error { return k.keyboard.Close() }

type waylandGeometry WaylandBackend

func (g *waylandGeometry) ScreenSize() (int32, int32, error) {
	return g.width, g.height, nil
}
