// Package backend defines the virtual input-device contract the Injector
// drives, and the concrete implementations that actually move a cursor or
// press a key on a given platform.
package backend

// Mouse is a virtual pointing device: absolute moves, relative moves,
// button press/release, and wheel clicks.
type Mouse interface {
	MoveAbsolute(x, y int32) error
	MoveRelative(dx, dy int32) error
	Button(code uint16, down bool) error
	Wheel(dx, dy int32) error
	// Sync issues the SYN barrier so the kernel delivers the preceding
	// batch of events atomically (§4.5 "Post-emit synchronization").
	Sync() error
	Close() error
}

// Keyboard is a virtual keyboard device addressed by local scancode.
type Keyboard interface {
	Key(code uint16, down bool) error
	Sync() error
	Close() error
}

// LEDReader reports the physical Lock-key LED state without going through
// the (possibly blocking) virtual device write path -- §5 requires reading
// /sys/class/leds directly for this reason.
type LEDReader interface {
	CapsLockOn() (bool, error)
	NumLockOn() (bool, error)
	ScrollLockOn() (bool, error)
}

// Geometry reports the local screen's pixel dimensions.
type Geometry interface {
	ScreenSize() (width, height int32, err error)
}

// Backend bundles everything the Injector needs from one platform
// implementation. Kind identifies which backend was selected for logging
// ("uinput", "wayland", "pty").
type Backend interface {
	Kind() string
	Mouse() Mouse
	Keyboard() Keyboard
	LEDs() LEDReader
	Geometry() Geometry
}
