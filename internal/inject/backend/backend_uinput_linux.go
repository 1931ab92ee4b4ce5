//go:build linux

package backend

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux uinput ioctl requests and event-type constants. These are not
// syscall numbers and so are not exposed by golang.org/x/sys/unix; they are
// the fixed values from <linux/uinput.h> / <linux/input-event-codes.h>.
const (
	uiSetEvBit  = 0x40045564
	uiSetKeyBit = 0x40045565
	uiSetRelBit = 0x40045566
	uiDevCreate = 0x5501
	uiDevDestroy = 0x5502

	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport = 0

	relX     = 0x00
	relY     = 0x01
	relWheel = 0x08
)

// uinputEvent mirrors struct input_event from <linux/input.h>, 64-bit time
// fields (the current ABI on all supported architectures).
type uinputEvent struct {
	Sec, Usec int64
	Type      uint16
	Code      uint16
	Value     int32
}

// UInputBackend drives two /dev/uinput virtual devices, one for the mouse
// (EV_REL + EV_KEY for buttons) and one for the keyboard (EV_KEY only).
// Grounded on the teacher's pseudo-device-open pattern in kiss.go
// (kisspt_open_pt opens one fd and holds it for the device's lifetime) --
// the same single-open-fd-held-for-lifetime shape, applied to two fds
// instead of a pty pair.
type UInputBackend struct {
	mouseFD, keyboardFD *os.File
	leds                *sysfsLEDs
	width, height       int32
}

// NewUInputBackend opens /dev/uinput twice and configures one device for
// relative mouse motion + buttons, the other for key events.
func NewUInputBackend(width, height int32, leds *sysfsLEDs) (*UInputBackend, error) {
	mouseFD, err := openUInputDevice("barrierscreen-mouse", []int{evRel, evKey}, []int{relX, relY, relWheel})
	if err != nil {
		return nil, err
	}

	keyboardFD, err := openUInputDevice("barrierscreen-keyboard", []int{evKey}, nil)
	if err != nil {
		mouseFD.Close() //nolint:errcheck

		return nil, err
	}

	return &UInputBackend{mouseFD: mouseFD, keyboardFD: keyboardFD, leds: leds, width: width, height: height}, nil
}

func openUInputDevice(name string, evBits []int, relBits []int) (*os.File, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("backend: opening /dev/uinput: %w", err)
	}

	for _, bit := range evBits {
		if err := unix.IoctlSetInt(int(f.Fd()), uiSetEvBit, bit); err != nil {
			f.Close() //nolint:errcheck

			return nil, fmt.Errorf("backend: UI_SET_EVBIT %d: %w", bit, err)
		}
	}

	for _, bit := range relBits {
		if err := unix.IoctlSetInt(int(f.Fd()), uiSetRelBit, bit); err != nil {
			f.Close() //nolint:errcheck

			return nil, fmt.Errorf("backend: UI_SET_RELBIT %d: %w", bit, err)
		}
	}

	// Register every KEY_* code 0-255 plus the BTN_* codes up to 0x11F
	// (BTN_LEFT/RIGHT/MIDDLE are 0x110-0x112); registering the full range is
	// simpler and safer than maintaining our own key-code allowlist.
	if containsEvBit(evBits, evKey) {
		for code := 0; code < 0x120; code++ {
			if err := unix.IoctlSetInt(int(f.Fd()), uiSetKeyBit, code); err != nil {
				f.Close() //nolint:errcheck

				return nil, fmt.Errorf("backend: UI_SET_KEYBIT %d: %w", code, err)
			}
		}
	}

	if err := writeUInputSetup(f, name); err != nil {
		f.Close() //nolint:errcheck

		return nil, err
	}

	if err := unix.IoctlSetInt(int(f.Fd()), uiDevCreate, 0); err != nil {
		f.Close() //nolint:errcheck

		return nil, fmt.Errorf("backend: UI_DEV_CREATE: %w", err)
	}

	return f, nil
}

func containsEvBit(bits []int, want int) bool {
	for _, b := range bits {
		if b == want {
			return true
		}
	}

	return false
}

// writeUInputSetup writes a struct uinput_user_dev (name, then bogus but
// distinct bustype/vendor/product/version, then zeroed ff_effects_max and
// abs ranges) via the legacy raw write path, which every kernel since 2.6
// accepts as a fallback to the UI_DEV_SETUP ioctl.
func writeUInputSetup(f *os.File, name string) error {
	const userDevSize = 80 + 8 + 4 + 4*64*4 // name, input_id, ff_effects_max, abs{max,min,fuzz,flat}[64]

	buf := make([]byte, userDevSize)
	copy(buf[:80], name)

	id := buf[80:88] // bustype, vendor, product, version (uint16 x4)
	binary.LittleEndian.PutUint16(id[0:], 0x03)
	binary.LittleEndian.PutUint16(id[2:], 0x1209)
	binary.LittleEndian.PutUint16(id[4:], 0x0001)
	binary.LittleEndian.PutUint16(id[6:], 0x0001)

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("backend: writing uinput_user_dev: %w", err)
	}

	return nil
}

func writeEvent(f *os.File, typ, code uint16, value int32) error {
	now := time.Now()
	ev := uinputEvent{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000), Type: typ, Code: code, Value: value}

	buf := (*[unsafe.Sizeof(ev)]byte)(unsafe.Pointer(&ev))[:]
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("backend: writing input_event: %w", err)
	}

	return nil
}

func (b *UInputBackend) Kind() string       { return "uinput" }
func (b *UInputBackend) Mouse() Mouse       { return (*uinputMouse)(b) }
func (b *UInputBackend) Keyboard() Keyboard { return (*uinputKeyboard)(b) }
func (b *UInputBackend) LEDs() LEDReader    { return b.leds }
func (b *UInputBackend) Geometry() Geometry { return (*uinputGeometry)(b) }

type uinputMouse UInputBackend

func (m *uinputMouse) MoveAbsolute(x, y int32) error {
	// uinput's mouse device here is registered relative-only (EV_REL); an
	// absolute move is synthesised as a relative jump from the Injector's
	// own tracked logical position, so the virtual device itself never
	// needs EV_ABS + ABS_X/ABS_Y calibration against the real screen.
	return m.MoveRelative(x, y)
}

func (m *uinputMouse) MoveRelative(dx, dy int32) error {
	if err := writeEvent(m.mouseFD, evRel, relX, dx); err != nil {
		return err
	}

	return writeEvent(m.mouseFD, evRel, relY, dy)
}

func (m *uinputMouse) Button(code uint16, down bool) error {
	v := int32(0)
	if down {
		v = 1
	}

	return writeEvent(m.mouseFD, evKey, code, v)
}

func (m *uinputMouse) Wheel(dx, dy int32) error {
	if dy != 0 {
		if err := writeEvent(m.mouseFD, evRel, relWheel, dy); err != nil {
			return err
		}
	}

	if dx != 0 {
		return writeEvent(m.mouseFD, evRel, 0x06, dx) // REL_HWHEEL
	}

	return nil
}

func (m *uinputMouse) Sync() error { return writeEvent(m.mouseFD, evSyn, synReport, 0) }

func (m *uinputMouse) Close() error {
	unix.IoctlSetInt(int(m.mouseFD.Fd()), uiDevDestroy, 0) //nolint:errcheck

	if err := m.mouseFD.Close(); err != nil {
		return fmt.Errorf("backend: closing mouse device: %w", err)
	}

	return nil
}

type uinputKeyboard UInputBackend

func (k *uinputKeyboard) Key(code uint16, down bool) error {
	v := int32(0)
	if down {
		v = 1
	}

	return writeEvent(k.keyboardFD, evKey, code, v)
}

func (k *uinputKeyboard) Sync() error { return writeEvent(k.keyboardFD, evSyn, synReport, 0) }

func (k *uinputKeyboard) Close() error {
	unix.IoctlSetInt(int(k.keyboardFD.Fd()), uiDevDestroy, 0) //nolint:errcheck

	if err := k.keyboardFD.Close(); err != nil {
		return fmt.Errorf("backend: closing keyboard device: %w", err)
	}

	return nil
}

type uinputGeometry UInputBackend

func (g *uinputGeometry) ScreenSize() (int32, int32, error) {
	return g.width, g.height, nil
}
