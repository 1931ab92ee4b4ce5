package backend

import (
	"fmt"
	"os"
	"sync"

	"github.com/creack/pty"
)

// PTYBackend is the --dry-run and test backend: instead of touching real
// input devices, every emitted event is written as a human-readable line to
// the master end of a pseudo-terminal, the same ptmx/pts device-pairing idiom
// the teacher's KISS pseudo-TNC uses for a virtual serial port. Anything
// reading the slave (a test harness, or a human running `cat`) sees the
// exact sequence and timing of emitted events without any kernel input
// device being touched.
type PTYBackend struct {
	master   *os.File
	mu       sync.Mutex
	closeOne sync.Once

	width, height int32
}

// NewPTYBackend opens a pseudo-terminal pair and returns a Backend that
// narrates events to its master fd.
func NewPTYBackend(width, height int32) (*PTYBackend, error) {
	master, _, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("backend: opening pty: %w", err)
	}

	return &PTYBackend{master: master, width: width, height: height}, nil
}

func (b *PTYBackend) Kind() string        { return "pty" }
func (b *PTYBackend) Mouse() Mouse        { return (*ptyMouse)(b) }
func (b *PTYBackend) Keyboard() Keyboard  { return (*ptyKeyboard)(b) }
func (b *PTYBackend) LEDs() LEDReader     { return (*ptyLEDs)(b) }
func (b *PTYBackend) Geometry() Geometry  { return (*ptyGeometry)(b) }

func (b *PTYBackend) writeLine(format string, args ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := fmt.Fprintf(b.master, format+"\n", args...)
	if err != nil {
		return fmt.Errorf("backend: writing to pty: %w", err)
	}

	return nil
}

type ptyMouse PTYBackend

func (m *ptyMouse) MoveAbsolute(x, y int32) error  { return (*PTYBackend)(m).writeLine("mouse abs %d %d", x, y) }
func (m *ptyMouse) MoveRelative(dx, dy int32) error {
	return (*PTYBackend)(m).writeLine("mouse rel %d %d", dx, dy)
}
func (m *ptyMouse) Button(code uint16, down bool) error {
	return (*PTYBackend)(m).writeLine("mouse button %d %v", code, down)
}
func (m *ptyMouse) Wheel(dx, dy int32) error { return (*PTYBackend)(m).writeLine("mouse wheel %d %d", dx, dy) }
func (m *ptyMouse) Sync() error  { return (*PTYBackend)(m).writeLine("mouse syn") }
func (m *ptyMouse) Close() error { return (*PTYBackend)(m).close() }

type ptyKeyboard PTYBackend

func (k *ptyKeyboard) Key(code uint16, down bool) error {
	return (*PTYBackend)(k).writeLine("key %d %v", code, down)
}
func (k *ptyKeyboard) Sync() error  { return (*PTYBackend)(k).writeLine("key syn") }
func (k *ptyKeyboard) Close() error { return (*PTYBackend)(k).close() }

// close runs the master fd's Close exactly once -- both the mouse and
// keyboard views of this backend are closed independently by the Injector,
// but there is only one underlying pty.
func (b *PTYBackend) close() error {
	var err error

	b.closeOne.Do(func() { err = b.master.Close() })

	return err
}

// ptyLEDs always reports every Lock key off -- there is no real hardware
// behind a pty, so the Injector's modifier sync will simply tap every Lock
// key whose target bit is set, which is harmless and fully exercises the
// sync logic end to end.
type ptyLEDs PTYBackend

func (*ptyLEDs) CapsLockOn() (bool, error)   { return false, nil }
func (*ptyLEDs) NumLockOn() (bool, error)    { return false, nil }
func (*ptyLEDs) ScrollLockOn() (bool, error) { return false, nil }

type ptyGeometry PTYBackend

func (g *ptyGeometry) ScreenSize() (int32, int32, error) {
	return (*PTYBackend)(g).width, (*PTYBackend)(g).height, nil
}
