// Package inject implements the Injector (§4.5): the stateful component
// that turns decoded protocol messages into virtual input-device events.
package inject

import (
	"sync"
	"time"

	"github.com/jrhodes/barrierscreen/internal/inject/backend"
	"github.com/jrhodes/barrierscreen/internal/inject/geometry"
	"github.com/jrhodes/barrierscreen/internal/inject/keymap"
	"github.com/jrhodes/barrierscreen/internal/metrics"
	"github.com/jrhodes/barrierscreen/internal/wire"
)

// Modifier bits, matching the protocol's mod_key_mask layout: the three
// Lock keys plus the seven "hold" modifiers named in §4.5.
const (
	ModShift uint16 = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
	ModSuper
	ModAltGr
	ModLevel5Lock
	ModCapsLock   uint16 = 0x1000
	ModNumLock    uint16 = 0x2000
	ModScrollLock uint16 = 0x4000
)

// Logger is the subset of internal/consolelog's interface the Injector
// uses for its own per-event and warning-level logging.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Config carries the mouse-move policy knobs from §6.
type Config struct {
	AbsMouseMove         bool
	MouseMoveThresholdMS int
	MousePosSyncFreq     int
	FallbackWidth        int32
	FallbackHeight       int32
}

// Injector implements session.Injector against a concrete backend.Backend.
type Injector struct {
	cfg     Config
	be      backend.Backend
	log     Logger
	metrics *metrics.Registry

	mu sync.Mutex

	screen        geometry.Screen
	geometryKnown bool

	logicalX, logicalY int32
	lastMoveAt         time.Time
	acceptedSinceReseed int

	pressedKeys    map[uint16]struct{}
	pressedButtons map[uint16]struct{}

	currentModifiers uint16
}

// New builds an Injector bound to be. The geometry probe runs lazily on
// first use (CurrentInfo or first Enter), per §4.5 "On first request,
// determine screen width and height via the platform probe."
func New(cfg Config, be backend.Backend, log Logger) *Injector {
	return &Injector{
		cfg:            cfg,
		be:             be,
		log:            log,
		pressedKeys:    make(map[uint16]struct{}),
		pressedButtons: make(map[uint16]struct{}),
	}
}

// SetMetrics installs the optional Prometheus registry used to count
// throttled vs. applied mouse moves (DESIGN §Metrics, SPEC_FULL D8). A nil
// registry (the default) disables metrics entirely.
func (in *Injector) SetMetrics(m *metrics.Registry) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.metrics = m
}

// UpdateMoveConfig applies the live-reloadable subset of Config
// (AbsMouseMove, MouseMoveThresholdMS, MousePosSyncFreq) -- the fields
// config.WatchFile is allowed to change without a restart. FallbackWidth/
// Height are baked in at New and never change here.
func (in *Injector) UpdateMoveConfig(abs bool, thresholdMS, syncFreq int) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.cfg.AbsMouseMove = abs
	in.cfg.MouseMoveThresholdMS = thresholdMS
	in.cfg.MousePosSyncFreq = syncFreq
}

func (in *Injector) ensureGeometry() {
	if in.geometryKnown {
		return
	}

	w, h, err := in.be.Geometry().ScreenSize()
	if err != nil || w <= 0 || h <= 0 {
		in.log.Warnf("screen geometry probe failed (%v), falling back to %dx%d", err, in.cfg.FallbackWidth, in.cfg.FallbackHeight)
		w, h = in.cfg.FallbackWidth, in.cfg.FallbackHeight
	}

	in.screen = geometry.NewScreen(w, h)
	in.geometryKnown = true
}

// HandleEnter moves the cursor absolutely to the entry point, resets the
// logical cursor, and synchronizes modifiers against mod_key_mask.
func (in *Injector) HandleEnter(msg *wire.Enter) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.ensureGeometry()

	x, y := int32(msg.X), int32(msg.Y)

	if err := in.be.Mouse().MoveAbsolute(x, y); err != nil {
		in.log.Warnf("enter: move_absolute failed: %v", err)
	}

	in.logicalX, in.logicalY = x, y
	in.acceptedSinceReseed = 0

	if err := in.syncModifiersLocked(msg.Mods); err != nil {
		in.log.Warnf("enter: modifier sync failed: %v", err)
	}

	return in.syncLocked()
}

// HandleLeave emits an up event for every pressed button and key, then
// clears both pressed sets -- the §8 "Pressed-set drain" property.
func (in *Injector) HandleLeave(*wire.Leave) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.drainPressedLocked()
}

func (in *Injector) drainPressedLocked() error {
	for code := range in.pressedKeys {
		if err := in.be.Keyboard().Key(code, false); err != nil {
			in.log.Warnf("leave: key up %d failed: %v", code, err)
		}

		delete(in.pressedKeys, code)
	}

	for code := range in.pressedButtons {
		if err := in.be.Mouse().Button(code, false); err != nil {
			in.log.Warnf("leave: button up %d failed: %v", code, err)
		}

		delete(in.pressedButtons, code)
	}

	return in.syncLocked()
}

// HandleMouseMove implements the throttle-then-sync-frequency policy from
// §4.5 and the resolved Open Question in §9: throttling filters first,
// only an accepted event advances the sync-frequency counter.
func (in *Injector) HandleMouseMove(msg *wire.MouseMove) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.ensureGeometry()

	now := time.Now()
	threshold := time.Duration(in.cfg.MouseMoveThresholdMS) * time.Millisecond

	if !in.lastMoveAt.IsZero() && now.Sub(in.lastMoveAt) < threshold {
		if in.metrics != nil {
			in.metrics.MouseMovesDrop.Inc()
		}

		return nil
	}

	in.lastMoveAt = now

	if in.metrics != nil {
		in.metrics.MouseMovesApply.Inc()
	}

	x, y := in.screen.Clamp(int32(msg.X), int32(msg.Y))

	if in.cfg.AbsMouseMove {
		if err := in.be.Mouse().MoveAbsolute(x, y); err != nil {
			return err //nolint:wrapcheck
		}

		in.logicalX, in.logicalY = x, y

		return in.syncLocked()
	}

	in.acceptedSinceReseed++

	syncFreq := in.cfg.MousePosSyncFreq
	if syncFreq <= 0 {
		syncFreq = 1
	}

	if in.acceptedSinceReseed%syncFreq == 0 {
		if err := in.be.Mouse().MoveAbsolute(x, y); err != nil {
			return err //nolint:wrapcheck
		}

		in.logicalX, in.logicalY = x, y

		return in.syncLocked()
	}

	dx, dy := x-in.logicalX, y-in.logicalY
	if dx == 0 && dy == 0 {
		return nil
	}

	if err := in.be.Mouse().MoveRelative(dx, dy); err != nil {
		return err //nolint:wrapcheck
	}

	in.logicalX, in.logicalY = x, y

	return in.syncLocked()
}

// HandleMouseRelMove emits an unmodified relative move, per §4.5.
func (in *Injector) HandleMouseRelMove(msg *wire.MouseRelMove) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.be.Mouse().MoveRelative(int32(msg.DX), int32(msg.DY)); err != nil {
		return err //nolint:wrapcheck
	}

	in.logicalX += int32(msg.DX)
	in.logicalY += int32(msg.DY)

	return in.syncLocked()
}

func (in *Injector) HandleMouseDown(msg *wire.MouseDown) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	code := keymap.MouseButtonToLocal(msg.Button)
	if code == keymap.NoMapping {
		in.log.Warnf("no mapping for mouse button %d", msg.Button)

		return nil
	}

	if err := in.be.Mouse().Button(code, true); err != nil {
		return err //nolint:wrapcheck
	}

	in.pressedButtons[code] = struct{}{}

	return in.syncLocked()
}

func (in *Injector) HandleMouseUp(msg *wire.MouseUp) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	code := keymap.MouseButtonToLocal(msg.Button)
	if code == keymap.NoMapping {
		return nil
	}

	if err := in.be.Mouse().Button(code, false); err != nil {
		return err //nolint:wrapcheck
	}

	delete(in.pressedButtons, code)

	return in.syncLocked()
}

// HandleMouseWheel quantizes any nonzero magnitude to a single click per
// axis, per §4.5 ("Magnitude beyond +-1 is intentionally quantized").
func (in *Injector) HandleMouseWheel(msg *wire.MouseWheel) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	dx, dy := quantize(msg.XDelta), quantize(msg.YDelta)
	if dx == 0 && dy == 0 {
		return nil
	}

	if err := in.be.Mouse().Wheel(dx, dy); err != nil {
		return err //nolint:wrapcheck
	}

	return in.syncLocked()
}

func quantize(v int16) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func (in *Injector) HandleKeyDown(msg *wire.KeyDown) error {
	return in.keyDown(msg.KeyButton)
}

// HandleKeyDownLang processes identically to HandleKeyDown -- msg.Lang is
// reserved for future use (§9).
func (in *Injector) HandleKeyDownLang(msg *wire.KeyDownLang) error {
	return in.keyDown(msg.KeyButton)
}

func (in *Injector) keyDown(keyButton uint16) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	code := keymap.ToLocal(keyButton)
	if code == keymap.NoMapping {
		in.log.Warnf("no mapping for key_button %d", keyButton)

		return nil
	}

	if err := in.be.Keyboard().Key(code, true); err != nil {
		return err //nolint:wrapcheck
	}

	in.pressedKeys[code] = struct{}{}

	return in.syncLocked()
}

// HandleKeyRepeat treats an unpressed button as a fresh down; a pressed one
// is ignored, leaving the OS's own auto-repeat in control (§4.5).
func (in *Injector) HandleKeyRepeat(msg *wire.KeyRepeat) error {
	in.mu.Lock()

	code := keymap.ToLocal(msg.KeyButton)
	if code == keymap.NoMapping {
		in.mu.Unlock()

		return nil
	}

	_, pressed := in.pressedKeys[code]
	in.mu.Unlock()

	if pressed {
		return nil
	}

	return in.keyDown(msg.KeyButton)
}

func (in *Injector) HandleKeyUp(msg *wire.KeyUp) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	code := keymap.ToLocal(msg.KeyButton)
	if code == keymap.NoMapping {
		return nil
	}

	if err := in.be.Keyboard().Key(code, false); err != nil {
		return err //nolint:wrapcheck
	}

	delete(in.pressedKeys, code)

	return in.syncLocked()
}

// CurrentInfo refreshes the geometry probe and reports the current screen
// size and logical cursor, for the QINF -> DINF reply built in the session
// package.
func (in *Injector) CurrentInfo() (width, height uint16, mouseX, mouseY int16) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.ensureGeometry()

	return uint16(in.screen.Width()), uint16(in.screen.Height()), int16(in.logicalX), int16(in.logicalY)
}

// Shutdown drains pressed sets and closes both virtual devices, the
// Injector's half of the "scopes the two virtual devices identically"
// resource-ownership rule in §5.
func (in *Injector) Shutdown() {
	in.mu.Lock()
	_ = in.drainPressedLocked() //nolint:errcheck
	in.mu.Unlock()

	if err := in.be.Mouse().Close(); err != nil {
		in.log.Warnf("closing mouse device: %v", err)
	}

	if err := in.be.Keyboard().Close(); err != nil {
		in.log.Warnf("closing keyboard device: %v", err)
	}
}

func (in *Injector) syncLocked() error {
	if err := in.be.Mouse().Sync(); err != nil {
		return err //nolint:wrapcheck
	}

	return in.be.Keyboard().Sync() //nolint:wrapcheck
}

// syncModifiersLocked implements §4.5's modifier synchronization: Lock keys
// are compared against the real LED state and tapped on mismatch; the
// remaining modifiers are XORed against the target mask and toggled bit by
// bit.
func (in *Injector) syncModifiersLocked(target uint16) error {
	leds := in.be.LEDs()

	if err := in.syncLockKeyLocked(leds.CapsLockOn, target&ModCapsLock != 0, 0x39); err != nil {
		return err
	}

	if err := in.syncLockKeyLocked(leds.NumLockOn, target&ModNumLock != 0, 0x53); err != nil {
		return err
	}

	if err := in.syncLockKeyLocked(leds.ScrollLockOn, target&ModScrollLock != 0, 0x47); err != nil {
		return err
	}

	nonLockMask := ModShift | ModCtrl | ModAlt | ModMeta | ModSuper | ModAltGr | ModLevel5Lock
	changed := (in.currentModifiers ^ target) & nonLockMask

	for _, bit := range []uint16{ModShift, ModCtrl, ModAlt, ModMeta, ModSuper, ModAltGr, ModLevel5Lock} {
		if changed&bit == 0 {
			continue
		}

		down := target&bit != 0
		code := modifierHIDCode(bit)

		if err := in.be.Keyboard().Key(code, down); err != nil {
			return err //nolint:wrapcheck
		}
	}

	in.currentModifiers = target

	return nil
}

func (in *Injector) syncLockKeyLocked(ledState func() (bool, error), wantOn bool, hidCode uint16) error {
	on, err := ledState()
	if err != nil {
		return err //nolint:wrapcheck
	}

	if on == wantOn {
		return nil
	}

	local := hidToLocalOrSelf(hidCode)

	if err := in.be.Keyboard().Key(local, true); err != nil {
		return err //nolint:wrapcheck
	}

	return in.be.Keyboard().Key(local, false) //nolint:wrapcheck
}

// hidToLocalOrSelf is a tiny adapter: the Lock-key HID codes above are
// already listed in keymap's hidToLocal table via synergy codes, but Lock
// taps are issued from raw HID codes directly (there is no incoming
// synergy key_button for a LED-mismatch correction), so this resolves
// straight from HID to local scancode.
func hidToLocalOrSelf(hid uint16) uint16 {
	switch hid {
	case 0x39:
		return 58 // KEY_CAPSLOCK
	case 0x53:
		return 69 // KEY_NUMLOCK
	case 0x47:
		return 70 // KEY_SCROLLLOCK
	default:
		return hid
	}
}

func modifierHIDCode(bit uint16) uint16 {
	switch bit {
	case ModShift:
		return 42 // KEY_LEFTSHIFT
	case ModCtrl:
		return 29 // KEY_LEFTCTRL
	case ModAlt:
		return 56 // KEY_LEFTALT
	case ModAltGr:
		return 100 // KEY_RIGHTALT
	case ModMeta, ModSuper:
		return 125 // KEY_LEFTMETA
	case ModLevel5Lock:
		return 0x42 // ISO_Level5_Shift, no common evdev code; left as HID usage.
	default:
		return keymap.NoMapping
	}
}
