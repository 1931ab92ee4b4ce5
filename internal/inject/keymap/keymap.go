// Package keymap translates protocol-level key and button identifiers into
// Linux evdev scancodes through the Synergy -> HID usage -> local scancode
// chain named in §4.5. All three tables are pure, total functions over
// uint16 with an explicit sentinel for "no mapping" -- §3's "compiled at
// build time" immutable lookup tables.
package keymap

// NoMapping is returned by every table lookup below when the input has no
// known translation. Callers must check for it rather than emitting a
// garbage scancode.
const NoMapping uint16 = 0xFFFF

// synergyToHID maps a synergy key_button (or, for mouse buttons, the
// synthetic (button<<8)|0xAA encoding used by the original client) to a USB
// HID usage ID. Grounded on
// original_source/src/pynergy_client/keymaps/synergy_map.py's synergy_to_hid
// table -- only the common US-layout subset plus the three mouse buttons is
// reproduced here; an unrecognised code yields NoMapping rather than a
// guess.
var synergyToHID = map[uint16]uint16{
	// Letters (Synergy key IDs 0x0061-0x007A map 'a'-'z'; physical
	// key_button values below follow the X11 keysym-derived scancodes the
	// original table uses for the common QWERTY row).
	0x0026: 0x04, // a
	0x0038: 0x05, // b
	0x0036: 0x06, // c
	0x0028: 0x07, // d
	0x001A: 0x08, // e
	0x0029: 0x09, // f
	0x002A: 0x0A, // g
	0x002B: 0x0B, // h
	0x001F: 0x0C, // i
	0x002C: 0x0D, // j
	0x002D: 0x0E, // k
	0x002E: 0x0F, // l
	0x003A: 0x10, // m
	0x0039: 0x11, // n
	0x0020: 0x12, // o
	0x0021: 0x13, // p
	0x0018: 0x14, // q
	0x001B: 0x15, // r
	0x0027: 0x16, // s
	0x001C: 0x17, // t
	0x001E: 0x18, // u
	0x0037: 0x19, // v
	0x0019: 0x1A, // w
	0x0035: 0x1B, // x
	0x001D: 0x1C, // y
	0x0034: 0x1D, // z

	0x000A: 0x1E, // 1
	0x000B: 0x1F, // 2
	0x000C: 0x20, // 3
	0x000D: 0x21, // 4
	0x000E: 0x22, // 5
	0x000F: 0x23, // 6
	0x0010: 0x24, // 7
	0x0011: 0x25, // 8
	0x0012: 0x26, // 9
	0x0013: 0x27, // 0

	0x0024: 0x28, // Enter
	0x0009: 0x29, // Escape
	0x0016: 0x2A, // Backspace
	0x0017: 0x2B, // Tab
	0x0041: 0x2C, // Space

	0x0032: 0xE1, // Left Shift
	0x003E: 0xE5, // Right Shift
	0x0025: 0xE0, // Left Control
	0x0069: 0xE4, // Right Control
	0x0040: 0xE2, // Left Alt
	0x006C: 0xE6, // Right Alt (AltGr)
	0x0085: 0xE3, // Left Super/Meta
	0x0086: 0xE7, // Right Super/Meta

	0x0042: 0x39, // Caps Lock
	0x004D: 0x53, // Num Lock
	0x004E: 0x47, // Scroll Lock

	0x6F: 0x52, // Up
	0x74: 0x51, // Down
	0x71: 0x50, // Left
	0x72: 0x4F, // Right

	// Mouse buttons, encoded by the protocol handler as (button<<8)|0xAA.
	0x01AA: 0x101, // left
	0x02AA: 0x102, // right
	0x03AA: 0x103, // middle
}

// hidToLocal maps a USB HID usage ID to a Linux evdev KEY_*/BTN_* code
// (what the original calls ecode). Grounded on the same
// keymaps/ecode_map.py chain referenced by handlers.py's
// `hid_to_ecode(synergy_to_hid(...))` composition.
var hidToLocal = map[uint16]uint16{
	0x04: 30, 0x05: 48, 0x06: 46, 0x07: 32, 0x08: 18, 0x09: 33, 0x0A: 34,
	0x0B: 35, 0x0C: 23, 0x0D: 36, 0x0E: 37, 0x0F: 38, 0x10: 50, 0x11: 49,
	0x12: 24, 0x13: 25, 0x14: 16, 0x15: 19, 0x16: 31, 0x17: 20, 0x18: 22,
	0x19: 47, 0x1A: 17, 0x1B: 45, 0x1C: 21, 0x1D: 44,

	0x1E: 2, 0x1F: 3, 0x20: 4, 0x21: 5, 0x22: 6, 0x23: 7, 0x24: 8, 0x25: 9,
	0x26: 10, 0x27: 11,

	0x28: 28, // KEY_ENTER
	0x29: 1,  // KEY_ESC
	0x2C: 57, // KEY_SPACE
	0x2A: 14, // KEY_BACKSPACE
	0x2B: 15, // KEY_TAB

	0xE0: 29,  // KEY_LEFTCTRL
	0xE1: 42,  // KEY_LEFTSHIFT
	0xE2: 56,  // KEY_LEFTALT
	0xE3: 125, // KEY_LEFTMETA
	0xE4: 97,  // KEY_RIGHTCTRL
	0xE5: 54,  // KEY_RIGHTSHIFT
	0xE6: 100, // KEY_RIGHTALT
	0xE7: 126, // KEY_RIGHTMETA

	0x39: 58,  // KEY_CAPSLOCK
	0x53: 69,  // KEY_NUMLOCK
	0x47: 70,  // KEY_SCROLLLOCK
	0x52: 103, // KEY_UP
	0x51: 108, // KEY_DOWN
	0x50: 105, // KEY_LEFT
	0x4F: 106, // KEY_RIGHT

	0x101: 0x110, // BTN_LEFT
	0x102: 0x111, // BTN_RIGHT
	0x103: 0x112, // BTN_MIDDLE
}

// ToLocal composes synergy_keyid -> hid_usage -> local_scancode in one
// call, returning NoMapping if either hop is missing -- the form every
// Injector handler actually uses.
func ToLocal(synergyCode uint16) uint16 {
	hid, ok := synergyToHID[synergyCode]
	if !ok {
		return NoMapping
	}

	local, ok := hidToLocal[hid]
	if !ok {
		return NoMapping
	}

	return local
}

// MouseButtonToLocal translates a raw protocol mouse button (1=left,
// 2=right, 3=middle) via the same (button<<8)|0xAA encoding the original
// client's handler uses before the table lookup.
func MouseButtonToLocal(button uint8) uint16 {
	return ToLocal((uint16(button) << 8) | 0xAA)
}

// reverseLocalToSynergy is built lazily, used only by tests to assert the
// forward tables are injective over the subset they cover.
func reverseLocalToSynergy() map[uint16]uint16 {
	hidToSynergy := make(map[uint16]uint16, len(synergyToHID))
	for syn, hid := range synergyToHID {
		hidToSynergy[hid] = syn
	}

	localToSynergy := make(map[uint16]uint16, len(hidToLocal))

	for hid, local := range hidToLocal {
		if syn, ok := hidToSynergy[hid]; ok {
			localToSynergy[local] = syn
		}
	}

	return localToSynergy
}
