package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToLocalKnownKey(t *testing.T) {
	// synergy_keyid 0x0026 ('a') -> HID 0x04 -> local scancode 30.
	assert.Equal(t, uint16(30), ToLocal(0x0026))
}

func TestToLocalNoMapping(t *testing.T) {
	assert.Equal(t, NoMapping, ToLocal(0xBEEF))
}

func TestMouseButtonToLocal(t *testing.T) {
	assert.Equal(t, uint16(0x110), MouseButtonToLocal(1))
	assert.Equal(t, uint16(0x111), MouseButtonToLocal(2))
	assert.Equal(t, uint16(0x112), MouseButtonToLocal(3))
}

func TestMouseButtonUnknown(t *testing.T) {
	assert.Equal(t, NoMapping, MouseButtonToLocal(9))
}

// TestTablesAreTotalOverCoveredDomain: every synergy code with a forward
// mapping round-trips through the reverse table built purely for this test,
// confirming the subset covered here has no accidental collisions.
func TestTablesAreTotalOverCoveredDomain(t *testing.T) {
	rev := reverseLocalToSynergy()

	for synCode := range synergyToHID {
		local := ToLocal(synCode)
		if local == NoMapping {
			continue
		}

		got, ok := rev[local]
		if !ok {
			continue
		}

		assert.Equal(t, synCode, got)
	}
}
