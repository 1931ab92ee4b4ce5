package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jrhodes/barrierscreen/internal/wire"
)

// genMessage draws an arbitrary finite-field message of a random variant.
// VarString-carrying variants are covered by TestRoundTripVarString below so
// its generator can draw arbitrary UTF-8; the Raw-carrying variants
// (DSOP/DDRG/DFTR) are not generated here.
func genMessage(t *rapid.T) wire.Message { //nolint:ireturn
	pick := rapid.IntRange(0, 19).Draw(t, "variant")

	switch pick {
	case 0:
		return &wire.ClipboardGrab{ID: rapid.Byte().Draw(t, "id"), Sequence: rapid.Uint32().Draw(t, "seq")}
	case 1:
		return &wire.Close{}
	case 2:
		return &wire.Enter{
			X: rapid.Int16().Draw(t, "x"), Y: rapid.Int16().Draw(t, "y"),
			Sequence: rapid.Uint32().Draw(t, "seq"), Mods: rapid.Uint16().Draw(t, "mods"),
		}
	case 3:
		return &wire.InfoAck{}
	case 4:
		return &wire.KeepAlive{}
	case 5:
		return &wire.Leave{}
	case 6:
		return &wire.Noop{}
	case 7:
		return &wire.ResetOptions{}
	case 8:
		return &wire.ScreenSaver{State: rapid.Bool().Draw(t, "state")}
	case 9:
		return &wire.KeyDown{
			KeyID: rapid.Uint16().Draw(t, "keyid"), Mods: rapid.Uint16().Draw(t, "mods"),
			KeyButton: rapid.Uint16().Draw(t, "button"),
		}
	case 10:
		return &wire.KeyUp{
			KeyID: rapid.Uint16().Draw(t, "keyid"), Mods: rapid.Uint16().Draw(t, "mods"),
			KeyButton: rapid.Uint16().Draw(t, "button"),
		}
	case 11:
		return &wire.MouseDown{Button: rapid.Byte().Draw(t, "button")}
	case 12:
		return &wire.MouseMove{X: rapid.Int16().Draw(t, "x"), Y: rapid.Int16().Draw(t, "y")}
	case 13:
		return &wire.MouseRelMove{DX: rapid.Int16().Draw(t, "dx"), DY: rapid.Int16().Draw(t, "dy")}
	case 14:
		return &wire.MouseUp{Button: rapid.Byte().Draw(t, "button")}
	case 15:
		return &wire.MouseWheel{XDelta: rapid.Int16().Draw(t, "xd"), YDelta: rapid.Int16().Draw(t, "yd")}
	case 16:
		return &wire.Info{
			Left: rapid.Int16().Draw(t, "left"), Top: rapid.Int16().Draw(t, "top"),
			Width: rapid.Uint16().Draw(t, "w"), Height: rapid.Uint16().Draw(t, "h"),
			MouseX: rapid.Int16().Draw(t, "mx"), MouseY: rapid.Int16().Draw(t, "my"),
		}
	case 17:
		return &wire.QueryInfo{}
	case 18:
		return &wire.ProtocolError{}
	default:
		return &wire.IncompatibleVersion{Major: rapid.Uint16().Draw(t, "major"), Minor: rapid.Uint16().Draw(t, "minor")}
	}
}

// TestRoundTripFiniteFields is the §8 "Round-trip" property: for every
// concrete variant with only finite fields, decode(encode(m)) == m.
func TestRoundTripFiniteFields(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		want := genMessage(t)
		payload := wire.Encode(want)

		got, trailing, err := wire.Decode(payload)
		require.NoError(t, err)
		assert.Nil(t, trailing)
		assert.Equal(t, want, got)
	})
}

// TestRoundTripVarString covers the VarString-carrying variants for
// arbitrary UTF-8 inputs, including the empty string (4-byte length = 0).
func TestRoundTripVarString(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")

		cases := []wire.Message{
			&wire.LanguageSync{Langs: s},
			&wire.SecureInput{App: s},
			&wire.HelloBack{ProtocolName: wire.ProtocolBarrier, Major: 1, Minor: 8, Name: s},
			&wire.ClipboardData{ID: 0, Sequence: 1, Flag: 0, Data: s},
			&wire.KeyDownLang{KeyID: 1, Mods: 0, KeyButton: 2, Lang: s},
			&wire.KeyRepeat{KeyID: 1, Mods: 0, Repeat: 1, KeyButton: 2, Lang: s},
		}

		for _, want := range cases {
			if hb, ok := want.(*wire.HelloBack); ok {
				payload := wire.EncodeHandshake(hb)
				got, err := wire.DecodeHelloBack(payload)
				require.NoError(t, err)
				assert.Equal(t, hb, got)

				continue
			}

			payload := wire.Encode(want)
			got, trailing, err := wire.Decode(payload)
			require.NoError(t, err)
			assert.Nil(t, trailing)
			assert.Equal(t, want, got)
		}
	})
}

func TestHelloRoundTrip(t *testing.T) {
	for _, name := range []string{wire.ProtocolSynergy, wire.ProtocolBarrier, wire.ProtocolDeskflow} {
		hello := &wire.Hello{ProtocolName: name, Major: 1, Minor: 8}
		payload := wire.EncodeHandshake(hello)

		got, err := wire.DecodeHello(payload)
		require.NoError(t, err)
		assert.Equal(t, hello, got)
	}
}

// TestHandshakeInvariant: a Hello whose protocol name is not one of the
// three recognised names (NUL-padded to 7) is rejected.
func TestHandshakeInvariant(t *testing.T) {
	w := wire.NewWriter()
	w.WriteFixedString("Unknown", 7)
	w.WriteU16(1)
	w.WriteU16(0)

	_, err := wire.DecodeHello(w.Bytes())
	require.ErrorIs(t, err, wire.ErrBadHandshake)
}

func TestEndToEndHandshakeBytes(t *testing.T) {
	// Scenario 1 from §8: server sends Hello(Barrier, 1, 8); client replies
	// HelloBack(Barrier, 1, 8, "Pynergy").
	helloPayload := []byte{
		0x42, 0x61, 0x72, 0x72, 0x69, 0x65, 0x72, // "Barrier" fills all 7 name bytes
		0x00, 0x01, 0x00, 0x08,
	}

	hello, err := wire.DecodeHello(helloPayload)
	require.NoError(t, err)
	assert.Equal(t, &wire.Hello{ProtocolName: "Barrier", Major: 1, Minor: 8}, hello)

	reply := &wire.HelloBack{ProtocolName: hello.ProtocolName, Major: hello.Major, Minor: hello.Minor, Name: "Pynergy"}
	got := wire.EncodeHandshake(reply)

	want := []byte{
		0x42, 0x61, 0x72, 0x72, 0x69, 0x65, 0x72,
		0x00, 0x01, 0x00, 0x08,
		0x00, 0x00, 0x00, 0x07, 'P', 'y', 'n', 'e', 'r', 'g', 'y',
	}
	assert.Equal(t, want, got)
}

func TestDecodeUnknownCode(t *testing.T) {
	payload := []byte("ZZZZhello")
	msg, trailing, err := wire.Decode(payload)
	require.NoError(t, err)
	assert.Nil(t, trailing)

	skip, ok := msg.(*wire.Skip)
	require.True(t, ok)
	assert.Equal(t, "ZZZZ", skip.SkipCode)
	assert.Equal(t, []byte("hello"), skip.Payload)
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := wire.Decode([]byte("DM"))
	require.ErrorIs(t, err, wire.ErrTruncated)
}

func TestDecodeTrailingBytesTolerated(t *testing.T) {
	payload := append(wire.Encode(&wire.KeepAlive{}), 0xDE, 0xAD, 0xBE, 0xEF)

	msg, trailing, err := wire.Decode(payload)
	require.NoError(t, err)
	require.NotNil(t, trailing)
	assert.Equal(t, 4, trailing.NBytes)
	assert.IsType(t, &wire.KeepAlive{}, msg)
}

func TestKeepAliveEchoBytes(t *testing.T) {
	// Scenario 2 from §8.
	payload := []byte("CALV")
	msg, trailing, err := wire.Decode(payload)
	require.NoError(t, err)
	assert.Nil(t, trailing)
	assert.IsType(t, &wire.KeepAlive{}, msg)
	assert.Equal(t, payload, wire.Encode(msg))
}
