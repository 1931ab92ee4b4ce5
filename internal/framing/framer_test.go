package framing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jrhodes/barrierscreen/internal/framing"
	"github.com/jrhodes/barrierscreen/internal/wire"
)

func TestNextIncompleteLength(t *testing.T) {
	p := framing.NewParser()
	p.Feed([]byte{0x00, 0x00})

	frame, err := p.Next()
	require.NoError(t, err)
	assert.Nil(t, frame)
}

func TestNextIncompletePayload(t *testing.T) {
	p := framing.NewParser()
	p.Feed(framing.EncodeFrame(wire.Encode(&wire.KeepAlive{}))[:6])

	frame, err := p.Next()
	require.NoError(t, err)
	assert.Nil(t, frame)
}

func TestNextSingleFrame(t *testing.T) {
	p := framing.NewParser()
	p.Feed(framing.EncodeFrame(wire.Encode(&wire.KeepAlive{})))

	frame, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, []byte("CALV"), frame.Payload)

	frame, err = p.Next()
	require.NoError(t, err)
	assert.Nil(t, frame)
}

// TestNextByteAtATime feeds one byte at a time to make sure Next only
// surfaces a frame once every one of its bytes has arrived.
func TestNextByteAtATime(t *testing.T) {
	raw := framing.EncodeFrame(wire.Encode(&wire.Enter{X: 1, Y: 2, Sequence: 3, Mods: 4}))

	p := framing.NewParser()

	var got *framing.Frame

	for i := 0; i < len(raw); i++ {
		p.Feed(raw[i : i+1])

		frame, err := p.Next()
		require.NoError(t, err)

		if frame != nil {
			got = frame
		}
	}

	require.NotNil(t, got)
	assert.Equal(t, raw[4:], got.Payload)
}

func TestNextMultipleFramesBuffered(t *testing.T) {
	p := framing.NewParser()
	p.Feed(framing.EncodeFrame(wire.Encode(&wire.Noop{})))
	p.Feed(framing.EncodeFrame(wire.Encode(&wire.KeepAlive{})))

	first, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, []byte("CNOP"), first.Payload)

	second, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, []byte("CALV"), second.Payload)

	third, err := p.Next()
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestOversizeFrameFlushesBuffer(t *testing.T) {
	p := framing.NewParser()

	oversize := make([]byte, 4)
	oversize[0] = 0xFF // length field far beyond MaxFrameLength
	p.Feed(oversize)
	p.Feed([]byte("trailing garbage that should also be discarded"))

	_, err := p.Next()
	require.ErrorIs(t, err, framing.ErrOversizeFrame)

	// Buffer was cleared -- feeding a legitimate frame afterwards resyncs.
	p.Feed(framing.EncodeFrame(wire.Encode(&wire.KeepAlive{})))

	frame, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, []byte("CALV"), frame.Payload)
}

func TestNextHandshakeHello(t *testing.T) {
	p := framing.NewParser()
	hello := &wire.Hello{ProtocolName: wire.ProtocolBarrier, Major: 1, Minor: 8}
	p.Feed(framing.EncodeFrame(wire.EncodeHandshake(hello)))

	msg, err := p.NextHandshake(framing.HandshakeHello)
	require.NoError(t, err)
	assert.Equal(t, hello, msg)
}

func TestNextHandshakeHelloBack(t *testing.T) {
	p := framing.NewParser()
	reply := &wire.HelloBack{ProtocolName: wire.ProtocolBarrier, Major: 1, Minor: 8, Name: "Pynergy"}
	p.Feed(framing.EncodeFrame(wire.EncodeHandshake(reply)))

	msg, err := p.NextHandshake(framing.HandshakeHelloBack)
	require.NoError(t, err)
	assert.Equal(t, reply, msg)
}

// TestFeedNextRoundTrip: arbitrary sequences of encoded frames, delivered in
// arbitrarily-sized chunks, always come back out in order and unmodified.
func TestFeedNextRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")

		var all []byte

		want := make([][]byte, 0, n)

		for i := 0; i < n; i++ {
			payload := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "payload")
			want = append(want, payload)
			all = append(all, framing.EncodeFrame(payload)...)
		}

		p := framing.NewParser()

		chunk := rapid.IntRange(1, 7).Draw(t, "chunk")

		for len(all) > 0 {
			end := chunk
			if end > len(all) {
				end = len(all)
			}

			p.Feed(all[:end])
			all = all[end:]
		}

		for _, w := range want {
			frame, err := p.Next()
			require.NoError(t, err)
			require.NotNil(t, frame)
			assert.Equal(t, w, frame.Payload)
		}

		frame, err := p.Next()
		require.NoError(t, err)
		assert.Nil(t, frame)
	})
}
