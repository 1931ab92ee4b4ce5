// Package framing turns a raw byte stream into the sequence of (code,
// payload) pairs the protocol layers above it consume. It owns exactly one
// concern: where does one frame end and the next begin.
package framing

import (
	"encoding/binary"
	"errors"

	"github.com/jrhodes/barrierscreen/internal/wire"
)

// MaxFrameLength is the anti-OOM guard from §4.2: any declared length over
// 10 MiB is assumed to come from a hostile or wedged peer, since there is no
// way to resynchronise a byte stream once a garbage length has been taken at
// face value.
const MaxFrameLength = 10 * 1024 * 1024

// ErrOversizeFrame is reported when a frame's declared length exceeds
// MaxFrameLength. The Parser's internal buffer is cleared before this is
// returned -- recovery is impossible without discarding everything buffered
// so far.
var ErrOversizeFrame = errors.New("framing: frame exceeds maximum length")

// Frame is one fully-buffered, length-delimited unit: the payload begins
// with either a 4-byte message code or (handshake only) the 7-byte protocol
// name.
type Frame struct {
	Payload []byte
}

// Parser accumulates stream bytes and extracts complete frames. It is not
// safe for concurrent use -- the session's single read-loop goroutine owns
// it (see §5, Concurrency & Resource Model).
type Parser struct {
	buf []byte
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed appends newly-read stream bytes to the internal buffer.
func (p *Parser) Feed(b []byte) {
	p.buf = append(p.buf, b...)
}

// Next returns the oldest complete frame if one is fully buffered, nil if
// more bytes are needed, or an error if the buffer starts with a malformed
// length. Every successful call consumes exactly 4+L bytes; on a malformed
// frame whose length is itself valid, those 4+L bytes are still consumed --
// a whole frame is always either delivered or discarded, never left
// half-consumed.
func (p *Parser) Next() (*Frame, error) {
	if len(p.buf) < 4 {
		return nil, nil //nolint:nilnil
	}

	length := binary.BigEndian.Uint32(p.buf[:4])

	if length > MaxFrameLength {
		p.buf = nil

		return nil, ErrOversizeFrame
	}

	total := 4 + int(length)
	if len(p.buf) < total {
		return nil, nil //nolint:nilnil
	}

	payload := make([]byte, length)
	copy(payload, p.buf[4:total])
	p.buf = p.buf[total:]

	return &Frame{Payload: payload}, nil
}

// HandshakeKind selects which handshake variant NextHandshake decodes,
// bypassing the normal code-based dispatch -- handshake frames carry no
// 4-byte code, so the caller must say which one it expects.
type HandshakeKind int

const (
	HandshakeHello HandshakeKind = iota
	HandshakeHelloBack
)

// NextHandshake reads one frame (the same consumption rule as Next applies)
// and decodes it as the requested handshake variant regardless of its
// content. This is the only place the variant is chosen by the caller
// rather than by the first 4 payload bytes.
func (p *Parser) NextHandshake(kind HandshakeKind) (wire.Message, error) {
	frame, err := p.Next()
	if err != nil {
		return nil, err
	}

	if frame == nil {
		return nil, nil //nolint:nilnil
	}

	switch kind {
	case HandshakeHello:
		return wire.DecodeHello(frame.Payload)
	case HandshakeHelloBack:
		return wire.DecodeHelloBack(frame.Payload)
	default:
		return nil, errors.New("framing: unknown handshake kind")
	}
}

// EncodeFrame wraps an already-serialized payload (from wire.Encode /
// wire.EncodeHandshake) with its 4-byte big-endian length prefix.
func EncodeFrame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)

	return out
}
