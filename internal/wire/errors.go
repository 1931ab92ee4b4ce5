package wire

import "errors"

// Recoverable decode errors. The framer/parser always consumes the whole
// frame even on error -- these classify *why* decode failed so the session
// can log at the right severity (see internal/consolelog) and decide
// whether to keep the connection open.
var (
	// ErrTruncated means the payload ended before a fixed-width field or a
	// VarString's declared length was satisfied.
	ErrTruncated = errors.New("wire: truncated message")

	// ErrBadEncoding means a VarString field was not valid UTF-8.
	ErrBadEncoding = errors.New("wire: invalid UTF-8 in string field")

	// ErrUnknownCode means the 4-byte code did not match any known variant.
	// Recoverable: the caller should skip this one packet and continue.
	ErrUnknownCode = errors.New("wire: unknown message code")

	// ErrBadHandshake means a Hello/HelloBack's protocol_name field was not
	// one of the recognised protocol names.
	ErrBadHandshake = errors.New("wire: unrecognised handshake protocol name")
)

// TrailingBytes is returned alongside a successfully decoded message when
// bytes remained in the payload after all schema fields were read. This is
// not a failure -- the protocol requires tolerating forward-compatible
// server extensions -- but callers may want to log it.
type TrailingBytes struct {
	Code   string
	NBytes int
}
