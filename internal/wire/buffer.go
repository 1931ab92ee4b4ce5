// Package wire implements the Barrier/Synergy/Deskflow message codec: a
// declarative field schema per message variant, encoded as length-prefixed,
// big-endian, NUL-padded fixed strings and length-prefixed variable strings.
//
// Field order within a variant is always Go struct declaration order, which
// is always wire declaration order -- there is no runtime reflection here,
// per variant Encode/Decode is a straight-line list of field reads/writes,
// which is the hand-written equivalent of the schema table described in the
// protocol design notes.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Writer accumulates a single message payload (everything after the 4-byte
// frame length prefix, which the framing package owns).
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *Writer) WriteCode(code string) {
	if len(code) != 4 {
		panic(fmt.Sprintf("wire: message code %q is not 4 bytes", code))
	}

	w.buf.WriteString(code)
}

func (w *Writer) WriteU8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *Writer) WriteI8(v int8) {
	w.buf.WriteByte(byte(v))
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteI16(v int16) {
	w.WriteU16(uint16(v))
}

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

// WriteFixedString NUL-pads or truncates s to exactly n bytes. Used only for
// the handshake protocol_name field (n=7).
func (w *Writer) WriteFixedString(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.buf.Write(b)
}

func (w *Writer) WriteVarString(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf.WriteString(s)
}

// WriteRaw appends already-framed bytes verbatim, used by variants whose
// trailing payload (DSOP/DDRG/DFTR) is carried opaquely.
func (w *Writer) WriteRaw(b []byte) {
	w.buf.Write(b)
}

// Reader consumes a single message payload.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports how many unconsumed bytes are left in the payload.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Rest returns (and consumes) every byte not yet read.
func (r *Reader) Rest() []byte {
	b := r.data[r.pos:]
	r.pos = len(r.data)

	return b
}

func (r *Reader) require(n int) error {
	if r.Remaining() < n {
		return ErrTruncated
	}

	return nil
}

func (r *Reader) ReadCode() (string, error) {
	if err := r.require(4); err != nil {
		return "", err
	}

	code := string(r.data[r.pos : r.pos+4])
	r.pos += 4

	return code, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}

	v := r.data[r.pos]
	r.pos++

	return v, nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()

	return int8(v), err
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()

	return v != 0, err
}

func (r *Reader) ReadU16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}

	v := binary.BigEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2

	return v, nil
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()

	return int16(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}

	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4

	return v, nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()

	return int32(v), err
}

// ReadFixedString reads exactly n bytes and strips trailing NUL padding.
func (r *Reader) ReadFixedString(n int) (string, error) {
	if err := r.require(n); err != nil {
		return "", err
	}

	b := r.data[r.pos : r.pos+n]
	r.pos += n

	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}

	return string(b[:end]), nil
}

func (r *Reader) ReadVarString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}

	if err := r.require(int(n)); err != nil {
		return "", err
	}

	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)

	if !utf8.Valid(b) {
		return "", ErrBadEncoding
	}

	return string(b), nil
}
