package wire

// Message is implemented by every concrete protocol variant. Field order on
// the wire is always the order the type's Encode method writes them, which
// is always the declaration order of the corresponding struct -- see the
// package doc comment.
type Message interface {
	// Code returns the 4-byte wire code, e.g. "DMMV". Handshake variants
	// (Hello/HelloBack) are not dispatched by code and return "".
	Code() string
	encode(w *Writer)
}

// Protocol names accepted in the handshake's 7-byte protocol_name field.
const (
	ProtocolSynergy  = "Synergy"
	ProtocolBarrier  = "Barrier"
	ProtocolDeskflow = "Deskflow"
)

func validProtocolName(name string) bool {
	switch name {
	case ProtocolSynergy, ProtocolBarrier, ProtocolDeskflow:
		return true
	default:
		return false
	}
}

// --- Handshake -------------------------------------------------------------
//
// Hello and HelloBack are the only variants whose first bytes are NOT a
// 4-byte code -- the 7-byte protocol_name field fills that role, NUL-padded.
// They are never looked up in the code table; the Parser's NextHandshake
// picks the variant explicitly.

type Hello struct {
	ProtocolName string
	Major        uint16
	Minor        uint16
}

func (m *Hello) Code() string { return "" }

func (m *Hello) encode(w *Writer) {
	w.WriteFixedString(m.ProtocolName, 7)
	w.WriteU16(m.Major)
	w.WriteU16(m.Minor)
}

func DecodeHello(payload []byte) (*Hello, error) {
	r := NewReader(payload)

	name, err := r.ReadFixedString(7)
	if err != nil {
		return nil, err
	}

	if !validProtocolName(name) {
		return nil, ErrBadHandshake
	}

	major, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	minor, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	return &Hello{ProtocolName: name, Major: major, Minor: minor}, nil
}

type HelloBack struct {
	ProtocolName string
	Major        uint16
	Minor        uint16
	Name         string
}

func (m *HelloBack) Code() string { return "" }

func (m *HelloBack) encode(w *Writer) {
	w.WriteFixedString(m.ProtocolName, 7)
	w.WriteU16(m.Major)
	w.WriteU16(m.Minor)
	w.WriteVarString(m.Name)
}

func DecodeHelloBack(payload []byte) (*HelloBack, error) {
	r := NewReader(payload)

	name, err := r.ReadFixedString(7)
	if err != nil {
		return nil, err
	}

	if !validProtocolName(name) {
		return nil, ErrBadHandshake
	}

	major, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	minor, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	clientName, err := r.ReadVarString()
	if err != nil {
		return nil, err
	}

	return &HelloBack{ProtocolName: name, Major: major, Minor: minor, Name: clientName}, nil
}

// Encode serializes any ordinary (non-handshake) message: 4-byte code
// followed by its fields. Handshake messages are encoded directly by the
// session via their own encode() method, with no code prefix -- use
// EncodeHandshake for those.
func Encode(m Message) []byte {
	w := NewWriter()
	w.WriteCode(m.Code())
	m.encode(w)

	return w.Bytes()
}

// EncodeHandshake serializes Hello or HelloBack without a leading 4-byte
// code, since their first 7 bytes (protocol_name) serve that purpose.
func EncodeHandshake(m Message) []byte {
	w := NewWriter()
	m.encode(w)

	return w.Bytes()
}

// --- Control ----------------------------------------------------------------

type ClipboardGrab struct {
	ID       uint8
	Sequence uint32
}

func (m *ClipboardGrab) Code() string { return "CCLP" }
func (m *ClipboardGrab) encode(w *Writer) {
	w.WriteU8(m.ID)
	w.WriteU32(m.Sequence)
}

type Close struct{}

func (m *Close) Code() string   { return "CBYE" }
func (m *Close) encode(_ *Writer) {}

type Enter struct {
	X        int16
	Y        int16
	Sequence uint32
	Mods     uint16
}

func (m *Enter) Code() string { return "CINN" }
func (m *Enter) encode(w *Writer) {
	w.WriteI16(m.X)
	w.WriteI16(m.Y)
	w.WriteU32(m.Sequence)
	w.WriteU16(m.Mods)
}

type InfoAck struct{}

func (m *InfoAck) Code() string   { return "CIAK" }
func (m *InfoAck) encode(_ *Writer) {}

type KeepAlive struct{}

func (m *KeepAlive) Code() string   { return "CALV" }
func (m *KeepAlive) encode(_ *Writer) {}

type Leave struct{}

func (m *Leave) Code() string   { return "COUT" }
func (m *Leave) encode(_ *Writer) {}

type Noop struct{}

func (m *Noop) Code() string   { return "CNOP" }
func (m *Noop) encode(_ *Writer) {}

type ResetOptions struct{}

func (m *ResetOptions) Code() string   { return "CROP" }
func (m *ResetOptions) encode(_ *Writer) {}

type ScreenSaver struct {
	State bool
}

func (m *ScreenSaver) Code() string { return "CSEC" }
func (m *ScreenSaver) encode(w *Writer) {
	w.WriteBool(m.State)
}

// --- Data: keyboard ----------------------------------------------------------

type KeyDown struct {
	KeyID     uint16
	Mods      uint16
	KeyButton uint16
}

func (m *KeyDown) Code() string { return "DKDN" }
func (m *KeyDown) encode(w *Writer) {
	w.WriteU16(m.KeyID)
	w.WriteU16(m.Mods)
	w.WriteU16(m.KeyButton)
}

// KeyDownLang carries a reserved-for-future-use language code alongside an
// otherwise identical KeyDown. §9: processed identically to KeyDown today.
type KeyDownLang struct {
	KeyID     uint16
	Mods      uint16
	KeyButton uint16
	Lang      string
}

func (m *KeyDownLang) Code() string { return "DKDL" }
func (m *KeyDownLang) encode(w *Writer) {
	w.WriteU16(m.KeyID)
	w.WriteU16(m.Mods)
	w.WriteU16(m.KeyButton)
	w.WriteVarString(m.Lang)
}

type KeyRepeat struct {
	KeyID     uint16
	Mods      uint16
	Repeat    uint16
	KeyButton uint16
	Lang      string
}

func (m *KeyRepeat) Code() string { return "DKRP" }
func (m *KeyRepeat) encode(w *Writer) {
	w.WriteU16(m.KeyID)
	w.WriteU16(m.Mods)
	w.WriteU16(m.Repeat)
	w.WriteU16(m.KeyButton)
	w.WriteVarString(m.Lang)
}

type KeyUp struct {
	KeyID     uint16
	Mods      uint16
	KeyButton uint16
}

func (m *KeyUp) Code() string { return "DKUP" }
func (m *KeyUp) encode(w *Writer) {
	w.WriteU16(m.KeyID)
	w.WriteU16(m.Mods)
	w.WriteU16(m.KeyButton)
}

// --- Data: mouse --------------------------------------------------------------

type MouseDown struct {
	Button uint8
}

func (m *MouseDown) Code() string   { return "DMDN" }
func (m *MouseDown) encode(w *Writer) { w.WriteU8(m.Button) }

type MouseMove struct {
	X int16
	Y int16
}

func (m *MouseMove) Code() string { return "DMMV" }
func (m *MouseMove) encode(w *Writer) {
	w.WriteI16(m.X)
	w.WriteI16(m.Y)
}

type MouseRelMove struct {
	DX int16
	DY int16
}

func (m *MouseRelMove) Code() string { return "DMRM" }
func (m *MouseRelMove) encode(w *Writer) {
	w.WriteI16(m.DX)
	w.WriteI16(m.DY)
}

type MouseUp struct {
	Button uint8
}

func (m *MouseUp) Code() string   { return "DMUP" }
func (m *MouseUp) encode(w *Writer) { w.WriteU8(m.Button) }

type MouseWheel struct {
	XDelta int16
	YDelta int16
}

func (m *MouseWheel) Code() string { return "DMWM" }
func (m *MouseWheel) encode(w *Writer) {
	w.WriteI16(m.XDelta)
	w.WriteI16(m.YDelta)
}

// --- Data: screen / clipboard --------------------------------------------------

type ClipboardData struct {
	ID       uint8
	Sequence uint32
	Flag     uint8
	Data     string
}

func (m *ClipboardData) Code() string { return "DCLP" }
func (m *ClipboardData) encode(w *Writer) {
	w.WriteU8(m.ID)
	w.WriteU32(m.Sequence)
	w.WriteU8(m.Flag)
	w.WriteVarString(m.Data)
}

type Info struct {
	Left   int16
	Top    int16
	Width  uint16
	Height uint16
	Warp   int16 // obsolete; encoded as given (Session always sends 0)
	MouseX int16
	MouseY int16
}

func (m *Info) Code() string { return "DINF" }
func (m *Info) encode(w *Writer) {
	w.WriteI16(m.Left)
	w.WriteI16(m.Top)
	w.WriteU16(m.Width)
	w.WriteU16(m.Height)
	w.WriteI16(m.Warp)
	w.WriteI16(m.MouseX)
	w.WriteI16(m.MouseY)
}

// SetOptions, DragInfo and FileTransfer carry trailing payloads whose length
// is "frame length minus header" -- §4.1 explicitly allows parsing these
// opaquely, which is what we do: Raw holds everything after the code.

type SetOptions struct {
	Raw []byte
}

func (m *SetOptions) Code() string     { return "DSOP" }
func (m *SetOptions) encode(w *Writer) { w.WriteRaw(m.Raw) }

type DragInfo struct {
	Raw []byte
}

func (m *DragInfo) Code() string     { return "DDRG" }
func (m *DragInfo) encode(w *Writer) { w.WriteRaw(m.Raw) }

type FileTransfer struct {
	Raw []byte
}

func (m *FileTransfer) Code() string     { return "DFTR" }
func (m *FileTransfer) encode(w *Writer) { w.WriteRaw(m.Raw) }

type LanguageSync struct {
	Langs string
}

func (m *LanguageSync) Code() string { return "LSYN" }
func (m *LanguageSync) encode(w *Writer) {
	w.WriteVarString(m.Langs)
}

type SecureInput struct {
	App string
}

func (m *SecureInput) Code() string { return "SECN" }
func (m *SecureInput) encode(w *Writer) {
	w.WriteVarString(m.App)
}

// --- Query --------------------------------------------------------------------

type QueryInfo struct{}

func (m *QueryInfo) Code() string   { return "QINF" }
func (m *QueryInfo) encode(_ *Writer) {}

// --- Error ----------------------------------------------------------------------

type ProtocolError struct{}

func (m *ProtocolError) Code() string   { return "EBAD" }
func (m *ProtocolError) encode(_ *Writer) {}

type Busy struct{}

func (m *Busy) Code() string   { return "EBSY" }
func (m *Busy) encode(_ *Writer) {}

type IncompatibleVersion struct {
	Major uint16
	Minor uint16
}

func (m *IncompatibleVersion) Code() string { return "EICV" }
func (m *IncompatibleVersion) encode(w *Writer) {
	w.WriteU16(m.Major)
	w.WriteU16(m.Minor)
}

type Unknown struct{}

func (m *Unknown) Code() string   { return "EUNK" }
func (m *Unknown) encode(_ *Writer) {}

// Skip represents a frame whose 4-byte code did not match any known
// variant. Per the design notes, this is the closed tagged union's
// catch-all arm rather than a decode error -- the dispatcher's default
// handler logs and drops it.
type Skip struct {
	SkipCode string
	Length   int
	Payload  []byte
}

func (m *Skip) Code() string     { return m.SkipCode }
func (m *Skip) encode(w *Writer) { w.WriteRaw(m.Payload) }
