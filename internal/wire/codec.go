package wire

// Decode dispatches on the payload's first 4 bytes (the message code) and
// decodes the matching variant. Trailing bytes after a known variant's
// fields are tolerated and reported via the returned *TrailingBytes rather
// than an error, per §4.1. An unrecognised code yields a *Skip and
// ErrUnknownCode is never used here -- the caller (dispatch) treats Skip as
// the "unknown code" arm directly, since a length-prefixed frame was
// nonetheless validly extracted.
func Decode(payload []byte) (Message, *TrailingBytes, error) {
	r := NewReader(payload)

	code, err := r.ReadCode()
	if err != nil {
		return nil, nil, err
	}

	msg, err := decodeBody(code, r)
	if err != nil {
		return nil, nil, err
	}

	if rem := r.Remaining(); rem > 0 {
		return msg, &TrailingBytes{Code: code, NBytes: rem}, nil
	}

	return msg, nil, nil
}

func decodeBody(code string, r *Reader) (Message, error) { //nolint:cyclop
	switch code {
	case "CCLP":
		id, err := r.ReadU8()
		if err != nil {
			return nil, err
		}

		seq, err := r.ReadU32()
		if err != nil {
			return nil, err
		}

		return &ClipboardGrab{ID: id, Sequence: seq}, nil

	case "CBYE":
		return &Close{}, nil

	case "CINN":
		x, err := r.ReadI16()
		if err != nil {
			return nil, err
		}

		y, err := r.ReadI16()
		if err != nil {
			return nil, err
		}

		seq, err := r.ReadU32()
		if err != nil {
			return nil, err
		}

		mods, err := r.ReadU16()
		if err != nil {
			return nil, err
		}

		return &Enter{X: x, Y: y, Sequence: seq, Mods: mods}, nil

	case "CIAK":
		return &InfoAck{}, nil

	case "CALV":
		return &KeepAlive{}, nil

	case "COUT":
		return &Leave{}, nil

	case "CNOP":
		return &Noop{}, nil

	case "CROP":
		return &ResetOptions{}, nil

	case "CSEC":
		state, err := r.ReadBool()
		if err != nil {
			return nil, err
		}

		return &ScreenSaver{State: state}, nil

	case "DKDN":
		return decodeKeyDown(r)
	case "DKDL":
		return decodeKeyDownLang(r)
	case "DKRP":
		return decodeKeyRepeat(r)
	case "DKUP":
		return decodeKeyUp(r)

	case "DMDN":
		b, err := r.ReadU8()
		if err != nil {
			return nil, err
		}

		return &MouseDown{Button: b}, nil

	case "DMMV":
		x, err := r.ReadI16()
		if err != nil {
			return nil, err
		}

		y, err := r.ReadI16()
		if err != nil {
			return nil, err
		}

		return &MouseMove{X: x, Y: y}, nil

	case "DMRM":
		dx, err := r.ReadI16()
		if err != nil {
			return nil, err
		}

		dy, err := r.ReadI16()
		if err != nil {
			return nil, err
		}

		return &MouseRelMove{DX: dx, DY: dy}, nil

	case "DMUP":
		b, err := r.ReadU8()
		if err != nil {
			return nil, err
		}

		return &MouseUp{Button: b}, nil

	case "DMWM":
		xd, err := r.ReadI16()
		if err != nil {
			return nil, err
		}

		yd, err := r.ReadI16()
		if err != nil {
			return nil, err
		}

		return &MouseWheel{XDelta: xd, YDelta: yd}, nil

	case "DCLP":
		return decodeClipboardData(r)

	case "DINF":
		return decodeInfo(r)

	case "DSOP":
		return &SetOptions{Raw: r.Rest()}, nil
	case "DDRG":
		return &DragInfo{Raw: r.Rest()}, nil
	case "DFTR":
		return &FileTransfer{Raw: r.Rest()}, nil

	case "LSYN":
		langs, err := r.ReadVarString()
		if err != nil {
			return nil, err
		}

		return &LanguageSync{Langs: langs}, nil

	case "SECN":
		app, err := r.ReadVarString()
		if err != nil {
			return nil, err
		}

		return &SecureInput{App: app}, nil

	case "QINF":
		return &QueryInfo{}, nil

	case "EBAD":
		return &ProtocolError{}, nil
	case "EBSY":
		return &Busy{}, nil

	case "EICV":
		major, err := r.ReadU16()
		if err != nil {
			return nil, err
		}

		minor, err := r.ReadU16()
		if err != nil {
			return nil, err
		}

		return &IncompatibleVersion{Major: major, Minor: minor}, nil

	case "EUNK":
		return &Unknown{}, nil

	default:
		payload := r.Rest()

		return &Skip{SkipCode: code, Length: len(payload) + 4, Payload: payload}, nil
	}
}

func decodeKeyDown(r *Reader) (Message, error) {
	keyID, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	mods, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	button, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	return &KeyDown{KeyID: keyID, Mods: mods, KeyButton: button}, nil
}

func decodeKeyDownLang(r *Reader) (Message, error) {
	keyID, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	mods, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	button, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	lang, err := r.ReadVarString()
	if err != nil {
		return nil, err
	}

	return &KeyDownLang{KeyID: keyID, Mods: mods, KeyButton: button, Lang: lang}, nil
}

func decodeKeyRepeat(r *Reader) (Message, error) {
	keyID, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	mods, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	repeat, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	button, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	lang, err := r.ReadVarString()
	if err != nil {
		return nil, err
	}

	return &KeyRepeat{KeyID: keyID, Mods: mods, Repeat: repeat, KeyButton: button, Lang: lang}, nil
}

func decodeKeyUp(r *Reader) (Message, error) {
	keyID, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	mods, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	button, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	return &KeyUp{KeyID: keyID, Mods: mods, KeyButton: button}, nil
}

func decodeClipboardData(r *Reader) (Message, error) {
	id, err := r.ReadU8()
	if err != nil {
		return nil, err
	}

	seq, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	flag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}

	data, err := r.ReadVarString()
	if err != nil {
		return nil, err
	}

	return &ClipboardData{ID: id, Sequence: seq, Flag: flag, Data: data}, nil
}

func decodeInfo(r *Reader) (Message, error) {
	left, err := r.ReadI16()
	if err != nil {
		return nil, err
	}

	top, err := r.ReadI16()
	if err != nil {
		return nil, err
	}

	width, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	height, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	warp, err := r.ReadI16()
	if err != nil {
		return nil, err
	}

	mx, err := r.ReadI16()
	if err != nil {
		return nil, err
	}

	my, err := r.ReadI16()
	if err != nil {
		return nil, err
	}

	return &Info{Left: left, Top: top, Width: width, Height: height, Warp: warp, MouseX: mx, MouseY: my}, nil
}
