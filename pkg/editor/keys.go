package editor

// KeyKind classifies a decoded input key.
type KeyKind int

const (
	KeyRune KeyKind = iota
	KeyEnter
	KeyBackspace
	KeyTab
	KeyCtrlA
	KeyCtrlC
	KeyCtrlD
	KeyCtrlE
	KeyCtrlK
	KeyCtrlU
	KeyCtrlW
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEscape
	KeyOther // unrecognized control byte or escape sequence
)

// Key is one decoded keystroke. Raw holds the original bytes so unhandled
// keys can be forwarded verbatim.
type Key struct {
	Kind KeyKind
	Rune rune
	Raw  []byte
}

// keyDecoder turns a raw byte stream into keys, holding partial escape
// sequences and partial UTF-8 runes across Feed calls.
type keyDecoder struct {
	pending []byte
}

// Feed consumes p and returns the keys completed by it.
func (d *keyDecoder) Feed(p []byte) []Key {
	d.pending = append(d.pending, p...)

	var keys []Key
	for len(d.pending) > 0 {
		key, consumed, ok := d.decodeOne()
		if !ok {
			break // incomplete sequence, wait for more bytes
		}
		keys = append(keys, key)
		d.pending = d.pending[consumed:]
	}
	return keys
}

// Flush returns any buffered partial sequence and clears it. Used on mode
// transitions so no byte in flight is lost.
func (d *keyDecoder) Flush() []byte {
	out := d.pending
	d.pending = nil
	return out
}

func (d *keyDecoder) decodeOne() (Key, int, bool) {
	b := d.pending[0]

	switch b {
	case 0x1b:
		return d.decodeEscape()
	case '\r', '\n':
		return Key{Kind: KeyEnter, Raw: d.pending[:1]}, 1, true
	case 0x7f, 0x08:
		return Key{Kind: KeyBackspace, Raw: d.pending[:1]}, 1, true
	case '\t':
		return Key{Kind: KeyTab, Raw: d.pending[:1]}, 1, true
	case 0x01:
		return Key{Kind: KeyCtrlA, Raw: d.pending[:1]}, 1, true
	case 0x03:
		return Key{Kind: KeyCtrlC, Raw: d.pending[:1]}, 1, true
	case 0x04:
		return Key{Kind: KeyCtrlD, Raw: d.pending[:1]}, 1, true
	case 0x05:
		return Key{Kind: KeyCtrlE, Raw: d.pending[:1]}, 1, true
	case 0x0b:
		return Key{Kind: KeyCtrlK, Raw: d.pending[:1]}, 1, true
	case 0x15:
		return Key{Kind: KeyCtrlU, Raw: d.pending[:1]}, 1, true
	case 0x17:
		return Key{Kind: KeyCtrlW, Raw: d.pending[:1]}, 1, true
	}

	if b < 0x20 {
		return Key{Kind: KeyOther, Raw: d.pending[:1]}, 1, true
	}

	return d.decodeRune()
}

// decodeEscape handles ESC-prefixed sequences. A bare ESC is only reported
// once it is clearly not the start of a longer sequence.
func (d *keyDecoder) decodeEscape() (Key, int, bool) {
	if len(d.pending) == 1 {
		return Key{}, 0, false
	}

	if d.pending[1] != '[' && d.pending[1] != 'O' {
		// ESC followed by an ordinary byte: report the ESC alone.
		return Key{Kind: KeyEscape, Raw: d.pending[:1]}, 1, true
	}

	if len(d.pending) == 2 {
		return Key{}, 0, false
	}

	// CSI: consume parameter bytes until a final byte in 0x40..0x7e.
	end := 2
	for end < len(d.pending) {
		if d.pending[end] >= 0x40 && d.pending[end] <= 0x7e {
			break
		}
		end++
	}
	if end == len(d.pending) {
		return Key{}, 0, false
	}

	raw := d.pending[:end+1]
	if end == 2 {
		switch d.pending[2] {
		case 'A':
			return Key{Kind: KeyUp, Raw: raw}, end + 1, true
		case 'B':
			return Key{Kind: KeyDown, Raw: raw}, end + 1, true
		case 'C':
			return Key{Kind: KeyRight, Raw: raw}, end + 1, true
		case 'D':
			return Key{Kind: KeyLeft, Raw: raw}, end + 1, true
		}
	}
	return Key{Kind: KeyOther, Raw: raw}, end + 1, true
}

// decodeRune decodes one UTF-8 rune, waiting for continuation bytes of a
// multi-byte sequence.
func (d *keyDecoder) decodeRune() (Key, int, bool) {
	b := d.pending[0]

	size := 1
	switch {
	case b&0x80 == 0x00:
		size = 1
	case b&0xe0 == 0xc0:
		size = 2
	case b&0xf0 == 0xe0:
		size = 3
	case b&0xf8 == 0xf0:
		size = 4
	default:
		// stray continuation byte
		return Key{Kind: KeyOther, Raw: d.pending[:1]}, 1, true
	}

	if len(d.pending) < size {
		return Key{}, 0, false
	}

	r := []rune(string(d.pending[:size]))
	if len(r) != 1 {
		return Key{Kind: KeyOther, Raw: d.pending[:size]}, size, true
	}
	return Key{Kind: KeyRune, Rune: r[0], Raw: d.pending[:size]}, size, true
}
