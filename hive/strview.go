package hive

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	xtextunicode "golang.org/x/text/encoding/unicode"

	"github.com/joshuapare/nthive/internal/format"
)

// encodingKind distinguishes the two string encodings a hive uses for
// names: single-byte Latin-1 (the "compressed name" flag) and UTF-16LE.
type encodingKind int

const (
	encodingLatin1 encodingKind = iota
	encodingUTF16LE
)

// StringView is a zero-copy view over a name or string-typed value's raw
// bytes, in whichever of the two on-disk encodings it was stored. It
// supports case-fold comparison (spec §4.4) without decoding into a Go
// string, and a lossy String() conversion for display.
type StringView struct {
	raw []byte
	enc encodingKind
}

func latin1View(b []byte) StringView  { return StringView{raw: b, enc: encodingLatin1} }
func utf16leView(b []byte) StringView { return StringView{raw: b, enc: encodingUTF16LE} }

// Raw returns the undecoded bytes backing this view.
func (s StringView) Raw() []byte { return s.raw }

// foldCodepoints decodes the view into a sequence of code points, folding
// every Basic Multilingual Plane code point to its stable upper-case form
// (code points above U+FFFF are left as-is and compared case-sensitively,
// per spec §4.4). ok is false when a UTF-16LE view contains an invalid
// surrogate sequence; comparisons must then fail rather than substitute a
// replacement character (that substitution is only valid for the lossy
// String() conversion).
func (s StringView) foldCodepoints() (pts []rune, ok bool) {
	if s.enc == encodingLatin1 {
		pts = make([]rune, len(s.raw))
		for i, b := range s.raw {
			pts[i] = foldRune(rune(b))
		}
		return pts, true
	}

	n := len(s.raw)
	if n%2 != 0 {
		return nil, false
	}
	pts = make([]rune, 0, n/2)
	for i := 0; i < n; i += 2 {
		u := uint16(s.raw[i]) | uint16(s.raw[i+1])<<8
		switch {
		case u < format.UTF16HighSurrogateStart || u > format.UTF16LowSurrogateEnd:
			pts = append(pts, foldRune(rune(u)))
		case u <= format.UTF16HighSurrogateEnd:
			// High surrogate: must be followed by a low surrogate.
			if i+4 > n {
				return nil, false
			}
			lo := uint16(s.raw[i+2]) | uint16(s.raw[i+3])<<8
			if lo < format.UTF16LowSurrogateStart || lo > format.UTF16LowSurrogateEnd {
				return nil, false
			}
			hi := u
			r := rune(format.UTF16SurrogateBase +
				(int(hi-format.UTF16HighSurrogateStart) << 10) +
				int(lo-format.UTF16LowSurrogateStart))
			pts = append(pts, r) // above BMP: compared case-sensitively, no fold
			i += 2
		default:
			// Lone low surrogate.
			return nil, false
		}
	}
	return pts, true
}

func foldRune(r rune) rune {
	if r > format.UTF16BMPMax {
		return r
	}
	return unicode.ToUpper(r)
}

// Equal reports whether two views denote the same name under the
// case-folding order. An invalid encoded sequence on either side is never
// equal to anything, including another invalid sequence.
func (s StringView) Equal(other StringView) bool {
	a, ok1 := s.foldCodepoints()
	b, ok2 := other.foldCodepoints()
	if !ok1 || !ok2 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Less reports whether s sorts before other under the case-folding order.
// Invalid sequences sort after everything valid (a conservative fallback;
// well-formed hives never hit this case for sorted Leaf entries).
func (s StringView) Less(other StringView) bool {
	a, ok1 := s.foldCodepoints()
	b, ok2 := other.foldCodepoints()
	if !ok1 || !ok2 {
		return ok1 && !ok2
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// String returns a best-effort, lossy Unicode conversion, replacing
// undecodable sequences with U+FFFD. Never used for comparisons.
func (s StringView) String() string {
	if s.enc == encodingLatin1 {
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(s.raw)
		if err != nil {
			return string(s.raw)
		}
		return string(out)
	}

	dec := xtextunicode.UTF16(xtextunicode.LittleEndian, xtextunicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(s.raw)
	if err != nil {
		var b strings.Builder
		b.Grow(len(s.raw))
		for i := 0; i+1 < len(s.raw); i += 2 {
			b.WriteRune('�')
		}
		return b.String()
	}
	return string(out)
}
