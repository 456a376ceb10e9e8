package cue

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// legacyCharsets are tried in order when the input is not Unicode. The
// first decoding without replacement characters wins.
var legacyCharsets = []struct {
	name string
	enc  encoding.Encoding
}{
	{"windows-1251", charmap.Windows1251},
	{"iso-8859-1", charmap.ISO8859_1},
}

// DecodeText converts raw cuesheet bytes to a string and reports the
// character set it guessed. Cuesheets are commonly written by Windows
// rippers in a legacy code page, so invalid UTF-8 is not an error.
func DecodeText(raw []byte) (text, charset string) {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		if s := raw[len(bomUTF8):]; utf8.Valid(s) {
			return string(s), "utf-8"
		}
	case bytes.HasPrefix(raw, bomUTF16LE):
		if s, ok := decode(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), raw); ok {
			return s, "utf-16le"
		}
	case bytes.HasPrefix(raw, bomUTF16BE):
		if s, ok := decode(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), raw); ok {
			return s, "utf-16be"
		}
	}

	if utf8.Valid(raw) {
		return string(raw), "utf-8"
	}

	for _, cs := range legacyCharsets {
		if s, ok := decode(cs.enc, raw); ok {
			return s, cs.name
		}
	}

	return strings.ToValidUTF8(string(raw), "�"), "utf-8"
}

func decode(enc encoding.Encoding, raw []byte) (string, bool) {
	b, err := enc.NewDecoder().Bytes(raw)
	if err != nil || bytes.ContainsRune(b, utf8.RuneError) {
		return "", false
	}
	return string(b), true
}
