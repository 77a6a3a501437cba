package biff

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// String option flags
const (
	strUncompressed = 0x01
	strPhonetic     = 0x04
	strRichText     = 0x08
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func decodeLatin1(b []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("failed to decode Latin-1: %v", err)
	}
	return string(out), nil
}

func decodeUTF16(b []byte) string {
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(words))
}

// UnpackUnicode decodes a BIFF8 unicode string whose character count is a
// lenlen-byte prefix at pos. It returns the string and the position just
// past it, including any rich text runs and phonetic block.
func UnpackUnicode(data []byte, pos int, lenlen int) (string, int, error) {
	if pos+lenlen > len(data) {
		return "", pos, fmt.Errorf("insufficient data for unicode length")
	}
	var nchars int
	if lenlen == 1 {
		nchars = int(data[pos])
	} else {
		nchars = int(binary.LittleEndian.Uint16(data[pos:]))
	}
	return UnpackUnicodeKnownLen(data, pos+lenlen, nchars)
}

// UnpackUnicodeKnownLen decodes a BIFF8 unicode string body (options byte
// first) of nchars characters.
func UnpackUnicodeKnownLen(data []byte, pos int, nchars int) (string, int, error) {
	if pos >= len(data) {
		if nchars == 0 {
			return "", pos, nil
		}
		return "", pos, fmt.Errorf("insufficient data for unicode options")
	}
	options := data[pos]
	pos++
	var runs, phonetic int
	if options&strRichText != 0 {
		if pos+2 > len(data) {
			return "", pos, fmt.Errorf("insufficient data for richtext")
		}
		runs = int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
	}
	if options&strPhonetic != 0 {
		if pos+4 > len(data) {
			return "", pos, fmt.Errorf("insufficient data for phonetic")
		}
		phonetic = int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	}
	var (
		s   string
		err error
	)
	if options&strUncompressed != 0 {
		if pos+2*nchars > len(data) {
			return "", pos, fmt.Errorf("insufficient data for UTF-16 string")
		}
		s = decodeUTF16(data[pos : pos+2*nchars])
		pos += 2 * nchars
	} else {
		if pos+nchars > len(data) {
			return "", pos, fmt.Errorf("insufficient data for compressed string")
		}
		if s, err = decodeLatin1(data[pos : pos+nchars]); err != nil {
			return "", pos, err
		}
		pos += nchars
	}
	pos += 4*runs + phonetic
	if pos > len(data) {
		return s, len(data), fmt.Errorf("insufficient data for string extras")
	}
	return s, pos, nil
}

// latin1 reports whether every rune of s fits one byte.
func latin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

// stringBody returns the options byte and character bytes of s, compressed
// when possible.
func stringBody(s string) (byte, []byte, int) {
	if latin1(s) {
		b, _ := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
		return 0, b, len(b)
	}
	b, _ := utf16le.NewEncoder().Bytes([]byte(s))
	return strUncompressed, b, len(b) / 2
}

// PackUnicode encodes s as a BIFF8 unicode string with a lenlen-byte
// character count.
func PackUnicode(s string, lenlen int) []byte {
	opts, chars, n := stringBody(s)
	var out []byte
	if lenlen == 1 {
		out = append(out, byte(n))
	} else {
		out = binary.LittleEndian.AppendUint16(out, uint16(n))
	}
	out = append(out, opts)
	return append(out, chars...)
}

// PackUnicodeNoLen encodes s as options byte plus characters and returns
// the character count separately.
func PackUnicodeNoLen(s string) ([]byte, int) {
	opts, chars, n := stringBody(s)
	return append([]byte{opts}, chars...), n
}
