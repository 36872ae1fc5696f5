package bytestr

import (
	"github.com/pkg/errors"
)

// ErrInvalidEscape is returned when a %XX escape holds a non-hex digit.
var ErrInvalidEscape = errors.New("bytestr: invalid percent escape")

// hexValue returns the value of a hex digit, or -1
func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return -1
}

// PercentDecode decodes %XX escapes left to right.
//
// A '%' that is not followed by two more bytes is copied literally. A '%'
// followed by two bytes that are not both hex digits yields ErrInvalidEscape.
func (s String) PercentDecode() (String, error) {
	out := make([]byte, 0, len(s.buf))
	for i := 0; i < len(s.buf); i++ {
		c := s.buf[i]
		if c != '%' || i+2 >= len(s.buf) {
			out = append(out, c)
			continue
		}
		hi, lo := hexValue(s.buf[i+1]), hexValue(s.buf[i+2])
		if hi < 0 || lo < 0 {
			return String{}, errors.Wrapf(ErrInvalidEscape, "offset %d: %q", i, s.buf[i:i+3])
		}
		out = append(out, byte(hi<<4|lo))
		i += 2
	}
	return String{buf: out}, nil
}
