// Package bytestr implements a length-tagged byte string.
//
// A String never relies on a terminator byte and may hold embedded zero
// bytes. Every String returned by this package owns its own buffer, so
// mutating one never affects the source it was derived from.
package bytestr

import (
	"github.com/pkg/errors"
)

// ErrIndexOutOfRange is returned when a split index lies beyond the string.
var ErrIndexOutOfRange = errors.New("bytestr: index out of range")

// String is an owned, length-tagged byte sequence.
type String struct {
	buf []byte
}

// Copy allocates exactly len(src) bytes and copies src into them
func Copy(src []byte) String {
	buf := make([]byte, len(src))
	copy(buf, src)
	return String{buf: buf}
}

// FromString wraps a Go string literal
func FromString(s string) String {
	return String{buf: []byte(s)}
}

// Ptr returns a pointer to an independent copy of s, for optional fields
func Ptr(s String) *String {
	c := s.Clone()
	return &c
}

// Len returns the number of bytes held by s
func (s String) Len() int {
	return len(s.buf)
}

// Bytes returns the underlying bytes. The caller must not modify them.
func (s String) Bytes() []byte {
	return s.buf
}

// At returns the byte at index i
func (s String) At(i int) byte {
	return s.buf[i]
}

// Clone returns an independent copy of s
func (s String) Clone() String {
	return Copy(s.buf)
}

// String returns the bytes as a Go string
func (s String) String() string {
	return string(s.buf)
}

// Terminated returns a copy of s with a trailing zero byte, for APIs that
// expect a terminated buffer.
func (s String) Terminated() []byte {
	out := make([]byte, len(s.buf)+1)
	copy(out, s.buf)
	return out
}

// Concat appends src to s. The previous buffer is released.
func (s *String) Concat(src []byte) {
	buf := make([]byte, len(s.buf)+len(src))
	copy(buf, s.buf)
	copy(buf[len(s.buf):], src)
	s.buf = buf
}

// ConcatString appends another String to s
func (s *String) ConcatString(other String) {
	s.Concat(other.buf)
}

// Split splits s on every occurrence of sep.
//
// Consecutive separators produce empty segments. A separator as the very
// last byte does not produce a trailing empty segment, so joining the result
// with sep reproduces s whenever s does not end in sep. The empty string
// yields a single empty segment.
func (s String) Split(sep byte) []String {
	parts := make([]String, 0, s.Count(sep)+1)
	left := 0
	for i, b := range s.buf {
		if b != sep {
			continue
		}
		parts = append(parts, Copy(s.buf[left:i]))
		left = i + 1
	}
	if left < len(s.buf) || len(parts) == 0 {
		parts = append(parts, Copy(s.buf[left:]))
	}
	return parts
}

// SplitAtIndex splits s into [0,index) and [index,len) without consuming
// any byte.
func (s String) SplitAtIndex(index int) (String, String, error) {
	if index < 0 || index > len(s.buf) {
		return String{}, String{}, errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", index, len(s.buf))
	}
	return Copy(s.buf[:index]), Copy(s.buf[index:]), nil
}

// Count returns the number of occurrences of b in s
func (s String) Count(b byte) int {
	n := 0
	for _, c := range s.buf {
		if c == b {
			n++
		}
	}
	return n
}

// IndexByte returns the index of the first b in s, or -1
func (s String) IndexByte(b byte) int {
	for i, c := range s.buf {
		if c == b {
			return i
		}
	}
	return -1
}

// StartsWith reports whether prefix.Len() <= s.Len() and the first
// prefix.Len() bytes of s equal prefix.
func (s String) StartsWith(prefix String) bool {
	return s.HasPrefix(prefix.buf)
}

// HasPrefix is StartsWith for a raw byte slice
func (s String) HasPrefix(prefix []byte) bool {
	if len(prefix) > len(s.buf) {
		return false
	}
	for i := range prefix {
		if s.buf[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Trim strips exactly one leading and one trailing ASCII space, if present.
func (s *String) Trim() {
	if len(s.buf) == 0 {
		return
	}
	start, end := 0, len(s.buf)
	if s.buf[0] == ' ' {
		start++
	}
	if end > start && s.buf[end-1] == ' ' {
		end--
	}
	s.buf = Copy(s.buf[start:end]).buf
}

// ToLowerCase maps ASCII A-Z to a-z in place
func (s *String) ToLowerCase() {
	for i, c := range s.buf {
		if c >= 'A' && c <= 'Z' {
			s.buf[i] = c + ('a' - 'A')
		}
	}
}

// FormatStrip removes every space, CR and LF byte from s.
// It canonicalizes header values such as Host and is not a general sanitizer.
func (s *String) FormatStrip() {
	out := make([]byte, 0, len(s.buf))
	for _, c := range s.buf {
		if c == ' ' || c == '\r' || c == '\n' {
			continue
		}
		out = append(out, c)
	}
	s.buf = out
}

// Equals reports whether s and other have the same length and bytes
func (s String) Equals(other String) bool {
	return s.EqualsBytes(other.buf)
}

// EqualsBytes is Equals for a raw byte slice
func (s String) EqualsBytes(b []byte) bool {
	if len(s.buf) != len(b) {
		return false
	}
	for i := range b {
		if s.buf[i] != b[i] {
			return false
		}
	}
	return true
}
