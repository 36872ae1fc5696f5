package retry

import (
	"errors"
	"net"
	"syscall"
)

// IsTemporary reports whether an accept error is worth another attempt.
// Timeouts and descriptor or buffer exhaustion clear up on their own;
// a closed listener never does.
func IsTemporary(err error) bool {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, syscall.EMFILE),
		errors.Is(err, syscall.ENFILE),
		errors.Is(err, syscall.ENOBUFS),
		errors.Is(err, syscall.ENOMEM),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EINTR):
		return true
	}
	return false
}
