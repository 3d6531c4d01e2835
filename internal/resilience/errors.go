package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// IsTransient reports whether an error is worth retrying: network timeouts,
// connection failures, and wrapped HTTP client errors that read like them.
// Rate limiting is deliberately NOT transient here; backing off a rate limit
// within one fetch is counterproductive when the next cycle retries anyway.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
