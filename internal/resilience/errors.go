// Package resilience provides retry and circuit-breaker primitives for the
// pipeline's external collaborators (DNS, SMTP, identity registry).
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Transient marks an error as safe to retry. The pipeline maps transient
// collaborator failures to inconclusive evidence rather than hard verdicts.
type Transient struct {
	Err error
}

func (e *Transient) Error() string { return e.Err.Error() }

func (e *Transient) Unwrap() error { return e.Err }

// MarkTransient wraps err so IsTransient recognizes it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &Transient{Err: err}
}

// IsTransient reports whether the error chain indicates a condition worth
// retrying: an explicit Transient mark, a network timeout, a temporary DNS
// failure, or a connection-level fault.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var tr *Transient
	if errors.As(err, &tr) {
		return true
	}

	// SERVFAIL and friends are temporary; NXDOMAIN is a definitive answer.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
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

	// Wrapped errors from clients that flatten the chain to a string.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"i/o timeout",
		"tls handshake timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
