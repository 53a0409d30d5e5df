package probe

import "errors"

// Failure kinds surfaced by Probe. Callers classify with errors.Is; the HTTP
// adapter maps each kind to a distinct status code. None of them are retried
// here — retrying a whole probe is the caller's decision.
var (
	// ErrInvalidInput covers malformed or disallowed URLs, including hosts
	// that are literal private addresses. Raised before any network I/O.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSSRFBlocked is raised after DNS, when a public-looking hostname
	// resolves to a private, loopback, link-local or unspecified address.
	// Kept distinct from ErrInvalidInput so callers can tell a hostile
	// rebinding setup apart from a typo.
	ErrSSRFBlocked = errors.New("resolved to a private address")

	// ErrNetwork covers connection failures and DNS lookup errors.
	ErrNetwork = errors.New("network error")

	// ErrTimeout is raised when a fetch attempt exceeds its wall-clock
	// deadline. Distinct from ErrNetwork.
	ErrTimeout = errors.New("timeout")
)
