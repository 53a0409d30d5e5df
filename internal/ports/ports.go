package ports

import (
	"context"
	"errors"

	"sitegauge/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNoCredits = errors.New("no credits remaining")
)

// Prober runs the probe pipeline for one untrusted URL.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (domain.ProbeResult, error)
}

// Checker creates and tracks URL checks.
type Checker interface {
	// Enqueue validates the URL and creates a queued check plus its job row.
	Enqueue(ctx context.Context, rawURL string) (checkID string, err error)
	// Cached returns a completed check for the same normalized URL that is
	// still within the freshness window, if one exists.
	Cached(ctx context.Context, rawURL string) (check domain.Check, ok bool, err error)
	Get(ctx context.Context, checkID string) (domain.Check, error)
}
