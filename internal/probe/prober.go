// Package probe implements the bounded, security-constrained web-entity
// prober: URL validation with a private-network guard, DNS resolution with a
// post-resolution re-check, a byte- and redirect-capped fetch, lightweight
// content signals, and a deterministic confidence score.
//
// A Prober holds no cross-request state; one instance is safe to share across
// any number of concurrent callers.
package probe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sitegauge/internal/domain"
)

// Config bundles the prober knobs. Zero fields mean defaults, except
// MaxRedirects where nil means the default and zero means no redirects.
type Config struct {
	Timeout      time.Duration
	MaxRedirects *int
	MaxBodyBytes int
	UserAgent    string
	// Lookup overrides DNS resolution; nil means the system resolver.
	Lookup LookupIPFunc
}

type Prober struct {
	resolver *Resolver
	fetcher  *Fetcher
	log      *zap.Logger
	now      func() time.Time
}

func New(cfg Config, log *zap.Logger) *Prober {
	if log == nil {
		log = zap.NewNop()
	}
	resolver := NewResolver(cfg.Lookup)
	return &Prober{
		resolver: resolver,
		fetcher: NewFetcher(FetcherConfig{
			Timeout:      cfg.Timeout,
			MaxRedirects: cfg.MaxRedirects,
			MaxBodyBytes: cfg.MaxBodyBytes,
			UserAgent:    cfg.UserAgent,
			// Redirect hops go through the same resolver, so an injected
			// Lookup governs the per-hop guard too.
			Guard: resolver.GuardHost,
		}),
		log: log,
		now: time.Now,
	}
}

// Probe runs the full pipeline for one untrusted URL:
// normalize -> resolve -> guard -> fetch -> extract -> score.
//
// A host with zero DNS records is not an error; it yields a reduced-shape
// result with existence=false and a zero score, and no fetch is attempted.
// Every other failure surfaces as one of the package error kinds.
func (p *Prober) Probe(ctx context.Context, raw string) (domain.ProbeResult, error) {
	norm, err := Normalize(raw)
	if err != nil {
		return domain.ProbeResult{}, err
	}

	ips, err := p.resolver.Resolve(ctx, norm.Host)
	if err != nil {
		return domain.ProbeResult{}, err
	}
	if len(ips) == 0 {
		p.log.Debug("host has no dns records", zap.String("host", norm.Host))
		return domain.ProbeResult{
			URL:       norm.String(),
			Exists:    false,
			Reachable: false,
			CheckedAt: p.now().UTC(),
		}, nil
	}
	if err := GuardAddresses(ips); err != nil {
		p.log.Warn("probe refused after resolution",
			zap.String("host", norm.Host), zap.Error(err))
		return domain.ProbeResult{}, err
	}

	outcome, err := p.fetcher.Fetch(ctx, norm)
	if err != nil {
		return domain.ProbeResult{}, err
	}

	signals := Extract(outcome.Body)
	parked := SuspectedParked(signals, outcome.BytesDownloaded)
	usedSSL := len(outcome.FinalURL) >= 8 && outcome.FinalURL[:8] == "https://"

	confidence := Score(ScoreInput{
		Reachable:   true,
		StatusCode:  outcome.StatusCode,
		UsedSSL:     usedSSL,
		ContentType: outcome.ContentType,
		Bytes:       outcome.BytesDownloaded,
		Signals:     signals,
	})

	p.log.Debug("probe completed",
		zap.String("url", norm.String()),
		zap.Int("status", outcome.StatusCode),
		zap.Int("bytes", outcome.BytesDownloaded),
		zap.Int("redirects", outcome.RedirectsUsed),
		zap.Duration("elapsed", outcome.ResponseTime),
		zap.Float64("confidence", confidence))

	return domain.ProbeResult{
		URL:             norm.String(),
		Exists:          true,
		Reachable:       true,
		StatusCode:      outcome.StatusCode,
		FinalURL:        outcome.FinalURL,
		UsedSSL:         usedSSL,
		SuspectedParked: parked,
		Signals:         signals,
		Confidence:      confidence,
		BytesDownloaded: outcome.BytesDownloaded,
		ResponseTimeMs:  outcome.ResponseTime.Milliseconds(),
		CheckedAt:       p.now().UTC(),
	}, nil
}
