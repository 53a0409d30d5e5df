package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"sitegauge/internal/domain"
)

const (
	// DefaultTimeout is the wall-clock deadline for one fetch attempt. The
	// window resets on every redirect hop, so total latency can reach
	// hops x timeout.
	DefaultTimeout = 4500 * time.Millisecond

	// DefaultMaxRedirects caps how many redirect hops are followed. Hitting
	// the cap is not an error; the last redirect response is returned as-is.
	DefaultMaxRedirects = 5

	// DefaultMaxBodyBytes caps how much of a response body is downloaded.
	DefaultMaxBodyBytes = 200_000

	// DefaultUserAgent is the fixed identifying client label on every request.
	DefaultUserAgent = "sitegauge/1.0 (+https://github.com/sitegauge)"

	readChunkSize = 8 * 1024
)

// HostGuard validates a redirect target's host before the next hop is sent.
type HostGuard func(ctx context.Context, host string) error

// Fetcher performs bounded HTTP GETs: one end-to-end deadline per hop, a hard
// redirect cap, a per-hop private-address guard, and a streamed byte-capped
// body read.
type Fetcher struct {
	client       *http.Client
	timeout      time.Duration
	maxRedirects int
	maxBodyBytes int
	userAgent    string
	guard        HostGuard
}

// FetcherConfig carries the fetch bounds. Zero fields fall back to defaults.
type FetcherConfig struct {
	Timeout time.Duration
	// MaxRedirects caps redirect hops. Nil means DefaultMaxRedirects; an
	// explicit zero disables following entirely.
	MaxRedirects *int
	MaxBodyBytes int
	UserAgent    string
	// Guard is run against every redirect target's host before the hop is
	// followed. Nil means the resolver-backed private-range guard.
	Guard HostGuard
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	maxRedirects := DefaultMaxRedirects
	if cfg.MaxRedirects != nil && *cfg.MaxRedirects >= 0 {
		maxRedirects = *cfg.MaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Guard == nil {
		cfg.Guard = NewResolver(nil).GuardHost
	}

	transport := &http.Transport{
		MaxIdleConns:          16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			// Redirects are followed manually so the byte cap and hop cap
			// stay under this package's control; never delegate them to the
			// transport.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:      cfg.Timeout,
		maxRedirects: maxRedirects,
		maxBodyBytes: cfg.MaxBodyBytes,
		userAgent:    cfg.UserAgent,
		guard:        cfg.Guard,
	}
}

// Fetch GETs the URL, following up to maxRedirects hops with a fresh deadline
// per hop. The elapsed time covers the whole call including every hop.
func (f *Fetcher) Fetch(ctx context.Context, u domain.NormalizedURL) (domain.FetchOutcome, error) {
	start := time.Now()
	current := u.String()
	redirectsLeft := f.maxRedirects

	for {
		resp, err := f.do(ctx, current)
		if err != nil {
			return domain.FetchOutcome{}, err
		}

		loc := resp.Header.Get("Location")
		if isRedirect(resp.StatusCode) && loc != "" && redirectsLeft > 0 {
			next, perr := resp.Request.URL.Parse(loc)
			resp.Body.Close()
			if perr != nil {
				return domain.FetchOutcome{}, fmt.Errorf("%w: bad redirect location %q: %v", ErrNetwork, loc, perr)
			}
			// The hop target is attacker-controlled; re-apply the private-range
			// policy before sending anything to it. A public host must not be
			// able to bounce the fetch into the network.
			if gerr := f.guard(ctx, next.Hostname()); gerr != nil {
				return domain.FetchOutcome{}, gerr
			}
			current = next.String()
			redirectsLeft--
			continue
		}

		// Either a non-redirect response, a redirect with no Location, or an
		// exhausted hop budget: this response is the final outcome.
		body, n, err := f.readCapped(resp)
		resp.Body.Close()
		if err != nil {
			return domain.FetchOutcome{}, err
		}

		return domain.FetchOutcome{
			StatusCode:      resp.StatusCode,
			FinalURL:        current,
			ContentType:     resp.Header.Get("Content-Type"),
			Body:            body,
			BytesDownloaded: n,
			ResponseTime:    time.Since(start),
			RedirectsUsed:   f.maxRedirects - redirectsLeft,
		}, nil
	}
}

// do issues a single GET with its own deadline window. The returned response
// body must be fully consumed before the next hop starts so the hop context
// can be cancelled; the caller closes it.
func (f *Fetcher) do(ctx context.Context, rawurl string) (*http.Response, error) {
	hopCtx, cancel := context.WithTimeout(ctx, f.timeout)

	req, err := http.NewRequestWithContext(hopCtx, http.MethodGet, rawurl, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, classifyFetchErr(err)
	}

	// Tie the hop cancellation to body close so the deadline also bounds the
	// streamed read, and the in-flight connection is torn down on expiry.
	resp.Body = &cancelReadCloser{rc: resp.Body, cancel: cancel}
	return resp, nil
}

// readCapped streams the body with a running byte counter and stops the
// instant the cap is crossed. Truncation is not an error. A split multi-byte
// sequence at the boundary is left as-is.
func (f *Fetcher) readCapped(resp *http.Response) (string, int, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	total := 0

	for total < f.maxBodyBytes {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			if total+n > f.maxBodyBytes {
				n = f.maxBodyBytes - total
			}
			buf.Write(chunk[:n])
			total += n
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || resp.Request.Context().Err() != nil {
				return "", 0, fmt.Errorf("%w: body read deadline exceeded", ErrTimeout)
			}
			// io.EOF and mid-stream resets both end the read; whatever was
			// accumulated is the sample.
			break
		}
	}

	return buf.String(), total, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func classifyFetchErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

type cancelReadCloser struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cancelReadCloser) Close() error {
	err := c.rc.Close()
	c.cancel()
	return err
}
