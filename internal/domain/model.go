package domain

import (
	"strings"
	"time"
)

// Core domain models used internally. The HTTP adapter maps these onto its
// JSON response shapes; keep the two decoupled where helpful.

// NormalizedURL is a validated absolute URL that is syntactically safe to
// resolve and fetch. It is not yet known to be publicly routable; the
// resolver re-checks the address set after DNS.
type NormalizedURL struct {
	Scheme string // "http" or "https"
	Host   string // lowercase, punycode for IDN hosts
	Port   string // empty when the default for the scheme
	Path   string // always begins with "/"
	Query  string // raw query without the leading "?"
}

// String reassembles the URL for fetching.
func (u NormalizedURL) String() string {
	host := u.Host
	if strings.Contains(host, ":") {
		// IPv6 literal; re-bracket for the URL form.
		host = "[" + host + "]"
	}
	s := u.Scheme + "://" + host
	if u.Port != "" {
		s += ":" + u.Port
	}
	s += u.Path
	if u.Query != "" {
		s += "?" + u.Query
	}
	return s
}

// FetchOutcome is the terminal snapshot of one bounded fetch, including any
// redirect hops that were followed.
type FetchOutcome struct {
	StatusCode      int
	FinalURL        string
	ContentType     string
	Body            string // UTF-8 text sample, possibly truncated at the byte cap
	BytesDownloaded int
	ResponseTime    time.Duration
	RedirectsUsed   int
}

// Signals are the lightweight textual flags extracted from a fetched body.
type Signals struct {
	HasTitle        bool `json:"has_title"`
	HasContactLinks bool `json:"has_contact_like_links"`
	HasLegalLinks   bool `json:"has_legal_like_links"`
	ParkingHit      bool `json:"parking_hit"`
}

// ProbeResult is the immutable output of one probe. Constructed once,
// returned to the caller, never mutated afterwards.
type ProbeResult struct {
	URL             string        `json:"url"`
	Exists          bool          `json:"exists"`
	Reachable       bool          `json:"reachable"`
	StatusCode      int           `json:"status_code,omitempty"`
	FinalURL        string        `json:"final_url,omitempty"`
	UsedSSL         bool          `json:"ssl_used"`
	SuspectedParked bool          `json:"suspected_parked"`
	Signals         Signals       `json:"signals"`
	Confidence      float64       `json:"confidence_score"`
	BytesDownloaded int           `json:"bytes_downloaded,omitempty"`
	ResponseTimeMs  int64         `json:"response_time_ms"`
	CheckedAt       time.Time     `json:"checked_at"`
}

// CheckStatus is the lifecycle state of a stored check.
type CheckStatus string

const (
	CheckQueued    CheckStatus = "queued"
	CheckRunning   CheckStatus = "running"
	CheckCompleted CheckStatus = "completed"
	CheckFailed    CheckStatus = "failed"
)

// Check is a persisted probe request for one URL, synchronous or queued.
type Check struct {
	ID         string
	DomainRef  string
	URL        string
	Status     CheckStatus
	Result     *ProbeResult
	Error      string
	CreatedAt  time.Time
	FinishedAt *time.Time
}

// APIKey identifies a caller and carries its remaining credit balance.
type APIKey struct {
	ID        string
	Key       string
	Name      string
	Credits   int
	CreatedAt time.Time
}
