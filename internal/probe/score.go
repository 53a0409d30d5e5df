package probe

import (
	"strings"

	"sitegauge/internal/domain"
)

// ScoreInput is everything the scorer looks at. It is assembled from the
// fetch outcome and the extracted signals; scoring itself does no I/O.
type ScoreInput struct {
	Reachable   bool
	StatusCode  int
	UsedSSL     bool
	ContentType string
	Bytes       int
	Signals     domain.Signals
}

// Additive weights, clamped to [0,1] after summing. Deterministic: the same
// input always yields the same score.
const (
	weightReachable     = 0.35
	weightGoodStatus    = 0.15
	weightHTTPS         = 0.10
	weightHTMLType      = 0.10
	weightSubstantial   = 0.10
	weightTitle         = 0.10
	weightContactLegal  = 0.10
	penaltyParkedDomain = 0.25

	substantialBytes = 5000
	// A short, title-less page is treated as a likely placeholder.
	placeholderBytes = 8000
)

// SuspectedParked reports whether the page looks like a parked or placeholder
// domain: either a parking phrase matched, or the page is short and has no
// title.
func SuspectedParked(sig domain.Signals, bytes int) bool {
	if sig.ParkingHit {
		return true
	}
	return !sig.HasTitle && bytes < placeholderBytes
}

// Score combines the inputs into a confidence value in [0,1].
func Score(in ScoreInput) float64 {
	score := 0.0
	if in.Reachable {
		score += weightReachable
	}
	if in.StatusCode >= 200 && in.StatusCode <= 399 {
		score += weightGoodStatus
	}
	if in.UsedSSL {
		score += weightHTTPS
	}
	if strings.Contains(strings.ToLower(in.ContentType), "html") {
		score += weightHTMLType
	}
	if in.Bytes >= substantialBytes {
		score += weightSubstantial
	}
	if in.Signals.HasTitle {
		score += weightTitle
	}
	if in.Signals.HasContactLinks || in.Signals.HasLegalLinks {
		score += weightContactLegal
	}
	if SuspectedParked(in.Signals, in.Bytes) {
		score -= penaltyParkedDomain
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
