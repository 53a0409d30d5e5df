package ports

import (
	"context"
	"time"

	"sitegauge/internal/domain"
)

// DomainRepository stores and fetches domains by registrable domain (eTLD+1).
type DomainRepository interface {
	GetOrCreate(ctx context.Context, registrable string) (domainID string, err error)
}

// CheckRepository manages check records and their probe results.
type CheckRepository interface {
	// Create inserts a check; a queued check also gets a job row so the
	// workers can claim it.
	Create(ctx context.Context, domainID, url string, status domain.CheckStatus) (checkID string, err error)
	Get(ctx context.Context, checkID string) (domain.Check, error)
	// GetFresh returns the most recent completed check for the URL finished
	// within ttl, or (nil, nil) when there is none.
	GetFresh(ctx context.Context, url string, ttl time.Duration) (*domain.Check, error)
	Complete(ctx context.Context, checkID string, result domain.ProbeResult) error
	Fail(ctx context.Context, checkID, reason string) error
}

// KeyRepository issues API keys and tracks their credit balance.
type KeyRepository interface {
	CreateKey(ctx context.Context, name string, credits int) (domain.APIKey, error)
	GetByKey(ctx context.Context, key string) (domain.APIKey, error)
	// ChargeCredit atomically deducts one credit; ErrNoCredits when the
	// balance is exhausted.
	ChargeCredit(ctx context.Context, keyID string) (remaining int, err error)
}
