package checker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"sitegauge/internal/domain"
	"sitegauge/internal/ports"
	"sitegauge/internal/probe"
)

// Service validates incoming URLs, tracks their registrable domain, and
// manages check records. The probe itself runs in the worker processor so the
// synchronous and queued paths share one pipeline.
type Service struct {
	domains  ports.DomainRepository
	checks   ports.CheckRepository
	cacheTTL time.Duration
	log      *zap.Logger
}

func New(domains ports.DomainRepository, checks ports.CheckRepository, cacheTTL time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{domains: domains, checks: checks, cacheTTL: cacheTTL, log: log}
}

// Enqueue normalizes the URL and creates a queued check plus its job row.
// Validation failures surface the probe package's error kinds so the caller
// rejects bad input before anything is persisted.
func (s *Service) Enqueue(ctx context.Context, rawurl string) (string, error) {
	norm, err := probe.Normalize(rawurl)
	if err != nil {
		return "", err
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(norm.Host)
	if err != nil {
		// IP literals and single-label hosts have no eTLD+1; track them as-is.
		registrable = norm.Host
	}
	domainID, err := s.domains.GetOrCreate(ctx, registrable)
	if err != nil {
		return "", err
	}

	checkID, err := s.checks.Create(ctx, domainID, norm.String(), domain.CheckQueued)
	if err != nil {
		return "", err
	}
	s.log.Debug("check enqueued",
		zap.String("check_id", checkID), zap.String("url", norm.String()))
	return checkID, nil
}

// Cached returns a completed check for the same normalized URL inside the
// freshness window. The caller still charges a credit on a hit.
func (s *Service) Cached(ctx context.Context, rawurl string) (domain.Check, bool, error) {
	norm, err := probe.Normalize(rawurl)
	if err != nil {
		return domain.Check{}, false, err
	}
	if s.cacheTTL <= 0 {
		return domain.Check{}, false, nil
	}
	c, err := s.checks.GetFresh(ctx, norm.String(), s.cacheTTL)
	if err != nil {
		return domain.Check{}, false, err
	}
	if c == nil {
		return domain.Check{}, false, nil
	}
	return *c, true, nil
}

func (s *Service) Get(ctx context.Context, checkID string) (domain.Check, error) {
	return s.checks.Get(ctx, checkID)
}
