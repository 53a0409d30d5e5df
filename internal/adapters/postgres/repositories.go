package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"sitegauge/internal/domain"
	"sitegauge/internal/ports"
)

// DomainRepository

func (db *DB) GetOrCreate(ctx context.Context, registrable string) (string, error) {
	registrable = strings.ToLower(registrable)
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO domains (registrable_domain)
		VALUES ($1)
		ON CONFLICT (registrable_domain) DO UPDATE SET registrable_domain = EXCLUDED.registrable_domain
		RETURNING id
	`, registrable).Scan(&id)
	return id, err
}

// CheckRepository

func (db *DB) Create(ctx context.Context, domainID, url string, status domain.CheckStatus) (string, error) {
	var checkID string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO url_checks (domain_id, url, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`, domainID, url, string(status)).Scan(&checkID)
	if err != nil {
		return "", err
	}
	if status == domain.CheckQueued {
		_, err = db.Pool.Exec(ctx, `INSERT INTO check_jobs (check_id) VALUES ($1)`, checkID)
	}
	return checkID, err
}

func (db *DB) Get(ctx context.Context, checkID string) (domain.Check, error) {
	var (
		c          domain.Check
		status     string
		resultJSON []byte
		errMsg     *string
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT id, domain_id, url, status, result, error, created_at, finished_at
		FROM url_checks WHERE id = $1
	`, checkID).Scan(&c.ID, &c.DomainRef, &c.URL, &status, &resultJSON, &errMsg, &c.CreatedAt, &c.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Check{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Check{}, err
	}
	c.Status = domain.CheckStatus(status)
	if errMsg != nil {
		c.Error = *errMsg
	}
	if len(resultJSON) > 0 {
		var res domain.ProbeResult
		if err := json.Unmarshal(resultJSON, &res); err != nil {
			return domain.Check{}, fmt.Errorf("decode stored result: %w", err)
		}
		c.Result = &res
	}
	return c, nil
}

func (db *DB) GetFresh(ctx context.Context, url string, ttl time.Duration) (*domain.Check, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		SELECT id FROM url_checks
		WHERE url = $1 AND status = 'completed' AND finished_at > now() - make_interval(secs => $2)
		ORDER BY finished_at DESC
		LIMIT 1
	`, url, ttl.Seconds()).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c, err := db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) Complete(ctx context.Context, checkID string, result domain.ProbeResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		UPDATE url_checks SET status='completed', result=$2, finished_at=now() WHERE id=$1
	`, checkID, payload)
	return err
}

func (db *DB) Fail(ctx context.Context, checkID, reason string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE url_checks SET status='failed', error=$2, finished_at=now() WHERE id=$1
	`, checkID, reason)
	return err
}
