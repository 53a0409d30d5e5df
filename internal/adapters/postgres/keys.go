package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sitegauge/internal/domain"
	"sitegauge/internal/ports"
)

// KeyRepository

func (db *DB) CreateKey(ctx context.Context, name string, credits int) (domain.APIKey, error) {
	key := "sg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	var out domain.APIKey
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO api_keys (key, name, credits)
		VALUES ($1, $2, $3)
		RETURNING id, key, name, credits, created_at
	`, key, name, credits).Scan(&out.ID, &out.Key, &out.Name, &out.Credits, &out.CreatedAt)
	return out, err
}

func (db *DB) GetByKey(ctx context.Context, key string) (domain.APIKey, error) {
	var out domain.APIKey
	err := db.Pool.QueryRow(ctx, `
		SELECT id, key, name, credits, created_at FROM api_keys WHERE key = $1
	`, key).Scan(&out.ID, &out.Key, &out.Name, &out.Credits, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.APIKey{}, ports.ErrNotFound
	}
	return out, err
}

// ChargeCredit deducts one credit, failing when the balance is already zero.
// The guard lives in the UPDATE predicate so concurrent calls cannot drive
// the balance negative.
func (db *DB) ChargeCredit(ctx context.Context, keyID string) (int, error) {
	var remaining int
	err := db.Pool.QueryRow(ctx, `
		UPDATE api_keys SET credits = credits - 1
		WHERE id = $1 AND credits > 0
		RETURNING credits
	`, keyID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the key vanished or it has no credits left; disambiguate.
		var exists bool
		if err2 := db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM api_keys WHERE id=$1)`, keyID).Scan(&exists); err2 != nil {
			return 0, err2
		}
		if !exists {
			return 0, ports.ErrNotFound
		}
		return 0, ports.ErrNoCredits
	}
	return remaining, err
}
