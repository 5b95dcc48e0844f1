package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

type postgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres returns a Store backed by the client_storage table.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Store {
	return &postgresStore{pool: pool, logger: logging.OrNop(logger)}
}

func (s *postgresStore) Get(ctx context.Context, session, key string) (string, error) {
	const q = `
SELECT value
FROM client_storage
WHERE session_id = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > now())
`
	var v string
	err := s.pool.QueryRow(ctx, q, session, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		s.logger.Error("storage get", zap.String("session", session), zap.String("key", key), zap.Error(err))
		return "", err
	}
	return v, nil
}

func (s *postgresStore) Set(ctx context.Context, session, key, value string, ttl time.Duration) error {
	const q = `
INSERT INTO client_storage (session_id, key, value, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id, key) DO UPDATE SET
    value = EXCLUDED.value,
    expires_at = EXCLUDED.expires_at,
    updated_at = now()
`
	if _, err := s.pool.Exec(ctx, q, session, key, value, expiry(ttl)); err != nil {
		s.logger.Error("storage set", zap.String("session", session), zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *postgresStore) SetNX(ctx context.Context, session, key, value string, ttl time.Duration) (bool, error) {
	// An expired row counts as absent, so the conflict branch only fires for it.
	const q = `
INSERT INTO client_storage (session_id, key, value, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id, key) DO UPDATE SET
    value = EXCLUDED.value,
    expires_at = EXCLUDED.expires_at,
    updated_at = now()
WHERE client_storage.expires_at IS NOT NULL AND client_storage.expires_at <= now()
`
	tag, err := s.pool.Exec(ctx, q, session, key, value, expiry(ttl))
	if err != nil {
		s.logger.Error("storage setnx", zap.String("session", session), zap.String("key", key), zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *postgresStore) Delete(ctx context.Context, session string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const q = `DELETE FROM client_storage WHERE session_id = $1 AND key = ANY($2)`
	if _, err := s.pool.Exec(ctx, q, session, keys); err != nil {
		s.logger.Error("storage delete", zap.String("session", session), zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().UTC().Add(ttl)
	return &t
}
