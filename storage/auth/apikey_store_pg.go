package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// hashKey is the lookup digest of a key; plaintext keys are never stored.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// PGAPIKeyStore persists issued API keys in Postgres.
type PGAPIKeyStore struct {
	pool *pgxpool.Pool
}

// NewPGAPIKeyStore connects and initializes schema.
func NewPGAPIKeyStore(ctx context.Context, dsn string) (*PGAPIKeyStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PGAPIKeyStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGAPIKeyStore) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS reward_api_keys (
  key_hash TEXT PRIMARY KEY,
  label TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT 'issued',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close shuts down the pool.
func (s *PGAPIKeyStore) Close() {
	s.pool.Close()
}

// Validate implements APIKeyValidator.
func (s *PGAPIKeyStore) Validate(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Get returns the API key record for the provided key. The returned record
// carries no plaintext key.
func (s *PGAPIKeyStore) Get(key string) (APIKey, bool) {
	if key == "" {
		return APIKey{}, false
	}
	var (
		rec  APIKey
		role string
	)
	err := s.pool.QueryRow(context.Background(),
		"SELECT label, role, source, created_at FROM reward_api_keys WHERE key_hash=$1",
		hashKey(key),
	).Scan(&rec.Label, &role, &rec.Source, &rec.CreatedAt)
	if err != nil {
		return APIKey{}, false
	}
	rec.Role = Role(role)
	return rec, true
}

// Issue implements APIKeyIssuer.
func (s *PGAPIKeyStore) Issue(label string, role Role) (APIKey, error) {
	key, err := generateKey()
	if err != nil {
		return APIKey{}, err
	}
	rec := APIKey{
		Key:       key,
		Label:     label,
		Role:      role,
		Source:    "issued",
		CreatedAt: time.Now(),
	}
	_, err = s.pool.Exec(context.Background(),
		"INSERT INTO reward_api_keys (key_hash, label, role, source, created_at) VALUES ($1,$2,$3,$4,$5)",
		hashKey(key), rec.Label, string(rec.Role), rec.Source, rec.CreatedAt)
	if err != nil {
		return APIKey{}, err
	}
	return rec, nil
}

// Revoke deletes an issued key. It reports false when the key was unknown.
func (s *PGAPIKeyStore) Revoke(ctx context.Context, key string) (bool, error) {
	var hash string
	err := s.pool.QueryRow(ctx, "DELETE FROM reward_api_keys WHERE key_hash=$1 RETURNING key_hash", hashKey(key)).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
