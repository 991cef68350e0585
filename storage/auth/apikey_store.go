package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Role decides which reward operations a key may call.
type Role string

const (
	RoleAdmin    Role = "admin"    // may define tasks and build snapshots
	RoleOperator Role = "operator" // everything else
)

// ParseRole maps a config or request string to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleOperator, "":
		return RoleOperator, true
	}
	return "", false
}

// APIKey represents an issued API key.
type APIKey struct {
	Key       string    `json:"key,omitempty"`
	Label     string    `json:"label,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source,omitempty"` // e.g. "config", "issued"
}

// IsAdmin reports whether the key carries the admin role.
func (k APIKey) IsAdmin() bool { return k.Role == RoleAdmin }

// APIKeyValidator defines the minimal interface required by auth middleware.
type APIKeyValidator interface {
	Validate(key string) bool
	Get(key string) (APIKey, bool)
}

// APIKeyIssuer allows creating new API keys.
type APIKeyIssuer interface {
	Issue(label string, role Role) (APIKey, error)
}

// APIKeyStore provides in-memory API key validation/issuance.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]APIKey
}

// NewAPIKeyStore constructs an empty store.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{keys: make(map[string]APIKey)}
}

// Seed adds a pre-existing key (e.g., from config).
func (s *APIKeyStore) Seed(key, label string, role Role, source string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = APIKey{Key: key, Label: label, Role: role, Source: source, CreatedAt: time.Now()}
}

// Reload replaces every key from source with the given admin and operator keys.
// Keys from other sources are kept.
func (s *APIKeyStore) Reload(source string, admin, operator []string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.keys {
		if rec.Source == source {
			delete(s.keys, k)
		}
	}
	for _, k := range operator {
		if k = strings.TrimSpace(k); k != "" {
			s.keys[k] = APIKey{Key: k, Role: RoleOperator, Source: source, CreatedAt: now}
		}
	}
	for _, k := range admin {
		if k = strings.TrimSpace(k); k != "" {
			s.keys[k] = APIKey{Key: k, Role: RoleAdmin, Source: source, CreatedAt: now}
		}
	}
}

// Validate returns true if the key exists.
func (s *APIKeyStore) Validate(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Get returns the stored record for a key, if present.
func (s *APIKeyStore) Get(key string) (APIKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[key]
	return rec, ok
}

// Issue creates and stores a new API key.
func (s *APIKeyStore) Issue(label string, role Role) (APIKey, error) {
	key, err := generateKey()
	if err != nil {
		return APIKey{}, err
	}
	rec := APIKey{Key: key, Label: label, Role: role, Source: "issued", CreatedAt: time.Now()}
	s.mu.Lock()
	s.keys[key] = rec
	s.mu.Unlock()
	return rec, nil
}

// Chain consults validators in order and returns the first match.
type Chain []APIKeyValidator

func (c Chain) Validate(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c Chain) Get(key string) (APIKey, bool) {
	if key == "" {
		return APIKey{}, false
	}
	for _, v := range c {
		if rec, ok := v.Get(key); ok {
			return rec, true
		}
	}
	return APIKey{}, false
}

func generateKey() (string, error) {
	b := make([]byte, 32) // 256-bit key
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
