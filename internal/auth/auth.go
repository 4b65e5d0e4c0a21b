// Package auth authenticates API requests.
//
// Two credential types resolve to the same actor identity:
//   - Bearer JWTs issued from email+password (access 15m, refresh 7d)
//   - sk_-prefixed API keys for service-to-service calls
//
// Only the SHA-256 hash of an API key is stored; the raw key is shown
// once at creation. A short preview is kept for display in key lists.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/idgen"
)

// Errors
var (
	ErrNoCredentials = errors.New("auth: credentials required")
	ErrInvalidKey    = errors.New("auth: invalid or expired API key")
	ErrKeyNotFound   = errors.New("auth: API key not found")
)

// APIKey represents a stored API key. The raw key is never persisted.
type APIKey struct {
	ID         string     `json:"id"`
	Hash       string     `json:"-"`
	OrgID      string     `json:"orgId"`
	CreatedBy  string     `json:"createdBy"`
	Name       string     `json:"name"`
	Preview    string     `json:"preview"` // first characters of the raw key
	Role       authz.Role `json:"role"`
	UsageCount int64      `json:"usageCount"`
	LastUsed   time.Time  `json:"lastUsed,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Revoked    bool       `json:"revoked"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Actor returns the authorization identity a key authenticates as.
func (k *APIKey) Actor() authz.Actor {
	return authz.Actor{ID: "key:" + k.ID, OrgID: k.OrgID, Role: k.Role}
}

// KeyStore persists API keys.
type KeyStore interface {
	Create(ctx context.Context, key *APIKey) error
	GetByHash(ctx context.Context, hash string) (*APIKey, error)
	ListByOrg(ctx context.Context, orgID string) ([]*APIKey, error)
	Update(ctx context.Context, key *APIKey) error
	Delete(ctx context.Context, id string) error
	// Touch bumps usage_count and last_used in one statement.
	Touch(ctx context.Context, id string, at time.Time) error
}

// Manager handles API key issuance and validation.
type Manager struct {
	store KeyStore
}

// NewManager creates a new key manager.
func NewManager(store KeyStore) *Manager {
	return &Manager{store: store}
}

// Store exposes the underlying key store.
func (m *Manager) Store() KeyStore { return m.store }

// GenerateKey creates a new API key scoped to an organization.
// Returns the raw key (shown once) and the stored metadata.
func (m *Manager) GenerateKey(ctx context.Context, orgID, createdBy, name string, role authz.Role, expiresAt *time.Time) (rawKey string, key *APIKey, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}
	rawKey = "sk_" + hex.EncodeToString(b)

	key = &APIKey{
		ID:        idgen.WithPrefix("ak_"),
		Hash:      hashKey(rawKey),
		OrgID:     orgID,
		CreatedBy: createdBy,
		Name:      name,
		Preview:   rawKey[:8],
		Role:      role,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}

	if err := m.store.Create(ctx, key); err != nil {
		return "", nil, err
	}
	return rawKey, key, nil
}

// ValidateKey checks a raw key and returns its metadata. Usage counters
// are updated out of band so validation stays on the fast path.
func (m *Manager) ValidateKey(ctx context.Context, rawKey string) (*APIKey, error) {
	rawKey = strings.TrimSpace(strings.TrimPrefix(rawKey, "Bearer "))
	if rawKey == "" {
		return nil, ErrNoCredentials
	}
	if !strings.HasPrefix(rawKey, "sk_") {
		return nil, ErrInvalidKey
	}

	key, err := m.store.GetByHash(ctx, hashKey(rawKey))
	if err != nil {
		return nil, ErrInvalidKey
	}
	if key.Revoked {
		return nil, ErrInvalidKey
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrInvalidKey
	}

	go func() {
		_ = m.store.Touch(context.Background(), key.ID, time.Now())
	}()

	return key, nil
}

// ListKeys returns all keys belonging to an organization.
func (m *Manager) ListKeys(ctx context.Context, orgID string) ([]*APIKey, error) {
	return m.store.ListByOrg(ctx, orgID)
}

// RevokeKey revokes a key if it belongs to the given organization.
func (m *Manager) RevokeKey(ctx context.Context, orgID, keyID string) error {
	keys, err := m.store.ListByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.ID == keyID {
			k.Revoked = true
			return m.store.Update(ctx, k)
		}
	}
	return ErrKeyNotFound
}

func hashKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// MemoryKeyStore is an in-memory KeyStore for demo/development.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKey // by ID
}

// NewMemoryKeyStore creates a new in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]*APIKey)}
}

func (s *MemoryKeyStore) Create(_ context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *MemoryKeyStore) GetByHash(_ context.Context, hash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.Hash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, ErrKeyNotFound
}

func (s *MemoryKeyStore) ListByOrg(_ context.Context, orgID string) ([]*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*APIKey
	for _, k := range s.keys {
		if k.OrgID == orgID {
			cp := *k
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *MemoryKeyStore) Update(_ context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; !ok {
		return ErrKeyNotFound
	}
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *MemoryKeyStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
	return nil
}

func (s *MemoryKeyStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return ErrKeyNotFound
	}
	k.UsageCount++
	k.LastUsed = at
	return nil
}

var _ KeyStore = (*MemoryKeyStore)(nil)
