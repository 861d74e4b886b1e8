// Package tokens holds the access/refresh credential pair and persists it as
// a single record, so a failed refresh can never leave a partial pair behind.
package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront/pkg/kvstore"
)

// DefaultKey is the durable key the pair is stored under.
const DefaultKey = "auth.tokens"

// Pair is the opaque bearer credential pair. AccessExpiresAt is a hint parsed
// from the token's exp claim for logging; validity is decided only by server
// response codes.
type Pair struct {
	Access          string    `json:"access"`
	Refresh         string    `json:"refresh"`
	AccessExpiresAt time.Time `json:"access_expires_at,omitzero"`
}

// Store caches the pair in memory and writes through to the durable store.
type Store struct {
	mu     sync.Mutex
	kv     kvstore.Store
	key    string
	pair   *Pair
	loaded bool
}

// NewStore builds a credential store over kv. An empty key selects DefaultKey.
func NewStore(kv kvstore.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key}
}

// Get returns the current pair, reading the durable record on first use.
func (s *Store) Get(ctx context.Context) (Pair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return Pair{}, false, err
	}
	if s.pair == nil {
		return Pair{}, false, nil
	}
	return *s.pair, true, nil
}

// Set installs a new pair, replacing any previous one.
func (s *Store) Set(ctx context.Context, access, refresh string) error {
	pair := Pair{
		Access:          access,
		Refresh:         refresh,
		AccessExpiresAt: accessExpiry(access),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persistLocked(ctx, pair); err != nil {
		return err
	}
	s.pair = &pair
	s.loaded = true
	return nil
}

// ReplaceAccess swaps the access credential after a successful refresh,
// keeping the refresh credential. A concurrent clear wins: with no pair
// present nothing is written.
func (s *Store) ReplaceAccess(ctx context.Context, access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	if s.pair == nil {
		return nil
	}
	pair := *s.pair
	pair.Access = access
	pair.AccessExpiresAt = accessExpiry(access)
	if err := s.persistLocked(ctx, pair); err != nil {
		return err
	}
	s.pair = &pair
	return nil
}

// Clear drops both credentials atomically.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	s.pair = nil
	s.loaded = true
	return nil
}

func (s *Store) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	data, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	s.loaded = true
	if !found {
		return nil
	}
	var pair Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		// Unreadable record is treated as absent; the next login rewrites it.
		return nil
	}
	if pair.Access == "" && pair.Refresh == "" {
		return nil
	}
	s.pair = &pair
	return nil
}

func (s *Store) persistLocked(ctx context.Context, pair Pair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	return nil
}

// accessExpiry extracts the exp claim without verifying the token. A token
// that is not a JWT yields a zero time.
func accessExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
