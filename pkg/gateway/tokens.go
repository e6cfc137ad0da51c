package gateway

import (
	"encoding/json"
	"errors"
	"sync"

	"golang.org/x/oauth2"
)

// Keys under which the bearer token may be stored. The legacy keys are read
// last and cleared together with TokenKey on a 401.
const (
	TokenKey                 = "token"
	LegacyAuthTokenKey       = "authToken"
	LegacySecureAuthTokenKey = "secureAuthToken"
)

// AllTokenKeys lists every key a token may live under, in read order
var AllTokenKeys = []string{TokenKey, LegacyAuthTokenKey, LegacySecureAuthTokenKey}

// ErrNoToken is returned by StoreTokenSource when no token is stored
var ErrNoToken = errors.New("no auth token stored")

// TokenStore is persistent key-value storage for credentials
type TokenStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(keys ...string) error
}

// ReadToken returns the bearer token from store. TokenKey holds either a
// JSON-encoded string or a raw string; the legacy keys are raw.
func ReadToken(store TokenStore) string {
	if raw, ok := store.Get(TokenKey); ok && raw != "" {
		var decoded string
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil && decoded != "" {
			return decoded
		}
		return raw
	}
	for _, key := range AllTokenKeys[1:] {
		if raw, ok := store.Get(key); ok && raw != "" {
			return raw
		}
	}
	return ""
}

// StoreTokenSource adapts a TokenStore to oauth2.TokenSource. The store is
// read on every call so a token written by another process is picked up.
type StoreTokenSource struct {
	Store TokenStore
}

// Token implements oauth2.TokenSource
func (s StoreTokenSource) Token() (*oauth2.Token, error) {
	tok := ReadToken(s.Store)
	if tok == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// MemoryTokenStore is an in-process TokenStore
type MemoryTokenStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryTokenStore creates an empty store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{values: make(map[string]string)}
}

func (s *MemoryTokenStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryTokenStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryTokenStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}
