package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "xmarks"
	tokenKey       = "x_auth_token"
)

// ErrTokenNotFound is returned when no auth token has been saved.
var ErrTokenNotFound = errors.New("no stored auth token")

// TokenStore keeps the X auth_token cookie in the system keychain.
type TokenStore struct {
	service string
}

// NewTokenStore creates a keychain-backed token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{service: keyringService}
}

// Save stores token, replacing any previous one.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("auth token must not be empty")
	}
	if err := keyring.Set(s.service, tokenKey, token); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Load returns the stored token.
func (s *TokenStore) Load() (string, error) {
	token, err := keyring.Get(s.service, tokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to read from keyring: %w", err)
	}
	return token, nil
}

// Delete removes the stored token.
func (s *TokenStore) Delete() error {
	if err := keyring.Delete(s.service, tokenKey); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Resolve returns configured when set, otherwise the stored token.
// The second result names where the token came from.
func (s *TokenStore) Resolve(configured string) (string, string, error) {
	if configured != "" {
		return configured, "config", nil
	}
	token, err := s.Load()
	if err != nil {
		return "", "", err
	}
	return token, "keyring", nil
}

// Mask shortens a token for display.
func Mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
