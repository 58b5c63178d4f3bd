// Package auth stores and resolves the bearer token used by the profile lookup API.
package auth

// file: internal/auth/token_storage.go

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/config"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/zalando/go-keyring"
)

// Token sources reported by ResolveBearerToken.
const (
	SourceConfig  = "config"
	SourceKeyring = "keyring"
	SourceNone    = "none"
)

// TokenData is the keyring entry. The token is kept with timestamps so
// "token status" can say when it was stored without revealing it.
type TokenData struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenStore defines storage for the bearer token.
type TokenStore interface {
	// LoadToken returns the stored token, or "" when none is stored.
	LoadToken() (string, error)

	// SaveToken stores token, replacing any previous one.
	SaveToken(token string) error

	// DeleteToken removes the stored token. Deleting a missing token is not an error.
	DeleteToken() error
}

// KeyringTokenStore keeps the token in the OS keyring.
type KeyringTokenStore struct {
	service string
	user    string
	logger  logging.Logger
}

var _ TokenStore = (*KeyringTokenStore)(nil)

// NewKeyringTokenStore creates a keyring-backed store. Empty service or user fall back
// to config.DefaultKeyringService and config.DefaultKeyringUser.
func NewKeyringTokenStore(service, user string, logger logging.Logger) *KeyringTokenStore {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	if service == "" {
		service = config.DefaultKeyringService
	}
	if user == "" {
		user = config.DefaultKeyringUser
	}
	return &KeyringTokenStore{
		service: service,
		user:    user,
		logger:  logger.WithField("component", "keyring_token_store"),
	}
}

// LoadToken loads the token from the OS keyring.
func (s *KeyringTokenStore) LoadToken() (string, error) {
	data, err := s.GetTokenData()
	if err != nil || data == nil {
		return "", err
	}
	return data.Token, nil
}

// GetTokenData returns the full keyring entry, or nil when none is stored.
func (s *KeyringTokenStore) GetTokenData() (*TokenData, error) {
	raw, err := keyring.Get(s.service, s.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			s.logger.Debug("No bearer token found in system keyring.", "service", s.service, "account", s.user)
			return nil, nil
		}
		s.logger.Error("keyring.Get operation failed.", "error", fmt.Sprintf("%+v", err))
		return nil, errors.Wrap(err, "failed to load token from system keyring")
	}

	var data TokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		// Entries written by hand (e.g. with the OS keychain tool) hold the bare token.
		s.logger.Debug("Keyring entry is not token data, treating it as a bare token.")
		return &TokenData{Token: raw}, nil
	}
	return &data, nil
}

// SaveToken stores token in the OS keyring, keeping the original creation time.
func (s *KeyringTokenStore) SaveToken(token string) error {
	if token == "" {
		return errors.New("cannot save empty token to keyring")
	}

	now := time.Now().UTC()
	data := TokenData{Token: token, CreatedAt: now, UpdatedAt: now}
	if existing, err := s.GetTokenData(); err == nil && existing != nil && !existing.CreatedAt.IsZero() {
		data.CreatedAt = existing.CreatedAt
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "failed to encode token data for keyring")
	}
	if err := keyring.Set(s.service, s.user, string(encoded)); err != nil {
		s.logger.Error("keyring.Set operation failed.", "error", fmt.Sprintf("%+v", err))
		return errors.Wrap(err, "failed to save token to system keyring")
	}

	s.logger.Info("Bearer token saved to system keyring.", "service", s.service, "account", s.user)
	return nil
}

// DeleteToken removes the token from the OS keyring.
func (s *KeyringTokenStore) DeleteToken() error {
	err := keyring.Delete(s.service, s.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			s.logger.Debug("No token to delete - system keyring entry not found.")
			return nil
		}
		s.logger.Error("Failed to delete token from system keyring.", "error", err)
		return errors.Wrap(err, "failed to delete token from system keyring")
	}
	s.logger.Info("Bearer token deleted from system keyring.")
	return nil
}

// ResolveBearerToken picks the token for profile lookups: the configured value
// (config file or STICKYNOTES_PROFILE_TOKEN) first, then store. A missing token is not
// an error; requests are then sent with an empty bearer value.
// The token itself is never logged.
func ResolveBearerToken(cfg config.ProfileConfig, store TokenStore, logger logging.Logger) (string, string, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	if cfg.BearerToken != "" {
		logger.Debug("Using bearer token from configuration.", "source", SourceConfig)
		return cfg.BearerToken, SourceConfig, nil
	}
	if store == nil {
		logger.Warn("No bearer token configured and no token store available.")
		return "", SourceNone, nil
	}

	token, err := store.LoadToken()
	if err != nil {
		return "", SourceNone, errors.Wrap(err, "failed to resolve bearer token")
	}
	if token == "" {
		logger.Warn("No bearer token configured; profile lookups will likely be rejected.")
		return "", SourceNone, nil
	}
	logger.Debug("Using bearer token from keyring.", "source", SourceKeyring)
	return token, SourceKeyring, nil
}
