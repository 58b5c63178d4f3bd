package auth

// file: internal/auth/file_token_store.go

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/config"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/zalando/go-keyring"
)

// FileTokenStore keeps the token in a 0600 file. It is the fallback when the OS
// keyring cannot be reached (headless Linux without a secret service, containers).
type FileTokenStore struct {
	path   string
	logger logging.Logger
}

var _ TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore creates a file-backed store, creating the token directory.
func NewFileTokenStore(path string, logger logging.Logger) (*FileTokenStore, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	if path == "" {
		return nil, errors.New("token file path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrapf(err, "failed to create token directory for %s", path)
	}
	return &FileTokenStore{
		path:   path,
		logger: logger.WithField("component", "file_token_store"),
	}, nil
}

// LoadToken reads the token file. A missing file means no token.
func (s *FileTokenStore) LoadToken() (string, error) {
	// #nosec G304 -- path comes from configuration.
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", errors.Wrapf(err, "failed to read token file %s", s.path)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken writes token with owner-only permissions.
func (s *FileTokenStore) SaveToken(token string) error {
	if token == "" {
		return errors.New("cannot save empty token")
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return errors.Wrapf(err, "failed to write token file %s", s.path)
	}
	s.logger.Info("Bearer token saved to file.", "path", s.path)
	return nil
}

// DeleteToken removes the token file if it exists.
func (s *FileTokenStore) DeleteToken() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "failed to delete token file %s", s.path)
	}
	return nil
}

// KeyringAvailable reports whether the OS keyring answers at all. A missing entry counts
// as available.
func KeyringAvailable(service, user string) bool {
	_, err := keyring.Get(service, user)
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// NewTokenStore returns the keyring store when the keyring is reachable and the file
// store otherwise.
func NewTokenStore(cfg config.AuthConfig, logger logging.Logger) (TokenStore, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	keyringStore := NewKeyringTokenStore(cfg.KeyringService, cfg.KeyringUser, logger)
	if KeyringAvailable(keyringStore.service, keyringStore.user) {
		logger.Debug("Using OS keyring for bearer token storage.")
		return keyringStore, nil
	}
	logger.Info("OS keyring not available, falling back to file-based token storage.", "path", cfg.TokenFile)
	return NewFileTokenStore(cfg.TokenFile, logger)
}
