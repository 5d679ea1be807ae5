package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

// CredentialStore keeps the access token in the system keyring, falling
// back to a private file when no keyring is reachable.
type CredentialStore struct {
	service  string
	key      string
	fallback string
	logger   *zap.Logger
}

// NewCredentialStore creates a store. fallback may be empty to disable the file.
func NewCredentialStore(service, key, fallback string, logger *zap.Logger) *CredentialStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialStore{service: service, key: key, fallback: fallback, logger: logger}
}

// Load returns the stored token, or "" when none was saved.
func (s *CredentialStore) Load() (string, error) {
	token, err := keyring.Get(s.service, s.key)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		s.logger.Debug("keyring unavailable, reading fallback file", zap.Error(err))
	}

	if s.fallback == "" {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read credential: %w", err)
	}
	data, fileErr := os.ReadFile(s.fallback)
	if fileErr != nil {
		if errors.Is(fileErr, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read credential file: %w", fileErr)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save stores token, replacing any previous one.
func (s *CredentialStore) Save(token string) error {
	err := keyring.Set(s.service, s.key, token)
	if err == nil {
		return nil
	}
	if s.fallback == "" {
		return fmt.Errorf("write credential: %w", err)
	}
	s.logger.Debug("keyring unavailable, writing fallback file", zap.Error(err))
	if err := os.MkdirAll(filepath.Dir(s.fallback), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	if err := os.WriteFile(s.fallback, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

// Clear removes the token from both locations.
func (s *CredentialStore) Clear() error {
	err := keyring.Delete(s.service, s.key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.logger.Debug("keyring delete failed", zap.Error(err))
	}
	if s.fallback != "" {
		if err := os.Remove(s.fallback); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove credential file: %w", err)
		}
	}
	return nil
}
