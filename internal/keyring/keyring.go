package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/tally/internal/constants"
)

var (
	// ErrNotFound is returned when no credential is stored in the keyring
	ErrNotFound = errors.New("credential not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Store persists a single secret value.
type Store interface {
	Get() (string, error)
	Set(secret string) error
	Delete() error
}

// OSStore keeps the secret in the OS keyring under a fixed service/account pair.
type OSStore struct {
	service string
	account string
}

var _ Store = (*OSStore)(nil)

func New(service, account string) *OSStore {
	return &OSStore{service: service, account: account}
}

// Default returns the store used for the bearer token.
func Default() *OSStore {
	return New(constants.KeyringService, constants.KeyringAccount)
}

// Get retrieves the secret from the OS keyring.
// Returns ErrNotFound if nothing is stored.
func (s *OSStore) Get() (string, error) {
	secret, err := keyring.Get(s.service, s.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return secret, nil
}

// Set stores the secret in the OS keyring, replacing any previous value.
func (s *OSStore) Set(secret string) error {
	if secret == "" {
		return errors.New("secret cannot be empty")
	}
	if err := keyring.Set(s.service, s.account, secret); err != nil {
		return fmt.Errorf("failed to store credential in keyring: %w", err)
	}
	return nil
}

// Delete removes the secret from the OS keyring.
func (s *OSStore) Delete() error {
	err := keyring.Delete(s.service, s.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credential from keyring: %w", err)
	}
	return nil
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.KeyringService, "test-availability")
	// ErrNotFound means the keyring answered, it is just empty
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
