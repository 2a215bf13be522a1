package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from IGARCHIVE_USERNAME and
// IGARCHIVE_PASSWORD. It is read-only and meant for headless runs.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	envUsername := os.Getenv("IGARCHIVE_USERNAME")
	password := os.Getenv("IGARCHIVE_PASSWORD")

	if envUsername == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != envUsername {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     envUsername,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account if one is configured
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for the username
func (e *EnvironmentStore) Exists(username string) bool {
	account, err := e.Retrieve(username)
	return err == nil && account != nil
}
