package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads the credential pair from MAGISTODL_EMAIL and
// MAGISTODL_PASSWORD. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment pair. A non-empty name must match the
// email.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	email := os.Getenv("MAGISTODL_EMAIL")
	password := os.Getenv("MAGISTODL_PASSWORD")

	if email == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if name != "" && name != email {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:         "environment",
		Email:        email,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
