package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"magistodl/pkg/config"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{
		Name:     "family",
		Email:    "me@example.com",
		Password: "correct horse battery",
	}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())

	retrieved, err := manager.Retrieve("family")
	require.NoError(t, err)
	assert.Equal(t, account.Email, retrieved.Email)
	assert.Equal(t, account.Password, retrieved.Password)

	accounts, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("family"))
	_, err = manager.Retrieve("family")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Zero(t, mockStore.Count())

	assert.ErrorIs(t, manager.Delete("family"), ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	tests := []struct {
		name    string
		account *Account
	}{
		{"nil", nil},
		{"no email", &Account{Password: "secret"}},
		{"no password", &Account{Email: "me@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, manager.Store(tt.account))
		})
	}
}

func TestAccountKeyDefaultsToEmail(t *testing.T) {
	manager, mockStore := NewMockManager()
	require.NoError(t, manager.Store(&Account{Email: "me@example.com", Password: "secret"}))

	assert.True(t, mockStore.Exists("me@example.com"))
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Name: "family", Email: "me@example.com", Password: "correct horse battery"}

	sanitized := SanitizeAccount(account)

	assert.Equal(t, "co...ry", sanitized.Password)
	assert.Equal(t, account.Email, sanitized.Email)
	assert.Equal(t, "********", SanitizeAccount(&Account{Password: "short"}).Password)
	assert.Nil(t, SanitizeAccount(nil))
}

func TestManagerResolve(t *testing.T) {
	t.Setenv("MAGISTODL_EMAIL", "")
	t.Setenv("MAGISTODL_PASSWORD", "")

	stored := &Account{Name: "family", Email: "stored@example.com", Password: "stored-secret"}

	tests := []struct {
		name    string
		stored  bool
		in      config.CredentialsConfig
		want    config.CredentialsConfig
		wantErr error
	}{
		{
			name:   "complete pair kept",
			stored: true,
			in:     config.CredentialsConfig{Email: "cli@example.com", Password: "cli"},
			want:   config.CredentialsConfig{Email: "cli@example.com", Password: "cli"},
		},
		{
			name:   "named account wins over pair",
			stored: true,
			in:     config.CredentialsConfig{Email: "cli@example.com", Password: "cli", Account: "family"},
			want:   config.CredentialsConfig{Email: "stored@example.com", Password: "stored-secret", Account: "family"},
		},
		{
			name:    "named account missing",
			in:      config.CredentialsConfig{Account: "family"},
			want:    config.CredentialsConfig{Account: "family"},
			wantErr: ErrCredentialsNotFound,
		},
		{
			name:   "default account fills empty pair",
			stored: true,
			want:   config.CredentialsConfig{Email: "stored@example.com", Password: "stored-secret"},
		},
		{
			name:   "default account for a different email ignored",
			stored: true,
			in:     config.CredentialsConfig{Email: "other@example.com"},
			want:   config.CredentialsConfig{Email: "other@example.com"},
		},
		{
			name: "nothing stored means manual login",
			want: config.CredentialsConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, _ := NewMockManager()
			if tt.stored {
				require.NoError(t, manager.Store(stored))
			}

			got, err := manager.Resolve(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")
	t.Setenv("MAGISTODL_PASSPHRASE", "test_passphrase_123")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{Name: "family", Email: "enc@example.com", Password: "encrypted_password"}
	require.NoError(t, store.Store(account))

	retrieved, err := store.Retrieve("family")
	require.NoError(t, err)
	assert.Equal(t, account.Password, retrieved.Password)
	assert.True(t, store.Exists("family"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("encrypted_password")), "file holds plaintext password")
	assert.False(t, bytes.Contains(content, []byte("enc@example.com")), "file holds plaintext email")

	// A different passphrase cannot read the file
	t.Setenv("MAGISTODL_PASSPHRASE", "wrong")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("family")
	assert.Error(t, err)

	t.Setenv("MAGISTODL_PASSPHRASE", "test_passphrase_123")
	require.NoError(t, store.Delete("family"))
	assert.NoFileExists(t, path)
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv("MAGISTODL_PASSPHRASE", "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Email: "me@example.com", Password: "secret"}))

	assert.FileExists(t, filepath.Join(dir, ".passphrase"))

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	got, err := reopened.Retrieve("me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Password)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("MAGISTODL_EMAIL", "env@example.com")
	t.Setenv("MAGISTODL_PASSWORD", "env_password")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", account.Email)
	assert.Equal(t, "env_password", account.Password)

	_, err = store.Retrieve("someone-else")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	assert.ErrorIs(t, store.Store(&Account{}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("env@example.com"), ErrStoreUnavailable)
}

func TestRetrieveDefaultPrefersEnvironment(t *testing.T) {
	t.Setenv("MAGISTODL_EMAIL", "env@example.com")
	t.Setenv("MAGISTODL_PASSWORD", "env_password")

	mock := NewMockStore()
	require.NoError(t, mock.Store(&Account{Email: "stored@example.com", Password: "x", LastModified: time.Now()}))
	manager := NewManagerWithStores(mock, NewEnvironmentStore())

	account, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", account.Email)
}

func TestRetrieveDefaultMostRecent(t *testing.T) {
	t.Setenv("MAGISTODL_EMAIL", "")
	t.Setenv("MAGISTODL_PASSWORD", "")

	mock := NewMockStore()
	now := time.Now()
	require.NoError(t, mock.Store(&Account{Email: "old@example.com", Password: "x", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, mock.Store(&Account{Email: "new@example.com", Password: "y", LastModified: now}))
	manager := NewManagerWithStores(mock, NewEnvironmentStore())

	account, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", account.Email)
}

func TestMockStoreErrorInjection(t *testing.T) {
	store := NewMockStore()
	injected := errors.New("injected error")
	store.ListError = injected

	_, err := store.List()
	assert.ErrorIs(t, err, injected)

	manager := NewManagerWithStores(store)
	accounts, err := manager.List()
	require.NoError(t, err, "failing stores are skipped")
	assert.Empty(t, accounts)
}
