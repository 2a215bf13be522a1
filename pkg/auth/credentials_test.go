package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStoreAndRetrieve(t *testing.T) {
	m := NewManagerWithStores(NewMockStore())

	err := m.Store(&Account{Username: "archivist", Password: "hunter2"})
	require.NoError(t, err)

	account, err := m.Retrieve("archivist")
	require.NoError(t, err)
	assert.Equal(t, "archivist", account.Username)
	assert.Equal(t, "hunter2", account.Password)
	assert.False(t, account.LastModified.IsZero())
}

func TestManagerRejectsIncompleteAccounts(t *testing.T) {
	m := NewManagerWithStores(NewMockStore())

	assert.Error(t, m.Store(&Account{Password: "hunter2"}))
	assert.Error(t, m.Store(&Account{Username: "archivist"}))
}

func TestManagerFallsThroughFailedStore(t *testing.T) {
	broken := NewMockStore()
	broken.FailStore = true
	working := NewMockStore()

	m := NewManagerWithStores(broken, working)

	require.NoError(t, m.Store(&Account{Username: "archivist", Password: "hunter2"}))
	assert.False(t, broken.Exists("archivist"))
	assert.True(t, working.Exists("archivist"))
}

func TestManagerRetrieveChecksStoresInOrder(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	require.NoError(t, second.Store(&Account{Username: "archivist", Password: "from-second"}))

	m := NewManagerWithStores(first, second)

	account, err := m.Retrieve("archivist")
	require.NoError(t, err)
	assert.Equal(t, "from-second", account.Password)
}

func TestManagerRetrieveUnknownUser(t *testing.T) {
	m := NewManagerWithStores(NewMockStore())

	_, err := m.Retrieve("nobody")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerListPrefersNewestVersion(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()

	past := time.Now().Add(-time.Hour)
	older.accounts["archivist"] = &Account{Username: "archivist", Password: "old", LastModified: past}
	newer.accounts["archivist"] = &Account{Username: "archivist", Password: "new", LastModified: time.Now()}

	m := NewManagerWithStores(older, newer)

	accounts, err := m.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "new", accounts[0].Password)
}

func TestManagerDeleteRemovesFromAllStores(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	require.NoError(t, first.Store(&Account{Username: "archivist", Password: "x"}))
	require.NoError(t, second.Store(&Account{Username: "archivist", Password: "x"}))

	m := NewManagerWithStores(first, second)

	require.NoError(t, m.Delete("archivist"))
	assert.False(t, first.Exists("archivist"))
	assert.False(t, second.Exists("archivist"))
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("IGARCHIVE_PASSPHRASE", "test-passphrase")

	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{Username: "archivist", Password: "hunter2", LastModified: time.Now()}
	require.NoError(t, store.Store(account))

	loaded, err := store.Retrieve("archivist")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", loaded.Password)

	// file on disk must not contain the password in the clear
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hunter2")
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv("IGARCHIVE_PASSPHRASE", "first-passphrase")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "archivist", Password: "hunter2"}))

	t.Setenv("IGARCHIVE_PASSPHRASE", "other-passphrase")
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = reopened.Retrieve("archivist")
	assert.Error(t, err, "wrong passphrase must not decrypt")
}

func TestEncryptedFileStoreDeleteLastAccountRemovesFile(t *testing.T) {
	t.Setenv("IGARCHIVE_PASSPHRASE", "test-passphrase")

	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "archivist", Password: "hunter2"}))
	require.NoError(t, store.Delete("archivist"))

	assert.False(t, store.Exists("archivist"))
}

func TestEnvironmentStoreRetrieve(t *testing.T) {
	t.Setenv("IGARCHIVE_USERNAME", "archivist")
	t.Setenv("IGARCHIVE_PASSWORD", "hunter2")

	store := NewEnvironmentStore()

	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "archivist", account.Username)
	assert.Equal(t, "hunter2", account.Password)

	account, err = store.Retrieve("archivist")
	require.NoError(t, err)
	assert.Equal(t, "archivist", account.Username)

	_, err = store.Retrieve("someone-else")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEnvironmentStoreIsReadOnly(t *testing.T) {
	store := NewEnvironmentStore()

	assert.ErrorIs(t, store.Store(&Account{Username: "a", Password: "b"}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("a"), ErrStoreUnavailable)
}

func TestSanitizeAccountMasksPassword(t *testing.T) {
	account := &Account{Username: "archivist", Password: "hunter2"}

	safe := SanitizeAccount(account)

	assert.Equal(t, "archivist", safe.Username)
	assert.NotContains(t, safe.Password, "hunter2")
	assert.Equal(t, "hunter2", account.Password, "original untouched")

	assert.Nil(t, SanitizeAccount(nil))
}
