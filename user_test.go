package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsers(t *testing.T) (*UserManager, *Storage) {
	t.Helper()
	storage := NewStorage(t.TempDir())
	um := NewUserManager(storage, newTestLogger().WithField("component", "users"))
	return um, storage
}

func TestUserRegisterLoginValidate(t *testing.T) {
	um, _ := newTestUsers(t)
	require.NoError(t, um.Register("alice", "secret"))

	// Duplicate registration rejected.
	assert.Error(t, um.Register("alice", "other"))

	_, err := um.Login("alice", "wrong")
	assert.Error(t, err)

	token, err := um.Login("alice", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	username, err := um.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	um.Logout(token)
	_, err = um.ValidateToken(token)
	assert.Error(t, err)
}

func TestUserRegisterValidation(t *testing.T) {
	um, _ := newTestUsers(t)
	assert.Error(t, um.Register("", "pw"))
	assert.Error(t, um.Register("alice", ""))
	assert.Error(t, um.Register("System", "pw"))
}

func TestUserSessionExpiry(t *testing.T) {
	um, _ := newTestUsers(t)
	require.NoError(t, um.Register("alice", "secret"))
	token, err := um.Login("alice", "secret")
	require.NoError(t, err)

	um.mu.Lock()
	um.sessions[token].ExpiresAt = time.Now().Add(-time.Minute)
	um.mu.Unlock()

	_, err = um.ValidateToken(token)
	assert.Error(t, err)
	// Expired session is removed on validation.
	um.mu.RLock()
	_, exists := um.sessions[token]
	um.mu.RUnlock()
	assert.False(t, exists)
}

func TestUserLoadCreatesDefaultOperator(t *testing.T) {
	um, storage := newTestUsers(t)
	um.Load()

	_, err := um.Login("editor", "editor")
	require.NoError(t, err)

	// Users persist across restarts and the default is not recreated.
	um2 := NewUserManager(storage, newTestLogger().WithField("component", "users"))
	require.NoError(t, um.Register("alice", "secret"))
	um2.Load()
	_, err = um2.Login("alice", "secret")
	assert.NoError(t, err)
}

func TestValidateUnknownToken(t *testing.T) {
	um, _ := newTestUsers(t)
	_, err := um.ValidateToken("bogus")
	assert.Error(t, err)
	_, err = um.ValidateToken("")
	assert.Error(t, err)
}
