package auth

import (
	"context"
	"testing"
	"time"

	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGenerateKey_RawShownOnceHashStored(t *testing.T) {
	mgr := NewManager(NewMemoryKeyStore())
	ctx := context.Background()

	raw, key, err := mgr.GenerateKey(ctx, "org_1", "usr_1", "CI key", authz.RoleUser, nil)
	require.NoError(t, err)

	assert.True(t, len(raw) > 10)
	assert.Equal(t, "sk_", raw[:3])
	assert.Equal(t, raw[:8], key.Preview)
	assert.NotContains(t, key.Hash, raw)
	assert.Equal(t, "org_1", key.OrgID)
	assert.Equal(t, authz.RoleUser, key.Role)
}

func TestValidateKey(t *testing.T) {
	store := NewMemoryKeyStore()
	mgr := NewManager(store)
	ctx := context.Background()

	raw, key, err := mgr.GenerateKey(ctx, "org_1", "usr_1", "CI key", authz.RoleManager, nil)
	require.NoError(t, err)

	got, err := mgr.ValidateKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)

	actor := got.Actor()
	assert.Equal(t, "org_1", actor.OrgID)
	assert.Equal(t, authz.RoleManager, actor.Role)
	assert.False(t, actor.Staff)

	// Bearer prefix is tolerated.
	_, err = mgr.ValidateKey(ctx, "Bearer "+raw)
	assert.NoError(t, err)

	_, err = mgr.ValidateKey(ctx, "sk_0000000000")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = mgr.ValidateKey(ctx, "not-a-key")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = mgr.ValidateKey(ctx, "")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestValidateKey_RevokedAndExpired(t *testing.T) {
	store := NewMemoryKeyStore()
	mgr := NewManager(store)
	ctx := context.Background()

	raw, key, err := mgr.GenerateKey(ctx, "org_1", "usr_1", "to revoke", authz.RoleUser, nil)
	require.NoError(t, err)
	require.NoError(t, mgr.RevokeKey(ctx, "org_1", key.ID))

	_, err = mgr.ValidateKey(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidKey)

	past := time.Now().Add(-time.Hour)
	rawExp, _, err := mgr.GenerateKey(ctx, "org_1", "usr_1", "expired", authz.RoleUser, &past)
	require.NoError(t, err)

	_, err = mgr.ValidateKey(ctx, rawExp)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestRevokeKey_WrongOrg(t *testing.T) {
	mgr := NewManager(NewMemoryKeyStore())
	ctx := context.Background()

	_, key, err := mgr.GenerateKey(ctx, "org_1", "usr_1", "k", authz.RoleUser, nil)
	require.NoError(t, err)

	err = mgr.RevokeKey(ctx, "org_other", key.ID)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyStoreTouch(t *testing.T) {
	store := NewMemoryKeyStore()
	mgr := NewManager(store)
	ctx := context.Background()

	_, key, err := mgr.GenerateKey(ctx, "org_1", "usr_1", "k", authz.RoleUser, nil)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.Touch(ctx, key.ID, now))
	require.NoError(t, store.Touch(ctx, key.ID, now))

	keys, err := store.ListByOrg(ctx, "org_1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, int64(2), keys[0].UsageCount)
	assert.WithinDuration(t, now, keys[0].LastUsed, time.Second)
}

func testUser() *user.User {
	return &user.User{
		ID:    "usr_1",
		OrgID: "org_1",
		Email: "a@acme.test",
		Role:  authz.RoleAdmin,
	}
}

func TestTokenManager_IssueAndParse(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	access, refresh, err := tm.Issue(testUser())
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := tm.Parse(access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", claims.Subject)
	assert.Equal(t, "org_1", claims.OrgID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, TokenTypeAccess, claims.Typ)

	rc, err := tm.Parse(refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, rc.Typ)
}

func TestTokenManager_WrongTypRejected(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	access, refresh, err := tm.Issue(testUser())
	require.NoError(t, err)

	_, err = tm.Parse(refresh, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenUse)

	_, err = tm.Parse(access, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenUse)
}

func TestTokenManager_ExpiredRejected(t *testing.T) {
	tm := NewTokenManager(testSecret, -time.Minute, 7*24*time.Hour)

	access, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	_, err = tm.Parse(access, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_WrongSecretRejected(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	other := NewTokenManager("another-secret-another-secret-00", 15*time.Minute, 7*24*time.Hour)

	access, _, err := tm.Issue(testUser())
	require.NoError(t, err)

	_, err = other.Parse(access, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_GarbageRejected(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	_, err := tm.Parse("not.a.jwt", TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
