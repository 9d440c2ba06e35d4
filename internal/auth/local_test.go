package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupTestProvider(t *testing.T) *Local {
	t.Helper()

	l, err := NewLocal(LocalConfig{
		Path:     filepath.Join(t.TempDir(), "users.db"),
		Secret:   "test-secret",
		HashCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = l.Close() })

	return l
}

func TestNewLocal_RequiresSecret(t *testing.T) {
	_, err := NewLocal(LocalConfig{Path: filepath.Join(t.TempDir(), "users.db")})
	require.Error(t, err)
}

func TestCreateUser_Validation(t *testing.T) {
	l := setupTestProvider(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"no at sign", "admin.example.com", "secret1", ErrInvalidEmail},
		{"short password", "admin@example.com", "12345", ErrWeakPassword},
		{"ok", "admin@example.com", "123456", nil},
		{"duplicate", "ADMIN@example.com", "123456", ErrUserExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.CreateUser(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestSignInVerify(t *testing.T) {
	l := setupTestProvider(t)
	ctx := context.Background()

	u, err := l.CreateUser(ctx, "editor@example.com", "password")
	require.NoError(t, err)

	_, err = l.SignIn(ctx, "editor@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = l.SignIn(ctx, "nobody@example.com", "password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := l.SignIn(ctx, " Editor@Example.com ", "password")
	require.NoError(t, err)

	id, err := l.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.UID, id.UID)
	assert.Equal(t, "editor@example.com", id.Email)
	assert.False(t, id.IsAdmin())

	// claims are read from the store on every verify
	_, err = l.GrantAdmin(ctx, "editor@example.com")
	require.NoError(t, err)

	id, err = l.Verify(ctx, token)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())

	stored, err := l.GetUser(ctx, "editor@example.com")
	require.NoError(t, err)
	assert.False(t, stored.LastSignIn.IsZero())
}

func TestVerify_Rejects(t *testing.T) {
	l := setupTestProvider(t)
	ctx := context.Background()

	_, err := l.CreateUser(ctx, "a@example.com", "password")
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := l.Verify(ctx, "")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := l.Verify(ctx, "not.a.token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewLocal(LocalConfig{
			Path:     filepath.Join(t.TempDir(), "other.db"),
			Secret:   "different",
			HashCost: bcrypt.MinCost,
		})
		require.NoError(t, err)

		defer func() { _ = other.Close() }()

		_, err = other.CreateUser(ctx, "a@example.com", "password")
		require.NoError(t, err)

		token, err := other.SignIn(ctx, "a@example.com", "password")
		require.NoError(t, err)

		_, err = l.Verify(ctx, token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		l.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		defer func() { l.now = time.Now }()

		token, err := l.SignIn(ctx, "a@example.com", "password")
		require.NoError(t, err)

		_, err = l.Verify(ctx, token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("signed out", func(t *testing.T) {
		token, err := l.SignIn(ctx, "a@example.com", "password")
		require.NoError(t, err)

		require.NoError(t, l.SignOut(ctx, token))

		_, err = l.Verify(ctx, token)
		require.ErrorIs(t, err, ErrInvalidToken)

		// signing out twice or with junk is harmless
		require.NoError(t, l.SignOut(ctx, token))
		require.NoError(t, l.SignOut(ctx, "junk"))
	})

	t.Run("deleted user", func(t *testing.T) {
		_, err := l.CreateUser(ctx, "gone@example.com", "password")
		require.NoError(t, err)

		token, err := l.SignIn(ctx, "gone@example.com", "password")
		require.NoError(t, err)

		require.NoError(t, l.DeleteUser(ctx, "gone@example.com"))

		_, err = l.Verify(ctx, token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestClaims(t *testing.T) {
	l := setupTestProvider(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := l.CreateUser(ctx, email, "password")
		require.NoError(t, err)
	}

	claims, err := l.SetClaim(ctx, "a@example.com", "role", "editor")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"role": "editor"}, claims)

	claims, err = l.GrantAdmin(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"admin": true, "role": "admin"}, claims)

	withRole, err := l.ListUsersWithClaim(ctx, "role", nil)
	require.NoError(t, err)
	assert.Len(t, withRole, 2)

	admins, err := l.ListUsersWithClaim(ctx, "admin", "true")
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "b@example.com", admins[0].Email)

	anyClaims, err := l.ListUsersWithClaim(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, anyClaims, 2)

	claims, removed, err := l.RemoveClaim(ctx, "a@example.com", "role")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, claims)

	_, removed, err = l.RemoveClaim(ctx, "a@example.com", "role")
	require.NoError(t, err)
	assert.False(t, removed)

	// revoking admin keeps a non-admin role
	_, err = l.SetClaim(ctx, "c@example.com", "role", "editor")
	require.NoError(t, err)
	_, err = l.SetClaim(ctx, "c@example.com", "admin", true)
	require.NoError(t, err)

	claims, err = l.RevokeAdmin(ctx, "c@example.com")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"role": "editor"}, claims)

	_, err = l.SetClaim(ctx, "missing@example.com", "x", 1)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestHasAdminClaim(t *testing.T) {
	tests := []struct {
		claims map[string]any
		want   bool
	}{
		{nil, false},
		{map[string]any{"admin": true}, true},
		{map[string]any{"admin": false}, false},
		{map[string]any{"admin": "true"}, false},
		{map[string]any{"role": "admin"}, true},
		{map[string]any{"role": "editor"}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HasAdminClaim(tt.claims), "%v", tt.claims)
	}

	var nilID *Identity
	assert.False(t, nilID.IsAdmin())
}

func TestSetPassword(t *testing.T) {
	l := setupTestProvider(t)
	ctx := context.Background()

	_, err := l.CreateUser(ctx, "a@example.com", "password")
	require.NoError(t, err)

	require.ErrorIs(t, l.SetPassword(ctx, "a@example.com", "123"), ErrWeakPassword)
	require.NoError(t, l.SetPassword(ctx, "a@example.com", "new-password"))

	_, err = l.SignIn(ctx, "a@example.com", "password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = l.SignIn(ctx, "a@example.com", "new-password")
	require.NoError(t, err)
}
