package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securechat/securechat/internal/crypto"
	"github.com/securechat/securechat/internal/events"
	"github.com/securechat/securechat/internal/models"
	"github.com/securechat/securechat/internal/services/accounts"
	"github.com/securechat/securechat/internal/store"
)

func newTestService(t *testing.T) (*accounts.Service, *store.MemoryStore) {
	t.Helper()

	logger := events.NewTestLogger(events.ErrorLevel, "text", testWriter{t})
	st := store.NewMemoryStore()
	return accounts.NewService(st, crypto.NewProvider(), logger), st
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  Alice@Example.com ", "password123")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotZero(t, user.ID)
	assert.True(t, user.HasKeys())
	assert.False(t, user.Verified)
	// The password is stored as a derived record, never plaintext.
	assert.NotContains(t, user.PasswordHash, "password123")
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "password123"},
		{"no at sign", "alice.example.com", "password123"},
		{"short password", "alice@example.com", "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password)
			require.Error(t, err)

			var reqErr *models.RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, models.ErrCodeValidation, reqErr.Code)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "ALICE@example.com", "different456")
	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, models.ErrInvalidLogin)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, models.ErrInvalidLogin)
}

func TestSessionLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	token, err := svc.StartSession(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resolved, err := svc.UserForSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	_, err = svc.UserForSession(ctx, "bogus-token")
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)

	_, err = svc.UserForSession(ctx, "")
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)

	svc.EndSession(token)
	_, err = svc.UserForSession(ctx, token)
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}

func TestMarkVerified(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.MarkVerified(ctx, user.ID))

	updated, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.Verified)
}
