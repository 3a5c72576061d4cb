package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securechat/securechat/internal/events"
	"github.com/securechat/securechat/internal/models"
	"github.com/securechat/securechat/internal/store"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

type capturingSender struct {
	email string
	code  string
	err   error
}

func (c *capturingSender) SendCode(_ context.Context, email, code string, _ time.Time) error {
	if c.err != nil {
		return c.err
	}
	c.email = email
	c.code = code
	return nil
}

func newTestService(t *testing.T) (*Service, *capturingSender, *store.MemoryStore) {
	t.Helper()

	logger := events.NewTestLogger(events.ErrorLevel, "text", testWriter{t})
	st := store.NewMemoryStore()
	sender := &capturingSender{}
	svc := NewService(st, st, sender, 6, 15*time.Minute, logger)
	return svc, sender, st
}

func insertUser(t *testing.T, st *store.MemoryStore, email string) *models.User {
	t.Helper()

	user := &models.User{Email: email, PasswordHash: "record", CreatedAt: time.Now().UTC()}
	require.NoError(t, st.InsertUser(context.Background(), user))
	return user
}

func TestRequestAndConfirm(t *testing.T) {
	svc, sender, st := newTestService(t)
	ctx := context.Background()

	user := insertUser(t, st, "alice@example.com")

	require.NoError(t, svc.Request(ctx, "Alice@Example.com"))
	assert.Equal(t, "alice@example.com", sender.email)
	assert.Len(t, sender.code, 6)
	for _, r := range sender.code {
		assert.True(t, r >= '0' && r <= '9')
	}

	require.NoError(t, svc.Confirm(ctx, "alice@example.com", sender.code))

	verified, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
}

func TestRequestUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Request(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestRequestSenderFailure(t *testing.T) {
	svc, sender, st := newTestService(t)
	ctx := context.Background()

	insertUser(t, st, "alice@example.com")
	sender.err = errors.New("smtp unavailable")

	assert.Error(t, svc.Request(ctx, "alice@example.com"))
}

func TestConfirmWrongCode(t *testing.T) {
	svc, sender, st := newTestService(t)
	ctx := context.Background()

	user := insertUser(t, st, "alice@example.com")
	require.NoError(t, svc.Request(ctx, "alice@example.com"))

	err := svc.Confirm(ctx, "alice@example.com", "000000")
	if sender.code == "000000" {
		t.Skip("random code collided with the wrong-code fixture")
	}
	assert.ErrorIs(t, err, models.ErrVerifyNotFound)

	unverified, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, unverified.Verified)
}

func TestConfirmSingleUse(t *testing.T) {
	svc, sender, st := newTestService(t)
	ctx := context.Background()

	insertUser(t, st, "alice@example.com")
	require.NoError(t, svc.Request(ctx, "alice@example.com"))
	require.NoError(t, svc.Confirm(ctx, "alice@example.com", sender.code))

	err := svc.Confirm(ctx, "alice@example.com", sender.code)
	assert.ErrorIs(t, err, models.ErrVerifyUsed)
}

func TestConfirmExpiredCode(t *testing.T) {
	svc, sender, st := newTestService(t)
	ctx := context.Background()

	insertUser(t, st, "alice@example.com")
	require.NoError(t, svc.Request(ctx, "alice@example.com"))

	// Jump past the TTL.
	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	err := svc.Confirm(ctx, "alice@example.com", sender.code)
	assert.ErrorIs(t, err, models.ErrVerifyExpired)
}

func TestCleanupExpired(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()

	insertUser(t, st, "alice@example.com")
	require.NoError(t, svc.Request(ctx, "alice@example.com"))

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
