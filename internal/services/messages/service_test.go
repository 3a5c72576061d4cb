package messages_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securechat/securechat/internal/crypto"
	"github.com/securechat/securechat/internal/events"
	"github.com/securechat/securechat/internal/models"
	"github.com/securechat/securechat/internal/services/messages"
	"github.com/securechat/securechat/internal/store"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

type fixture struct {
	svc   *messages.Service
	store *store.MemoryStore
	alice *models.User
	bob   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := events.NewTestLogger(events.ErrorLevel, "text", testWriter{t})
	st := store.NewMemoryStore()
	provider := crypto.NewProvider()
	svc := messages.NewService(st, st, provider, logger)

	f := &fixture{svc: svc, store: st}
	f.alice = newUser(t, st, provider, "alice@example.com")
	f.bob = newUser(t, st, provider, "bob@example.com")
	return f
}

func newUser(t *testing.T, st *store.MemoryStore, provider crypto.Provider, email string) *models.User {
	t.Helper()

	pair, err := provider.GenerateKeyPair()
	require.NoError(t, err)

	user := &models.User{
		Email:        email,
		PasswordHash: "record",
		PublicKey:    string(pair.PublicKey),
		PrivateKey:   string(pair.PrivateKey),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, st.InsertUser(context.Background(), user))
	return user
}

func TestSendAndInbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, f.alice, "bob@example.com", "hello bob")
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	// Stored content is ciphertext.
	assert.NotContains(t, msg.EncryptedContent, "hello bob")

	inbox, err := f.svc.Inbox(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "hello bob", inbox[0].Content)
	assert.False(t, inbox[0].DecryptFailed)
	assert.Equal(t, "alice@example.com", inbox[0].SenderEmail)
	assert.False(t, inbox[0].IsRead)
}

func TestSendLongMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	long := strings.Repeat("secure messaging ", 100)
	_, err := f.svc.Send(ctx, f.alice, "bob@example.com", long)
	require.NoError(t, err)

	inbox, err := f.svc.Inbox(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, long, inbox[0].Content)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.alice, "bob@example.com", "   ")
	var reqErr *models.RequestError
	assert.ErrorAs(t, err, &reqErr)

	_, err = f.svc.Send(ctx, f.alice, "nobody@example.com", "hello")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestInboxDecryptFailedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Store a message whose ciphertext is not decryptable.
	require.NoError(t, f.store.InsertMessage(ctx, &models.Message{
		SenderID:         f.alice.ID,
		RecipientID:      f.bob.ID,
		EncryptedContent: "corrupted-ciphertext",
		SentAt:           time.Now().UTC(),
	}))

	inbox, err := f.svc.Inbox(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	// Rendered as a failed state, not an error.
	assert.True(t, inbox[0].DecryptFailed)
	assert.Empty(t, inbox[0].Content)
}

func TestOpenMarksRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, f.alice, "bob@example.com", "read me")
	require.NoError(t, err)

	unread, err := f.svc.UnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	view, err := f.svc.Open(ctx, f.bob, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "read me", view.Content)

	unread, err = f.svc.UnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestOpenAsSenderOmitsContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, f.alice, "bob@example.com", "for bob")
	require.NoError(t, err)

	view, err := f.svc.Open(ctx, f.alice, msg.ID)
	require.NoError(t, err)

	// The sender cannot decrypt a message encrypted to the recipient.
	assert.Empty(t, view.Content)
	assert.False(t, view.DecryptFailed)

	// Opening as the sender does not mark it read.
	unread, err := f.svc.UnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestOpenAccessControl(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	eve := newUser(t, f.store, crypto.NewProvider(), "eve@example.com")

	msg, err := f.svc.Send(ctx, f.alice, "bob@example.com", "private")
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, eve, msg.ID)
	assert.ErrorIs(t, err, models.ErrNotParticipant)

	_, err = f.svc.Open(ctx, f.bob, 9999)
	assert.ErrorIs(t, err, models.ErrMessageNotFound)
}

func TestSentListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.alice, "bob@example.com", "one")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, f.alice, "bob@example.com", "two")
	require.NoError(t, err)

	sent, err := f.svc.Sent(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, "bob@example.com", sent[0].RecipientEmail)
	assert.Empty(t, sent[0].Content)
}

type recordingNotifier struct {
	recipientID int64
	views       []models.MessageView
}

func (n *recordingNotifier) NotifyNewMessage(recipientID int64, view models.MessageView) {
	n.recipientID = recipientID
	n.views = append(n.views, view)
}

func TestSendNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	notifier := &recordingNotifier{}
	f.svc.SetNotifier(notifier)

	msg, err := f.svc.Send(ctx, f.alice, "bob@example.com", "ping")
	require.NoError(t, err)

	require.Len(t, notifier.views, 1)
	assert.Equal(t, f.bob.ID, notifier.recipientID)
	assert.Equal(t, msg.ID, notifier.views[0].ID)
	// Notifications never carry plaintext.
	assert.Empty(t, notifier.views[0].Content)
}

func TestMarkReadAccessControl(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, f.alice, "bob@example.com", "unread")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.MarkRead(ctx, f.alice, msg.ID), models.ErrNotParticipant)
	require.NoError(t, f.svc.MarkRead(ctx, f.bob, msg.ID))

	unread, err := f.svc.UnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}
