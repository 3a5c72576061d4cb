// Package messages implements composing, listing and reading encrypted
// messages. Plaintext only ever exists inside a request: it is encrypted
// with the recipient's public key before storage and decrypted with the
// recipient's private key at display time.
package messages

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/securechat/securechat/internal/crypto"
	"github.com/securechat/securechat/internal/events"
	"github.com/securechat/securechat/internal/metrics"
	"github.com/securechat/securechat/internal/models"
	"github.com/securechat/securechat/internal/store"
)

// Notifier receives new-message events, keyed by recipient. The
// WebSocket hub implements it; a nil notifier disables notifications.
type Notifier interface {
	NotifyNewMessage(recipientID int64, view models.MessageView)
}

// Service handles message operations.
type Service struct {
	users    store.UserStore
	messages store.MessageStore
	crypto   crypto.Provider
	logger   *events.Logger
	notifier Notifier
}

// NewService creates a messages service.
func NewService(users store.UserStore, msgs store.MessageStore, provider crypto.Provider, logger *events.Logger) *Service {
	return &Service{
		users:    users,
		messages: msgs,
		crypto:   provider,
		logger:   logger.WithField("service", "messages"),
	}
}

// SetNotifier attaches a new-message notifier.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Send encrypts a message for its recipient and stores it.
func (s *Service) Send(ctx context.Context, sender *models.User, recipientEmail, body string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, &models.RequestError{
			Code:       models.ErrCodeValidation,
			Message:    "message body is required",
			StatusCode: http.StatusBadRequest,
		}
	}

	recipient, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(recipientEmail)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup recipient: %w", err)
	}

	start := time.Now()
	encrypted, err := s.crypto.Encrypt(body, []byte(recipient.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}
	metrics.ObserveCrypto("encrypt", start)

	msg := &models.Message{
		SenderID:         sender.ID,
		RecipientID:      recipient.ID,
		EncryptedContent: encrypted,
		SentAt:           time.Now().UTC(),
		SenderEmail:      sender.Email,
		RecipientEmail:   recipient.Email,
	}

	if err := s.messages.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	metrics.MessagesSent.Inc()
	s.logger.WithFields(map[string]interface{}{
		"message_id":   msg.ID,
		"sender_id":    sender.ID,
		"recipient_id": recipient.ID,
	}).Info("Message sent")

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(recipient.ID, viewWithoutContent(msg))
	}

	return msg, nil
}

// viewWithoutContent builds a view carrying only metadata.
func viewWithoutContent(m *models.Message) models.MessageView {
	return models.MessageView{
		ID:             m.ID,
		SenderID:       m.SenderID,
		SenderEmail:    m.SenderEmail,
		RecipientID:    m.RecipientID,
		RecipientEmail: m.RecipientEmail,
		SentAt:         m.SentAt,
		ReadAt:         m.ReadAt,
		IsRead:         m.IsRead(),
	}
}

// decryptView decrypts a message for its recipient. A failed decrypt
// yields an explicit failure state instead of an error.
func (s *Service) decryptView(m *models.Message, privateKey string) models.MessageView {
	view := viewWithoutContent(m)

	start := time.Now()
	content, err := s.crypto.Decrypt(m.EncryptedContent, []byte(privateKey))
	metrics.ObserveCrypto("decrypt", start)

	if err != nil {
		s.logger.WithField("message_id", m.ID).WithError(err).Warn("Message decryption failed")
		view.DecryptFailed = true
		return view
	}

	view.Content = content
	return view
}

// Inbox lists received messages, decrypted for display.
func (s *Service) Inbox(ctx context.Context, user *models.User) ([]models.MessageView, error) {
	msgs, err := s.messages.ListByRecipient(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, s.decryptView(m, user.PrivateKey))
	}
	return views, nil
}

// Sent lists sent messages. Content stays encrypted to the recipient's
// key, so sent views carry metadata only.
func (s *Service) Sent(ctx context.Context, user *models.User) ([]models.MessageView, error) {
	msgs, err := s.messages.ListBySender(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list sent: %w", err)
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, viewWithoutContent(m))
	}
	return views, nil
}

// Open returns a single message for a participant. Opening as the
// recipient decrypts the content and marks the message read.
func (s *Service) Open(ctx context.Context, user *models.User, messageID int64) (models.MessageView, error) {
	m, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.MessageView{}, models.ErrMessageNotFound
		}
		return models.MessageView{}, fmt.Errorf("get message: %w", err)
	}

	switch user.ID {
	case m.RecipientID:
		if err := s.messages.MarkRead(ctx, m.ID, time.Now().UTC()); err != nil {
			return models.MessageView{}, fmt.Errorf("mark read: %w", err)
		}
		if m.ReadAt == nil {
			now := time.Now().UTC()
			m.ReadAt = &now
		}
		return s.decryptView(m, user.PrivateKey), nil
	case m.SenderID:
		return viewWithoutContent(m), nil
	default:
		return models.MessageView{}, models.ErrNotParticipant
	}
}

// MarkRead marks a received message as read without opening it.
func (s *Service) MarkRead(ctx context.Context, user *models.User, messageID int64) error {
	m, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.ErrMessageNotFound
		}
		return fmt.Errorf("get message: %w", err)
	}
	if m.RecipientID != user.ID {
		return models.ErrNotParticipant
	}

	if err := s.messages.MarkRead(ctx, messageID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// UnreadCount returns the number of unread received messages.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.messages.CountUnread(ctx, userID)
}
