// Package verify implements email verification codes: generation,
// expiry, single-use redemption. Delivery goes through the Sender
// interface; SMTP is the caller's concern.
package verify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/securechat/securechat/internal/events"
	"github.com/securechat/securechat/internal/models"
	"github.com/securechat/securechat/internal/store"
)

// Sender delivers a verification code to an address.
type Sender interface {
	SendCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// Service handles verification codes.
type Service struct {
	codes  store.CodeStore
	users  store.UserStore
	sender Sender
	logger *events.Logger

	codeLength int
	ttl        time.Duration
	now        func() time.Time
}

// NewService creates a verification service.
func NewService(codes store.CodeStore, users store.UserStore, sender Sender, codeLength int, ttl time.Duration, logger *events.Logger) *Service {
	return &Service{
		codes:      codes,
		users:      users,
		sender:     sender,
		logger:     logger.WithField("service", "verify"),
		codeLength: codeLength,
		ttl:        ttl,
		now:        time.Now,
	}
}

// generateCode produces a random numeric code.
func (s *Service) generateCode() (string, error) {
	var sb strings.Builder
	for i := 0; i < s.codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

// Request issues a fresh code for an email and hands it to the sender.
// A new request replaces any pending code for the address.
func (s *Service) Request(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.users.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	code, err := s.generateCode()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	record := &models.VerificationCode{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.codes.PutCode(ctx, record); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	if err := s.sender.SendCode(ctx, email, code, record.ExpiresAt); err != nil {
		return fmt.Errorf("send code: %w", err)
	}

	s.logger.WithField("email", email).Info("Verification code issued")
	return nil
}

// Confirm redeems a code and marks the account verified.
func (s *Service) Confirm(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)

	if err := s.codes.ConsumeCode(ctx, email, code, s.now().UTC()); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := s.users.SetVerified(ctx, user.ID, true); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	s.logger.WithField("email", email).Info("Email verified")
	return nil
}

// CleanupExpired removes expired codes. Callers run it periodically.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := s.codes.DeleteExpiredCodes(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup codes: %w", err)
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Debug("Cleaned up expired codes")
	}
	return removed, nil
}

// LogSender logs codes instead of delivering them. Development only.
type LogSender struct {
	Logger *events.Logger
}

// SendCode logs the code.
func (l *LogSender) SendCode(_ context.Context, email, code string, expiresAt time.Time) error {
	l.Logger.WithFields(map[string]interface{}{
		"email":      email,
		"code":       code,
		"expires_at": expiresAt.Format(time.RFC3339),
	}).Info("Verification code (log delivery)")
	return nil
}
