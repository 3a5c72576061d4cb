// Package accounts implements registration, authentication and the
// session table behind the login guard.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/securechat/securechat/internal/crypto"
	"github.com/securechat/securechat/internal/events"
	"github.com/securechat/securechat/internal/metrics"
	"github.com/securechat/securechat/internal/models"
	"github.com/securechat/securechat/internal/store"
)

const (
	minPasswordLength  = 6
	sessionTokenLength = 32
)

// Service handles account operations.
type Service struct {
	users  store.UserStore
	crypto crypto.Provider
	logger *events.Logger

	mu       sync.RWMutex
	sessions map[string]int64
}

// NewService creates an accounts service.
func NewService(users store.UserStore, provider crypto.Provider, logger *events.Logger) *Service {
	return &Service{
		users:    users,
		crypto:   provider,
		logger:   logger.WithField("service", "accounts"),
		sessions: make(map[string]int64),
	}
}

func validationError(msg string) error {
	return &models.RequestError{
		Code:       models.ErrCodeValidation,
		Message:    msg,
		StatusCode: http.StatusBadRequest,
	}
}

// Register creates an account: validates input, generates the user's
// key pair, hashes the password and stores the result.
func (s *Service) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" || !strings.Contains(email, "@") {
		return nil, validationError("a valid email address is required")
	}
	if len(password) < minPasswordLength {
		return nil, validationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, models.ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	start := time.Now()
	pair, err := s.crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	metrics.ObserveCrypto("generate_keypair", start)

	start = time.Now()
	record, err := s.crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	metrics.ObserveCrypto("hash_password", start)

	user := &models.User{
		Email:        email,
		PasswordHash: record,
		PublicKey:    string(pair.PublicKey),
		PrivateKey:   string(pair.PrivateKey),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, models.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("Registered user")

	return user, nil
}

// Authenticate checks credentials. Verification fails closed: any
// malformed stored record behaves like a wrong password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.LoginFailures.Inc()
			return nil, models.ErrInvalidLogin
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	start := time.Now()
	ok := s.crypto.VerifyPassword(password, user.PasswordHash)
	metrics.ObserveCrypto("verify_password", start)

	if !ok {
		metrics.LoginFailures.Inc()
		s.logger.WithField("email", email).Warn("Failed login attempt")
		return nil, models.ErrInvalidLogin
	}

	return user, nil
}

// StartSession issues a session token for a user.
func (s *Service) StartSession(user *models.User) (string, error) {
	token, err := s.crypto.RandomToken(sessionTokenLength)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}

	s.mu.Lock()
	s.sessions[token] = user.ID
	s.mu.Unlock()

	return token, nil
}

// UserForSession resolves a session token to its user.
func (s *Service) UserForSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrNotAuthenticated
	}

	s.mu.RLock()
	userID, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrNotAuthenticated
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("lookup session user: %w", err)
	}

	return user, nil
}

// EndSession revokes a session token.
func (s *Service) EndSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Directory lists all registered users.
func (s *Service) Directory(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// MarkVerified records a completed email verification.
func (s *Service) MarkVerified(ctx context.Context, userID int64) error {
	if err := s.users.SetVerified(ctx, userID, true); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}
