package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/securechat/securechat/internal/models"
)

// MemoryStore implements Store with mutex-guarded maps and sequence
// IDs. It backs development setups and tests.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[int64]*models.User
	messages map[int64]*models.Message
	codes    map[string]*models.VerificationCode // keyed by email

	nextUserID    int64
	nextMessageID int64
	nextCodeID    int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*models.User),
		messages: make(map[int64]*models.Message),
		codes:    make(map[string]*models.VerificationCode),
	}
}

// InsertUser creates a user and assigns its ID.
func (s *MemoryStore) InsertUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}

	s.nextUserID++
	user.ID = s.nextUserID

	clone := *user
	s.users[user.ID] = &clone
	return nil
}

// GetUser retrieves a user by ID.
func (s *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

// GetUserByEmail retrieves a user by email.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

// ListUsers returns all users ordered by email.
func (s *MemoryStore) ListUsers(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		clone := *u
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// SetVerified marks a user's email as verified.
func (s *MemoryStore) SetVerified(_ context.Context, id int64, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Verified = verified
	return nil
}

// InsertMessage stores a message and assigns its ID.
func (s *MemoryStore) InsertMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessageID++
	msg.ID = s.nextMessageID

	clone := *msg
	s.messages[msg.ID] = &clone
	return nil
}

func (s *MemoryStore) decorate(m *models.Message) *models.Message {
	clone := *m
	if u, ok := s.users[m.SenderID]; ok {
		clone.SenderEmail = u.Email
	}
	if u, ok := s.users[m.RecipientID]; ok {
		clone.RecipientEmail = u.Email
	}
	return &clone
}

// GetMessage retrieves a message by ID.
func (s *MemoryStore) GetMessage(_ context.Context, id int64) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.decorate(m), nil
}

func (s *MemoryStore) listMessages(match func(*models.Message) bool) []*models.Message {
	var msgs []*models.Message
	for _, m := range s.messages {
		if match(m) {
			msgs = append(msgs, s.decorate(m))
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].SentAt.After(msgs[j].SentAt)
		}
		return msgs[i].ID > msgs[j].ID
	})
	return msgs
}

// ListByRecipient returns messages received by a user, newest first.
func (s *MemoryStore) ListByRecipient(_ context.Context, userID int64) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listMessages(func(m *models.Message) bool {
		return m.RecipientID == userID
	}), nil
}

// ListBySender returns messages sent by a user, newest first.
func (s *MemoryStore) ListBySender(_ context.Context, userID int64) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listMessages(func(m *models.Message) bool {
		return m.SenderID == userID
	}), nil
}

// MarkRead records the first time a message was opened.
func (s *MemoryStore) MarkRead(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if m.ReadAt == nil {
		m.ReadAt = &at
	}
	return nil
}

// CountUnread returns the number of unread messages for a recipient.
func (s *MemoryStore) CountUnread(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages {
		if m.RecipientID == userID && m.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

// PutCode stores a verification code, replacing any pending code for
// the same email.
func (s *MemoryStore) PutCode(_ context.Context, code *models.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCodeID++
	code.ID = s.nextCodeID

	clone := *code
	s.codes[code.Email] = &clone
	return nil
}

// ConsumeCode redeems a verification code.
func (s *MemoryStore) ConsumeCode(_ context.Context, email, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[email]
	if !ok {
		return models.ErrVerifyNotFound
	}

	switch {
	case c.Used:
		return models.ErrVerifyUsed
	case now.After(c.ExpiresAt):
		return models.ErrVerifyExpired
	case c.Code != code:
		return models.ErrVerifyNotFound
	}

	c.Used = true
	return nil
}

// DeleteExpiredCodes removes codes past their expiry.
func (s *MemoryStore) DeleteExpiredCodes(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for email, c := range s.codes {
		if now.After(c.ExpiresAt) {
			delete(s.codes, email)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
