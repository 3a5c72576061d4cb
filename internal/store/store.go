package store

import (
	"context"
	"errors"
	"time"

	"github.com/securechat/securechat/internal/models"
)

// UserStore manages user persistence.
type UserStore interface {
	// InsertUser creates a user and assigns its ID.
	InsertUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id int64) (*models.User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// ListUsers returns all users ordered by email.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// SetVerified marks a user's email as verified.
	SetVerified(ctx context.Context, id int64, verified bool) error
}

// MessageStore manages message persistence.
type MessageStore interface {
	// InsertMessage stores a message and assigns its ID.
	InsertMessage(ctx context.Context, msg *models.Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id int64) (*models.Message, error)

	// ListByRecipient returns messages received by a user, newest first.
	ListByRecipient(ctx context.Context, userID int64) ([]*models.Message, error)

	// ListBySender returns messages sent by a user, newest first.
	ListBySender(ctx context.Context, userID int64) ([]*models.Message, error)

	// MarkRead records the first time a message was opened.
	MarkRead(ctx context.Context, id int64, at time.Time) error

	// CountUnread returns the number of unread messages for a recipient.
	CountUnread(ctx context.Context, userID int64) (int, error)
}

// CodeStore manages verification code persistence.
type CodeStore interface {
	// PutCode stores a verification code, replacing any pending code
	// for the same email.
	PutCode(ctx context.Context, code *models.VerificationCode) error

	// ConsumeCode redeems a code: it must match, be unexpired and
	// unused. A successful consume marks it used.
	ConsumeCode(ctx context.Context, email, code string, now time.Time) error

	// DeleteExpiredCodes removes codes past their expiry.
	DeleteExpiredCodes(ctx context.Context, now time.Time) (int, error)
}

// Store aggregates the repositories behind one backend.
type Store interface {
	UserStore
	MessageStore
	CodeStore

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1
