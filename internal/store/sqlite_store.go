package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/securechat/securechat/internal/events"
	"github.com/securechat/securechat/internal/models"
)

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000&_fk=ON")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_store"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return s, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        email TEXT NOT NULL UNIQUE,
        password_hash TEXT NOT NULL,
        public_key TEXT NOT NULL DEFAULT '',
        private_key TEXT NOT NULL DEFAULT '',
        verified INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP NOT NULL
    );

    CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        sender_id INTEGER NOT NULL REFERENCES users(id),
        recipient_id INTEGER NOT NULL REFERENCES users(id),
        encrypted_content TEXT NOT NULL,
        sent_at TIMESTAMP NOT NULL,
        read_at TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_messages_recipient_sent
        ON messages(recipient_id, sent_at DESC);
    CREATE INDEX IF NOT EXISTS idx_messages_sender_sent
        ON messages(sender_id, sent_at DESC);

    CREATE TABLE IF NOT EXISTS verification_codes (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        email TEXT NOT NULL,
        code TEXT NOT NULL,
        expires_at TIMESTAMP NOT NULL,
        created_at TIMESTAMP NOT NULL,
        used INTEGER NOT NULL DEFAULT 0
    );

    CREATE INDEX IF NOT EXISTS idx_verification_codes_email
        ON verification_codes(email);

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// InsertUser creates a user and assigns its ID.
func (s *SQLiteStore) InsertUser(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO users (email, password_hash, public_key, private_key, verified, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, user.Email, user.PasswordHash, user.PublicKey, user.PrivateKey, user.Verified, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id

	s.logger.WithField("user_id", id).Debug("Inserted user")
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PublicKey,
		&u.PrivateKey, &u.Verified, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
        SELECT id, email, password_hash, public_key, private_key, verified, created_at
        FROM users WHERE id = ?
    `, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
        SELECT id, email, password_hash, public_key, private_key, verified, created_at
        FROM users WHERE email = ?
    `, email))
}

// ListUsers returns all users ordered by email.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, email, password_hash, public_key, private_key, verified, created_at
        FROM users ORDER BY email
    `)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PublicKey,
			&u.PrivateKey, &u.Verified, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// SetVerified marks a user's email as verified.
func (s *SQLiteStore) SetVerified(ctx context.Context, id int64, verified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET verified = ? WHERE id = ?`, verified, id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMessage stores a message and assigns its ID.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO messages (sender_id, recipient_id, encrypted_content, sent_at)
        VALUES (?, ?, ?, ?)
    `, msg.SenderID, msg.RecipientID, msg.EncryptedContent, msg.SentAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	msg.ID = id

	s.logger.WithFields(map[string]interface{}{
		"message_id":   id,
		"recipient_id": msg.RecipientID,
	}).Debug("Inserted message")
	return nil
}

const messageColumns = `
    m.id, m.sender_id, s.email, m.recipient_id, r.email,
    m.encrypted_content, m.sent_at, m.read_at
`

func scanMessage(scan func(...interface{}) error) (*models.Message, error) {
	var m models.Message
	var readAt sql.NullTime
	err := scan(&m.ID, &m.SenderID, &m.SenderEmail, &m.RecipientID,
		&m.RecipientEmail, &m.EncryptedContent, &m.SentAt, &readAt)
	if err != nil {
		return nil, err
	}
	if readAt.Valid {
		m.ReadAt = &readAt.Time
	}
	return &m, nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT `+messageColumns+`
        FROM messages m
        JOIN users s ON s.id = m.sender_id
        JOIN users r ON r.id = m.recipient_id
        WHERE m.id = ?
    `, id)

	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) listMessages(ctx context.Context, column string, userID int64) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+messageColumns+`
        FROM messages m
        JOIN users s ON s.id = m.sender_id
        JOIN users r ON r.id = m.recipient_id
        WHERE m.`+column+` = ?
        ORDER BY m.sent_at DESC, m.id DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// ListByRecipient returns messages received by a user, newest first.
func (s *SQLiteStore) ListByRecipient(ctx context.Context, userID int64) ([]*models.Message, error) {
	return s.listMessages(ctx, "recipient_id", userID)
}

// ListBySender returns messages sent by a user, newest first.
func (s *SQLiteStore) ListBySender(ctx context.Context, userID int64) ([]*models.Message, error) {
	return s.listMessages(ctx, "sender_id", userID)
}

// MarkRead records the first time a message was opened. Already-read
// messages keep their original timestamp.
func (s *SQLiteStore) MarkRead(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET read_at = ? WHERE id = ? AND read_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM messages WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

// CountUnread returns the number of unread messages for a recipient.
func (s *SQLiteStore) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM messages WHERE recipient_id = ? AND read_at IS NULL
    `, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// PutCode stores a verification code, replacing any pending code for
// the same email.
func (s *SQLiteStore) PutCode(ctx context.Context, code *models.VerificationCode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE email = ?`, code.Email); err != nil {
		return fmt.Errorf("replace code: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
        INSERT INTO verification_codes (email, code, expires_at, created_at, used)
        VALUES (?, ?, ?, ?, ?)
    `, code.Email, code.Code, code.ExpiresAt, code.CreatedAt, code.Used)
	if err != nil {
		return fmt.Errorf("insert code: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	code.ID = id

	return tx.Commit()
}

// ConsumeCode redeems a verification code.
func (s *SQLiteStore) ConsumeCode(ctx context.Context, email, code string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var c models.VerificationCode
	err = tx.QueryRowContext(ctx, `
        SELECT id, code, expires_at, used FROM verification_codes
        WHERE email = ? ORDER BY created_at DESC, id DESC LIMIT 1
    `, email).Scan(&c.ID, &c.Code, &c.ExpiresAt, &c.Used)
	if err == sql.ErrNoRows {
		return models.ErrVerifyNotFound
	}
	if err != nil {
		return fmt.Errorf("query code: %w", err)
	}

	switch {
	case c.Used:
		return models.ErrVerifyUsed
	case now.After(c.ExpiresAt):
		return models.ErrVerifyExpired
	case c.Code != code:
		return models.ErrVerifyNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE verification_codes SET used = 1 WHERE id = ?`, c.ID); err != nil {
		return fmt.Errorf("mark code used: %w", err)
	}

	return tx.Commit()
}

// DeleteExpiredCodes removes codes past their expiry.
func (s *SQLiteStore) DeleteExpiredCodes(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
