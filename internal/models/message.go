package models

import "time"

// Message is a stored encrypted message. EncryptedContent is the wire
// string from the message codec, persisted verbatim.
type Message struct {
	ID               int64      `json:"id"`
	SenderID         int64      `json:"sender_id"`
	RecipientID      int64      `json:"recipient_id"`
	EncryptedContent string     `json:"-"`
	SentAt           time.Time  `json:"sent_at"`
	ReadAt           *time.Time `json:"read_at,omitempty"`

	// Denormalized for rendering; populated by list queries.
	SenderEmail    string `json:"sender_email,omitempty"`
	RecipientEmail string `json:"recipient_email,omitempty"`
}

// IsRead reports whether the recipient has opened the message.
func (m *Message) IsRead() bool {
	return m.ReadAt != nil
}

// MessageView is a message prepared for display: either decrypted
// plaintext or an explicit decryption-failed state. Decryption failures
// are rendered, never propagated.
type MessageView struct {
	ID             int64      `json:"id"`
	SenderID       int64      `json:"sender_id"`
	SenderEmail    string     `json:"sender_email"`
	RecipientID    int64      `json:"recipient_id"`
	RecipientEmail string     `json:"recipient_email"`
	Content        string     `json:"content,omitempty"`
	DecryptFailed  bool       `json:"decrypt_failed,omitempty"`
	SentAt         time.Time  `json:"sent_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	IsRead         bool       `json:"is_read"`
}
