package models

import "time"

// VerificationCode is a single-use email verification code.
type VerificationCode struct {
	ID        int64
	Email     string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

// IsValid reports whether the code can still be redeemed.
func (c *VerificationCode) IsValid(now time.Time) bool {
	return !c.Used && now.Before(c.ExpiresAt)
}
