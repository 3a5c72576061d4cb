package models

import "time"

// User is a registered account. Keys are stored as the PEM strings
// produced at registration; the crypto layer never sees storage.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PublicKey    string    `json:"-"`
	PrivateKey   string    `json:"-"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasKeys reports whether the account has a complete key pair.
func (u *User) HasKeys() bool {
	return u.PublicKey != "" && u.PrivateKey != ""
}

// Summary returns the externally visible view of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
		HasKeys:   u.HasKeys(),
	}
}

// UserSummary is the JSON shape returned by the API.
type UserSummary struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	HasKeys   bool      `json:"has_keys"`
}
