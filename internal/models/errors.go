package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeAuth       = "AUTH_ERROR"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeCrypto     = "CRYPTO_ERROR"
	ErrCodeStorage    = "STORAGE_ERROR"
	ErrCodeRateLimit  = "RATE_LIMIT"
)

// Sentinel errors
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidLogin     = errors.New("invalid email or password")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotParticipant   = errors.New("not a participant of this message")
	ErrVerifyNotFound   = errors.New("verification code not found")
	ErrVerifyExpired    = errors.New("verification code expired")
	ErrVerifyUsed       = errors.New("verification code already used")
)

// RequestError carries an error code and HTTP status for the API layer.
type RequestError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
