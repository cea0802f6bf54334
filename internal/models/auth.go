package models

import (
	"time"
)

// LoginResult is returned by a successful login OTP verification
type LoginResult struct {
	User      *UserProfile `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	IsNewUser bool         `json:"is_new_user"`
}
