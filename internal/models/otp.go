package models

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// OTPPurpose scopes issuance, invalidation and verification of a code
type OTPPurpose string

const (
	OTPPurposeLogin       OTPPurpose = "login"
	OTPPurposePhoneChange OTPPurpose = "phone_change"
)

// Valid reports whether p is a known purpose
func (p OTPPurpose) Valid() bool {
	return p == OTPPurposeLogin || p == OTPPurposePhoneChange
}

// Outcomes of OTPCode.Verify
var (
	ErrOTPExpired     = errors.New("OTP has expired")
	ErrOTPUsed        = errors.New("OTP has already been used")
	ErrOTPCodeInvalid = errors.New("invalid OTP code")
)

// OTPCode is a one-time code. Only the bcrypt hash of the code is stored.
type OTPCode struct {
	ID          string     `bson:"_id" json:"otp_id"`
	PhoneNumber string     `bson:"phone_number" json:"phone_number"`
	Purpose     OTPPurpose `bson:"purpose" json:"purpose"`
	CodeHash    string     `bson:"code_hash" json:"-"`
	UserID      string     `bson:"user_id,omitempty" json:"user_id,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time  `bson:"expires_at" json:"expires_at"`
	IsUsed      bool       `bson:"is_used" json:"is_used"`
	UsedAt      *time.Time `bson:"used_at,omitempty" json:"used_at,omitempty"`
}

// NewOTPCode hashes plain with the given bcrypt cost and returns an unsaved code
// expiring ttl after now.
func NewOTPCode(id, phone string, purpose OTPPurpose, plain, ownerID string, now time.Time, ttl time.Duration, cost int) (*OTPCode, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash OTP: %w", err)
	}
	return &OTPCode{
		ID:          id,
		PhoneNumber: phone,
		Purpose:     purpose,
		CodeHash:    string(hash),
		UserID:      ownerID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

// IsExpired reports whether the code has expired at now. A code is valid
// strictly before ExpiresAt.
func (o *OTPCode) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Verify checks expiry, then the used flag, then the code hash.
func (o *OTPCode) Verify(plain string, now time.Time) error {
	if o.IsExpired(now) {
		return ErrOTPExpired
	}
	if o.IsUsed {
		return ErrOTPUsed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(o.CodeHash), []byte(plain)); err != nil {
		return ErrOTPCodeInvalid
	}
	return nil
}

// SendOTPRequest is the body of POST /api/auth/send-otp
type SendOTPRequest struct {
	PhoneNumber string     `json:"phone_number" binding:"required,phone"`
	Purpose     OTPPurpose `json:"purpose" binding:"omitempty,oneof=login phone_change"`
}

// VerifyOTPRequest is the body of POST /api/auth/verify-otp
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,phone"`
	Code        string `json:"code" binding:"required,len=5,numeric"`
}

// PhoneChangeOTPRequest is the body of POST /api/user/send-phone-change-otp
type PhoneChangeOTPRequest struct {
	NewPhoneNumber string `json:"new_phone_number" binding:"required,phone"`
}

// UpdatePhoneRequest is the body of PUT /api/user/phone
type UpdatePhoneRequest struct {
	NewPhoneNumber string `json:"new_phone_number" binding:"required,phone"`
	OTPCode        string `json:"otp_code" binding:"required,len=5,numeric"`
}

// SendOTPResult is returned once a code has been issued and dispatched
type SendOTPResult struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
}
