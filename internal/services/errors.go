package services

import (
	"errors"
)

// ErrorKind classifies expected business failures
type ErrorKind string

const (
	KindInvalidPhoneFormat   ErrorKind = "invalid_phone_format"
	KindInvalidInput         ErrorKind = "invalid_input"
	KindOTPNotFound          ErrorKind = "otp_not_found"
	KindOTPOwnerMismatch     ErrorKind = "otp_owner_mismatch"
	KindOTPExpired           ErrorKind = "otp_expired"
	KindOTPAlreadyUsed       ErrorKind = "otp_already_used"
	KindOTPCodeInvalid       ErrorKind = "otp_code_invalid"
	KindOTPRateLimited       ErrorKind = "otp_rate_limited"
	KindMessagingUnavailable ErrorKind = "messaging_unavailable"
	KindMessagingFailed      ErrorKind = "messaging_failed"
	KindUserNotFound         ErrorKind = "user_not_found"
	KindUserInactive         ErrorKind = "user_inactive"
	KindPhoneTaken           ErrorKind = "phone_taken"
	KindActivePackageExists  ErrorKind = "active_package_exists"
	KindPackageNotFound      ErrorKind = "package_not_found"
	KindPackageUnavailable   ErrorKind = "package_unavailable"
	KindInvalidPaymentStatus ErrorKind = "invalid_payment_status"
)

// Error is an expected failure with a message safe to show to clients
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// unexpected failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
