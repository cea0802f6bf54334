package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
)

// Store-level outcomes shared by every implementation
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicatePhone      = errors.New("phone number already exists")
	ErrOTPAlreadyUsed      = errors.New("otp already used")
	ErrActivePackageExists = errors.New("user already has an active package")
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	// FindOrCreateByPhone atomically returns the user owning phone, inserting
	// candidate when none exists. created reports whether the insert happened.
	FindOrCreateByPhone(ctx context.Context, candidate *models.User) (user *models.User, created bool, err error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate, now time.Time) (*models.User, error)
	UpdatePhone(ctx context.Context, id, phone string, now time.Time) error
}

// OTPRepository defines the interface for one-time code persistence
type OTPRepository interface {
	InvalidatePrevious(ctx context.Context, phone string, purpose models.OTPPurpose) (int64, error)
	Create(ctx context.Context, otp *models.OTPCode) error
	FindLatestValid(ctx context.Context, phone string, purpose models.OTPPurpose, now time.Time) (*models.OTPCode, error)
	// FindLatest returns the newest code for the pair whatever its state
	FindLatest(ctx context.Context, phone string, purpose models.OTPPurpose) (*models.OTPCode, error)
	// MarkUsed flips is_used only if it is currently false and returns
	// ErrOTPAlreadyUsed otherwise.
	MarkUsed(ctx context.Context, id string, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PackageRepository defines the interface for package catalog operations
type PackageRepository interface {
	Create(ctx context.Context, pkg *models.Package) error
	FindByID(ctx context.Context, id string) (*models.Package, error)
	FindActive(ctx context.Context) (*models.Package, error)
	// Activate marks id active and every other package inactive.
	Activate(ctx context.Context, id string) error
}

// SubscriptionRepository keeps package_history records and the user snapshots
// that mirror them in step.
type SubscriptionRepository interface {
	// Create stores record, applies profile and sets the user's snapshot. It
	// fails with ErrActivePackageExists when the user already holds an active,
	// unexpired snapshot at record.PurchasedAt, and ErrNotFound when the user is gone.
	Create(ctx context.Context, record *models.PackageHistory, profile models.ProfileUpdate) error
	FindByID(ctx context.Context, id string) (*models.PackageHistory, error)
	FindByUser(ctx context.Context, userID string) ([]*models.PackageHistory, error)
	// UpdatePaymentStatus updates the record and the snapshot that mirrors it.
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, now time.Time) error
	// ExpireActive deactivates snapshots and records whose expiry is before now
	// and returns the number of users changed.
	ExpireActive(ctx context.Context, now time.Time) (int64, error)
}
