package services

import (
	"context"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/utils"
	"go.uber.org/zap"
)

// AuthService defines the interface for OTP authentication
type AuthService interface {
	// SendOTP issues a fresh code for (phone, purpose) and dispatches it.
	// requesterID is the authenticated user for phone_change and empty for login.
	SendOTP(ctx context.Context, phone string, purpose models.OTPPurpose, requesterID string) (*models.SendOTPResult, error)

	// VerifyOTP consumes a login code and returns a session for the phone's user,
	// creating the user on first login.
	VerifyOTP(ctx context.Context, phone, code string) (*models.LoginResult, error)

	// VerifyPhoneChangeOTP consumes a phone_change code issued to userID
	VerifyPhoneChangeOTP(ctx context.Context, newPhone, code, userID string) error

	// CurrentUser resolves an authenticated user id to an active user
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// UserService defines the interface for profile operations
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.UserProfile, error)
	UpdatePhone(ctx context.Context, userID, newPhone string) error
}

// PackageService defines the interface for package purchase and subscriptions
type PackageService interface {
	GetAvailablePackage(ctx context.Context) (*models.Package, error)
	Purchase(ctx context.Context, userID, packageID string, info models.PurchaseUserInfo) (*models.SubscriptionView, error)
	// UpdatePaymentStatus returns false when the subscription does not exist
	UpdatePaymentStatus(ctx context.Context, subscriptionID string, status models.PaymentStatus) (bool, error)
	History(ctx context.Context, userID string) ([]*models.SubscriptionView, error)
}

// ExpiryService deactivates lapsed subscriptions and expired codes
type ExpiryService interface {
	Sweep(ctx context.Context) (int64, error)
	CleanupOTPs(ctx context.Context) (int64, error)
}

// Option configures the ambient dependencies of a service
type Option func(*options)

type options struct {
	now     func() time.Time
	logger  *zap.Logger
	metrics *Metrics
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// clock returns the current instant at the precision MongoDB stores
func (o options) clock() time.Time {
	return utils.TruncateTime(o.now())
}
