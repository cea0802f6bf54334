package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
	"github.com/ArowuTest/clinic-membership-backend/internal/utils"
	"github.com/ArowuTest/clinic-membership-backend/pkg/jwt"
	"github.com/ArowuTest/clinic-membership-backend/pkg/ratelimit"
	"github.com/ArowuTest/clinic-membership-backend/pkg/smsgateway"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OTPLimiter throttles code issuance per key
type OTPLimiter interface {
	Allow(ctx context.Context, key string) error
}

// OTPSettings controls code generation
type OTPSettings struct {
	Length    int
	TTL       time.Duration
	HashCost  int
	BrandName string
}

type authService struct {
	users    repositories.UserRepository
	otps     repositories.OTPRepository
	gateway  smsgateway.Gateway
	tokens   *jwt.TokenService
	limiter  OTPLimiter
	phones   *utils.PhoneNormalizer
	settings OTPSettings
	options
}

// NewAuthService creates a new AuthService implementation. gateway and
// limiter may be nil: without a gateway every send fails with
// KindMessagingUnavailable, without a limiter sends are not throttled.
func NewAuthService(
	users repositories.UserRepository,
	otps repositories.OTPRepository,
	gateway smsgateway.Gateway,
	tokens *jwt.TokenService,
	limiter OTPLimiter,
	phones *utils.PhoneNormalizer,
	settings OTPSettings,
	opts ...Option,
) AuthService {
	return &authService{
		users:    users,
		otps:     otps,
		gateway:  gateway,
		tokens:   tokens,
		limiter:  limiter,
		phones:   phones,
		settings: settings,
		options:  buildOptions(opts),
	}
}

// SendOTP invalidates previous codes for the pair, stores a new hashed code
// and dispatches it. The code is persisted before dispatch.
func (s *authService) SendOTP(ctx context.Context, rawPhone string, purpose models.OTPPurpose, requesterID string) (result *models.SendOTPResult, err error) {
	defer func() { s.metrics.observeOTPSent(string(purpose), err) }()

	if !purpose.Valid() {
		return nil, newError(KindInvalidInput, "Invalid OTP purpose")
	}
	phone, err := s.normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	var ownerID string
	if purpose == models.OTPPurposePhoneChange {
		if requesterID == "" {
			return nil, newError(KindInvalidInput, "Phone change requires an authenticated user")
		}
		if err := s.ensurePhoneFree(ctx, phone, requesterID); err != nil {
			return nil, err
		}
		ownerID = requesterID
	}

	if s.gateway == nil {
		s.logger.Error("sms gateway not configured")
		return nil, newError(KindMessagingUnavailable, "SMS service is not configured properly. Please contact support.")
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, phone+":"+string(purpose)); err != nil {
			if errors.Is(err, ratelimit.ErrLimited) {
				return nil, wrapError(KindOTPRateLimited, "Too many OTP requests. Please try again later.", err)
			}
			s.logger.Warn("otp rate limiter unavailable", zap.Error(err))
		}
	}

	if _, err := s.otps.InvalidatePrevious(ctx, phone, purpose); err != nil {
		return nil, fmt.Errorf("failed to invalidate previous OTPs: %w", err)
	}

	code, err := utils.GenerateNumericCode(s.settings.Length)
	if err != nil {
		return nil, err
	}
	otp, err := models.NewOTPCode(uuid.NewString(), phone, purpose, code, ownerID, s.clock(), s.settings.TTL, s.settings.HashCost)
	if err != nil {
		return nil, err
	}
	if err := s.otps.Create(ctx, otp); err != nil {
		return nil, fmt.Errorf("failed to store OTP: %w", err)
	}

	messageID, err := s.gateway.SendSMS(ctx, phone, otpMessage(s.settings.BrandName, purpose, code, s.settings.TTL))
	if err != nil {
		s.logger.Error("failed to dispatch otp",
			zap.String("phone", utils.MaskPhone(phone)),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return nil, wrapError(KindMessagingFailed, "Failed to send OTP. Please try again or contact support.", err)
	}

	s.logger.Info("otp sent",
		zap.String("phone", utils.MaskPhone(phone)),
		zap.String("purpose", string(purpose)),
		zap.String("message_id", messageID))

	return &models.SendOTPResult{
		Message:   "OTP sent successfully",
		ExpiresIn: int(s.settings.TTL.Seconds()),
	}, nil
}

// VerifyOTP consumes a login code and opens a session
func (s *authService) VerifyOTP(ctx context.Context, rawPhone, code string) (result *models.LoginResult, err error) {
	defer func() { s.metrics.observeOTPVerified(string(models.OTPPurposeLogin), err) }()

	phone, err := s.normalize(rawPhone)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if _, err := s.consume(ctx, phone, models.OTPPurposeLogin, code, "", now); err != nil {
		return nil, err
	}

	user, created, err := s.users.FindOrCreateByPhone(ctx, models.NewUser(uuid.NewString(), phone, now))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if !user.IsActive {
		return nil, newError(KindUserInactive, "User account is inactive")
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.PhoneNumber, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.Bool("new_user", created))
	return &models.LoginResult{
		User:      user.Profile(now),
		Token:     token,
		ExpiresAt: expiresAt,
		IsNewUser: created,
	}, nil
}

// VerifyPhoneChangeOTP consumes a phone_change code that must belong to userID
func (s *authService) VerifyPhoneChangeOTP(ctx context.Context, rawPhone, code, userID string) (err error) {
	defer func() { s.metrics.observeOTPVerified(string(models.OTPPurposePhoneChange), err) }()

	phone, err := s.normalize(rawPhone)
	if err != nil {
		return err
	}
	_, err = s.consume(ctx, phone, models.OTPPurposePhoneChange, code, userID, s.clock())
	return err
}

// CurrentUser returns the active user behind a session
func (s *authService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(KindUserNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, newError(KindUserInactive, "User account is inactive")
	}
	return user, nil
}

// consume verifies code against the latest valid code for the pair and marks
// it used. ownerID is checked when non-empty.
func (s *authService) consume(ctx context.Context, phone string, purpose models.OTPPurpose, code, ownerID string, now time.Time) (*models.OTPCode, error) {
	otp, err := s.otps.FindLatestValid(ctx, phone, purpose, now)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, s.missingCode(ctx, phone, purpose, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OTP: %w", err)
	}

	if ownerID != "" && otp.UserID != ownerID {
		return nil, newError(KindOTPOwnerMismatch, "OTP not associated with current user")
	}

	if err := otp.Verify(code, now); err != nil {
		return nil, verifyError(err)
	}

	if err := s.otps.MarkUsed(ctx, otp.ID, now); err != nil {
		if errors.Is(err, repositories.ErrOTPAlreadyUsed) {
			return nil, wrapError(KindOTPAlreadyUsed, "OTP has already been used", err)
		}
		return nil, fmt.Errorf("failed to consume OTP: %w", err)
	}
	return otp, nil
}

// missingCode tells an expired code apart from no code at all
func (s *authService) missingCode(ctx context.Context, phone string, purpose models.OTPPurpose, now time.Time) error {
	latest, err := s.otps.FindLatest(ctx, phone, purpose)
	if err == nil && !latest.IsUsed && latest.IsExpired(now) {
		return newError(KindOTPExpired, "OTP has expired")
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to load OTP: %w", err)
	}
	return newError(KindOTPNotFound, "No valid OTP found")
}

func (s *authService) ensurePhoneFree(ctx context.Context, phone, requesterID string) error {
	owner, err := s.users.FindByPhone(ctx, phone)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check phone owner: %w", err)
	case owner.ID == requesterID:
		return newError(KindInvalidInput, "New phone number is the same as the current one")
	default:
		return newError(KindPhoneTaken, "Phone number already exists")
	}
}

func (s *authService) normalize(raw string) (string, error) {
	phone, err := s.phones.Normalize(raw)
	if err != nil {
		return "", wrapError(KindInvalidPhoneFormat, "Invalid phone number format", err)
	}
	return phone, nil
}

func verifyError(err error) error {
	switch {
	case errors.Is(err, models.ErrOTPExpired):
		return wrapError(KindOTPExpired, "OTP has expired", err)
	case errors.Is(err, models.ErrOTPUsed):
		return wrapError(KindOTPAlreadyUsed, "OTP has already been used", err)
	default:
		return wrapError(KindOTPCodeInvalid, "Invalid OTP code", err)
	}
}
