package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type packageService struct {
	users         repositories.UserRepository
	packages      repositories.PackageRepository
	subscriptions repositories.SubscriptionRepository
	options
}

// NewPackageService creates a new PackageService implementation
func NewPackageService(
	users repositories.UserRepository,
	packages repositories.PackageRepository,
	subscriptions repositories.SubscriptionRepository,
	opts ...Option,
) PackageService {
	return &packageService{
		users:         users,
		packages:      packages,
		subscriptions: subscriptions,
		options:       buildOptions(opts),
	}
}

// GetAvailablePackage returns the package currently on offer
func (s *packageService) GetAvailablePackage(ctx context.Context) (*models.Package, error) {
	pkg, err := s.packages.FindActive(ctx)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(KindPackageNotFound, "No packages available")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load available package: %w", err)
	}
	return pkg, nil
}

// Purchase records a pending subscription to packageID and makes it the
// user's active package.
func (s *packageService) Purchase(ctx context.Context, userID, packageID string, info models.PurchaseUserInfo) (view *models.SubscriptionView, err error) {
	defer func() { s.metrics.observePurchase(err) }()

	profile := purchaseProfile(info)
	if err := validateProfile(profile); err != nil {
		return nil, err
	}

	now := s.clock()
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(KindUserNotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.HasActivePackage(now) {
		return nil, newError(KindActivePackageExists, "User already has an active package")
	}

	pkg, err := s.packages.FindByID(ctx, packageID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(KindPackageNotFound, "Package not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load package: %w", err)
	}
	if !pkg.IsActive {
		return nil, newError(KindPackageUnavailable, "Package is not available for purchase")
	}

	record := &models.PackageHistory{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		PackageID:     pkg.ID,
		PackageName:   pkg.Name,
		PackagePrice:  pkg.Price,
		Duration:      pkg.Duration,
		PurchasedAt:   now,
		ExpiresAt:     now.Add(time.Duration(pkg.Duration) * 24 * time.Hour),
		PaymentStatus: models.PaymentStatusPending,
		IsActive:      true,
		UpdatedAt:     now,
	}

	err = s.subscriptions.Create(ctx, record, profile)
	switch {
	case errors.Is(err, repositories.ErrActivePackageExists):
		return nil, wrapError(KindActivePackageExists, "User already has an active package", err)
	case errors.Is(err, repositories.ErrNotFound):
		return nil, newError(KindUserNotFound, "User not found")
	case err != nil:
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.logger.Info("package purchased",
		zap.String("user_id", user.ID),
		zap.String("package_id", pkg.ID),
		zap.String("subscription_id", record.ID))
	return record.View(now), nil
}

// purchaseProfile keeps only the details that were submitted, so a blank
// field never clears what the user already has on file.
func purchaseProfile(info models.PurchaseUserInfo) models.ProfileUpdate {
	var update models.ProfileUpdate
	if info.Name != "" {
		update.Name = &info.Name
	}
	if info.NationalID != "" {
		update.NationalID = &info.NationalID
	}
	return update
}

// UpdatePaymentStatus sets the payment status on a subscription and on the
// user snapshot that mirrors it.
func (s *packageService) UpdatePaymentStatus(ctx context.Context, subscriptionID string, status models.PaymentStatus) (bool, error) {
	if !status.Valid() {
		return false, newError(KindInvalidPaymentStatus, "Invalid payment status")
	}

	err := s.subscriptions.UpdatePaymentStatus(ctx, subscriptionID, status, s.clock())
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}

	s.metrics.observePaymentUpdate(string(status))
	s.logger.Info("payment status updated", zap.String("subscription_id", subscriptionID), zap.String("status", string(status)))
	return true, nil
}

// History returns the user's subscriptions, newest first
func (s *packageService) History(ctx context.Context, userID string) ([]*models.SubscriptionView, error) {
	records, err := s.subscriptions.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load package history: %w", err)
	}

	now := s.clock()
	views := make([]*models.SubscriptionView, 0, len(records))
	for _, record := range records {
		views = append(views, record.View(now))
	}
	return views, nil
}
