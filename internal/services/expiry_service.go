package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
	"go.uber.org/zap"
)

type expiryService struct {
	subscriptions repositories.SubscriptionRepository
	otps          repositories.OTPRepository
	options
}

// NewExpiryService creates a new ExpiryService implementation
func NewExpiryService(subscriptions repositories.SubscriptionRepository, otps repositories.OTPRepository, opts ...Option) ExpiryService {
	return &expiryService{
		subscriptions: subscriptions,
		otps:          otps,
		options:       buildOptions(opts),
	}
}

// Sweep deactivates every active subscription whose expiry has passed and
// returns the number of users affected. Running it again is a no-op.
func (s *expiryService) Sweep(ctx context.Context) (int64, error) {
	started := time.Now()
	expired, err := s.subscriptions.ExpireActive(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to expire packages: %w", err)
	}
	s.metrics.observeSweep(expired, time.Since(started).Seconds())

	if expired > 0 {
		s.logger.Info("expired user packages", zap.Int64("count", expired))
	}
	return expired, nil
}

// CleanupOTPs deletes codes whose expiry has passed
func (s *expiryService) CleanupOTPs(ctx context.Context) (int64, error) {
	deleted, err := s.otps.DeleteExpired(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired OTPs: %w", err)
	}
	if deleted > 0 {
		s.logger.Debug("deleted expired otps", zap.Int64("count", deleted))
	}
	return deleted, nil
}
