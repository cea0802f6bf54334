package memory

import (
	"context"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
)

var _ repositories.OTPRepository = (*OTPRepository)(nil)

// OTPRepository is the in-memory otp_codes collection
type OTPRepository struct {
	store *Store
}

// InvalidatePrevious marks every unused code for the pair as used
func (r *OTPRepository) InvalidatePrevious(_ context.Context, phone string, purpose models.OTPPurpose) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for _, otp := range r.store.otps {
		if otp.PhoneNumber == phone && otp.Purpose == purpose && !otp.IsUsed {
			otp.IsUsed = true
			n++
		}
	}
	return n, nil
}

// Create stores a hashed code
func (r *OTPRepository) Create(_ context.Context, otp *models.OTPCode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.otps[otp.ID] = copyOTP(otp)
	return nil
}

// FindLatestValid returns the newest unused, unexpired code for the pair
func (r *OTPRepository) FindLatestValid(_ context.Context, phone string, purpose models.OTPPurpose, now time.Time) (*models.OTPCode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest *models.OTPCode
	for _, otp := range r.store.otps {
		if otp.PhoneNumber != phone || otp.Purpose != purpose || otp.IsUsed || !otp.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || otp.CreatedAt.After(latest.CreatedAt) {
			latest = otp
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	return copyOTP(latest), nil
}

// FindLatest returns the newest code for the pair whatever its state
func (r *OTPRepository) FindLatest(_ context.Context, phone string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest *models.OTPCode
	for _, otp := range r.store.otps {
		if otp.PhoneNumber == phone && otp.Purpose == purpose && (latest == nil || otp.CreatedAt.After(latest.CreatedAt)) {
			latest = otp
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	return copyOTP(latest), nil
}

// MarkUsed consumes the code if nobody else has
func (r *OTPRepository) MarkUsed(_ context.Context, id string, now time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	otp, ok := r.store.otps[id]
	if !ok || otp.IsUsed {
		return repositories.ErrOTPAlreadyUsed
	}
	otp.IsUsed = true
	otp.UsedAt = &now
	return nil
}

// DeleteExpired removes codes that have expired at now
func (r *OTPRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, otp := range r.store.otps {
		if otp.IsExpired(now) {
			delete(r.store.otps, id)
			n++
		}
	}
	return n, nil
}
