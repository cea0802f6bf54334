package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
)

var _ repositories.SubscriptionRepository = (*SubscriptionRepository)(nil)

// SubscriptionRepository is the in-memory package_history collection plus
// the user snapshots it keeps in step.
type SubscriptionRepository struct {
	store *Store
}

// Create stores record and claims the user's snapshot slot
func (r *SubscriptionRepository) Create(_ context.Context, record *models.PackageHistory, profile models.ProfileUpdate) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[record.UserID]
	if !ok {
		return repositories.ErrNotFound
	}
	if user.HasActivePackage(record.PurchasedAt) {
		return repositories.ErrActivePackageExists
	}

	c := *record
	r.store.history[record.ID] = &c
	profile.Apply(user)
	user.ActivePackage = record.Snapshot()
	user.UpdatedAt = record.PurchasedAt
	return nil
}

// FindByID finds a subscription record by ID
func (r *SubscriptionRepository) FindByID(_ context.Context, id string) (*models.PackageHistory, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	record, ok := r.store.history[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *record
	return &c, nil
}

// FindByUser returns the user's records, newest purchase first
func (r *SubscriptionRepository) FindByUser(_ context.Context, userID string) ([]*models.PackageHistory, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := make([]*models.PackageHistory, 0)
	for _, record := range r.store.history {
		if record.UserID == userID {
			c := *record
			records = append(records, &c)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PurchasedAt.After(records[j].PurchasedAt)
	})
	return records, nil
}

// UpdatePaymentStatus sets the status on the record and its matching snapshot
func (r *SubscriptionRepository) UpdatePaymentStatus(_ context.Context, id string, status models.PaymentStatus, now time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record, ok := r.store.history[id]
	if !ok {
		return repositories.ErrNotFound
	}
	record.PaymentStatus = status
	record.UpdatedAt = now

	if user, ok := r.store.users[record.UserID]; ok && user.ActivePackage != nil && user.ActivePackage.SubscriptionID == id {
		user.ActivePackage.PaymentStatus = status
		user.UpdatedAt = now
	}
	return nil
}

// ExpireActive flips snapshots and records whose expiry is before now
func (r *SubscriptionRepository) ExpireActive(_ context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for _, user := range r.store.users {
		if snap := user.ActivePackage; snap != nil && snap.IsActive && snap.ExpiresAt.Before(now) {
			snap.IsActive = false
			user.UpdatedAt = now
			n++
		}
	}
	for _, record := range r.store.history {
		if record.IsActive && record.ExpiresAt.Before(now) {
			record.IsActive = false
			record.UpdatedAt = now
		}
	}
	return n, nil
}
