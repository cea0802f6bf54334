package memory

import (
	"context"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
)

var _ repositories.UserRepository = (*UserRepository)(nil)

// UserRepository is the in-memory users collection
type UserRepository struct {
	store *Store
}

// FindByID finds a user by ID
func (r *UserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyUser(user), nil
}

// FindByPhone finds a user by phone number
func (r *UserRepository) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if user := r.byPhone(phone); user != nil {
		return copyUser(user), nil
	}
	return nil, repositories.ErrNotFound
}

// FindOrCreateByPhone returns the existing owner of the phone or inserts candidate
func (r *UserRepository) FindOrCreateByPhone(_ context.Context, candidate *models.User) (*models.User, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if user := r.byPhone(candidate.PhoneNumber); user != nil {
		return copyUser(user), false, nil
	}
	r.store.users[candidate.ID] = copyUser(candidate)
	return copyUser(candidate), true, nil
}

// UpdateProfile applies update and returns the new state
func (r *UserRepository) UpdateProfile(_ context.Context, id string, update models.ProfileUpdate, now time.Time) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	update.Apply(user)
	user.UpdatedAt = now
	return copyUser(user), nil
}

// UpdatePhone replaces the phone number, keeping phone numbers unique
func (r *UserRepository) UpdatePhone(_ context.Context, id, phone string, now time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if owner := r.byPhone(phone); owner != nil && owner.ID != id {
		return repositories.ErrDuplicatePhone
	}
	user.PhoneNumber = phone
	user.UpdatedAt = now
	return nil
}

// byPhone must be called with the lock held
func (r *UserRepository) byPhone(phone string) *models.User {
	for _, user := range r.store.users {
		if user.PhoneNumber == phone {
			return user
		}
	}
	return nil
}
