// Package memory provides map-backed repositories with the same conditional
// write semantics as the MongoDB ones. They back the service tests and the
// MongoDB.InMemory development mode.
package memory

import (
	"sync"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
)

// Store holds every collection behind one lock so that writes spanning users
// and package_history stay atomic.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	otps     map[string]*models.OTPCode
	packages map[string]*models.Package
	history  map[string]*models.PackageHistory
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{
		users:    make(map[string]*models.User),
		otps:     make(map[string]*models.OTPCode),
		packages: make(map[string]*models.Package),
		history:  make(map[string]*models.PackageHistory),
	}
}

// Users returns a UserRepository over the store
func (s *Store) Users() *UserRepository { return &UserRepository{store: s} }

// OTPs returns an OTPRepository over the store
func (s *Store) OTPs() *OTPRepository { return &OTPRepository{store: s} }

// Packages returns a PackageRepository over the store
func (s *Store) Packages() *PackageRepository { return &PackageRepository{store: s} }

// Subscriptions returns a SubscriptionRepository over the store
func (s *Store) Subscriptions() *SubscriptionRepository { return &SubscriptionRepository{store: s} }

func copyUser(u *models.User) *models.User {
	c := *u
	if u.Name != nil {
		name := *u.Name
		c.Name = &name
	}
	if u.NationalID != nil {
		nid := *u.NationalID
		c.NationalID = &nid
	}
	if u.ActivePackage != nil {
		snap := *u.ActivePackage
		c.ActivePackage = &snap
	}
	return &c
}

func copyOTP(o *models.OTPCode) *models.OTPCode {
	c := *o
	if o.UsedAt != nil {
		usedAt := *o.UsedAt
		c.UsedAt = &usedAt
	}
	return &c
}
