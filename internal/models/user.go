package models

import (
	"time"
)

// User represents a clinic member identified by phone number
type User struct {
	ID            string         `bson:"_id" json:"user_id"`
	PhoneNumber   string         `bson:"phone_number" json:"phone_number"`
	Name          *string        `bson:"name" json:"name"`
	NationalID    *string        `bson:"national_id" json:"national_id"`
	IsActive      bool           `bson:"is_active" json:"is_active"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
	ActivePackage *ActivePackage `bson:"active_package,omitempty" json:"active_package,omitempty"`
}

// ActivePackage is the denormalized copy of the user's current subscription
type ActivePackage struct {
	SubscriptionID string        `bson:"subscription_id" json:"subscription_id"`
	PackageID      string        `bson:"package_id" json:"package_id"`
	Name           string        `bson:"name" json:"name"`
	Price          float64       `bson:"price" json:"price"`
	PurchasedAt    time.Time     `bson:"purchased_at" json:"purchased_at"`
	ExpiresAt      time.Time     `bson:"expires_at" json:"expires_at"`
	PaymentStatus  PaymentStatus `bson:"payment_status" json:"payment_status"`
	IsActive       bool          `bson:"is_active" json:"is_active"`
}

// ProfileUpdate carries optional profile changes. Nil fields are left untouched.
type ProfileUpdate struct {
	Name       *string `json:"name" binding:"omitempty,max=100"`
	NationalID *string `json:"national_id" binding:"omitempty,max=50"`
}

// UserProfile is the read model returned to clients
type UserProfile struct {
	ID            string             `json:"user_id"`
	PhoneNumber   string             `json:"phone_number"`
	Name          *string            `json:"name"`
	NationalID    *string            `json:"national_id"`
	IsActive      bool               `json:"is_active"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	ActivePackage *ActivePackageView `json:"active_package"`
}

// ActivePackageView adds the computed remaining days to a snapshot
type ActivePackageView struct {
	ActivePackage
	RemainingDays int `json:"remaining_days"`
}

// NewUser returns a user with the defaults applied on first login
func NewUser(id, phone string, now time.Time) *User {
	return &User{
		ID:          id,
		PhoneNumber: phone,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasActivePackage reports whether the snapshot is flagged active and unexpired at now.
func (u *User) HasActivePackage(now time.Time) bool {
	if u.ActivePackage == nil || u.ActivePackage.ExpiresAt.IsZero() {
		return false
	}
	return u.ActivePackage.IsActive && u.ActivePackage.ExpiresAt.After(now)
}

// Apply copies the non-nil fields of the update onto the user
func (p ProfileUpdate) Apply(u *User) {
	if p.Name != nil {
		name := *p.Name
		u.Name = &name
	}
	if p.NationalID != nil {
		nid := *p.NationalID
		u.NationalID = &nid
	}
}

// IsEmpty reports whether the update changes nothing
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.NationalID == nil
}

// Profile builds the client view of the user at the given instant
func (u *User) Profile(now time.Time) *UserProfile {
	profile := &UserProfile{
		ID:          u.ID,
		PhoneNumber: u.PhoneNumber,
		Name:        u.Name,
		NationalID:  u.NationalID,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	if u.ActivePackage != nil && !u.ActivePackage.ExpiresAt.IsZero() {
		profile.ActivePackage = &ActivePackageView{
			ActivePackage: *u.ActivePackage,
			RemainingDays: RemainingDays(u.ActivePackage.ExpiresAt, now),
		}
	}
	return profile
}
