package models

import (
	"time"
)

// Package represents a purchasable membership package
type Package struct {
	ID          string    `bson:"_id" json:"package_id"`
	Name        string    `bson:"name" json:"name"`
	Price       float64   `bson:"price" json:"price"`
	Duration    int       `bson:"duration" json:"duration"` // days
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool      `bson:"is_active" json:"is_active"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// PaymentStatus tracks the payment of a subscription
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Valid reports whether s is one of pending, completed or failed
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

// PackageHistory is the durable record of one purchase
type PackageHistory struct {
	ID            string        `bson:"_id" json:"subscription_id"`
	UserID        string        `bson:"user_id" json:"user_id"`
	PackageID     string        `bson:"package_id" json:"package_id"`
	PackageName   string        `bson:"package_name" json:"package_name"`
	PackagePrice  float64       `bson:"package_price" json:"package_price"`
	Duration      int           `bson:"duration" json:"duration"`
	PurchasedAt   time.Time     `bson:"purchased_at" json:"purchased_at"`
	ExpiresAt     time.Time     `bson:"expires_at" json:"expires_at"`
	PaymentStatus PaymentStatus `bson:"payment_status" json:"payment_status"`
	IsActive      bool          `bson:"is_active" json:"is_active"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updated_at"`
}

// Snapshot returns the denormalized copy stored on the user
func (h *PackageHistory) Snapshot() *ActivePackage {
	return &ActivePackage{
		SubscriptionID: h.ID,
		PackageID:      h.PackageID,
		Name:           h.PackageName,
		Price:          h.PackagePrice,
		PurchasedAt:    h.PurchasedAt,
		ExpiresAt:      h.ExpiresAt,
		PaymentStatus:  h.PaymentStatus,
		IsActive:       h.IsActive,
	}
}

// PackageSummary is the package part of a subscription view
type PackageSummary struct {
	PackageID string  `json:"package_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Duration  int     `json:"duration"`
}

// SubscriptionView is returned by purchase and history
type SubscriptionView struct {
	SubscriptionID string         `json:"subscription_id"`
	Package        PackageSummary `json:"package"`
	PurchasedAt    time.Time      `json:"purchased_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	RemainingDays  int            `json:"remaining_days"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	IsActive       bool           `json:"is_active"`
}

// View builds the client view of the record at now
func (h *PackageHistory) View(now time.Time) *SubscriptionView {
	return &SubscriptionView{
		SubscriptionID: h.ID,
		Package: PackageSummary{
			PackageID: h.PackageID,
			Name:      h.PackageName,
			Price:     h.PackagePrice,
			Duration:  h.Duration,
		},
		PurchasedAt:   h.PurchasedAt,
		ExpiresAt:     h.ExpiresAt,
		RemainingDays: RemainingDays(h.ExpiresAt, now),
		PaymentStatus: h.PaymentStatus,
		IsActive:      h.IsActive,
	}
}

// RemainingDays returns the whole days left until expiresAt, never negative.
func RemainingDays(expiresAt, now time.Time) int {
	if !expiresAt.After(now) {
		return 0
	}
	return int(expiresAt.Sub(now) / (24 * time.Hour))
}

// PurchaseUserInfo is the profile data submitted with a purchase
type PurchaseUserInfo struct {
	Name       string `json:"name" binding:"required,max=100"`
	NationalID string `json:"national_id" binding:"required,max=50"`
}

// PurchaseRequest is the body of POST /api/packages/purchase
type PurchaseRequest struct {
	PackageID string           `json:"package_id" binding:"required"`
	UserInfo  PurchaseUserInfo `json:"user_info" binding:"required"`
}

// PaymentStatusRequest is the body of PUT /api/packages/subscription/:id/status
type PaymentStatusRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status" binding:"required"`
}
