package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.OTPRepository = (*OTPRepository)(nil)

// OTPRepository handles MongoDB operations for OTP codes
type OTPRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewOTPRepository creates a new OTPRepository
func NewOTPRepository(db *mongo.Database, timeout time.Duration) *OTPRepository {
	return &OTPRepository{
		collection: db.Collection(OTPCodesCollection),
		timeout:    timeout,
	}
}

// InvalidatePrevious marks every unused code for the pair as used
func (r *OTPRepository) InvalidatePrevious(ctx context.Context, phone string, purpose models.OTPPurpose) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"phone_number": phone, "purpose": purpose, "is_used": false}
	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_used": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate previous OTPs: %w", err)
	}
	return result.ModifiedCount, nil
}

// Create inserts a hashed code
func (r *OTPRepository) Create(ctx context.Context, otp *models.OTPCode) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, otp); err != nil {
		return fmt.Errorf("failed to create OTP: %w", err)
	}
	return nil
}

// FindLatestValid returns the newest unused, unexpired code for the pair
func (r *OTPRepository) FindLatestValid(ctx context.Context, phone string, purpose models.OTPPurpose, now time.Time) (*models.OTPCode, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"phone_number": phone,
		"purpose":      purpose,
		"is_used":      false,
		"expires_at":   bson.M{"$gt": now},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var otp models.OTPCode
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&otp); err != nil {
		return nil, translate(err, "find OTP")
	}
	return &otp, nil
}

// FindLatest returns the newest code for the pair whatever its state
func (r *OTPRepository) FindLatest(ctx context.Context, phone string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"phone_number": phone, "purpose": purpose}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var otp models.OTPCode
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&otp); err != nil {
		return nil, translate(err, "find OTP")
	}
	return &otp, nil
}

// MarkUsed consumes the code if nobody else has
func (r *OTPRepository) MarkUsed(ctx context.Context, id string, now time.Time) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"_id": id, "is_used": false}
	update := bson.M{"$set": bson.M{"is_used": true, "used_at": now}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark OTP used: %w", err)
	}
	if result.ModifiedCount == 0 {
		return repositories.ErrOTPAlreadyUsed
	}
	return nil
}

// DeleteExpired removes codes that have expired at now
func (r *OTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired OTPs: %w", err)
	}
	return result.DeletedCount, nil
}
