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

var _ repositories.SubscriptionRepository = (*SubscriptionRepository)(nil)

// SubscriptionRepository writes package_history records together with the
// active_package snapshot on the owning user.
type SubscriptionRepository struct {
	client       *mongo.Client
	history      *mongo.Collection
	users        *mongo.Collection
	timeout      time.Duration
	transactions bool
}

// NewSubscriptionRepository creates a new SubscriptionRepository. With
// transactions enabled the paired writes run in one multi-document
// transaction, which requires a replica set.
func NewSubscriptionRepository(db *mongo.Database, timeout time.Duration, transactions bool) *SubscriptionRepository {
	return &SubscriptionRepository{
		client:       db.Client(),
		history:      db.Collection(PackageHistoryCollection),
		users:        db.Collection(UsersCollection),
		timeout:      timeout,
		transactions: transactions,
	}
}

// Create stores record and claims the user's snapshot slot
func (r *SubscriptionRepository) Create(ctx context.Context, record *models.PackageHistory, profile models.ProfileUpdate) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if r.transactions {
		return r.inTransaction(ctx, func(sc mongo.SessionContext) error {
			if _, err := r.history.InsertOne(sc, record); err != nil {
				return fmt.Errorf("failed to insert package history: %w", err)
			}
			return r.claimSnapshot(sc, record, profile)
		})
	}

	if _, err := r.history.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert package history: %w", err)
	}
	if err := r.claimSnapshot(ctx, record, profile); err != nil {
		// Roll back the record so history never shows a purchase the user does not hold.
		if _, delErr := r.history.DeleteOne(context.Background(), bson.M{"_id": record.ID}); delErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, delErr)
		}
		return err
	}
	return nil
}

// claimSnapshot sets the snapshot only when the user holds no active,
// unexpired one.
func (r *SubscriptionRepository) claimSnapshot(ctx context.Context, record *models.PackageHistory, profile models.ProfileUpdate) error {
	set := profileFields(profile)
	set["active_package"] = record.Snapshot()
	set["updated_at"] = record.PurchasedAt

	filter := bson.M{
		"_id": record.UserID,
		"$or": bson.A{
			bson.M{"active_package": nil},
			bson.M{"active_package.is_active": false},
			bson.M{"active_package.expires_at": bson.M{"$lte": record.PurchasedAt}},
		},
	}
	result, err := r.users.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to set active package: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	count, err := r.users.CountDocuments(ctx, bson.M{"_id": record.UserID})
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if count == 0 {
		return repositories.ErrNotFound
	}
	return repositories.ErrActivePackageExists
}

// FindByID finds a subscription record by ID
func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*models.PackageHistory, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var record models.PackageHistory
	if err := r.history.FindOne(ctx, bson.M{"_id": id}).Decode(&record); err != nil {
		return nil, translate(err, "find subscription")
	}
	return &record, nil
}

// FindByUser returns the user's records, newest purchase first
func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID string) ([]*models.PackageHistory, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "purchased_at", Value: -1}})
	cursor, err := r.history.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find package history: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*models.PackageHistory, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode package history: %w", err)
	}
	return records, nil
}

// UpdatePaymentStatus sets the status on the record and on the snapshot
// mirroring it, if the user still holds that subscription.
func (r *SubscriptionRepository) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, now time.Time) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	update := func(ctx context.Context) error {
		var record models.PackageHistory
		err := r.history.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"payment_status": status, "updated_at": now}},
		).Decode(&record)
		if err != nil {
			return translate(err, "update payment status")
		}

		filter := bson.M{"_id": record.UserID, "active_package.subscription_id": id}
		set := bson.M{"$set": bson.M{"active_package.payment_status": status, "updated_at": now}}
		if _, err := r.users.UpdateOne(ctx, filter, set); err != nil {
			return fmt.Errorf("failed to update snapshot payment status: %w", err)
		}
		return nil
	}

	if r.transactions {
		return r.inTransaction(ctx, func(sc mongo.SessionContext) error { return update(sc) })
	}
	return update(ctx)
}

// ExpireActive flips snapshots and records whose expiry is before now
func (r *SubscriptionRepository) ExpireActive(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var expired int64
	sweep := func(ctx context.Context) error {
		users, err := r.users.UpdateMany(ctx,
			bson.M{"active_package.is_active": true, "active_package.expires_at": bson.M{"$lt": now}},
			bson.M{"$set": bson.M{"active_package.is_active": false, "updated_at": now}},
		)
		if err != nil {
			return fmt.Errorf("failed to expire user packages: %w", err)
		}
		if _, err := r.history.UpdateMany(ctx,
			bson.M{"is_active": true, "expires_at": bson.M{"$lt": now}},
			bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
		); err != nil {
			return fmt.Errorf("failed to expire package history: %w", err)
		}
		expired = users.ModifiedCount
		return nil
	}

	var err error
	if r.transactions {
		err = r.inTransaction(ctx, func(sc mongo.SessionContext) error { return sweep(sc) })
	} else {
		err = sweep(ctx)
	}
	return expired, err
}

func (r *SubscriptionRepository) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
