package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	UsersCollection          = "users"
	OTPCodesCollection       = "otp_codes"
	PackagesCollection       = "packages"
	PackageHistoryCollection = "package_history"
)

// EnsureIndexes creates the indexes the repositories rely on. It is safe to
// call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "phone_number", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("phone_number_unique"),
			},
			{
				Keys: bson.D{
					{Key: "active_package.is_active", Value: 1},
					{Key: "active_package.expires_at", Value: 1},
				},
				Options: options.Index().SetName("active_package_expiry"),
			},
		},
		OTPCodesCollection: {
			{
				Keys: bson.D{
					{Key: "phone_number", Value: 1},
					{Key: "purpose", Value: 1},
					{Key: "created_at", Value: -1},
				},
				Options: options.Index().SetName("phone_purpose_created"),
			},
			{
				// Documents are removed by the server once expires_at passes.
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0).SetName("expires_at_ttl"),
			},
		},
		PackagesCollection: {
			{
				Keys:    bson.D{{Key: "is_active", Value: 1}},
				Options: options.Index().SetName("is_active"),
			},
		},
		PackageHistoryCollection: {
			{
				Keys: bson.D{
					{Key: "user_id", Value: 1},
					{Key: "purchased_at", Value: -1},
				},
				Options: options.Index().SetName("user_purchased"),
			},
			{
				Keys: bson.D{
					{Key: "is_active", Value: 1},
					{Key: "expires_at", Value: 1},
				},
				Options: options.Index().SetName("active_expiry"),
			},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
