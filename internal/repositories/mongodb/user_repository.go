package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check to ensure UserRepository implements the interface
var _ repositories.UserRepository = (*UserRepository)(nil)

// UserRepository handles MongoDB operations for User
type UserRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *mongo.Database, timeout time.Duration) *UserRepository {
	return &UserRepository{
		collection: db.Collection(UsersCollection),
		timeout:    timeout,
	}
}

// FindByID finds a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err, "find user by id")
	}
	return &user, nil
}

// FindByPhone finds a user by normalized phone number
func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"phone_number": phone}).Decode(&user); err != nil {
		return nil, translate(err, "find user by phone")
	}
	return &user, nil
}

// FindOrCreateByPhone upserts candidate keyed on its phone number
func (r *UserRepository) FindOrCreateByPhone(ctx context.Context, candidate *models.User) (*models.User, bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"phone_number": candidate.PhoneNumber}
	update := bson.M{"$setOnInsert": candidate}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent login inserted the same phone first.
		err = r.collection.FindOne(ctx, filter).Decode(&user)
	}
	if err != nil {
		return nil, false, translate(err, "find or create user")
	}
	return &user, user.ID == candidate.ID, nil
}

// UpdateProfile sets the non-nil fields of update and returns the new document
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate, now time.Time) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	set := profileFields(update)
	set["updated_at"] = now
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		return nil, translate(err, "update user profile")
	}
	return &user, nil
}

// UpdatePhone replaces the user's phone number
func (r *UserRepository) UpdatePhone(ctx context.Context, id, phone string, now time.Time) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"phone_number": phone, "updated_at": now}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repositories.ErrDuplicatePhone
		}
		return fmt.Errorf("failed to update user phone: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func profileFields(update models.ProfileUpdate) bson.M {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.NationalID != nil {
		set["national_id"] = *update.NationalID
	}
	return set
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// translate maps driver errors onto repository sentinels
func translate(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repositories.ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
