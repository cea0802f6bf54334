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

var _ repositories.PackageRepository = (*PackageRepository)(nil)

// PackageRepository handles MongoDB operations for the package catalog
type PackageRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewPackageRepository creates a new PackageRepository
func NewPackageRepository(db *mongo.Database, timeout time.Duration) *PackageRepository {
	return &PackageRepository{
		collection: db.Collection(PackagesCollection),
		timeout:    timeout,
	}
}

// Create inserts a package
func (r *PackageRepository) Create(ctx context.Context, pkg *models.Package) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, pkg); err != nil {
		return fmt.Errorf("failed to create package: %w", err)
	}
	return nil
}

// FindByID finds a package by ID
func (r *PackageRepository) FindByID(ctx context.Context, id string) (*models.Package, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var pkg models.Package
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&pkg); err != nil {
		return nil, translate(err, "find package")
	}
	return &pkg, nil
}

// FindActive returns the package currently on offer
func (r *PackageRepository) FindActive(ctx context.Context) (*models.Package, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var pkg models.Package
	if err := r.collection.FindOne(ctx, bson.M{"is_active": true}, opts).Decode(&pkg); err != nil {
		return nil, translate(err, "find active package")
	}
	return &pkg, nil
}

// Activate puts id on offer and withdraws every other package
func (r *PackageRepository) Activate(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_active": true}})
	if err != nil {
		return fmt.Errorf("failed to activate package: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}

	others := bson.M{"_id": bson.M{"$ne": id}, "is_active": true}
	if _, err := r.collection.UpdateMany(ctx, others, bson.M{"$set": bson.M{"is_active": false}}); err != nil {
		return fmt.Errorf("failed to deactivate other packages: %w", err)
	}
	return nil
}
