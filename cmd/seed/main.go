package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/internal/config"
	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
	mongorepo "github.com/ArowuTest/clinic-membership-backend/internal/repositories/mongodb"
	mongodb "github.com/ArowuTest/clinic-membership-backend/pkg/mongodb"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// seed creates the sample membership package and makes it the only one on
// offer. Re-running with the same --id reactivates the existing package.
func main() {
	id := pflag.String("id", "", "package id (generated when empty)")
	name := pflag.String("name", "Annual Premium Membership", "package name")
	price := pflag.Float64("price", 150, "package price in KWD")
	duration := pflag.Int("duration", 365, "package duration in days")
	description := pflag.String("description", "Full year of clinic services with priority booking", "package description")
	pflag.Parse()

	if *duration <= 0 || *price < 0 {
		log.Fatalf("duration must be positive and price non-negative")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.MongoDB.InMemory {
		log.Fatalf("seeding requires MongoDB; MONGODB_INMEMORY is set")
	}

	client, err := mongodb.NewClient(cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db := client.Database(cfg.MongoDB.Database)
	if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	packages := mongorepo.NewPackageRepository(db, cfg.MongoDB.Timeout)

	if *id == "" {
		*id = uuid.NewString()
	}

	_, err = packages.FindByID(ctx, *id)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		pkg := &models.Package{
			ID:          *id,
			Name:        *name,
			Price:       *price,
			Duration:    *duration,
			Description: *description,
			CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		}
		if err := packages.Create(ctx, pkg); err != nil {
			log.Fatalf("Failed to create package: %v", err)
		}
		log.Printf("Created package %s (%s)", pkg.ID, pkg.Name)
	case err != nil:
		log.Fatalf("Failed to look up package: %v", err)
	default:
		log.Printf("Package %s already exists", *id)
	}

	if err := packages.Activate(ctx, *id); err != nil {
		log.Fatalf("Failed to activate package: %v", err)
	}
	log.Printf("Package %s is now the only active package", *id)
}
