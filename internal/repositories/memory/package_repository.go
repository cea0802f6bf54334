package memory

import (
	"context"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
)

var _ repositories.PackageRepository = (*PackageRepository)(nil)

// PackageRepository is the in-memory packages collection
type PackageRepository struct {
	store *Store
}

// Create stores a package
func (r *PackageRepository) Create(_ context.Context, pkg *models.Package) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c := *pkg
	r.store.packages[pkg.ID] = &c
	return nil
}

// FindByID finds a package by ID
func (r *PackageRepository) FindByID(_ context.Context, id string) (*models.Package, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	pkg, ok := r.store.packages[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *pkg
	return &c, nil
}

// FindActive returns the newest active package
func (r *PackageRepository) FindActive(_ context.Context) (*models.Package, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var active *models.Package
	for _, pkg := range r.store.packages {
		if pkg.IsActive && (active == nil || pkg.CreatedAt.After(active.CreatedAt)) {
			active = pkg
		}
	}
	if active == nil {
		return nil, repositories.ErrNotFound
	}
	c := *active
	return &c, nil
}

// Activate puts id on offer and withdraws every other package
func (r *PackageRepository) Activate(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.packages[id]; !ok {
		return repositories.ErrNotFound
	}
	for pid, pkg := range r.store.packages {
		pkg.IsActive = pid == id
	}
	return nil
}
