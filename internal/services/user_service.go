package services

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
	"github.com/ArowuTest/clinic-membership-backend/internal/utils"
	"go.uber.org/zap"
)

const (
	maxNameLength       = 100
	maxNationalIDLength = 50
)

type userService struct {
	users  repositories.UserRepository
	phones *utils.PhoneNormalizer
	options
}

// NewUserService creates a new UserService implementation
func NewUserService(users repositories.UserRepository, phones *utils.PhoneNormalizer, opts ...Option) UserService {
	return &userService{
		users:   users,
		phones:  phones,
		options: buildOptions(opts),
	}
}

// GetProfile returns the user with the computed package view
func (s *userService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Profile(s.clock()), nil
}

// UpdateProfile applies the provided fields
func (s *userService) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.UserProfile, error) {
	if err := validateProfile(update); err != nil {
		return nil, err
	}
	now := s.clock()
	if update.IsEmpty() {
		return s.GetProfile(ctx, userID)
	}

	user, err := s.users.UpdateProfile(ctx, userID, update, now)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(KindUserNotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user.Profile(now), nil
}

// UpdatePhone moves the user to newPhone. The caller verifies ownership of
// the new number first.
func (s *userService) UpdatePhone(ctx context.Context, userID, rawPhone string) error {
	phone, err := s.phones.Normalize(rawPhone)
	if err != nil {
		return wrapError(KindInvalidPhoneFormat, "Invalid phone number format", err)
	}

	err = s.users.UpdatePhone(ctx, userID, phone, s.clock())
	switch {
	case errors.Is(err, repositories.ErrDuplicatePhone):
		return wrapError(KindPhoneTaken, "Phone number already exists", err)
	case errors.Is(err, repositories.ErrNotFound):
		return newError(KindUserNotFound, "User not found")
	case err != nil:
		return fmt.Errorf("failed to update phone: %w", err)
	}

	s.logger.Info("phone number changed", zap.String("user_id", userID), zap.String("phone", utils.MaskPhone(phone)))
	return nil
}

func (s *userService) find(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(KindUserNotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func validateProfile(update models.ProfileUpdate) error {
	if update.Name != nil && utf8.RuneCountInString(*update.Name) > maxNameLength {
		return newError(KindInvalidInput, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	if update.NationalID != nil && utf8.RuneCountInString(*update.NationalID) > maxNationalIDLength {
		return newError(KindInvalidInput, fmt.Sprintf("national_id must be at most %d characters", maxNationalIDLength))
	}
	return nil
}
