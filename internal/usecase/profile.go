package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

// ProfileService manages profiles, their feature flags and user assignments.
type ProfileService struct {
	licenses port.LicenseRepository
	profiles port.ProfileRepository
	users    port.UserRepository
	now      func() time.Time
}

// NewProfileService constructs a ProfileService.
func NewProfileService(licenses port.LicenseRepository, profiles port.ProfileRepository, users port.UserRepository) *ProfileService {
	return &ProfileService{
		licenses: licenses,
		profiles: profiles,
		users:    users,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *ProfileService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// CreateProfile creates an active profile scoped to the license.
func (s *ProfileService) CreateProfile(ctx context.Context, licenseID, name string) (*domain.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrProfileNameRequired
	}

	license, err := s.license(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	profile := domain.Profile{
		ID:        uuid.NewString(),
		LicenseID: license.ID,
		Name:      name,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &profile, nil
}

// SetGrant records the flags the profile holds for a feature. The feature must be granted
// by the profile's license.
func (s *ProfileService) SetGrant(ctx context.Context, profileID, featureKey string, flags domain.PermissionFlags) (*domain.ProfileFeatureGrant, error) {
	profile, err := s.activeProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	license, err := s.license(ctx, profile.LicenseID)
	if err != nil {
		return nil, err
	}

	feature, ok := license.Feature(strings.TrimSpace(featureKey))
	if !ok {
		return nil, ErrFeatureNotLicensed
	}

	grant := domain.ProfileFeatureGrant{
		ProfileID:  profile.ID,
		FeatureID:  feature.ID,
		FeatureKey: feature.Key,
		Flags:      flags,
	}
	if err := s.profiles.UpsertGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("upsert profile grant: %w", err)
	}
	return &grant, nil
}

// AssignUser assigns the user to the profile. A user taking their first profile under the
// license occupies a seat and is refused once the license's seat cap is reached.
func (s *ProfileService) AssignUser(ctx context.Context, profileID, userID string) (*domain.ProfileAssignment, error) {
	profile, err := s.activeProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	userID = strings.TrimSpace(userID)
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	license, err := s.license(ctx, profile.LicenseID)
	if err != nil {
		return nil, err
	}

	assignment := domain.ProfileAssignment{
		ProfileID:  profile.ID,
		UserID:     userID,
		AssignedAt: s.now(),
	}
	if err := s.profiles.AssignUser(ctx, assignment, license.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrLimitReached):
			return nil, ErrSeatLimitReached
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("assign user: %w", err)
	}
	return &assignment, nil
}

// UnassignUser removes the user from the profile.
func (s *ProfileService) UnassignUser(ctx context.Context, profileID, userID string) error {
	if _, err := s.profile(ctx, profileID); err != nil {
		return err
	}
	if err := s.profiles.UnassignUser(ctx, profileID, strings.TrimSpace(userID)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("unassign user: %w", err)
	}
	return nil
}

func (s *ProfileService) profile(ctx context.Context, profileID string) (*domain.Profile, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, ErrProfileNotFound
	}
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

func (s *ProfileService) activeProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	profile, err := s.profile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		return nil, ErrProfileInactive
	}
	return profile, nil
}

func (s *ProfileService) license(ctx context.Context, licenseID string) (*domain.License, error) {
	licenseID = strings.TrimSpace(licenseID)
	if licenseID == "" {
		return nil, ErrLicenseNotFound
	}
	license, err := s.licenses.GetByID(ctx, licenseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("get license: %w", err)
	}
	return license, nil
}
