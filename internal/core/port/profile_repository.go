package port

import (
	"context"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
)

// ProfileRepository manages profiles, their feature grants and user assignments.
type ProfileRepository interface {
	// ListMemberships returns the profiles the user holds under the license, each with its grants.
	ListMemberships(ctx context.Context, userID, licenseID string) ([]domain.ProfileMembership, error)
	Create(ctx context.Context, profile domain.Profile) error
	GetByID(ctx context.Context, profileID string) (*domain.Profile, error)
	UpsertGrant(ctx context.Context, grant domain.ProfileFeatureGrant) error
	// AssignUser links the user to a profile of the license. Seat accounting and the insert are
	// atomic: a user holding no profile under the license is refused with
	// repository.ErrLimitReached once the license's max_users distinct users are seated.
	AssignUser(ctx context.Context, assignment domain.ProfileAssignment, licenseID string) error
	UnassignUser(ctx context.Context, profileID, userID string) error
}
