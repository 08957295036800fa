package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
)

// EntitlementAggregator computes a user's effective permissions under one license.
type EntitlementAggregator struct {
	profiles port.ProfileRepository
	now      func() time.Time
}

// NewEntitlementAggregator constructs an aggregator over the profile store.
func NewEntitlementAggregator(profiles port.ProfileRepository) *EntitlementAggregator {
	return &EntitlementAggregator{
		profiles: profiles,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the snapshot clock for deterministic tests.
func (a *EntitlementAggregator) WithClock(clock func() time.Time) {
	if clock != nil {
		a.now = clock
	}
}

// Aggregate returns the effective permission map of the user under the license.
// A user without any profile under the license gets an empty map.
func (a *EntitlementAggregator) Aggregate(ctx context.Context, userID string, license domain.License) (domain.FeaturePermissionMap, error) {
	permissions, _, err := a.AggregateMembership(ctx, userID, license)
	return permissions, err
}

// AggregateMembership behaves like Aggregate and also reports whether the user holds at
// least one active profile under the license.
func (a *EntitlementAggregator) AggregateMembership(ctx context.Context, userID string, license domain.License) (domain.FeaturePermissionMap, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.FeaturePermissionMap{}, false, nil
	}

	memberships, err := a.profiles.ListMemberships(ctx, userID, license.ID)
	if err != nil {
		return nil, false, fmt.Errorf("list profile memberships: %w", err)
	}

	member := false
	for _, membership := range memberships {
		if membership.Profile.IsActive && membership.Profile.LicenseID == license.ID {
			member = true
			break
		}
	}

	return MergeGrants(FilterGrantsByLicense(memberships, license)), member, nil
}

// Snapshot bundles the aggregated permissions with the license's granted modules.
func (a *EntitlementAggregator) Snapshot(ctx context.Context, userID string, license domain.License) (domain.EntitlementSnapshot, error) {
	permissions, err := a.Aggregate(ctx, userID, license)
	if err != nil {
		return domain.EntitlementSnapshot{}, err
	}
	return NewSnapshot(license, permissions, a.now()), nil
}

// NewSnapshot builds the client-facing entitlement snapshot.
func NewSnapshot(license domain.License, permissions domain.FeaturePermissionMap, at time.Time) domain.EntitlementSnapshot {
	if permissions == nil {
		permissions = domain.FeaturePermissionMap{}
	}
	return domain.EntitlementSnapshot{
		LicenseID:   license.ID,
		Modules:     license.ModuleKeys(),
		Permissions: permissions,
		GeneratedAt: at,
	}
}

// FilterGrantsByLicense keeps the grants of active profiles scoped to the license whose
// feature is part of the license's granted set. Surviving grants carry the license's
// feature key.
func FilterGrantsByLicense(memberships []domain.ProfileMembership, license domain.License) []domain.ProfileFeatureGrant {
	byID := make(map[string]domain.Feature, len(license.Features))
	byKey := make(map[string]domain.Feature, len(license.Features))
	for _, feature := range license.Features {
		if feature.ID != "" {
			byID[feature.ID] = feature
		}
		byKey[feature.Key] = feature
	}

	kept := make([]domain.ProfileFeatureGrant, 0)
	for _, membership := range memberships {
		profile := membership.Profile
		if !profile.IsActive || profile.LicenseID != license.ID {
			continue
		}
		for _, grant := range membership.Grants {
			var (
				feature domain.Feature
				ok      bool
			)
			if grant.FeatureID != "" {
				feature, ok = byID[grant.FeatureID]
			} else {
				feature, ok = byKey[grant.FeatureKey]
			}
			if !ok {
				continue
			}
			grant.FeatureID = feature.ID
			grant.FeatureKey = feature.Key
			kept = append(kept, grant)
		}
	}
	return kept
}

// MergeGrants ORs the flags of every grant per feature key.
func MergeGrants(grants []domain.ProfileFeatureGrant) domain.FeaturePermissionMap {
	merged := make(domain.FeaturePermissionMap, len(grants))
	for _, grant := range grants {
		merged[grant.FeatureKey] = merged[grant.FeatureKey].Or(grant.Flags)
	}
	return merged
}
