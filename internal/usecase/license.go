package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

// LicenseInvalidator drops cached license data for an API key.
type LicenseInvalidator interface {
	Invalidate(ctx context.Context, apiKey string) error
}

// LicenseService performs the administrative license transitions.
type LicenseService struct {
	licenses    port.LicenseRepository
	invalidator LicenseInvalidator
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewLicenseService constructs a LicenseService.
func NewLicenseService(licenses port.LicenseRepository, invalidator LicenseInvalidator, log *zap.Logger) *LicenseService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LicenseService{
		licenses:    licenses,
		invalidator: invalidator,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithEventPublisher attaches an event publisher for license events.
func (s *LicenseService) WithEventPublisher(publisher port.EventPublisher) *LicenseService {
	s.events = publisher
	return s
}

// WithClock overrides the service clock for deterministic tests.
func (s *LicenseService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Get returns the license with its client and granted catalog entries.
func (s *LicenseService) Get(ctx context.Context, licenseID string) (*domain.License, error) {
	return s.load(ctx, licenseID)
}

// Block marks the license as blocked. Blocking an already blocked license keeps the
// original reason and timestamp. The cache entry is dropped in both cases.
func (s *LicenseService) Block(ctx context.Context, licenseID, reason, actor string) (*domain.License, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrBlockReasonRequired
	}

	license, err := s.load(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	changed := license.Block(now, reason)
	if changed {
		if err := s.licenses.SetBlocked(ctx, license.ID, reason, now); err != nil {
			return nil, fmt.Errorf("block license: %w", err)
		}
	}

	if err := s.invalidate(ctx, license); err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("license blocked",
			zap.String("license_id", license.ID),
			zap.String("actor", actor),
			zap.String("reason", reason),
		)
		if s.events != nil {
			event := domain.LicenseBlockedEvent{
				EventID:   uuid.NewString(),
				LicenseID: license.ID,
				ClientID:  license.ClientID,
				Reason:    reason,
				BlockedBy: actor,
				BlockedAt: now,
			}
			if err := s.events.PublishLicenseBlocked(ctx, event); err != nil {
				s.logger.Warn("publish license blocked event failed", zap.Error(err))
			}
		}
	}

	return license, nil
}

// Unblock lifts an administrative block.
func (s *LicenseService) Unblock(ctx context.Context, licenseID, actor string) (*domain.License, error) {
	license, err := s.load(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	changed := license.Unblock()
	if changed {
		if err := s.licenses.ClearBlocked(ctx, license.ID); err != nil {
			return nil, fmt.Errorf("unblock license: %w", err)
		}
	}

	if err := s.invalidate(ctx, license); err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("license unblocked", zap.String("license_id", license.ID), zap.String("actor", actor))
		if s.events != nil {
			event := domain.LicenseUnblockedEvent{
				EventID:     uuid.NewString(),
				LicenseID:   license.ID,
				ClientID:    license.ClientID,
				UnblockedBy: actor,
				UnblockedAt: now,
			}
			if err := s.events.PublishLicenseUnblocked(ctx, event); err != nil {
				s.logger.Warn("publish license unblocked event failed", zap.Error(err))
			}
		}
	}

	return license, nil
}

// RotateAPIKey replaces the license credential. The previous value stops resolving as soon
// as the store commits and its cache entry is dropped. The new raw key is returned once.
func (s *LicenseService) RotateAPIKey(ctx context.Context, licenseID, actor string) (*domain.Credential, error) {
	license, err := s.load(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	newKey, err := security.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	now := s.now()
	credential, err := s.licenses.RotateCredential(ctx, license.ID, newKey, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("rotate credential: %w", err)
	}

	if err := s.invalidate(ctx, license); err != nil {
		return nil, err
	}

	s.logger.Info("license credential rotated", zap.String("license_id", license.ID), zap.String("actor", actor))
	if s.events != nil {
		event := domain.CredentialRotatedEvent{
			EventID:      uuid.NewString(),
			LicenseID:    license.ID,
			ClientID:     license.ClientID,
			CredentialID: credential.ID,
			RotatedBy:    actor,
			RotatedAt:    now,
		}
		if err := s.events.PublishCredentialRotated(ctx, event); err != nil {
			s.logger.Warn("publish credential rotated event failed", zap.Error(err))
		}
	}

	return credential, nil
}

func (s *LicenseService) load(ctx context.Context, licenseID string) (*domain.License, error) {
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

func (s *LicenseService) invalidate(ctx context.Context, license *domain.License) error {
	if s.invalidator == nil || license.Credential == nil {
		return nil
	}
	return s.invalidator.Invalidate(ctx, license.Credential.Key)
}
