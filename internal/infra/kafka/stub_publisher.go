package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a log-only event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, licenseID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("license_id", licenseID),
		zap.Time("timestamp", at.UTC()),
	}
	p.logger.Info("stub event published", append(base, fields...)...)
}

func (p *StubPublisher) PublishLicenseBlocked(_ context.Context, event domain.LicenseBlockedEvent) error {
	p.logEvent(EventLicenseBlocked, event.LicenseID, event.BlockedAt,
		zap.String("reason", event.Reason),
		zap.String("blocked_by", event.BlockedBy),
	)
	return nil
}

func (p *StubPublisher) PublishLicenseUnblocked(_ context.Context, event domain.LicenseUnblockedEvent) error {
	p.logEvent(EventLicenseUnblocked, event.LicenseID, event.UnblockedAt,
		zap.String("unblocked_by", event.UnblockedBy),
	)
	return nil
}

func (p *StubPublisher) PublishCredentialRotated(_ context.Context, event domain.CredentialRotatedEvent) error {
	p.logEvent(EventCredentialRotated, event.LicenseID, event.RotatedAt,
		zap.String("credential_id", event.CredentialID),
		zap.String("rotated_by", event.RotatedBy),
	)
	return nil
}

func (p *StubPublisher) PublishSessionIssued(_ context.Context, event domain.SessionIssuedEvent) error {
	p.logEvent(EventSessionIssued, event.LicenseID, event.IssuedAt,
		zap.String("user_id", event.UserID),
		zap.String("source", event.Source),
	)
	return nil
}

func (p *StubPublisher) PublishRefreshTokenReplayed(_ context.Context, event domain.RefreshTokenReplayedEvent) error {
	p.logEvent(EventRefreshTokenReplayed, event.LicenseID, event.DetectedAt,
		zap.String("user_id", event.UserID),
		zap.String("family_id", event.FamilyID),
		zap.Int("tokens_revoked", event.TokensRevoked),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
