package port

import (
	"context"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishLicenseBlocked(ctx context.Context, event domain.LicenseBlockedEvent) error
	PublishLicenseUnblocked(ctx context.Context, event domain.LicenseUnblockedEvent) error
	PublishCredentialRotated(ctx context.Context, event domain.CredentialRotatedEvent) error
	PublishSessionIssued(ctx context.Context, event domain.SessionIssuedEvent) error
	PublishRefreshTokenReplayed(ctx context.Context, event domain.RefreshTokenReplayedEvent) error
}
