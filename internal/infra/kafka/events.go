package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, before the topic prefix is applied.
const (
	EventLicenseBlocked       = "license.blocked"
	EventLicenseUnblocked     = "license.unblocked"
	EventCredentialRotated    = "license.credential.rotated"
	EventSessionIssued        = "session.issued"
	EventRefreshTokenReplayed = "session.refresh_replayed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	LicenseID string            `json:"license_id"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, licenseID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		LicenseID: licenseID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(licenseID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("event_id"), Value: []byte(eventID)},
		},
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLicenseBlocked publishes license.blocked events.
func (p *EventPublisher) PublishLicenseBlocked(ctx context.Context, event domain.LicenseBlockedEvent) error {
	payload := struct {
		LicenseID string    `json:"license_id"`
		ClientID  string    `json:"client_id"`
		Reason    string    `json:"reason"`
		BlockedBy string    `json:"blocked_by"`
		BlockedAt time.Time `json:"blocked_at"`
	}{
		LicenseID: event.LicenseID,
		ClientID:  event.ClientID,
		Reason:    event.Reason,
		BlockedBy: event.BlockedBy,
		BlockedAt: event.BlockedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventLicenseBlocked, event.LicenseID, event.BlockedAt, payload)
}

// PublishLicenseUnblocked publishes license.unblocked events.
func (p *EventPublisher) PublishLicenseUnblocked(ctx context.Context, event domain.LicenseUnblockedEvent) error {
	payload := struct {
		LicenseID   string    `json:"license_id"`
		ClientID    string    `json:"client_id"`
		UnblockedBy string    `json:"unblocked_by"`
		UnblockedAt time.Time `json:"unblocked_at"`
	}{
		LicenseID:   event.LicenseID,
		ClientID:    event.ClientID,
		UnblockedBy: event.UnblockedBy,
		UnblockedAt: event.UnblockedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventLicenseUnblocked, event.LicenseID, event.UnblockedAt, payload)
}

// PublishCredentialRotated publishes license.credential.rotated events. The new key value is never included.
func (p *EventPublisher) PublishCredentialRotated(ctx context.Context, event domain.CredentialRotatedEvent) error {
	payload := struct {
		LicenseID    string    `json:"license_id"`
		ClientID     string    `json:"client_id"`
		CredentialID string    `json:"credential_id"`
		RotatedBy    string    `json:"rotated_by"`
		RotatedAt    time.Time `json:"rotated_at"`
	}{
		LicenseID:    event.LicenseID,
		ClientID:     event.ClientID,
		CredentialID: event.CredentialID,
		RotatedBy:    event.RotatedBy,
		RotatedAt:    event.RotatedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventCredentialRotated, event.LicenseID, event.RotatedAt, payload)
}

// PublishSessionIssued publishes session.issued events for logins and refreshes.
func (p *EventPublisher) PublishSessionIssued(ctx context.Context, event domain.SessionIssuedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		LicenseID string    `json:"license_id"`
		ClientID  string    `json:"client_id"`
		Source    string    `json:"source"`
		IssuedAt  time.Time `json:"issued_at"`
	}{
		UserID:    event.UserID,
		LicenseID: event.LicenseID,
		ClientID:  event.ClientID,
		Source:    event.Source,
		IssuedAt:  event.IssuedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventSessionIssued, event.LicenseID, event.IssuedAt, payload)
}

// PublishRefreshTokenReplayed publishes session.refresh_replayed events.
func (p *EventPublisher) PublishRefreshTokenReplayed(ctx context.Context, event domain.RefreshTokenReplayedEvent) error {
	payload := struct {
		UserID        string    `json:"user_id"`
		LicenseID     string    `json:"license_id"`
		FamilyID      string    `json:"family_id"`
		TokenID       string    `json:"token_id"`
		TokensRevoked int       `json:"tokens_revoked"`
		DetectedAt    time.Time `json:"detected_at"`
	}{
		UserID:        event.UserID,
		LicenseID:     event.LicenseID,
		FamilyID:      event.FamilyID,
		TokenID:       event.TokenID,
		TokensRevoked: event.TokensRevoked,
		DetectedAt:    event.DetectedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventRefreshTokenReplayed, event.LicenseID, event.DetectedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
