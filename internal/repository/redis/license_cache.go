package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

const (
	defaultLicenseCachePrefix = "authz:license"
	licenseCacheVersion       = 1
)

// LicenseCache stores resolved licenses as JSON documents keyed by the hash of their API key.
// Raw API keys never reach Redis.
type LicenseCache struct {
	client *red.Client
	prefix string
}

// NewLicenseCache wires a Redis client into a license cache.
func NewLicenseCache(client *red.Client, keyPrefix string) *LicenseCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultLicenseCachePrefix
	}
	return &LicenseCache{client: client, prefix: prefix}
}

// GetLicense returns the cached license, repository.ErrNotFound on a miss and
// repository.ErrCorrupt when the stored document cannot be decoded.
func (c *LicenseCache) GetLicense(ctx context.Context, apiKey string) (*domain.License, error) {
	key := c.key(apiKey)
	if key == "" {
		return nil, repository.ErrNotFound
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get license: %w", err)
	}

	var entry cachedLicense
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("decode cached license: %w", repository.ErrCorrupt)
	}
	if entry.Version != licenseCacheVersion || entry.ID == "" {
		return nil, fmt.Errorf("cached license version %d: %w", entry.Version, repository.ErrCorrupt)
	}

	license := entry.toDomain()
	return &license, nil
}

// SetLicense caches the license for ttl.
func (c *LicenseCache) SetLicense(ctx context.Context, apiKey string, license domain.License, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	key := c.key(apiKey)
	if key == "" {
		return errors.New("api key must not be empty")
	}

	payload, err := json.Marshal(newCachedLicense(license))
	if err != nil {
		return fmt.Errorf("encode cached license: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set license: %w", err)
	}
	return nil
}

// DeleteLicense drops the cached entry. Deleting a missing entry is not an error.
func (c *LicenseCache) DeleteLicense(ctx context.Context, apiKey string) error {
	key := c.key(apiKey)
	if key == "" {
		return nil
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del license: %w", err)
	}
	return nil
}

func (c *LicenseCache) key(apiKey string) string {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, security.HashToken(trimmed))
}

type cachedLicense struct {
	Version       int             `json:"v"`
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ClientID      string          `json:"client_id"`
	ApplicationID string          `json:"application_id"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidUntil    time.Time       `json:"valid_until"`
	IsActive      bool            `json:"is_active"`
	Blocked       bool            `json:"blocked"`
	BlockReason   *string         `json:"block_reason,omitempty"`
	BlockedAt     *time.Time      `json:"blocked_at,omitempty"`
	MaxUsers      int             `json:"max_users"`
	Client        *cachedClient   `json:"client,omitempty"`
	Credential    *cachedKey      `json:"credential,omitempty"`
	Modules       []cachedCatalog `json:"modules"`
	Features      []cachedCatalog `json:"features"`
}

type cachedClient struct {
	Name            string    `json:"name"`
	TaxID           string    `json:"tax_id"`
	IsActive        bool      `json:"is_active"`
	ExternalData    bool      `json:"external_data"`
	ExternalDataURL *string   `json:"external_data_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type cachedKey struct {
	ID        string    `json:"id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// cachedCatalog holds a module or a feature; Parent is the application or module id.
type cachedCatalog struct {
	ID     string `json:"id"`
	Parent string `json:"parent"`
	Key    string `json:"key"`
	Name   string `json:"name"`
}

func newCachedLicense(license domain.License) cachedLicense {
	entry := cachedLicense{
		Version:       licenseCacheVersion,
		ID:            license.ID,
		Name:          license.Name,
		ClientID:      license.ClientID,
		ApplicationID: license.ApplicationID,
		ValidFrom:     license.ValidFrom,
		ValidUntil:    license.ValidUntil,
		IsActive:      license.IsActive,
		Blocked:       license.Blocked,
		BlockReason:   license.BlockReason,
		BlockedAt:     license.BlockedAt,
		MaxUsers:      license.MaxUsers,
		Modules:       make([]cachedCatalog, 0, len(license.Modules)),
		Features:      make([]cachedCatalog, 0, len(license.Features)),
	}
	if license.Client != nil {
		entry.Client = &cachedClient{
			Name:            license.Client.Name,
			TaxID:           license.Client.TaxID,
			IsActive:        license.Client.IsActive,
			ExternalData:    license.Client.ExternalData,
			ExternalDataURL: license.Client.ExternalDataURL,
			CreatedAt:       license.Client.CreatedAt,
		}
	}
	// The key value itself is left out; the cache key already identifies it.
	if license.Credential != nil {
		entry.Credential = &cachedKey{
			ID:        license.Credential.ID,
			IsActive:  license.Credential.IsActive,
			CreatedAt: license.Credential.CreatedAt,
		}
	}
	for _, module := range license.Modules {
		entry.Modules = append(entry.Modules, cachedCatalog{ID: module.ID, Parent: module.ApplicationID, Key: module.Key, Name: module.Name})
	}
	for _, feature := range license.Features {
		entry.Features = append(entry.Features, cachedCatalog{ID: feature.ID, Parent: feature.ModuleID, Key: feature.Key, Name: feature.Name})
	}
	return entry
}

func (e cachedLicense) toDomain() domain.License {
	license := domain.License{
		ID:            e.ID,
		Name:          e.Name,
		ClientID:      e.ClientID,
		ApplicationID: e.ApplicationID,
		ValidFrom:     e.ValidFrom,
		ValidUntil:    e.ValidUntil,
		IsActive:      e.IsActive,
		Blocked:       e.Blocked,
		BlockReason:   e.BlockReason,
		BlockedAt:     e.BlockedAt,
		MaxUsers:      e.MaxUsers,
		Modules:       make([]domain.Module, 0, len(e.Modules)),
		Features:      make([]domain.Feature, 0, len(e.Features)),
	}
	if e.Client != nil {
		license.Client = &domain.Client{
			ID:              e.ClientID,
			Name:            e.Client.Name,
			TaxID:           e.Client.TaxID,
			IsActive:        e.Client.IsActive,
			ExternalData:    e.Client.ExternalData,
			ExternalDataURL: e.Client.ExternalDataURL,
			CreatedAt:       e.Client.CreatedAt,
		}
	}
	if e.Credential != nil {
		license.Credential = &domain.Credential{
			ID:        e.Credential.ID,
			LicenseID: e.ID,
			IsActive:  e.Credential.IsActive,
			CreatedAt: e.Credential.CreatedAt,
		}
	}
	for _, module := range e.Modules {
		license.Modules = append(license.Modules, domain.Module{ID: module.ID, ApplicationID: module.Parent, Key: module.Key, Name: module.Name})
	}
	for _, feature := range e.Features {
		license.Features = append(license.Features, domain.Feature{ID: feature.ID, ModuleID: feature.Parent, Key: feature.Key, Name: feature.Name})
	}
	return license
}

var _ port.LicenseCache = (*LicenseCache)(nil)
