package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

func cacheFixtureLicense() domain.License {
	validFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	url := "https://erp.example.pt"
	return domain.License{
		ID:            "lic-1",
		Name:          "Frotas",
		ClientID:      "client-1",
		ApplicationID: "app-frotas",
		ValidFrom:     validFrom,
		ValidUntil:    domain.EndOfDay(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)),
		IsActive:      true,
		MaxUsers:      10,
		Client: &domain.Client{
			ID:              "client-1",
			Name:            "Municipio",
			TaxID:           "500000000",
			IsActive:        true,
			ExternalData:    true,
			ExternalDataURL: &url,
			CreatedAt:       validFrom,
		},
		Credential: &domain.Credential{ID: "key-1", LicenseID: "lic-1", Key: "flk_secret", IsActive: true, CreatedAt: validFrom},
		Modules:    []domain.Module{{ID: "mod-config", ApplicationID: "app-frotas", Key: "configuracao", Name: "Configuracao"}},
		Features:   []domain.Feature{{ID: "feat-func", ModuleID: "mod-config", Key: "funcionarios", Name: "Funcionarios"}},
	}
}

func TestLicenseCache_SetAndGet(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewLicenseCache(client, "authz:license")
	ctx := context.Background()

	license := cacheFixtureLicense()
	if err := cache.SetLicense(ctx, "flk_secret", license, 5*time.Second); err != nil {
		t.Fatalf("SetLicense returned error: %v", err)
	}

	key := "authz:license:" + security.HashToken("flk_secret")
	if !server.Exists(key) {
		t.Fatalf("expected key %s to exist, keys: %v", key, server.Keys())
	}
	raw, _ := server.Get(key)
	if strings.Contains(raw, "flk_secret") {
		t.Fatal("cached document must not contain the raw api key")
	}
	if ttl := server.TTL(key); ttl <= 0 || ttl > 5*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, err := cache.GetLicense(ctx, "flk_secret")
	if err != nil {
		t.Fatalf("GetLicense returned error: %v", err)
	}
	if got.ID != license.ID || !got.ValidUntil.Equal(license.ValidUntil) || got.MaxUsers != 10 {
		t.Fatalf("unexpected license: %+v", got)
	}
	if got.Client == nil || got.Client.ID != "client-1" || *got.Client.ExternalDataURL != "https://erp.example.pt" {
		t.Fatalf("unexpected client: %+v", got.Client)
	}
	if got.Credential == nil || got.Credential.LicenseID != "lic-1" || !got.Credential.IsActive {
		t.Fatalf("unexpected credential: %+v", got.Credential)
	}
	if _, ok := got.Feature("funcionarios"); !ok || len(got.ModuleKeys()) != 1 || got.Features[0].ModuleID != "mod-config" {
		t.Fatalf("unexpected catalog: %+v %+v", got.Modules, got.Features)
	}
}

func TestLicenseCache_Miss(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewLicenseCache(client, "")

	if _, err := cache.GetLicense(context.Background(), "flk_unknown"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := cache.GetLicense(context.Background(), " "); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank key, got %v", err)
	}
}

func TestLicenseCache_CorruptEntry(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewLicenseCache(client, "authz:license")

	if err := server.Set("authz:license:"+security.HashToken("flk_secret"), "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}
	if _, err := cache.GetLicense(context.Background(), "flk_secret"); !errors.Is(err, repository.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}

	if err := server.Set("authz:license:"+security.HashToken("flk_old"), `{"v":0,"id":"lic-1"}`); err != nil {
		t.Fatalf("seed stale entry: %v", err)
	}
	if _, err := cache.GetLicense(context.Background(), "flk_old"); !errors.Is(err, repository.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for unknown version, got %v", err)
	}
}

func TestLicenseCache_DeleteAndExpiry(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewLicenseCache(client, "authz:license")
	ctx := context.Background()

	if err := cache.SetLicense(ctx, "flk_secret", cacheFixtureLicense(), 5*time.Second); err != nil {
		t.Fatalf("SetLicense returned error: %v", err)
	}
	if err := cache.DeleteLicense(ctx, "flk_secret"); err != nil {
		t.Fatalf("DeleteLicense returned error: %v", err)
	}
	if _, err := cache.GetLicense(ctx, "flk_secret"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
	if err := cache.DeleteLicense(ctx, "flk_secret"); err != nil {
		t.Fatalf("deleting a missing entry returned error: %v", err)
	}

	if err := cache.SetLicense(ctx, "flk_secret", cacheFixtureLicense(), 5*time.Second); err != nil {
		t.Fatalf("SetLicense returned error: %v", err)
	}
	server.FastForward(6 * time.Second)
	if _, err := cache.GetLicense(ctx, "flk_secret"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected miss after ttl, got %v", err)
	}
}

func TestLicenseCache_Unavailable(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewLicenseCache(client, "authz:license")
	server.SetError("LOADING redis is loading the dataset")

	_, err := cache.GetLicense(context.Background(), "flk_secret")
	if err == nil {
		t.Fatal("expected error from unavailable redis")
	}
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrCorrupt) {
		t.Fatalf("unavailability must not look like a miss or corruption: %v", err)
	}
}

func TestLicenseCache_RejectsNonPositiveTTL(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewLicenseCache(client, "authz:license")

	if err := cache.SetLicense(context.Background(), "flk_secret", cacheFixtureLicense(), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
