package usecase

import (
	"time"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
)

const (
	frotasAPIKey    = "flk_frotas-license-key"
	frotasLicenseID = "license-l"
	frotasClientID  = "client-c"
	frotasUserID    = "user-u"
	frotasProfileID = "profile-p"
	frotasEmail     = "u@frotas.pt"
	frotasPassword  = "s3cret-pass"
)

var frotasNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type frotasFixture struct {
	licenses *licenseStore
	profiles *profileStore
	users    *userStore
	tokens   *tokenStore
}

// newFrotasFixture builds client C with license L for application Frotas, valid 2024-01-01
// through 2025-01-01, granting module Configuração with feature Funcionarios. Profile P under
// L grants Funcionarios with view only and user U is assigned to P.
func newFrotasFixture() *frotasFixture {
	license := domain.License{
		ID:            frotasLicenseID,
		Name:          "Frotas - Cliente C",
		ClientID:      frotasClientID,
		ApplicationID: "app-frotas",
		ValidFrom:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:    domain.EndOfDay(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		IsActive:      true,
		MaxUsers:      5,
		Client:        &domain.Client{ID: frotasClientID, Name: "Cliente C", IsActive: true},
		Credential:    &domain.Credential{ID: "cred-l", LicenseID: frotasLicenseID, Key: frotasAPIKey, IsActive: true},
		Modules: []domain.Module{
			{ID: "mod-config", ApplicationID: "app-frotas", Key: "Configuracao", Name: "Configuração"},
		},
		Features: []domain.Feature{
			{ID: "feat-func", ModuleID: "mod-config", Key: "Funcionarios", Name: "Funcionários"},
		},
	}

	profiles := newProfileStore()
	profiles.profiles[frotasProfileID] = domain.Profile{ID: frotasProfileID, LicenseID: frotasLicenseID, Name: "Gestor", IsActive: true}
	profiles.grants[frotasProfileID] = map[string]domain.ProfileFeatureGrant{
		"feat-func": {
			ProfileID:  frotasProfileID,
			FeatureID:  "feat-func",
			FeatureKey: "Funcionarios",
			Flags:      domain.PermissionFlags{View: true},
		},
	}
	profiles.assignments[frotasProfileID] = map[string]time.Time{frotasUserID: frotasNow}

	users := newUserStore(domain.User{
		ID:           frotasUserID,
		ClientID:     frotasClientID,
		FirstName:    "Ana",
		LastName:     "Silva",
		Email:        frotasEmail,
		PasswordHash: "plain:" + frotasPassword,
		IsActive:     true,
	})

	licenses := newLicenseStore(license)
	profiles.seatLimit = func(licenseID string) int {
		licenses.mu.Lock()
		defer licenses.mu.Unlock()
		return licenses.licenses[licenseID].MaxUsers
	}

	return &frotasFixture{
		licenses: licenses,
		profiles: profiles,
		users:    users,
		tokens:   newTokenStore(),
	}
}

func (f *frotasFixture) engine(resolver LicenseResolver) *DecisionEngine {
	aggregator := NewEntitlementAggregator(f.profiles)
	engine := NewDecisionEngine(resolver, aggregator, nil)
	engine.WithClock(func() time.Time { return frotasNow })
	return engine
}
