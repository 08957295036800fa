package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Licenses *LicenseRepository
	Profiles *ProfileRepository
	Users    *UserRepository
	Tokens   *TokenRepository
}

// NewRepositories wires all repositories backed by the provided executor.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Licenses: NewLicenseRepository(exec),
		Profiles: NewProfileRepository(exec),
		Users:    NewUserRepository(exec),
		Tokens:   NewTokenRepository(exec),
	}
}
