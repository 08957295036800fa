package port

// Argon2Params are the Argon2id cost settings. They are encoded into every
// hash so that stored hashes stay verifiable after the defaults change.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher produces self-describing password hashes and checks candidates against them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}
