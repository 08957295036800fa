package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID           string
	ClientID     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Sanitized returns a copy of the user without secret material.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}
