package domain

import "time"

// Client is the tenant that owns licenses and users.
type Client struct {
	ID              string
	Name            string
	TaxID           string
	IsActive        bool
	ExternalData    bool
	ExternalDataURL *string
	CreatedAt       time.Time
}
