package domain

import "time"

// UnusableReason explains why a license cannot currently be used.
type UnusableReason string

const (
	UnusableReasonNone        UnusableReason = ""
	UnusableReasonBlocked     UnusableReason = "blocked"
	UnusableReasonInactive    UnusableReason = "inactive"
	UnusableReasonNotYetValid UnusableReason = "not_yet_valid"
	UnusableReasonExpired     UnusableReason = "expired"
)

// Credential is the API key that selects a license on every request.
type Credential struct {
	ID        string
	LicenseID string
	Key       string
	IsActive  bool
	CreatedAt time.Time
}

// License is a client's entitlement to one application.
type License struct {
	ID            string
	Name          string
	ClientID      string
	ApplicationID string
	ValidFrom     time.Time
	ValidUntil    time.Time
	IsActive      bool
	Blocked       bool
	BlockReason   *string
	BlockedAt     *time.Time
	MaxUsers      int
	Client        *Client
	Credential    *Credential
	Modules       []Module
	Features      []Feature
}

// Usability evaluates whether the license may serve requests at the supplied moment.
// Both bounds of the validity window are inclusive. Blocking is reported ahead of
// every other failing condition.
func (l License) Usability(now time.Time) (bool, UnusableReason) {
	switch {
	case l.Blocked:
		return false, UnusableReasonBlocked
	case !l.IsActive:
		return false, UnusableReasonInactive
	case now.Before(l.ValidFrom):
		return false, UnusableReasonNotYetValid
	case now.After(l.ValidUntil):
		return false, UnusableReasonExpired
	}
	return true, UnusableReasonNone
}

// IsUsable reports whether the license is active, unblocked and inside its validity window.
func (l License) IsUsable(now time.Time) bool {
	usable, _ := l.Usability(now)
	return usable
}

// Feature looks up a granted feature by key.
func (l License) Feature(featureKey string) (Feature, bool) {
	for _, feature := range l.Features {
		if feature.Key == featureKey {
			return feature, true
		}
	}
	return Feature{}, false
}

// ModuleKeys lists the granted module keys in license order.
func (l License) ModuleKeys() []string {
	if len(l.Modules) == 0 {
		return []string{}
	}
	keys := make([]string, 0, len(l.Modules))
	for _, module := range l.Modules {
		keys = append(keys, module.Key)
	}
	return keys
}

// Block marks the license as administratively blocked.
// Returns true when the license changed state.
func (l *License) Block(at time.Time, reason string) bool {
	if l.Blocked {
		return false
	}
	atCopy := at
	reasonCopy := reason
	l.Blocked = true
	l.BlockedAt = &atCopy
	l.BlockReason = &reasonCopy
	return true
}

// Unblock lifts an administrative block.
func (l *License) Unblock() bool {
	if !l.Blocked {
		return false
	}
	l.Blocked = false
	l.BlockedAt = nil
	l.BlockReason = nil
	return true
}

// EndOfDay expands a calendar date to its last representable instant, used to honour
// inclusive end dates persisted without a time component.
func EndOfDay(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, date.Location()).Add(24*time.Hour - time.Nanosecond)
}
