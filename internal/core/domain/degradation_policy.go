package domain

import "strings"

// DegradationPolicyMode selects how license resolution behaves when the cache misbehaves.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeLenient reads through to the license store.
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	// DegradationPolicyModeStrict fails resolution while the cache is unreachable.
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
)

// DegradationReason describes what went wrong with the cache lookup.
type DegradationReason string

const (
	DegradationReasonCacheUnavailable DegradationReason = "cache_unavailable"
	DegradationReasonCacheCorrupt     DegradationReason = "cache_corrupt"
)

// DegradationPolicy decides whether a failed cache lookup may fall back to the store.
// The zero value is lenient.
type DegradationPolicy struct {
	strict bool
}

func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	return DegradationPolicy{strict: mode == DegradationPolicyModeStrict}
}

// ParseDegradationPolicyMode maps configuration text to a mode; anything but "strict" is lenient.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	if strings.EqualFold(strings.TrimSpace(value), string(DegradationPolicyModeStrict)) {
		return DegradationPolicyModeStrict
	}
	return DegradationPolicyModeLenient
}

// AllowsFallback reports whether resolution may continue against the store.
// Corrupt entries are always bypassed since the store is still authoritative.
func (p DegradationPolicy) AllowsFallback(reason DegradationReason) bool {
	return reason == DegradationReasonCacheCorrupt || !p.strict
}
