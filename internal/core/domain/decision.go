package domain

// DenyReason tags why an authorization request was refused.
type DenyReason string

const (
	DenyReasonNoSuchTenant     DenyReason = "no_such_tenant"
	DenyReasonLicenseUnusable  DenyReason = "license_unusable"
	DenyReasonNoGrant          DenyReason = "no_grant"
	DenyReasonActionNotGranted DenyReason = "action_not_granted"
)

// Decision is the outcome of an authorization request.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	// Detail refines license_unusable with the failing condition.
	Detail    UnusableReason
	LicenseID string
	ClientID  string
}

// Allow builds an allowing decision for the license.
func Allow(license *License) Decision {
	decision := Decision{Allowed: true}
	if license != nil {
		decision.LicenseID = license.ID
		decision.ClientID = license.ClientID
	}
	return decision
}

// Deny builds a denying decision with the supplied reason.
func Deny(reason DenyReason, license *License) Decision {
	decision := Decision{Reason: reason}
	if license != nil {
		decision.LicenseID = license.ID
		decision.ClientID = license.ClientID
	}
	return decision
}

// Outcome returns a stable label for metrics and logs.
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}
