package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Action is one of the five operations a grant can allow.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
	ActionPrint  Action = "print"
)

// Actions lists every action in canonical order.
var Actions = []Action{ActionView, ActionCreate, ActionModify, ActionDelete, ActionPrint}

// ParseAction normalises textual input into a supported action.
func ParseAction(value string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(value)))
	if !action.Valid() {
		return "", fmt.Errorf("unknown action %q", value)
	}
	return action, nil
}

// Valid reports whether the action is one of the supported five.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionModify, ActionDelete, ActionPrint:
		return true
	}
	return false
}

// PermissionFlags carries the five independent capability booleans.
type PermissionFlags struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Modify bool `json:"modify"`
	Delete bool `json:"delete"`
	Print  bool `json:"print"`
}

// AllFlags returns flags with every action granted, the default for new grants.
func AllFlags() PermissionFlags {
	return PermissionFlags{View: true, Create: true, Modify: true, Delete: true, Print: true}
}

// Allows reports whether the flag for the supplied action is set.
func (f PermissionFlags) Allows(action Action) bool {
	switch action {
	case ActionView:
		return f.View
	case ActionCreate:
		return f.Create
	case ActionModify:
		return f.Modify
	case ActionDelete:
		return f.Delete
	case ActionPrint:
		return f.Print
	}
	return false
}

// Or merges two flag sets, keeping every capability granted by either.
func (f PermissionFlags) Or(other PermissionFlags) PermissionFlags {
	return PermissionFlags{
		View:   f.View || other.View,
		Create: f.Create || other.Create,
		Modify: f.Modify || other.Modify,
		Delete: f.Delete || other.Delete,
		Print:  f.Print || other.Print,
	}
}

// Mask encodes the flags as a bitmask (view=1, create=2, modify=4, delete=8, print=16).
func (f PermissionFlags) Mask() int {
	mask := 0
	for i, action := range Actions {
		if f.Allows(action) {
			mask |= 1 << i
		}
	}
	return mask
}

// FeaturePermissionMap maps feature keys to effective flags.
type FeaturePermissionMap map[string]PermissionFlags

// Lookup returns the flags for a feature and whether the feature is present.
func (m FeaturePermissionMap) Lookup(featureKey string) (PermissionFlags, bool) {
	flags, ok := m[featureKey]
	return flags, ok
}

// Keys returns the feature keys in sorted order.
func (m FeaturePermissionMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Masks converts the map to the compact feature → bitmask form sent to clients.
func (m FeaturePermissionMap) Masks() map[string]int {
	out := make(map[string]int, len(m))
	for key, flags := range m {
		out[key] = flags.Mask()
	}
	return out
}
