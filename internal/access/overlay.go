package access

import (
	"errors"
	"fmt"
	"slices"
)

// OverrideRecord is the persisted shape of a role definition override.
type OverrideRecord struct {
	Role        string
	Permissions []string
}

// Overlay is a decoded, read-only set of per-role feature overrides.
// The zero value and nil are both an empty overlay.
type Overlay struct {
	entries map[Role][]Feature
}

// NewOverlay builds an overlay from already validated entries.
func NewOverlay(entries map[Role][]Feature) *Overlay {
	o := &Overlay{entries: make(map[Role][]Feature, len(entries))}
	for r, fs := range entries {
		o.entries[r] = slices.Clone(fs)
	}
	return o
}

// DecodeOverlay validates persisted override records. Records naming an
// unknown role are dropped, unknown feature keys are dropped from their list.
// The overlay built from the valid remainder is always returned; the error
// joins every problem found.
func DecodeOverlay(records []OverrideRecord) (*Overlay, error) {
	var errs []error
	entries := make(map[Role][]Feature, len(records))
	for _, rec := range records {
		role, err := ParseRole(rec.Role)
		if err != nil {
			errs = append(errs, fmt.Errorf("role definition: %w", err))
			continue
		}
		features := make([]Feature, 0, len(rec.Permissions))
		for _, p := range rec.Permissions {
			f, err := ParseFeature(p)
			if err != nil {
				errs = append(errs, fmt.Errorf("role definition %q: %w", role, err))
				continue
			}
			if !slices.Contains(features, f) {
				features = append(features, f)
			}
		}
		entries[role] = features
	}
	return &Overlay{entries: entries}, errors.Join(errs...)
}

// Lookup returns the override list for role. An entry with an empty list is
// reported as absent: it does not override the static table.
func (o *Overlay) Lookup(role Role) ([]Feature, bool) {
	if o == nil {
		return nil, false
	}
	fs, ok := o.entries[role]
	if !ok || len(fs) == 0 {
		return nil, false
	}
	return fs, true
}

// Active reports whether at least one role has a non-empty override.
func (o *Overlay) Active() bool {
	if o == nil {
		return false
	}
	for _, fs := range o.entries {
		if len(fs) > 0 {
			return true
		}
	}
	return false
}

// HasFeatureAccess resolves a feature for a role: admin always passes, a
// non-empty override replaces the static table, anything else falls back to it.
func HasFeatureAccess(o *Overlay, role Role, feature Feature) bool {
	if role == RoleAdmin {
		return true
	}
	if fs, ok := o.Lookup(role); ok {
		return slices.Contains(fs, feature)
	}
	return IsFeatureAllowed(role, feature)
}
