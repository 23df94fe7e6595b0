package access

import "github.com/google/uuid"

// Subject is the caller an access decision is made for. Role is the best
// ranked role the user holds (empty when none); IsAdmin is set when an admin
// assignment exists, independently of Role.
type Subject struct {
	UserID  uuid.UUID
	Role    Role
	IsAdmin bool
}

// NewSubject resolves a subject from every role assigned to a user.
func NewSubject(userID uuid.UUID, roles []Role) Subject {
	best, isAdmin := HighestRole(roles)
	return Subject{UserID: userID, Role: best, IsAdmin: isAdmin}
}

// Decider answers access questions for one subject against one overlay
// snapshot. It holds no mutable state, so repeated calls agree.
type Decider struct {
	subject Subject
	overlay *Overlay
	state   LoadState
}

func NewDecider(subject Subject, overlay *Overlay, state LoadState) *Decider {
	return &Decider{subject: subject, overlay: overlay, state: state}
}

func (d *Decider) Subject() Subject { return d.subject }

// State is the overlay load state the decider was built with. Decisions made
// before StateLoaded may change once the overlay is known.
func (d *Decider) State() LoadState { return d.state }

func (d *Decider) Resolved() bool { return d.state == StateLoaded }

// CanAccess reports whether the subject may use feature.
func (d *Decider) CanAccess(feature Feature) bool {
	if d.subject.IsAdmin {
		return true
	}
	if d.subject.Role == "" {
		return false
	}
	return HasFeatureAccess(d.overlay, d.subject.Role, feature)
}

// HasMinRole reports whether the subject ranks at least minRole.
func (d *Decider) HasMinRole(minRole Role) bool {
	if d.subject.IsAdmin {
		return true
	}
	if d.subject.Role == "" {
		return false
	}
	return HasMinimumRank(d.subject.Role, minRole)
}

// HasAccess applies the feature constraint when given, otherwise the minimum
// role. With neither constraint access is allowed.
func (d *Decider) HasAccess(feature Feature, minRole Role) bool {
	switch {
	case feature != "":
		return d.CanAccess(feature)
	case minRole != "":
		return d.HasMinRole(minRole)
	default:
		return true
	}
}

// Features lists every feature the subject can access.
func (d *Decider) Features() []Feature {
	out := make([]Feature, 0, len(allFeatures))
	for _, f := range allFeatures {
		if d.CanAccess(f) {
			out = append(out, f)
		}
	}
	return out
}
