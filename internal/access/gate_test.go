package access_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"nexus/internal/access"
)

func loaded(subject access.Subject, overlay *access.Overlay) *access.Decider {
	return access.NewDecider(subject, overlay, access.StateLoaded)
}

func TestDecider_CanAccess(t *testing.T) {
	pm := loaded(access.Subject{Role: access.RoleProjectManager}, nil)
	assert.True(t, pm.CanAccess(access.FeatureTasks))
	assert.False(t, pm.CanAccess(access.FeatureStrategy))

	// Same inputs, same answer.
	assert.Equal(t, pm.CanAccess(access.FeatureStrategy), pm.CanAccess(access.FeatureStrategy))

	none := loaded(access.Subject{}, nil)
	assert.False(t, none.CanAccess(access.FeatureDashboard))
	assert.False(t, none.HasMinRole(access.RoleUser))
}

func TestDecider_AdminFlagShortCircuits(t *testing.T) {
	overlay := access.NewOverlay(map[access.Role][]access.Feature{
		access.RoleUser: {access.FeatureDashboard},
	})
	d := loaded(access.Subject{Role: access.RoleUser, IsAdmin: true}, overlay)

	assert.True(t, d.CanAccess(access.FeatureRoleManagement))
	assert.True(t, d.CanAccess(access.FeatureStrategy))
	assert.True(t, d.HasMinRole(access.RolePMO))
	assert.Len(t, d.Features(), len(access.Features()))
}

func TestDecider_HasAccess(t *testing.T) {
	d := loaded(access.Subject{Role: access.RoleSeniorProjectManager}, nil)

	assert.True(t, d.HasAccess(access.FeatureReports, ""))
	assert.False(t, d.HasAccess(access.FeatureStrategy, ""))
	assert.True(t, d.HasAccess("", access.RoleProjectManager))
	assert.False(t, d.HasAccess("", access.RolePMO))
	assert.True(t, d.HasAccess("", ""))
	// Feature wins over the role constraint.
	assert.False(t, d.HasAccess(access.FeatureStrategy, access.RoleUser))
}

func TestNewSubject(t *testing.T) {
	id := uuid.New()
	s := access.NewSubject(id, []access.Role{access.RoleProjectManager, access.RoleAdmin})
	assert.Equal(t, id, s.UserID)
	assert.Equal(t, access.RoleProjectManager, s.Role)
	assert.True(t, s.IsAdmin)
}

func TestEvaluate(t *testing.T) {
	pm := access.Subject{Role: access.RoleProjectManager}

	tests := []struct {
		name    string
		decider *access.Decider
		opts    access.GateOptions
		want    access.GateResult
	}{
		{
			name:    "pending while overlay unknown",
			decider: access.NewDecider(pm, nil, access.StateUnknown),
			opts:    access.GateOptions{Feature: access.FeatureTasks, ShowDenied: true},
			want:    access.GateResult{State: access.GateLoading, Render: access.RenderPending},
		},
		{
			name:    "pending while overlay loading",
			decider: access.NewDecider(pm, nil, access.StateLoading),
			opts:    access.GateOptions{Feature: access.FeatureStrategy, ShowDenied: true},
			want:    access.GateResult{State: access.GateLoading, Render: access.RenderPending},
		},
		{
			name:    "granted",
			decider: loaded(pm, nil),
			opts:    access.GateOptions{Feature: access.FeatureTasks},
			want:    access.GateResult{State: access.GateGranted, Render: access.RenderContent},
		},
		{
			name:    "denied with fallback",
			decider: loaded(pm, nil),
			opts:    access.GateOptions{Feature: access.FeatureStrategy, HasFallback: true, ShowDenied: true},
			want:    access.GateResult{State: access.GateDenied, Render: access.RenderFallback},
		},
		{
			name:    "denied shows restricted",
			decider: loaded(pm, nil),
			opts:    access.GateOptions{Feature: access.FeatureStrategy, ShowDenied: true},
			want:    access.GateResult{State: access.GateDenied, Render: access.RenderRestricted},
		},
		{
			name:    "denied renders nothing",
			decider: loaded(pm, nil),
			opts:    access.GateOptions{MinimumRole: access.RolePMO},
			want:    access.GateResult{State: access.GateDenied, Render: access.RenderNothing},
		},
		{
			name:    "unconstrained gate grants",
			decider: loaded(access.Subject{}, nil),
			opts:    access.GateOptions{},
			want:    access.GateResult{State: access.GateGranted, Render: access.RenderContent},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, access.Evaluate(tt.decider, tt.opts))
		})
	}
}

func TestEvaluate_ReflectsOverlayChange(t *testing.T) {
	pm := access.Subject{Role: access.RoleProjectManager}
	opts := access.GateOptions{Feature: access.FeatureReports, ShowDenied: true}

	assert.Equal(t, access.GateDenied, access.Evaluate(loaded(pm, nil), opts).State)

	overlay := access.NewOverlay(map[access.Role][]access.Feature{
		access.RoleProjectManager: {access.FeatureReports},
	})
	assert.Equal(t, access.GateGranted, access.Evaluate(loaded(pm, overlay), opts).State)
}
