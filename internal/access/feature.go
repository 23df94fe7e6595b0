package access

import (
	"errors"
	"fmt"
	"slices"
)

// Feature identifies a gated capability of the dashboard.
type Feature string

const (
	FeatureDashboard      Feature = "dashboard"
	FeatureTasks          Feature = "tasks"
	FeatureProjects       Feature = "projects"
	FeatureSignals        Feature = "signals"
	FeatureTeam           Feature = "team"
	FeatureReports        Feature = "reports"
	FeatureAIAssistant    Feature = "ai_assistant"
	FeaturePortfolio      Feature = "portfolio"
	FeatureStrategy       Feature = "strategy"
	FeatureAuditLogs      Feature = "audit_logs"
	FeatureRoleManagement Feature = "role_management"
)

var ErrUnknownFeature = errors.New("unknown feature")

var allFeatures = []Feature{
	FeatureDashboard,
	FeatureTasks,
	FeatureProjects,
	FeatureSignals,
	FeatureTeam,
	FeatureReports,
	FeatureAIAssistant,
	FeaturePortfolio,
	FeatureStrategy,
	FeatureAuditLogs,
	FeatureRoleManagement,
}

// staticFeatureAccess is the default role-to-feature table. Admin is never
// listed; it is granted everything before this table is consulted.
// role_management has no entry and is therefore admin only.
var staticFeatureAccess = map[Feature][]Role{
	FeatureDashboard:   {RoleUser, RoleProjectManager, RoleSeniorProjectManager, RoleProgramManager, RolePMO},
	FeatureTasks:       {RoleUser, RoleProjectManager, RoleSeniorProjectManager, RoleProgramManager, RolePMO},
	FeatureProjects:    {RoleProjectManager, RoleSeniorProjectManager, RoleProgramManager, RolePMO},
	FeatureSignals:     {RoleProjectManager, RoleSeniorProjectManager, RoleProgramManager, RolePMO},
	FeatureTeam:        {RoleSeniorProjectManager, RoleProgramManager, RolePMO},
	FeatureReports:     {RoleSeniorProjectManager, RoleProgramManager, RolePMO},
	FeatureAIAssistant: {RoleProjectManager, RoleSeniorProjectManager, RoleProgramManager, RolePMO},
	FeaturePortfolio:   {RoleProgramManager, RolePMO},
	FeatureStrategy:    {RoleProgramManager, RolePMO},
	FeatureAuditLogs:   {RolePMO},
}

// ParseFeature decodes a feature key.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if !slices.Contains(allFeatures, f) {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return f, nil
}

func (f Feature) String() string { return string(f) }

// Features returns every known feature key.
func Features() []Feature {
	out := make([]Feature, len(allFeatures))
	copy(out, allFeatures)
	return out
}

// IsFeatureAllowed consults the static table only. A feature without an
// entry is denied.
func IsFeatureAllowed(role Role, feature Feature) bool {
	roles, ok := staticFeatureAccess[feature]
	if !ok {
		return false
	}
	return slices.Contains(roles, role)
}

// StaticFeatures lists the features the static table grants to role.
func StaticFeatures(role Role) []Feature {
	var out []Feature
	for _, f := range allFeatures {
		if IsFeatureAllowed(role, f) {
			out = append(out, f)
		}
	}
	return out
}
