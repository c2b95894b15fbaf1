// Package users holds studio accounts and the role capability table.
package users

import (
	"fmt"
	"strings"
	"time"
)

// Role is the single discriminator for what a user may do.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleDesigner  Role = "designer"
	RoleTester    Role = "tester"
	RoleManager   Role = "manager"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleDeveloper, RoleDesigner, RoleTester, RoleManager:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Capability names one permitted action.
type Capability string

const (
	CapLogin         Capability = "login"
	CapLogout        Capability = "logout"
	CapViewDashboard Capability = "view_dashboard"
	CapEditProfile   Capability = "edit_profile"

	CapCreateScenario      Capability = "create_scenario"
	CapEditLogic           Capability = "edit_logic"
	CapGenerateCode        Capability = "generate_code"
	CapManageVisualScripts Capability = "manage_visual_scripts"
	CapTestScenarios       Capability = "test_scenarios"
	CapExportScenarios     Capability = "export_scenarios"
	CapManageProjectLogic  Capability = "manage_project_logic"
	CapIntegrateMain       Capability = "integrate_with_main_project"

	CapUploadAsset            Capability = "upload_asset"
	CapAssignAsset            Capability = "assign_asset"
	CapManageAssets           Capability = "manage_assets"
	CapPreview3D              Capability = "preview_3d"
	CapEditMetadata           Capability = "edit_metadata"
	CapOrganizeAssets         Capability = "organize_assets"
	CapCheckVisualCorrectness Capability = "check_visual_correctness"
	CapManageAssetLibrary     Capability = "manage_asset_library"

	CapRunTest               Capability = "run_test"
	CapReportBug             Capability = "report_bug"
	CapAnalyzeResults        Capability = "analyze_results"
	CapManageDevices         Capability = "manage_devices"
	CapGenerateReports       Capability = "generate_reports"
	CapFunctionalTesting     Capability = "functional_testing"
	CapLogActions            Capability = "log_actions"
	CapValidateScenarios     Capability = "validate_scenarios"
	CapAssignBugsToDeveloper Capability = "assign_bugs_to_developer"

	CapApproveScenario       Capability = "approve_scenario"
	CapManageVersions        Capability = "manage_versions"
	CapManageProjects        Capability = "manage_projects"
	CapCoordinateTeam        Capability = "coordinate_team"
	CapExportProjects        Capability = "export_projects"
	CapTrackProgress         Capability = "track_progress"
	CapFinalizeBuilds        Capability = "finalize_builds"
	CapManageProjectVersions Capability = "manage_project_versions"
	CapPublishReleases       Capability = "publish_releases"
)

var baseCapabilities = []Capability{CapLogin, CapLogout, CapViewDashboard, CapEditProfile}

var roleCapabilities = map[Role][]Capability{
	RoleDeveloper: {
		CapCreateScenario, CapEditLogic, CapGenerateCode, CapManageVisualScripts,
		CapTestScenarios, CapExportScenarios, CapManageProjectLogic, CapIntegrateMain,
	},
	RoleDesigner: {
		CapUploadAsset, CapAssignAsset, CapManageAssets, CapPreview3D,
		CapEditMetadata, CapOrganizeAssets, CapCheckVisualCorrectness, CapManageAssetLibrary,
	},
	RoleTester: {
		CapRunTest, CapReportBug, CapAnalyzeResults, CapManageDevices, CapGenerateReports,
		CapFunctionalTesting, CapLogActions, CapValidateScenarios, CapAssignBugsToDeveloper,
	},
	RoleManager: {
		CapApproveScenario, CapManageVersions, CapManageProjects, CapCoordinateTeam,
		CapExportProjects, CapTrackProgress, CapFinalizeBuilds, CapManageProjectVersions,
		CapPublishReleases,
	},
}

// Capabilities returns a fresh set of everything role may do. Unknown roles
// get the base set only.
func Capabilities(role Role) map[Capability]bool {
	out := make(map[Capability]bool, len(baseCapabilities)+len(roleCapabilities[role]))
	for _, c := range baseCapabilities {
		out[c] = true
	}
	for _, c := range roleCapabilities[role] {
		out[c] = true
	}
	return out
}

// Can reports whether role holds capability c.
func Can(role Role, c Capability) bool {
	for _, b := range baseCapabilities {
		if b == c {
			return true
		}
	}
	for _, rc := range roleCapabilities[role] {
		if rc == c {
			return true
		}
	}
	return false
}

// User is a studio account. Passwords live with the auth layer, not here.
type User struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email,omitempty"`
	FullName   string     `json:"full_name,omitempty"`
	Role       Role       `json:"role"`
	IsActive   bool       `json:"is_active"`
	Department string     `json:"department,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

func (u *User) Can(c Capability) bool {
	return u != nil && u.IsActive && Can(u.Role, c)
}

// IsDeveloper reports whether u may receive bug assignments.
func (u *User) IsDeveloper() bool {
	return u.Can(CapEditLogic)
}
