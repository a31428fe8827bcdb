package access

import (
	"testing"

	"github.com/org/fleetadmin/pkg/models"
)

// TestMatrixTotality verifies every (role, action) pair is defined exactly
// as tabulated. Adding an action without extending the table fails here.
func TestMatrixTotality(t *testing.T) {
	want := map[models.Role]map[models.Action]bool{
		models.RoleSuperAdmin: {
			models.ActionManageSystemAdmins:     true,
			models.ActionManageServiceEngineers: true,
			models.ActionManageTravellers:       true,
			models.ActionManageScooters:         true,
			models.ActionUpdateScooterTelemetry: true,
			models.ActionViewAuditLog:           true,
			models.ActionCreateBackup:           true,
			models.ActionRestoreDirect:          true,
			models.ActionRestoreWithCode:        false,
			models.ActionIssueRestoreCode:       true,
		},
		models.RoleSystemAdmin: {
			models.ActionManageSystemAdmins:     false,
			models.ActionManageServiceEngineers: true,
			models.ActionManageTravellers:       true,
			models.ActionManageScooters:         true,
			models.ActionUpdateScooterTelemetry: true,
			models.ActionViewAuditLog:           true,
			models.ActionCreateBackup:           true,
			models.ActionRestoreDirect:          false,
			models.ActionRestoreWithCode:        true,
			models.ActionIssueRestoreCode:       false,
		},
		models.RoleServiceEngineer: {
			models.ActionManageSystemAdmins:     false,
			models.ActionManageServiceEngineers: false,
			models.ActionManageTravellers:       true,
			models.ActionManageScooters:         false,
			models.ActionUpdateScooterTelemetry: true,
			models.ActionViewAuditLog:           false,
			models.ActionCreateBackup:           false,
			models.ActionRestoreDirect:          false,
			models.ActionRestoreWithCode:        false,
			models.ActionIssueRestoreCode:       false,
		},
	}

	roles := []models.Role{models.RoleSuperAdmin, models.RoleSystemAdmin, models.RoleServiceEngineer}
	for _, role := range roles {
		for _, action := range models.Actions {
			expected, defined := want[role][action]
			if !defined {
				t.Fatalf("test table missing pair (%s, %s)", role, action)
			}
			if got := Allowed(role, action); got != expected {
				t.Errorf("Allowed(%s, %s) = %v, want %v", role, action, got, expected)
			}
		}
		if len(matrix[role]) != len(models.Actions) {
			t.Errorf("matrix for %s defines %d actions, want %d", role, len(matrix[role]), len(models.Actions))
		}
	}
}

func TestUnknownRoleAndActionDenied(t *testing.T) {
	if Allowed(models.Role("intern"), models.ActionViewAuditLog) {
		t.Error("unknown role must be denied")
	}
	if Allowed(models.RoleSuperAdmin, models.Action("launch:rockets")) {
		t.Error("unknown action must be denied")
	}
}

func TestCanManageRole(t *testing.T) {
	cases := []struct {
		actor, target models.Role
		want          bool
	}{
		{models.RoleSuperAdmin, models.RoleSystemAdmin, true},
		{models.RoleSuperAdmin, models.RoleServiceEngineer, true},
		{models.RoleSuperAdmin, models.RoleSuperAdmin, false},
		{models.RoleSystemAdmin, models.RoleSystemAdmin, false},
		{models.RoleSystemAdmin, models.RoleServiceEngineer, true},
		{models.RoleServiceEngineer, models.RoleServiceEngineer, false},
		{models.RoleServiceEngineer, models.RoleSystemAdmin, false},
	}
	for _, tc := range cases {
		if got := CanManageRole(tc.actor, tc.target); got != tc.want {
			t.Errorf("CanManageRole(%s, %s) = %v, want %v", tc.actor, tc.target, got, tc.want)
		}
	}
}
