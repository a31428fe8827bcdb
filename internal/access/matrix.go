package access

import (
	"errors"

	"github.com/org/fleetadmin/pkg/models"
)

// ErrAuthorization is returned when a role lacks permission for an action.
// Denials are recoverable at the caller and are always audited.
var ErrAuthorization = errors.New("permission denied")

// matrix is the complete role → action permission table. Every known
// (role, action) pair is enumerated explicitly; a missing entry is a
// configuration defect caught by the totality test, never a silent allow.
var matrix = map[models.Role]map[models.Action]bool{
	models.RoleSuperAdmin: {
		models.ActionManageSystemAdmins:     true,
		models.ActionManageServiceEngineers: true,
		models.ActionManageTravellers:       true,
		models.ActionManageScooters:         true,
		models.ActionUpdateScooterTelemetry: true,
		models.ActionViewAuditLog:           true,
		models.ActionCreateBackup:           true,
		models.ActionRestoreDirect:          true,
		models.ActionRestoreWithCode:        false, // super admin restores directly
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

// Allowed reports whether role may perform action. Unknown roles and
// unknown actions are always denied.
func Allowed(role models.Role, action models.Action) bool {
	perms, ok := matrix[role]
	if !ok {
		return false
	}
	allowed, ok := perms[action]
	return ok && allowed
}

// CanManageRole reports whether actor may create, delete, or reset the
// password of an account with the target role. Only a strictly higher role
// manages accounts: super admins manage system admins and service
// engineers, system admins manage service engineers only. The seeded super
// admin account is never managed through this path.
func CanManageRole(actor, target models.Role) bool {
	switch target {
	case models.RoleSystemAdmin:
		return Allowed(actor, models.ActionManageSystemAdmins)
	case models.RoleServiceEngineer:
		return Allowed(actor, models.ActionManageServiceEngineers)
	default:
		return false
	}
}
