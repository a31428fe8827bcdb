package models

import "time"

// Role is a staff role. Permissions are determined solely by role.
type Role string

const (
	RoleSuperAdmin      Role = "super_admin"
	RoleSystemAdmin     Role = "system_admin"
	RoleServiceEngineer Role = "service_engineer"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleSystemAdmin, RoleServiceEngineer:
		return true
	}
	return false
}

// Action is an operation subject to the role permission matrix.
type Action string

const (
	ActionManageSystemAdmins     Action = "manage:system_admins"
	ActionManageServiceEngineers Action = "manage:service_engineers"
	ActionManageTravellers       Action = "manage:travellers"
	ActionManageScooters         Action = "manage:scooters"
	ActionUpdateScooterTelemetry Action = "update:scooter_telemetry"
	ActionViewAuditLog           Action = "view:audit_log"
	ActionCreateBackup           Action = "create:backup"
	ActionRestoreDirect          Action = "restore:direct"
	ActionRestoreWithCode        Action = "restore:with_code"
	ActionIssueRestoreCode       Action = "issue:restore_code"
)

// Actions lists every action covered by the permission matrix.
var Actions = []Action{
	ActionManageSystemAdmins,
	ActionManageServiceEngineers,
	ActionManageTravellers,
	ActionManageScooters,
	ActionUpdateScooterTelemetry,
	ActionViewAuditLog,
	ActionCreateBackup,
	ActionRestoreDirect,
	ActionRestoreWithCode,
	ActionIssueRestoreCode,
}

// Account is a staff account. The handle is stored only as its deterministic
// ciphertext (the lookup key); name fields are probabilistically encrypted.
// Handle carries the decrypted plaintext once loaded and is never persisted.
type Account struct {
	ID           int64
	Handle       string `json:"-"`
	HandleCipher []byte
	PasswordHash string
	Role         Role
	FirstNameEnc []byte
	LastNameEnc  []byte
	CreatedAt    time.Time
}

// Session is one authenticated administrative session. The plaintext session
// token is shown once at login; only its SHA-256 hash is stored. Handle is
// resolved from the account on authenticate and never persisted.
type Session struct {
	ID        string
	TokenHash string `json:"-"`
	AccountID int64
	Handle    string `json:"-"`
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// IsExpired returns true if the session has passed its expiry time.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// IsRevoked returns true if the session has been logged out.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}
