package models

import "time"

// BackupRef identifies a stored snapshot without carrying its payload.
type BackupRef struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes"`
}

// Backup is a full serialized snapshot of the encrypted store. The payload
// stays in its encrypted-at-rest form; creating or restoring a backup never
// requires field decryption.
type Backup struct {
	BackupRef
	Snapshot []byte `json:"-"`
}

// RestoreCode is a one-time token authorizing exactly one restore of one
// specific backup by one specific system administrator. Only the SHA-256
// hash of the token is stored.
type RestoreCode struct {
	ID           int64
	CodeHash     string `json:"-"`
	IssuedBy     string
	TargetHandle string
	BackupID     string
	Used         bool
	UsedAt       *time.Time
	IssuedAt     time.Time
}
