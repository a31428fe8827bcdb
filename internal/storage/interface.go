package storage

import (
	"context"
	"errors"
	"time"

	"github.com/org/fleetadmin/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when creating a resource that already exists.
var ErrAlreadyExists = errors.New("already exists")

// ErrCodeUsed is returned when redeeming or revoking a restore code whose
// used flag is already set.
var ErrCodeUsed = errors.New("restore code already used")

// Store defines the persistence interface for the fleet admin backend.
// Mutations on shared resources are atomic at the store level: handle
// uniqueness is enforced on insert (never check-then-act), restore-code
// redemption is a transactional check-and-set, and each audit append is a
// single write.
type Store interface {
	// Accounts. CreateAccount returns ErrAlreadyExists when the handle
	// ciphertext collides with an existing account.
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByHandleCipher(ctx context.Context, handleCipher []byte) (*models.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	UpdateAccountPassword(ctx context.Context, id int64, passwordHash string) error
	UpdateAccountProfile(ctx context.Context, id int64, firstNameEnc, lastNameEnc []byte) error
	DeleteAccount(ctx context.Context, id int64) error

	// Sessions, keyed by SHA-256 of the plaintext token.
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	RevokeSession(ctx context.Context, id string) error

	// Audit log. Append-only; ListAuditEntries returns newest first.
	AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error)
	CountAuditMatches(ctx context.Context, actorCipher, descriptionCipher []byte, since time.Time) (int, error)
	CountSuspicious(ctx context.Context) (int64, error)

	// Backups. Snapshot serializes every data table in its encrypted-at-rest
	// form; RestoreSnapshot replaces those tables with the snapshot content.
	// The backups and restore_codes tables themselves are excluded from
	// snapshots so consumed codes stay consumed across a restore.
	PutBackup(ctx context.Context, backup *models.Backup) error
	GetBackup(ctx context.Context, id string) (*models.Backup, error)
	ListBackups(ctx context.Context) ([]*models.BackupRef, error)
	Snapshot(ctx context.Context) ([]byte, error)
	RestoreSnapshot(ctx context.Context, snapshot []byte) error

	// Restore codes, keyed by SHA-256 of the plaintext token.
	// RedeemRestoreCode atomically marks the code used and restores its
	// bound backup in one transaction; no window exists where one has
	// happened without the other.
	CreateRestoreCode(ctx context.Context, code *models.RestoreCode) error
	GetRestoreCode(ctx context.Context, codeHash string) (*models.RestoreCode, error)
	RedeemRestoreCode(ctx context.Context, codeHash string) (*models.RestoreCode, error)
	RevokeRestoreCode(ctx context.Context, codeHash string) error
	ListRestoreCodes(ctx context.Context) ([]*models.RestoreCode, error)

	// Traveller records (encrypted profile blobs).
	CreateTraveller(ctx context.Context, traveller *models.Traveller) error
	GetTraveller(ctx context.Context, id int64) (*models.Traveller, error)
	ListTravellers(ctx context.Context) ([]*models.Traveller, error)
	UpdateTraveller(ctx context.Context, traveller *models.Traveller) error
	DeleteTraveller(ctx context.Context, id int64) error

	// Scooter records. CreateScooter returns ErrAlreadyExists on a serial
	// number collision. SearchScooters matches term, already lowercased,
	// as a substring of brand, model, serial number or ID.
	CreateScooter(ctx context.Context, scooter *models.Scooter) error
	GetScooter(ctx context.Context, id int64) (*models.Scooter, error)
	ListScooters(ctx context.Context) ([]*models.Scooter, error)
	SearchScooters(ctx context.Context, term string) ([]*models.Scooter, error)
	UpdateScooter(ctx context.Context, scooter *models.Scooter) error
	DeleteScooter(ctx context.Context, id int64) error

	// Lifecycle
	Close()
}

// SnapshotData is the serialized form of a store snapshot. All ciphertext
// columns stay opaque; taking or applying a snapshot never touches the codec.
type SnapshotData struct {
	Version    int                  `json:"version"`
	TakenAt    time.Time            `json:"taken_at"`
	Accounts   []*models.Account    `json:"accounts"`
	AuditLog   []*models.AuditEntry `json:"audit_log"`
	Travellers []*models.Traveller  `json:"travellers"`
	Scooters   []*models.Scooter    `json:"scooters"`
}
