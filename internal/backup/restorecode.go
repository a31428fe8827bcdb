package backup

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/audit"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
)

// ErrRestoreCode is returned for any restore-code failure: unknown code,
// already used, wrong redeemer, or a vanished backup. The caller-facing
// message never distinguishes which; the audit log carries the context.
var ErrRestoreCode = errors.New("invalid restore code")

// CodeIssuer manages one-time restore codes. A code binds one backup to one
// intended system administrator and is consumed exactly once, atomically
// with the restore it authorizes.
type CodeIssuer struct {
	store    storage.Store
	manager  *Manager
	recorder *audit.Recorder
}

// NewCodeIssuer creates a CodeIssuer.
func NewCodeIssuer(store storage.Store, manager *Manager, recorder *audit.Recorder) *CodeIssuer {
	return &CodeIssuer{store: store, manager: manager, recorder: recorder}
}

// Issue mints a random one-time code bound to backupRef for targetHandle.
// Super admin only. The plaintext code is returned once; only its hash is
// stored.
func (i *CodeIssuer) Issue(ctx context.Context, actorRole models.Role, actorHandle, backupRef, targetHandle string) (string, *models.RestoreCode, error) {
	if !access.Allowed(actorRole, models.ActionIssueRestoreCode) {
		return "", nil, access.ErrAuthorization
	}
	if _, err := i.store.GetBackup(ctx, backupRef); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: backup %s not found", ErrRestoreCode, backupRef)
		}
		return "", nil, err
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generating restore code: %w", err)
	}
	plaintext := base64.RawURLEncoding.EncodeToString(raw)

	code := &models.RestoreCode{
		CodeHash:     hashCode(plaintext),
		IssuedBy:     actorHandle,
		TargetHandle: targetHandle,
		BackupID:     backupRef,
		IssuedAt:     time.Now().UTC(),
	}
	if err := i.store.CreateRestoreCode(ctx, code); err != nil {
		return "", nil, fmt.Errorf("storing restore code: %w", err)
	}
	return plaintext, code, nil
}

// Redeem validates and consumes a restore code, restoring its bound backup.
// System admin only; the code must be bound to the redeeming handle. The
// used-flag flip and the restore happen in one store transaction. Reuse
// attempts are recorded as suspicious.
func (i *CodeIssuer) Redeem(ctx context.Context, actorRole models.Role, actorHandle, plaintext string) (*models.RestoreCode, error) {
	if !access.Allowed(actorRole, models.ActionRestoreWithCode) {
		return nil, access.ErrAuthorization
	}
	codeHash := hashCode(plaintext)

	code, err := i.store.GetRestoreCode(ctx, codeHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRestoreCode
		}
		return nil, err
	}
	if code.Used {
		if err := i.recorder.Record(ctx, actorHandle, audit.DescUnauthorized,
			"attempted reuse of a consumed restore code", true); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: already used", ErrRestoreCode)
	}
	if code.TargetHandle != actorHandle {
		if err := i.recorder.Record(ctx, actorHandle, audit.DescUnauthorized,
			fmt.Sprintf("restore code bound to another admin (%s)", code.TargetHandle), true); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: not issued for this admin", ErrRestoreCode)
	}

	// Safety snapshot of the pre-restore state. Taken before the redeem
	// transaction; backups are excluded from snapshots so it survives.
	if _, err := i.manager.create(ctx, actorHandle, "pre_restore"); err != nil {
		return nil, fmt.Errorf("taking pre-restore snapshot: %w", err)
	}

	redeemed, err := i.store.RedeemRestoreCode(ctx, codeHash)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrCodeUsed):
			// Lost a race with a concurrent redeem of the same code.
			if recErr := i.recorder.Record(ctx, actorHandle, audit.DescUnauthorized,
				"attempted reuse of a consumed restore code", true); recErr != nil {
				return nil, recErr
			}
			return nil, fmt.Errorf("%w: already used", ErrRestoreCode)
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrRestoreCode
		}
		return nil, err
	}
	return redeemed, nil
}

// Revoke marks an unused code as used without restoring anything. Super
// admin only.
func (i *CodeIssuer) Revoke(ctx context.Context, actorRole models.Role, plaintext string) error {
	if !access.Allowed(actorRole, models.ActionIssueRestoreCode) {
		return access.ErrAuthorization
	}
	err := i.store.RevokeRestoreCode(ctx, hashCode(plaintext))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCodeUsed) {
		return fmt.Errorf("%w: %v", ErrRestoreCode, err)
	}
	return err
}

// List returns all restore codes, newest first. Super admin only.
func (i *CodeIssuer) List(ctx context.Context, actorRole models.Role) ([]*models.RestoreCode, error) {
	if !access.Allowed(actorRole, models.ActionIssueRestoreCode) {
		return nil, access.ErrAuthorization
	}
	return i.store.ListRestoreCodes(ctx)
}

func hashCode(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
