package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
	"github.com/rs/zerolog/log"
)

// Manager creates and restores full snapshots of the encrypted store.
// Snapshots carry every data table in its encrypted-at-rest form; the
// manager never needs the codec.
type Manager struct {
	store storage.Store
	now   func() time.Time
}

// NewManager creates a backup Manager.
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Create serializes the current store into a named snapshot. Names are
// timestamped; a UUID suffix keeps two backups within the same second from
// colliding.
func (m *Manager) Create(ctx context.Context, actorRole models.Role, createdBy string) (*models.BackupRef, error) {
	if !access.Allowed(actorRole, models.ActionCreateBackup) {
		return nil, access.ErrAuthorization
	}
	return m.create(ctx, createdBy, "backup")
}

func (m *Manager) create(ctx context.Context, createdBy, prefix string) (*models.BackupRef, error) {
	snapshot, err := m.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("taking snapshot: %w", err)
	}
	now := m.now().UTC()
	name := fmt.Sprintf("%s_%s", prefix, now.Format("20060102_150405"))
	b := &models.Backup{
		BackupRef: models.BackupRef{
			ID:        name + "_" + uuid.NewString()[:8],
			Name:      name,
			CreatedBy: createdBy,
			CreatedAt: now,
			SizeBytes: int64(len(snapshot)),
		},
		Snapshot: snapshot,
	}
	if err := m.store.PutBackup(ctx, b); err != nil {
		return nil, fmt.Errorf("storing backup: %w", err)
	}
	log.Info().Str("backup", b.ID).Int64("bytes", b.SizeBytes).Msg("backup created")
	ref := b.BackupRef
	return &ref, nil
}

// List returns backup references, newest first.
func (m *Manager) List(ctx context.Context) ([]*models.BackupRef, error) {
	return m.store.ListBackups(ctx)
}

// RestoreDirect replaces the live store with the named snapshot. Permitted
// only for the super admin; system admins must go through a restore code.
// A safety snapshot of the pre-restore state is stored first.
func (m *Manager) RestoreDirect(ctx context.Context, actorRole models.Role, ref string, actorHandle string) error {
	if !access.Allowed(actorRole, models.ActionRestoreDirect) {
		return access.ErrAuthorization
	}
	b, err := m.store.GetBackup(ctx, ref)
	if err != nil {
		return err
	}
	if _, err := m.create(ctx, actorHandle, "pre_restore"); err != nil {
		return fmt.Errorf("taking pre-restore snapshot: %w", err)
	}
	if err := m.store.RestoreSnapshot(ctx, b.Snapshot); err != nil {
		return fmt.Errorf("restoring snapshot %s: %w", ref, err)
	}
	log.Info().Str("backup", ref).Msg("store restored from backup")
	return nil
}
