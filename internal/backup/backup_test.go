package backup

import (
	"context"
	"testing"
	"time"

	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/audit"
	"github.com/org/fleetadmin/internal/crypto"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*Manager, *CodeIssuer, *storage.MemoryStore) {
	t.Helper()
	key, err := crypto.GenerateRootKey()
	require.NoError(t, err)
	codec, err := crypto.NewCodec(key)
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	recorder := audit.NewRecorder(store, codec, 3, 10*time.Minute)
	manager := NewManager(store)
	return manager, NewCodeIssuer(store, manager, recorder), store
}

func addScooter(t *testing.T, store *storage.MemoryStore, serial string) {
	t.Helper()
	err := store.CreateScooter(context.Background(), &models.Scooter{
		Brand:        "Segway",
		Model:        "Ninebot Max",
		SerialNumber: serial,
		Charge:       90,
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestCreateAndListBackups(t *testing.T) {
	manager, _, store := newFixture(t)
	ctx := context.Background()
	addScooter(t, store, "SN-001")

	ref1, err := manager.Create(ctx, models.RoleSystemAdmin, "sa1")
	require.NoError(t, err)
	assert.NotEmpty(t, ref1.ID)
	assert.Equal(t, "sa1", ref1.CreatedBy)
	assert.Greater(t, ref1.SizeBytes, int64(0))

	_, err = manager.Create(ctx, models.RoleServiceEngineer, "se1")
	assert.ErrorIs(t, err, access.ErrAuthorization)

	refs, err := manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, ref1.ID, refs[0].ID)
}

func TestRestoreDirect(t *testing.T) {
	manager, _, store := newFixture(t)
	ctx := context.Background()
	addScooter(t, store, "SN-001")

	ref, err := manager.Create(ctx, models.RoleSuperAdmin, "super_admin")
	require.NoError(t, err)

	addScooter(t, store, "SN-002")
	scooters, _ := store.ListScooters(ctx)
	require.Len(t, scooters, 2)

	// System admin may not restore directly.
	err = manager.RestoreDirect(ctx, models.RoleSystemAdmin, ref.ID, "sa1")
	assert.ErrorIs(t, err, access.ErrAuthorization)

	require.NoError(t, manager.RestoreDirect(ctx, models.RoleSuperAdmin, ref.ID, "super_admin"))
	scooters, _ = store.ListScooters(ctx)
	assert.Len(t, scooters, 1)

	// A pre-restore safety snapshot was stored alongside the original.
	refs, _ := manager.List(ctx)
	assert.Len(t, refs, 2)
}

func TestRestoreCodeOneTimeUse(t *testing.T) {
	manager, issuer, store := newFixture(t)
	ctx := context.Background()
	addScooter(t, store, "SN-001")

	ref, err := manager.Create(ctx, models.RoleSystemAdmin, "sa1")
	require.NoError(t, err)
	addScooter(t, store, "SN-002")

	code, rc, err := issuer.Issue(ctx, models.RoleSuperAdmin, "super_admin", ref.ID, "sa1")
	require.NoError(t, err)
	assert.Equal(t, ref.ID, rc.BackupID)
	assert.False(t, rc.Used)

	// Only the bound system admin may redeem.
	_, err = issuer.Redeem(ctx, models.RoleSuperAdmin, "super_admin", code)
	assert.ErrorIs(t, err, access.ErrAuthorization)
	_, err = issuer.Redeem(ctx, models.RoleSystemAdmin, "sa2", code)
	assert.ErrorIs(t, err, ErrRestoreCode)

	redeemed, err := issuer.Redeem(ctx, models.RoleSystemAdmin, "sa1", code)
	require.NoError(t, err)
	assert.True(t, redeemed.Used)
	scooters, _ := store.ListScooters(ctx)
	assert.Len(t, scooters, 1, "store should reflect the bound backup")

	// Second redemption fails and leaves the store unchanged.
	_, err = issuer.Redeem(ctx, models.RoleSystemAdmin, "sa1", code)
	assert.ErrorIs(t, err, ErrRestoreCode)
	scooters, _ = store.ListScooters(ctx)
	assert.Len(t, scooters, 1)

	// The reuse attempt produced a suspicious audit entry.
	n, err := store.CountSuspicious(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestIssueRequiresExistingBackup(t *testing.T) {
	_, issuer, _ := newFixture(t)
	_, _, err := issuer.Issue(context.Background(), models.RoleSuperAdmin, "super_admin", "no_such_backup", "sa1")
	assert.ErrorIs(t, err, ErrRestoreCode)
}

func TestRevokeRestoreCode(t *testing.T) {
	manager, issuer, store := newFixture(t)
	ctx := context.Background()
	addScooter(t, store, "SN-001")

	ref, err := manager.Create(ctx, models.RoleSuperAdmin, "super_admin")
	require.NoError(t, err)
	code, _, err := issuer.Issue(ctx, models.RoleSuperAdmin, "super_admin", ref.ID, "sa1")
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(ctx, models.RoleSuperAdmin, code))
	_, err = issuer.Redeem(ctx, models.RoleSystemAdmin, "sa1", code)
	assert.ErrorIs(t, err, ErrRestoreCode)

	// Revoking twice reports the code as spent.
	err = issuer.Revoke(ctx, models.RoleSuperAdmin, code)
	assert.ErrorIs(t, err, ErrRestoreCode)

	codes, err := issuer.List(ctx, models.RoleSuperAdmin)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.True(t, codes[0].Used)
}
