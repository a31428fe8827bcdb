package credential

import (
	"context"
	"testing"

	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/crypto"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	key, err := crypto.GenerateRootKey()
	require.NoError(t, err)
	codec, err := crypto.NewCodec(key)
	require.NoError(t, err)
	return NewService(store, codec), store
}

func TestCreateAndVerify(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, models.RoleSuperAdmin, "sa1", "Sysadmin_99!", models.RoleSystemAdmin, "Sana", "Adminova")
	require.NoError(t, err)
	assert.Equal(t, "sa1", account.Handle)

	// The stored row holds ciphertext and a hash, never plaintext.
	stored, err := store.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(stored.HandleCipher), "sa1")
	assert.NotEqual(t, "Sysadmin_99!", stored.PasswordHash)

	got, err := svc.Verify(ctx, "sa1", "Sysadmin_99!")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = svc.Verify(ctx, "sa1", "wrong")
	assert.ErrorIs(t, err, ErrAuthentication)
	_, err = svc.Verify(ctx, "nobody", "Sysadmin_99!")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestCreateAccountRoleHierarchy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, models.RoleSystemAdmin, "sa2", "Sysadmin_99!", models.RoleSystemAdmin, "No", "Peer")
	assert.ErrorIs(t, err, access.ErrAuthorization)

	_, err = svc.CreateAccount(ctx, models.RoleServiceEngineer, "se2", "Engineer_77!", models.RoleServiceEngineer, "No", "Self")
	assert.ErrorIs(t, err, access.ErrAuthorization)

	_, err = svc.CreateAccount(ctx, models.RoleSystemAdmin, "se1", "Engineer_77!", models.RoleServiceEngineer, "Egon", "Wrench")
	assert.NoError(t, err)
}

func TestDuplicateHandle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, models.RoleSuperAdmin, "sa1", "Sysadmin_99!", models.RoleSystemAdmin, "Sana", "Adminova")
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, models.RoleSuperAdmin, "sa1", "Other_123!", models.RoleSystemAdmin, "Dup", "Entry")
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestPasswordResetAndChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, models.RoleSuperAdmin, "sa1", "Sysadmin_99!", models.RoleSystemAdmin, "Sana", "Adminova")
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, models.RoleSuperAdmin, account, "Reset_4567!"))
	_, err = svc.Verify(ctx, "sa1", "Sysadmin_99!")
	assert.ErrorIs(t, err, ErrAuthentication)
	fresh, err := svc.Verify(ctx, "sa1", "Reset_4567!")
	require.NoError(t, err)

	// An equal or lower role cannot reset.
	err = svc.ResetPassword(ctx, models.RoleSystemAdmin, account, "Nope_1234!")
	assert.ErrorIs(t, err, access.ErrAuthorization)

	require.NoError(t, svc.ChangePassword(ctx, fresh, "Reset_4567!", "Chosen_890?"))
	_, err = svc.Verify(ctx, "sa1", "Chosen_890?")
	assert.NoError(t, err)

	err = svc.ChangePassword(ctx, fresh, "stale", "Whatever_1!")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestSeedIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.Seed(ctx, "root_admin", "Admin_123?", "Root", "Admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, first.Role)

	second, err := svc.Seed(ctx, "root_admin", "Admin_123?", "Root", "Admin")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}
