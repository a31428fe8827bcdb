package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/audit"
	"github.com/org/fleetadmin/internal/backup"
	"github.com/org/fleetadmin/internal/credential"
	"github.com/org/fleetadmin/internal/crypto"
	"github.com/org/fleetadmin/internal/records"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seedHandle   = "root_admin"
	seedPassword = "Admin_123?"
)

func newTestManager(t *testing.T) (*Manager, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	key, err := crypto.GenerateRootKey()
	require.NoError(t, err)
	codec, err := crypto.NewCodec(key)
	require.NoError(t, err)

	creds := credential.NewService(store, codec)
	recorder := audit.NewRecorder(store, codec, audit.DefaultThreshold, audit.DefaultWindow)
	backups := backup.NewManager(store)
	codes := backup.NewCodeIssuer(store, backups, recorder)
	travellers := records.NewTravellerService(store, codec)
	scooters := records.NewScooterService(store)

	cfg := Config{
		SeedHandle:    seedHandle,
		SeedPassword:  seedPassword,
		SeedFirstName: "Root",
		SeedLastName:  "Admin",
	}
	m := NewManager(store, creds, recorder, backups, codes, travellers, scooters, cfg)
	require.NoError(t, m.Bootstrap(context.Background(), cfg))
	return m, store
}

func login(t *testing.T, m *Manager, handle, password string) *models.Session {
	t.Helper()
	res, err := m.Login(context.Background(), handle, password)
	require.NoError(t, err)
	return res.Session
}

func TestLoginIssuesOpaqueToken(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	res, err := m.Login(ctx, seedHandle, seedPassword)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Token, "fas_"))
	assert.Equal(t, models.RoleSuperAdmin, res.Session.Role)

	sess, err := m.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, seedHandle, sess.Handle)

	_, err = m.Authenticate(ctx, "fas_not-a-real-token")
	assert.ErrorIs(t, err, credential.ErrAuthentication)
}

func TestLoginFailureIsAudited(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Login(ctx, seedHandle, "wrong")
	assert.ErrorIs(t, err, credential.ErrAuthentication)
	_, err = m.Login(ctx, "nobody", "wrong")
	assert.ErrorIs(t, err, credential.ErrAuthentication)

	sess := login(t, m, seedHandle, seedPassword)
	entries, err := m.ListAuditLog(ctx, sess, 50, 0)
	require.NoError(t, err)

	var failures int
	for _, e := range entries {
		if e.Description == audit.DescLoginFailure {
			failures++
		}
	}
	assert.Equal(t, 2, failures)
}

func TestLogoutRevokesSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	res, err := m.Login(ctx, seedHandle, seedPassword)
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx, res.Session))

	_, err = m.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, credential.ErrAuthentication)
}

// Exercises the role hierarchy end to end: the super admin creates a
// system admin, the system admin creates a service engineer, and the
// engineer can update telemetry but not create scooters.
func TestRoleHierarchyScenario(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	root := login(t, m, seedHandle, seedPassword)

	_, err := m.CreateAccount(ctx, root, "sa1", "Sysadmin_99!", models.RoleSystemAdmin, "Sana", "Adminova")
	require.NoError(t, err)

	sa := login(t, m, "sa1", "Sysadmin_99!")
	_, err = m.CreateAccount(ctx, sa, "se1", "Engineer_77!", models.RoleServiceEngineer, "Egon", "Wrench")
	require.NoError(t, err)

	// A system admin may not mint peers.
	_, err = m.CreateAccount(ctx, sa, "sa2", "Sysadmin_99!", models.RoleSystemAdmin, "No", "Peer")
	assert.ErrorIs(t, err, access.ErrAuthorization)

	se := login(t, m, "se1", "Engineer_77!")

	err = m.CreateScooter(ctx, se, &models.Scooter{Brand: "Segway", Model: "Ninebot E2", SerialNumber: "SN0001AB90"})
	assert.ErrorIs(t, err, access.ErrAuthorization)

	require.NoError(t, m.CreateScooter(ctx, sa, &models.Scooter{Brand: "Segway", Model: "Ninebot E2", SerialNumber: "SN0001AB90"}))
	scooters, err := m.ListScooters(ctx, se)
	require.NoError(t, err)
	require.Len(t, scooters, 1)

	charge := 88
	updated, err := m.UpdateScooterTelemetry(ctx, se, scooters[0].ID, &models.ScooterTelemetry{Charge: &charge})
	require.NoError(t, err)
	assert.Equal(t, 88, updated.Charge)

	// The denied creation left a suspicious trail.
	entries, err := m.ListAuditLog(ctx, root, 100, 0)
	require.NoError(t, err)
	var suspicious int
	for _, e := range entries {
		if e.Suspicious {
			suspicious++
		}
	}
	assert.GreaterOrEqual(t, suspicious, 1)
}

func TestSeedAccountIsProtected(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	err := m.DeleteAccount(ctx, root, seedHandle)
	assert.ErrorIs(t, err, access.ErrAuthorization)

	err = m.ResetPassword(ctx, root, seedHandle, "Another_123?")
	assert.ErrorIs(t, err, access.ErrAuthorization)

	err = m.ChangePassword(ctx, root, seedPassword, "Another_123?")
	assert.ErrorIs(t, err, access.ErrAuthorization)
}

func TestPasswordLifecycle(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	_, err := m.CreateAccount(ctx, root, "sa1", "Sysadmin_99!", models.RoleSystemAdmin, "Sana", "Adminova")
	require.NoError(t, err)

	require.NoError(t, m.ResetPassword(ctx, root, "sa1", "Reset_4567!"))
	sa := login(t, m, "sa1", "Reset_4567!")

	require.NoError(t, m.ChangePassword(ctx, sa, "Reset_4567!", "Chosen_890?"))
	login(t, m, "sa1", "Chosen_890?")

	err = m.ChangePassword(ctx, sa, "wrong-current", "Whatever_1!")
	assert.ErrorIs(t, err, credential.ErrAuthentication)
}

func TestAccountProfileUpdate(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	_, err := m.CreateAccount(ctx, root, "sa1", "Sysadmin_99!", models.RoleSystemAdmin, "Sana", "Adminova")
	require.NoError(t, err)
	_, err = m.CreateAccount(ctx, root, "se1", "Engineer_77!", models.RoleServiceEngineer, "Egon", "Wrench")
	require.NoError(t, err)
	se := login(t, m, "se1", "Engineer_77!")

	// Owners may edit their own name fields.
	before, err := store.GetAccountByID(ctx, se.AccountID)
	require.NoError(t, err)
	require.NoError(t, m.UpdateAccountProfile(ctx, se, "se1", "Egonia", "Spanner"))
	after, err := store.GetAccountByID(ctx, se.AccountID)
	require.NoError(t, err)
	assert.NotEqual(t, before.FirstNameEnc, after.FirstNameEnc)
	assert.NotContains(t, string(after.FirstNameEnc), "Egonia")

	// An engineer manages nobody else's profile.
	err = m.UpdateAccountProfile(ctx, se, "sa1", "Hij", "Acked")
	assert.ErrorIs(t, err, access.ErrAuthorization)

	// A higher role may.
	require.NoError(t, m.UpdateAccountProfile(ctx, root, "sa1", "Sanne", "Adminova"))

	// The seed identity is owned by configuration.
	err = m.UpdateAccountProfile(ctx, root, seedHandle, "Else", "Where")
	assert.ErrorIs(t, err, access.ErrAuthorization)
}

func TestScooterSearch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	require.NoError(t, m.CreateScooter(ctx, root, &models.Scooter{Brand: "Segway", Model: "Ninebot E2", SerialNumber: "SN0001AB90"}))
	require.NoError(t, m.CreateScooter(ctx, root, &models.Scooter{Brand: "NIU", Model: "KQi3", SerialNumber: "SN0002CD34"}))

	_, err := m.CreateAccount(ctx, root, "se1", "Engineer_77!", models.RoleServiceEngineer, "Egon", "Wrench")
	require.NoError(t, err)
	se := login(t, m, "se1", "Engineer_77!")

	hits, err := m.SearchScooters(ctx, se, "segw")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Segway", hits[0].Brand)

	hits, err = m.SearchScooters(ctx, se, "SN000")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	_, err = m.SearchScooters(ctx, se, "x")
	assert.ErrorIs(t, err, records.ErrSearchTerm)
}

func TestTravellerSearch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	_, err := m.CreateTraveller(ctx, root, &models.TravellerProfile{
		FirstName: "Tessa", LastName: "Rider", Email: "tessa@example.org",
	})
	require.NoError(t, err)
	_, err = m.CreateTraveller(ctx, root, &models.TravellerProfile{
		FirstName: "Bram", LastName: "Fietser", Email: "bram@example.org",
	})
	require.NoError(t, err)

	// Matching decrypts every profile; the term never touches ciphertext.
	hits, err := m.SearchTravellers(ctx, root, "tessa@")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Tessa", hits[0].Profile.FirstName)

	hits, err = m.SearchTravellers(ctx, root, "example.org")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = m.SearchTravellers(ctx, root, "nobody")
	require.NoError(t, err)
	assert.Empty(t, hits)

	// PII searches leave an audit trail.
	entries, err := m.ListAuditLog(ctx, root, 100, 0)
	require.NoError(t, err)
	var searches int
	for _, e := range entries {
		if e.Description == "Travellers searched" {
			searches++
		}
	}
	assert.Equal(t, 3, searches)
}

func TestSessionRowCarriesNoPlaintextHandle(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	_, err := m.CreateAccount(ctx, root, "sa1", "Sysadmin_99!", models.RoleSystemAdmin, "Sana", "Adminova")
	require.NoError(t, err)
	res, err := m.Login(ctx, "sa1", "Sysadmin_99!")
	require.NoError(t, err)

	stored, err := store.GetSessionByTokenHash(ctx, hashToken(res.Token))
	require.NoError(t, err)
	assert.Empty(t, stored.Handle)

	// Authenticate resolves the handle from the account.
	sess, err := m.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "sa1", sess.Handle)

	// A session dies with its account.
	require.NoError(t, m.DeleteAccount(ctx, root, "sa1"))
	_, err = m.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, credential.ErrAuthentication)
}

func TestRestoreCodeFlow(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	_, err := m.CreateAccount(ctx, root, "sa1", "Sysadmin_99!", models.RoleSystemAdmin, "Sana", "Adminova")
	require.NoError(t, err)
	sa := login(t, m, "sa1", "Sysadmin_99!")

	require.NoError(t, m.CreateScooter(ctx, root, &models.Scooter{Brand: "NIU", Model: "KQi3", SerialNumber: "SN0002CD34"}))

	// System admins can create backups too.
	ref, err := m.CreateBackup(ctx, sa)
	require.NoError(t, err)

	// The target must be an existing system admin.
	_, _, err = m.IssueRestoreCode(ctx, root, ref.ID, "ghost")
	assert.ErrorIs(t, err, backup.ErrRestoreCode)

	code, rc, err := m.IssueRestoreCode(ctx, root, ref.ID, "sa1")
	require.NoError(t, err)
	assert.Equal(t, "sa1", rc.TargetHandle)

	// Drift the store after the backup, then restore via the code.
	require.NoError(t, m.CreateScooter(ctx, root, &models.Scooter{Brand: "NIU", Model: "KQi3", SerialNumber: "SN0003EF56"}))

	redeemed, err := m.RedeemRestoreCode(ctx, sa, code)
	require.NoError(t, err)
	assert.True(t, redeemed.Used)

	scooters, err := m.ListScooters(ctx, root)
	require.NoError(t, err)
	assert.Len(t, scooters, 1)

	// One time only.
	_, err = m.RedeemRestoreCode(ctx, sa, code)
	assert.ErrorIs(t, err, backup.ErrRestoreCode)
}

func TestTravellerRoundTrip(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	profile := &models.TravellerProfile{
		FirstName: "Tessa", LastName: "Rider",
		Email: "tessa@example.org", MobilePhone: "+31612345678",
		City: "Rotterdam",
	}
	created, err := m.CreateTraveller(ctx, root, profile)
	require.NoError(t, err)

	got, err := m.GetTraveller(ctx, root, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tessa", got.FirstName)

	// Stored form carries no plaintext.
	rows, err := store.ListTravellers(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotContains(t, string(rows[0].ProfileCipher), "Tessa")

	require.NoError(t, m.DeleteTraveller(ctx, root, created.ID))
	_, err = m.GetTraveller(ctx, root, created.ID)
	assert.Error(t, err)
}

func TestAuditViewDeniedForEngineer(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	_, err := m.CreateAccount(ctx, root, "se1", "Engineer_77!", models.RoleServiceEngineer, "Egon", "Wrench")
	require.NoError(t, err)
	se := login(t, m, "se1", "Engineer_77!")

	_, err = m.ListAuditLog(ctx, se, 10, 0)
	assert.ErrorIs(t, err, access.ErrAuthorization)

	n, err := m.SuspiciousCount(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestAuditFailureBlocksOperation(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	root := login(t, m, seedHandle, seedPassword)

	mem := store.(*storage.MemoryStore)
	mem.FailAuditWrites(errors.New("disk full"))
	defer mem.FailAuditWrites(nil)

	_, err := m.CreateAccount(ctx, root, "sa1", "Sysadmin_99!", models.RoleSystemAdmin, "Sana", "Adminova")
	assert.ErrorIs(t, err, ErrIntegrity)
}
