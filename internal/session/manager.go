package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/audit"
	"github.com/org/fleetadmin/internal/backup"
	"github.com/org/fleetadmin/internal/credential"
	"github.com/org/fleetadmin/internal/records"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
	"github.com/rs/zerolog/log"
)

const tokenPrefix = "fas_"

// ErrIntegrity is returned when the audit entry for an action could not be
// persisted. The action is then not reported as successful, even if its
// own write went through.
var ErrIntegrity = errors.New("audit log write failed")

// Config holds the security subsystem's tunables. The bootstrap super
// admin identity is a configuration value, never a literal in logic.
type Config struct {
	SeedHandle    string
	SeedPassword  string
	SeedFirstName string
	SeedLastName  string
	SessionTTL    time.Duration

	// Brute-force detection.
	FailureThreshold int
	FailureWindow    time.Duration
}

// Manager is the composition root of the security subsystem. Every
// sensitive operation flows through it: the permission matrix is consulted
// before any mutation, and an audit entry is written for every action,
// success or failure.
type Manager struct {
	store      storage.Store
	creds      *credential.Service
	recorder   *audit.Recorder
	backups    *backup.Manager
	codes      *backup.CodeIssuer
	travellers *records.TravellerService
	scooters   *records.ScooterService
	seedHandle string
	ttl        time.Duration
}

// NewManager wires the subsystem together over one store and codec.
func NewManager(store storage.Store, creds *credential.Service, recorder *audit.Recorder,
	backups *backup.Manager, codes *backup.CodeIssuer,
	travellers *records.TravellerService, scooters *records.ScooterService, cfg Config) *Manager {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Manager{
		store:      store,
		creds:      creds,
		recorder:   recorder,
		backups:    backups,
		codes:      codes,
		travellers: travellers,
		scooters:   scooters,
		seedHandle: cfg.SeedHandle,
		ttl:        ttl,
	}
}

// Bootstrap seeds the super admin account. Called once at startup.
func (m *Manager) Bootstrap(ctx context.Context, cfg Config) error {
	if cfg.SeedHandle == "" || cfg.SeedPassword == "" {
		return errors.New("seed super admin handle and password must be configured")
	}
	if _, err := m.creds.Seed(ctx, cfg.SeedHandle, cfg.SeedPassword, cfg.SeedFirstName, cfg.SeedLastName); err != nil {
		return fmt.Errorf("bootstrapping super admin: %w", err)
	}
	return nil
}

// LoginResult is returned on a successful login. Token is the plaintext
// session token, shown exactly once. SuspiciousCount is the number of
// flagged audit entries, surfaced only to admin roles.
type LoginResult struct {
	Session         *models.Session
	Token           string
	SuspiciousCount int64
}

// Login verifies credentials and opens a session. Both outcomes are
// audited; failures feed the brute-force detector, which flags the entry
// suspicious once the handle crosses the failure threshold in its window.
func (m *Manager) Login(ctx context.Context, handle, password string) (*LoginResult, error) {
	account, err := m.creds.Verify(ctx, handle, password)
	if err != nil {
		if errors.Is(err, credential.ErrAuthentication) {
			if _, recErr := m.recorder.RecordLoginFailure(ctx, handle, "invalid credentials"); recErr != nil {
				return nil, m.integrity(recErr)
			}
			return nil, credential.ErrAuthentication
		}
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}
	token := tokenPrefix + base64.RawURLEncoding.EncodeToString(raw)
	now := time.Now().UTC()
	sess := &models.Session{
		ID:        uuid.NewString(),
		TokenHash: hashToken(token),
		AccountID: account.ID,
		Handle:    account.Handle,
		Role:      account.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	if err := m.audit(ctx, account.Handle, audit.DescLoginSuccess, "", false); err != nil {
		return nil, err
	}

	result := &LoginResult{Session: sess, Token: token}
	if account.Role == models.RoleSuperAdmin || account.Role == models.RoleSystemAdmin {
		if n, err := m.recorder.SuspiciousCount(ctx); err == nil {
			result.SuspiciousCount = n
		}
	}
	log.Info().Str("handle", account.Handle).Str("role", string(account.Role)).Msg("login")
	return result, nil
}

// Authenticate resolves a plaintext session token to a live session. The
// session row carries only the account ID at rest; the handle is resolved
// from the account here, so a session dies with its account.
func (m *Manager) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	sess, err := m.store.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, credential.ErrAuthentication
		}
		return nil, err
	}
	if sess.IsRevoked() || sess.IsExpired() {
		return nil, credential.ErrAuthentication
	}
	if sess.Handle == "" {
		account, err := m.creds.GetByID(ctx, sess.AccountID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, credential.ErrAuthentication
			}
			return nil, err
		}
		sess.Handle = account.Handle
	}
	return sess, nil
}

// Logout revokes the session.
func (m *Manager) Logout(ctx context.Context, sess *models.Session) error {
	if err := m.store.RevokeSession(ctx, sess.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return m.audit(ctx, sess.Handle, "Logged out", "", false)
}

// CheckPermission reports whether the session's role may perform action.
func (m *Manager) CheckPermission(sess *models.Session, action models.Action) bool {
	return access.Allowed(sess.Role, action)
}

// LogActivity writes a caller-supplied audit entry. sess may be nil for
// unauthenticated events.
func (m *Manager) LogActivity(ctx context.Context, sess *models.Session, description, detail string, suspicious bool) error {
	actor := ""
	if sess != nil {
		actor = sess.Handle
	}
	return m.audit(ctx, actor, description, detail, suspicious)
}

// --- Accounts ---

// CreateAccount creates a staff account on behalf of the session. The
// credential service enforces the role hierarchy; denials and handle
// collisions are audited.
func (m *Manager) CreateAccount(ctx context.Context, sess *models.Session, handle, password string, role models.Role, firstName, lastName string) (*models.Account, error) {
	account, err := m.creds.CreateAccount(ctx, sess.Role, handle, password, role, firstName, lastName)
	if err != nil {
		if auditErr := m.auditFailure(ctx, sess, audit.DescAccountCreated,
			fmt.Sprintf("handle %s, role %s", handle, role), err); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}
	if err := m.audit(ctx, sess.Handle, audit.DescAccountCreated,
		fmt.Sprintf("handle %s, role %s", handle, role), false); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount deletes the account named by handle. The seeded super
// admin is undeletable, and only a strictly higher role may delete.
func (m *Manager) DeleteAccount(ctx context.Context, sess *models.Session, handle string) error {
	err := m.deleteAccount(ctx, sess, handle)
	if err != nil {
		if auditErr := m.auditFailure(ctx, sess, audit.DescAccountDeleted, "handle "+handle, err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, audit.DescAccountDeleted, "handle "+handle, false)
}

func (m *Manager) deleteAccount(ctx context.Context, sess *models.Session, handle string) error {
	if handle == m.seedHandle {
		return access.ErrAuthorization
	}
	target, err := m.creds.GetByHandle(ctx, handle)
	if err != nil {
		return err
	}
	if !access.CanManageRole(sess.Role, target.Role) {
		return access.ErrAuthorization
	}
	return m.store.DeleteAccount(ctx, target.ID)
}

// ResetPassword sets a new password on the target account. Requires the
// actor to manage the target's role.
func (m *Manager) ResetPassword(ctx context.Context, sess *models.Session, handle, newPassword string) error {
	err := m.resetPassword(ctx, sess, handle, newPassword)
	if err != nil {
		if auditErr := m.auditFailure(ctx, sess, audit.DescPasswordReset, "target "+handle, err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, audit.DescPasswordReset, "target "+handle, false)
}

func (m *Manager) resetPassword(ctx context.Context, sess *models.Session, handle, newPassword string) error {
	if handle == m.seedHandle {
		return access.ErrAuthorization
	}
	target, err := m.creds.GetByHandle(ctx, handle)
	if err != nil {
		return err
	}
	return m.creds.ResetPassword(ctx, sess.Role, target, newPassword)
}

// ChangePassword rotates the session owner's own password. The seeded
// super admin password can only change via configuration.
func (m *Manager) ChangePassword(ctx context.Context, sess *models.Session, currentPassword, newPassword string) error {
	if sess.Handle == m.seedHandle {
		return access.ErrAuthorization
	}
	account, err := m.creds.GetByID(ctx, sess.AccountID)
	if err != nil {
		return err
	}
	if err := m.creds.ChangePassword(ctx, account, currentPassword, newPassword); err != nil {
		if auditErr := m.auditFailure(ctx, sess, audit.DescPasswordChanged, "", err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, audit.DescPasswordChanged, "", false)
}

// UpdateAccountProfile replaces the name fields of the account named by
// handle. Owners may update their own profile; updating anyone else
// requires managing their role. The seeded super admin identity is owned
// by configuration and cannot be edited.
func (m *Manager) UpdateAccountProfile(ctx context.Context, sess *models.Session, handle, firstName, lastName string) error {
	err := m.updateAccountProfile(ctx, sess, handle, firstName, lastName)
	if err != nil {
		if auditErr := m.auditFailure(ctx, sess, audit.DescProfileUpdated, "target "+handle, err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, audit.DescProfileUpdated, "target "+handle, false)
}

func (m *Manager) updateAccountProfile(ctx context.Context, sess *models.Session, handle, firstName, lastName string) error {
	if handle == m.seedHandle {
		return access.ErrAuthorization
	}
	target, err := m.creds.GetByHandle(ctx, handle)
	if err != nil {
		return err
	}
	return m.creds.UpdateProfile(ctx, sess.Role, sess.AccountID, target, firstName, lastName)
}

// ListAccounts returns all accounts with decrypted handles. Admin only.
func (m *Manager) ListAccounts(ctx context.Context, sess *models.Session) ([]*models.Account, error) {
	if !access.Allowed(sess.Role, models.ActionManageServiceEngineers) {
		if err := m.denied(ctx, sess, "list accounts"); err != nil {
			return nil, err
		}
		return nil, access.ErrAuthorization
	}
	accounts, err := m.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Handle == "" {
			loaded, err := m.creds.GetByID(ctx, a.ID)
			if err != nil {
				return nil, err
			}
			a.Handle = loaded.Handle
		}
	}
	return accounts, nil
}

// --- Backups and restore codes ---

// CreateBackup snapshots the whole store.
func (m *Manager) CreateBackup(ctx context.Context, sess *models.Session) (*models.BackupRef, error) {
	ref, err := m.backups.Create(ctx, sess.Role, sess.Handle)
	if err != nil {
		if auditErr := m.auditFailure(ctx, sess, audit.DescBackupCreated, "", err); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}
	if err := m.audit(ctx, sess.Handle, audit.DescBackupCreated, ref.ID, false); err != nil {
		return nil, err
	}
	return ref, nil
}

// ListBackups returns backup references, newest first. Gated on the
// backup permission.
func (m *Manager) ListBackups(ctx context.Context, sess *models.Session) ([]*models.BackupRef, error) {
	if !access.Allowed(sess.Role, models.ActionCreateBackup) {
		if err := m.denied(ctx, sess, "list backups"); err != nil {
			return nil, err
		}
		return nil, access.ErrAuthorization
	}
	return m.backups.List(ctx)
}

// RestoreBackup performs a direct (no-code) restore. Super admin only.
func (m *Manager) RestoreBackup(ctx context.Context, sess *models.Session, ref string) error {
	err := m.backups.RestoreDirect(ctx, sess.Role, ref, sess.Handle)
	if err != nil {
		if auditErr := m.auditFailure(ctx, sess, audit.DescBackupRestored, ref, err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, audit.DescBackupRestored, ref, false)
}

// IssueRestoreCode mints a one-time code binding a backup to a target
// system admin. The target must exist and hold the system admin role.
func (m *Manager) IssueRestoreCode(ctx context.Context, sess *models.Session, ref, targetHandle string) (string, *models.RestoreCode, error) {
	code, rc, err := m.issueRestoreCode(ctx, sess, ref, targetHandle)
	if err != nil {
		if auditErr := m.auditFailure(ctx, sess, audit.DescRestoreCodeIssued,
			fmt.Sprintf("backup %s for %s", ref, targetHandle), err); auditErr != nil {
			return "", nil, auditErr
		}
		return "", nil, err
	}
	if err := m.audit(ctx, sess.Handle, audit.DescRestoreCodeIssued,
		fmt.Sprintf("backup %s for %s", ref, targetHandle), false); err != nil {
		return "", nil, err
	}
	return code, rc, nil
}

func (m *Manager) issueRestoreCode(ctx context.Context, sess *models.Session, ref, targetHandle string) (string, *models.RestoreCode, error) {
	target, err := m.creds.GetByHandle(ctx, targetHandle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: target admin %s not found", backup.ErrRestoreCode, targetHandle)
		}
		return "", nil, err
	}
	if target.Role != models.RoleSystemAdmin {
		return "", nil, fmt.Errorf("%w: restore codes are issued to system admins only", backup.ErrRestoreCode)
	}
	return m.codes.Issue(ctx, sess.Role, sess.Handle, ref, targetHandle)
}

// RedeemRestoreCode consumes a one-time code and restores its bound
// backup as a single unit.
func (m *Manager) RedeemRestoreCode(ctx context.Context, sess *models.Session, code string) (*models.RestoreCode, error) {
	rc, err := m.codes.Redeem(ctx, sess.Role, sess.Handle, code)
	if err != nil {
		// Reuse and mismatch paths are already recorded as suspicious by
		// the issuer; still audit the failed restore itself.
		if auditErr := m.auditFailure(ctx, sess, audit.DescBackupRestored, "via restore code", err); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}
	if err := m.audit(ctx, sess.Handle, audit.DescBackupRestored,
		fmt.Sprintf("via restore code, backup %s", rc.BackupID), false); err != nil {
		return nil, err
	}
	return rc, nil
}

// RevokeRestoreCode invalidates an unused code. Super admin only.
func (m *Manager) RevokeRestoreCode(ctx context.Context, sess *models.Session, code string) error {
	if err := m.codes.Revoke(ctx, sess.Role, code); err != nil {
		if auditErr := m.auditFailure(ctx, sess, audit.DescRestoreCodeRevoked, "", err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, audit.DescRestoreCodeRevoked, "", false)
}

// ListRestoreCodes returns all restore codes. Super admin only.
func (m *Manager) ListRestoreCodes(ctx context.Context, sess *models.Session) ([]*models.RestoreCode, error) {
	return m.codes.List(ctx, sess.Role)
}

// --- Audit log ---

// ListAuditLog returns decrypted audit entries, newest first. Viewing is
// itself an audited event; denials are flagged suspicious.
func (m *Manager) ListAuditLog(ctx context.Context, sess *models.Session, limit, offset int) ([]*models.DecryptedAuditEntry, error) {
	if !access.Allowed(sess.Role, models.ActionViewAuditLog) {
		if err := m.denied(ctx, sess, "view audit log"); err != nil {
			return nil, err
		}
		return nil, access.ErrAuthorization
	}
	entries, err := m.recorder.ListDecrypted(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := m.audit(ctx, sess.Handle, audit.DescLogViewed, "", false); err != nil {
		return nil, err
	}
	return entries, nil
}

// SuspiciousCount returns the number of flagged audit entries.
func (m *Manager) SuspiciousCount(ctx context.Context) (int64, error) {
	return m.recorder.SuspiciousCount(ctx)
}

// --- Traveller records ---

func (m *Manager) CreateTraveller(ctx context.Context, sess *models.Session, profile *models.TravellerProfile) (*models.Traveller, error) {
	t, err := m.travellers.Create(ctx, sess.Role, profile)
	if err != nil {
		if auditErr := m.auditFailure(ctx, sess, "Traveller created", "", err); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}
	if err := m.audit(ctx, sess.Handle, "Traveller created", fmt.Sprintf("id %d", t.ID), false); err != nil {
		return nil, err
	}
	return t, nil
}

func (m *Manager) GetTraveller(ctx context.Context, sess *models.Session, id int64) (*models.TravellerProfile, error) {
	profile, _, err := m.travellers.Get(ctx, sess.Role, id)
	if err != nil {
		if errors.Is(err, access.ErrAuthorization) {
			if auditErr := m.denied(ctx, sess, fmt.Sprintf("read traveller %d", id)); auditErr != nil {
				return nil, auditErr
			}
		}
		return nil, err
	}
	return profile, nil
}

func (m *Manager) ListTravellers(ctx context.Context, sess *models.Session) ([]*models.Traveller, error) {
	return m.travellers.List(ctx, sess.Role)
}

// SearchTravellers decrypts and matches traveller profiles against term.
// Searches over PII are themselves audited events.
func (m *Manager) SearchTravellers(ctx context.Context, sess *models.Session, term string) ([]*records.TravellerMatch, error) {
	matches, err := m.travellers.Search(ctx, sess.Role, term)
	if err != nil {
		if errors.Is(err, access.ErrAuthorization) {
			if auditErr := m.denied(ctx, sess, "search travellers"); auditErr != nil {
				return nil, auditErr
			}
		}
		return nil, err
	}
	if err := m.audit(ctx, sess.Handle, "Travellers searched", fmt.Sprintf("term %q", term), false); err != nil {
		return nil, err
	}
	return matches, nil
}

func (m *Manager) UpdateTraveller(ctx context.Context, sess *models.Session, id int64, profile *models.TravellerProfile) error {
	if err := m.travellers.Update(ctx, sess.Role, id, profile); err != nil {
		if auditErr := m.auditFailure(ctx, sess, "Traveller updated", fmt.Sprintf("id %d", id), err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, "Traveller updated", fmt.Sprintf("id %d", id), false)
}

func (m *Manager) DeleteTraveller(ctx context.Context, sess *models.Session, id int64) error {
	if err := m.travellers.Delete(ctx, sess.Role, id); err != nil {
		if auditErr := m.auditFailure(ctx, sess, "Traveller deleted", fmt.Sprintf("id %d", id), err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, "Traveller deleted", fmt.Sprintf("id %d", id), false)
}

// --- Scooter records ---

func (m *Manager) CreateScooter(ctx context.Context, sess *models.Session, scooter *models.Scooter) error {
	if err := m.scooters.Create(ctx, sess.Role, scooter); err != nil {
		if auditErr := m.auditFailure(ctx, sess, "Scooter created", scooter.SerialNumber, err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, "Scooter created", scooter.SerialNumber, false)
}

func (m *Manager) GetScooter(ctx context.Context, sess *models.Session, id int64) (*models.Scooter, error) {
	return m.scooters.Get(ctx, sess.Role, id)
}

func (m *Manager) ListScooters(ctx context.Context, sess *models.Session) ([]*models.Scooter, error) {
	return m.scooters.List(ctx, sess.Role)
}

// SearchScooters filters the fleet by a brand, model, serial or ID
// substring.
func (m *Manager) SearchScooters(ctx context.Context, sess *models.Session, term string) ([]*models.Scooter, error) {
	scooters, err := m.scooters.Search(ctx, sess.Role, term)
	if err != nil {
		if errors.Is(err, access.ErrAuthorization) {
			if auditErr := m.denied(ctx, sess, "search scooters"); auditErr != nil {
				return nil, auditErr
			}
		}
		return nil, err
	}
	if err := m.audit(ctx, sess.Handle, "Scooters searched", fmt.Sprintf("term %q", term), false); err != nil {
		return nil, err
	}
	return scooters, nil
}

func (m *Manager) UpdateScooter(ctx context.Context, sess *models.Session, scooter *models.Scooter) error {
	if err := m.scooters.Update(ctx, sess.Role, scooter); err != nil {
		if auditErr := m.auditFailure(ctx, sess, "Scooter updated", fmt.Sprintf("id %d", scooter.ID), err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, "Scooter updated", fmt.Sprintf("id %d", scooter.ID), false)
}

func (m *Manager) UpdateScooterTelemetry(ctx context.Context, sess *models.Session, id int64, tel *models.ScooterTelemetry) (*models.Scooter, error) {
	scooter, err := m.scooters.UpdateTelemetry(ctx, sess.Role, id, tel)
	if err != nil {
		if auditErr := m.auditFailure(ctx, sess, "Scooter telemetry updated", fmt.Sprintf("id %d", id), err); auditErr != nil {
			return nil, auditErr
		}
		return nil, err
	}
	if err := m.audit(ctx, sess.Handle, "Scooter telemetry updated", fmt.Sprintf("id %d", id), false); err != nil {
		return nil, err
	}
	return scooter, nil
}

func (m *Manager) DeleteScooter(ctx context.Context, sess *models.Session, id int64) error {
	if err := m.scooters.Delete(ctx, sess.Role, id); err != nil {
		if auditErr := m.auditFailure(ctx, sess, "Scooter deleted", fmt.Sprintf("id %d", id), err); auditErr != nil {
			return auditErr
		}
		return err
	}
	return m.audit(ctx, sess.Handle, "Scooter deleted", fmt.Sprintf("id %d", id), false)
}

// --- helpers ---

// audit appends an entry, mapping persistence failure to ErrIntegrity.
func (m *Manager) audit(ctx context.Context, actor, description, detail string, suspicious bool) error {
	if err := m.recorder.Record(ctx, actor, description, detail, suspicious); err != nil {
		return m.integrity(err)
	}
	return nil
}

// auditFailure records a failed action. Authorization denials are flagged
// suspicious, other failures are not. Returns non-nil only when the audit
// write itself failed.
func (m *Manager) auditFailure(ctx context.Context, sess *models.Session, description, detail string, cause error) error {
	suspicious := errors.Is(cause, access.ErrAuthorization)
	d := "failed: " + cause.Error()
	if detail != "" {
		d = detail + "; " + d
	}
	return m.audit(ctx, sess.Handle, description, d, suspicious)
}

// denied audits an authorization denial as a suspicious event.
func (m *Manager) denied(ctx context.Context, sess *models.Session, what string) error {
	return m.audit(ctx, sess.Handle, audit.DescUnauthorized,
		fmt.Sprintf("%s (role %s)", what, sess.Role), true)
}

func (m *Manager) integrity(err error) error {
	log.Error().Err(err).Msg("audit append failed")
	return fmt.Errorf("%w: %v", ErrIntegrity, err)
}

func hashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
