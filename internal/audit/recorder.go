package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/org/fleetadmin/internal/crypto"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
	"github.com/rs/zerolog/log"
)

// Standardized event descriptions. Kept stable so anomaly queries can match
// entries by their deterministic ciphertext without decrypting the table.
const (
	DescLoginSuccess       = "Successful login"
	DescLoginFailure       = "Failed login attempt"
	DescAccountCreated     = "Account created"
	DescAccountDeleted     = "Account deleted"
	DescPasswordReset      = "Password reset performed"
	DescPasswordChanged    = "Password changed"
	DescProfileUpdated     = "Account profile updated"
	DescBackupCreated      = "Backup created"
	DescBackupRestored     = "Backup restored"
	DescRestoreCodeIssued  = "Restore code issued"
	DescRestoreCodeRevoked = "Restore code revoked"
	DescUnauthorized       = "Unauthorized access attempt"
	DescLogViewed          = "Viewed audit log"
	DescLogRowUnreadable   = "Audit row failed to decrypt"
)

const (
	// DefaultThreshold is the failed-login count at which an attempt is
	// flagged suspicious.
	DefaultThreshold = 3
	// DefaultWindow is the trailing window those failures are counted in.
	DefaultWindow = 10 * time.Minute
)

// Recorder writes encrypted, append-only audit entries and runs brute-force
// detection over them. Actor handle and description are encrypted
// deterministically so failed-login entries can be counted by equality;
// the free-form detail is probabilistically encrypted.
type Recorder struct {
	store     storage.Store
	codec     *crypto.Codec
	threshold int
	window    time.Duration
	now       func() time.Time
}

// NewRecorder creates a Recorder. A threshold <= 0 or window <= 0 falls
// back to the defaults.
func NewRecorder(store storage.Store, codec *crypto.Codec, threshold int, window time.Duration) *Recorder {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Recorder{store: store, codec: codec, threshold: threshold, window: window, now: time.Now}
}

// SetClock overrides the recorder's clock. Test hook.
func (r *Recorder) SetClock(now func() time.Time) { r.now = now }

// Record encrypts and appends one audit entry. actor may be empty for
// unauthenticated attempts. A persistence failure here must fail the
// operation that triggered it: an action whose audit entry cannot be
// written is not reported as successful.
func (r *Recorder) Record(ctx context.Context, actor, description, detail string, suspicious bool) error {
	entry, err := r.buildEntry(actor, description, detail, suspicious)
	if err != nil {
		return err
	}
	if err := r.store.AppendAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	if suspicious {
		log.Warn().Str("description", description).Msg("suspicious activity recorded")
	}
	return nil
}

func (r *Recorder) buildEntry(actor, description, detail string, suspicious bool) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		Timestamp:  r.now().UTC(),
		Suspicious: suspicious,
	}
	var err error
	if actor != "" {
		if entry.ActorCipher, err = r.codec.EncryptString(actor, crypto.Deterministic); err != nil {
			return nil, fmt.Errorf("encrypting actor: %w", err)
		}
	}
	if entry.DescriptionCipher, err = r.codec.EncryptString(description, crypto.Deterministic); err != nil {
		return nil, fmt.Errorf("encrypting description: %w", err)
	}
	if detail != "" {
		if entry.DetailCipher, err = r.codec.EncryptString(detail, crypto.Probabilistic); err != nil {
			return nil, fmt.Errorf("encrypting detail: %w", err)
		}
	}
	return entry, nil
}

// RecordLoginFailure appends a failed-login entry for handle, flagging it
// suspicious when it is at least the Nth failure (threshold) within the
// trailing detection window. Returns whether the entry was flagged.
func (r *Recorder) RecordLoginFailure(ctx context.Context, handle, detail string) (bool, error) {
	prior, err := r.countFailures(ctx, handle)
	if err != nil {
		return false, err
	}
	suspicious := prior+1 >= r.threshold
	if err := r.Record(ctx, handle, DescLoginFailure, detail, suspicious); err != nil {
		return false, err
	}
	return suspicious, nil
}

// DetectBruteForce reports whether handle has accumulated at least the
// threshold number of failed logins within the trailing window.
func (r *Recorder) DetectBruteForce(ctx context.Context, handle string) (bool, error) {
	count, err := r.countFailures(ctx, handle)
	if err != nil {
		return false, err
	}
	return count >= r.threshold, nil
}

func (r *Recorder) countFailures(ctx context.Context, handle string) (int, error) {
	actorCipher, err := r.codec.EncryptString(handle, crypto.Deterministic)
	if err != nil {
		return 0, fmt.Errorf("encrypting actor: %w", err)
	}
	descCipher, err := r.codec.EncryptString(DescLoginFailure, crypto.Deterministic)
	if err != nil {
		return 0, fmt.Errorf("encrypting description: %w", err)
	}
	since := r.now().UTC().Add(-r.window)
	return r.store.CountAuditMatches(ctx, actorCipher, descCipher, since)
}

// ListDecrypted returns audit entries in reverse-chronological order with
// their fields decrypted. Rows that fail to decrypt are skipped, logged,
// and reported back into the audit log as an anomaly; one bad row never
// aborts the listing.
func (r *Recorder) ListDecrypted(ctx context.Context, limit, offset int) ([]*models.DecryptedAuditEntry, error) {
	entries, err := r.store.ListAuditEntries(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	out := make([]*models.DecryptedAuditEntry, 0, len(entries))
	var unreadable []int64
	for _, e := range entries {
		d, err := r.decryptEntry(e)
		if err != nil {
			log.Error().Int64("entry_id", e.ID).Err(err).Msg("skipping undecryptable audit row")
			unreadable = append(unreadable, e.ID)
			continue
		}
		out = append(out, d)
	}
	for _, id := range unreadable {
		if err := r.Record(ctx, "", DescLogRowUnreadable, fmt.Sprintf("entry id %d", id), true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Recorder) decryptEntry(e *models.AuditEntry) (*models.DecryptedAuditEntry, error) {
	d := &models.DecryptedAuditEntry{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		Suspicious: e.Suspicious,
	}
	var err error
	if e.ActorCipher != nil {
		if d.Actor, err = r.codec.DecryptString(e.ActorCipher, crypto.Deterministic); err != nil {
			return nil, err
		}
	}
	if d.Description, err = r.codec.DecryptString(e.DescriptionCipher, crypto.Deterministic); err != nil {
		return nil, err
	}
	if e.DetailCipher != nil {
		if d.Detail, err = r.codec.DecryptString(e.DetailCipher, crypto.Probabilistic); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// SuspiciousCount returns the number of entries flagged suspicious,
// surfaced to admins at login.
func (r *Recorder) SuspiciousCount(ctx context.Context) (int64, error) {
	return r.store.CountSuspicious(ctx)
}
