package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/org/fleetadmin/pkg/models"
)

// MemoryStore is an in-process Store used for development mode and tests.
// A single mutex serializes all mutations, which matches the atomicity the
// Postgres store gets from transactions and unique indexes.
type MemoryStore struct {
	mu           sync.Mutex
	nextAccount  int64
	nextAudit    int64
	nextTrav     int64
	nextScooter  int64
	nextCode     int64
	accounts     map[int64]*models.Account
	sessions     map[string]*models.Session // keyed by token hash
	auditLog     []*models.AuditEntry
	backups      map[string]*models.Backup
	restoreCodes map[string]*models.RestoreCode // keyed by code hash
	travellers   map[int64]*models.Traveller
	auditErr     error
	scooters     map[int64]*models.Scooter
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextAccount:  1,
		nextAudit:    1,
		nextTrav:     1,
		nextScooter:  1,
		nextCode:     1,
		accounts:     map[int64]*models.Account{},
		sessions:     map[string]*models.Session{},
		backups:      map[string]*models.Backup{},
		restoreCodes: map[string]*models.RestoreCode{},
		travellers:   map[int64]*models.Traveller{},
		scooters:     map[int64]*models.Scooter{},
	}
}

func (m *MemoryStore) Close() {}

// --- Accounts ---

func (m *MemoryStore) CreateAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if bytes.Equal(existing.HandleCipher, a.HandleCipher) {
			return ErrAlreadyExists
		}
	}
	a.ID = m.nextAccount
	m.nextAccount++
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *MemoryStore) GetAccountByHandleCipher(_ context.Context, handleCipher []byte) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if bytes.Equal(a.HandleCipher, handleCipher) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetAccountByID(_ context.Context, id int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) ListAccounts(_ context.Context) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Account
	for id := int64(1); id < m.nextAccount; id++ {
		if a, ok := m.accounts[id]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateAccountPassword(_ context.Context, id int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (m *MemoryStore) UpdateAccountProfile(_ context.Context, id int64, firstNameEnc, lastNameEnc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.FirstNameEnc = firstNameEnc
	a.LastNameEnc = lastNameEnc
	return nil
}

func (m *MemoryStore) DeleteAccount(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

// --- Sessions ---

func (m *MemoryStore) CreateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	// The plaintext handle is never at rest; accounts hold only its
	// ciphertext, and sessions reference the account ID.
	cp.Handle = ""
	m.sessions[s.TokenHash] = &cp
	return nil
}

func (m *MemoryStore) GetSessionByTokenHash(_ context.Context, tokenHash string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) RevokeSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id && s.RevokedAt == nil {
			now := time.Now().UTC()
			s.RevokedAt = &now
			return nil
		}
	}
	return ErrNotFound
}

// --- Audit log ---

// FailAuditWrites makes subsequent audit appends return err. Test hook.
func (m *MemoryStore) FailAuditWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditErr = err
}

func (m *MemoryStore) AppendAuditEntry(_ context.Context, e *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auditErr != nil {
		return m.auditErr
	}
	e.ID = m.nextAudit
	m.nextAudit++
	cp := *e
	m.auditLog = append(m.auditLog, &cp)
	return nil
}

func (m *MemoryStore) ListAuditEntries(_ context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Newest first.
	var out []*models.AuditEntry
	for i := len(m.auditLog) - 1; i >= 0; i-- {
		cp := *m.auditLog[i]
		out = append(out, &cp)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountAuditMatches(_ context.Context, actorCipher, descriptionCipher []byte, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.auditLog {
		if bytes.Equal(e.ActorCipher, actorCipher) &&
			bytes.Equal(e.DescriptionCipher, descriptionCipher) &&
			!e.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountSuspicious(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, e := range m.auditLog {
		if e.Suspicious {
			count++
		}
	}
	return count, nil
}

// --- Backups ---

func (m *MemoryStore) PutBackup(_ context.Context, b *models.Backup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.backups[b.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *b
	m.backups[b.ID] = &cp
	return nil
}

func (m *MemoryStore) GetBackup(_ context.Context, id string) (*models.Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) ListBackups(_ context.Context) ([]*models.BackupRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []*models.BackupRef
	for _, b := range m.backups {
		ref := b.BackupRef
		refs = append(refs, &ref)
	}
	// Newest first.
	for i := 0; i < len(refs); i++ {
		for j := i + 1; j < len(refs); j++ {
			if refs[j].CreatedAt.After(refs[i].CreatedAt) {
				refs[i], refs[j] = refs[j], refs[i]
			}
		}
	}
	return refs, nil
}

func (m *MemoryStore) Snapshot(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.Marshal(m.snapshotLocked())
}

func (m *MemoryStore) snapshotLocked() *SnapshotData {
	snap := &SnapshotData{Version: 1, TakenAt: time.Now().UTC()}
	for id := int64(1); id < m.nextAccount; id++ {
		if a, ok := m.accounts[id]; ok {
			cp := *a
			snap.Accounts = append(snap.Accounts, &cp)
		}
	}
	for _, e := range m.auditLog {
		cp := *e
		snap.AuditLog = append(snap.AuditLog, &cp)
	}
	for id := int64(1); id < m.nextTrav; id++ {
		if t, ok := m.travellers[id]; ok {
			cp := *t
			snap.Travellers = append(snap.Travellers, &cp)
		}
	}
	for id := int64(1); id < m.nextScooter; id++ {
		if s, ok := m.scooters[id]; ok {
			cp := *s
			snap.Scooters = append(snap.Scooters, &cp)
		}
	}
	return snap
}

func (m *MemoryStore) RestoreSnapshot(_ context.Context, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var snap SnapshotData
	if err := json.Unmarshal(snapshot, &snap); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	m.applySnapshotLocked(&snap)
	return nil
}

func (m *MemoryStore) applySnapshotLocked(snap *SnapshotData) {
	m.accounts = map[int64]*models.Account{}
	m.auditLog = nil
	m.travellers = map[int64]*models.Traveller{}
	m.scooters = map[int64]*models.Scooter{}
	m.nextAccount, m.nextAudit, m.nextTrav, m.nextScooter = 1, 1, 1, 1

	for _, a := range snap.Accounts {
		cp := *a
		m.accounts[a.ID] = &cp
		if a.ID >= m.nextAccount {
			m.nextAccount = a.ID + 1
		}
	}
	for _, e := range snap.AuditLog {
		cp := *e
		m.auditLog = append(m.auditLog, &cp)
		if e.ID >= m.nextAudit {
			m.nextAudit = e.ID + 1
		}
	}
	for _, t := range snap.Travellers {
		cp := *t
		m.travellers[t.ID] = &cp
		if t.ID >= m.nextTrav {
			m.nextTrav = t.ID + 1
		}
	}
	for _, s := range snap.Scooters {
		cp := *s
		m.scooters[s.ID] = &cp
		if s.ID >= m.nextScooter {
			m.nextScooter = s.ID + 1
		}
	}
}

// --- Restore codes ---

func (m *MemoryStore) CreateRestoreCode(_ context.Context, c *models.RestoreCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.restoreCodes[c.CodeHash]; ok {
		return ErrAlreadyExists
	}
	c.ID = m.nextCode
	m.nextCode++
	cp := *c
	m.restoreCodes[c.CodeHash] = &cp
	return nil
}

func (m *MemoryStore) GetRestoreCode(_ context.Context, codeHash string) (*models.RestoreCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.restoreCodes[codeHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// RedeemRestoreCode performs the used-flag check-and-set and the snapshot
// restore under one lock, mirroring the Postgres transaction.
func (m *MemoryStore) RedeemRestoreCode(_ context.Context, codeHash string) (*models.RestoreCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.restoreCodes[codeHash]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Used {
		return nil, ErrCodeUsed
	}
	b, ok := m.backups[c.BackupID]
	if !ok {
		return nil, fmt.Errorf("%w: bound backup %s is gone", ErrNotFound, c.BackupID)
	}
	var snap SnapshotData
	if err := json.Unmarshal(b.Snapshot, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	now := time.Now().UTC()
	c.Used = true
	c.UsedAt = &now
	m.applySnapshotLocked(&snap)
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) RevokeRestoreCode(_ context.Context, codeHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.restoreCodes[codeHash]
	if !ok {
		return ErrNotFound
	}
	if c.Used {
		return ErrCodeUsed
	}
	now := time.Now().UTC()
	c.Used = true
	c.UsedAt = &now
	return nil
}

func (m *MemoryStore) ListRestoreCodes(_ context.Context) ([]*models.RestoreCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var codes []*models.RestoreCode
	for id := m.nextCode - 1; id >= 1; id-- {
		for _, c := range m.restoreCodes {
			if c.ID == id {
				cp := *c
				codes = append(codes, &cp)
			}
		}
	}
	return codes, nil
}

// --- Travellers ---

func (m *MemoryStore) CreateTraveller(_ context.Context, t *models.Traveller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextTrav
	m.nextTrav++
	cp := *t
	m.travellers[t.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTraveller(_ context.Context, id int64) (*models.Traveller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.travellers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) ListTravellers(_ context.Context) ([]*models.Traveller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Traveller
	for id := int64(1); id < m.nextTrav; id++ {
		if t, ok := m.travellers[id]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateTraveller(_ context.Context, t *models.Traveller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.travellers[t.ID]
	if !ok {
		return ErrNotFound
	}
	existing.ProfileCipher = t.ProfileCipher
	return nil
}

func (m *MemoryStore) DeleteTraveller(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.travellers[id]; !ok {
		return ErrNotFound
	}
	delete(m.travellers, id)
	return nil
}

// --- Scooters ---

func (m *MemoryStore) CreateScooter(_ context.Context, s *models.Scooter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.scooters {
		if existing.SerialNumber == s.SerialNumber {
			return ErrAlreadyExists
		}
	}
	s.ID = m.nextScooter
	m.nextScooter++
	cp := *s
	m.scooters[s.ID] = &cp
	return nil
}

func (m *MemoryStore) GetScooter(_ context.Context, id int64) (*models.Scooter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scooters[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListScooters(_ context.Context) ([]*models.Scooter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Scooter
	for id := int64(1); id < m.nextScooter; id++ {
		if s, ok := m.scooters[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) SearchScooters(_ context.Context, term string) ([]*models.Scooter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Scooter
	for id := int64(1); id < m.nextScooter; id++ {
		s, ok := m.scooters[id]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(s.Brand), term) ||
			strings.Contains(strings.ToLower(s.Model), term) ||
			strings.Contains(strings.ToLower(s.SerialNumber), term) ||
			strings.Contains(strconv.FormatInt(s.ID, 10), term) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateScooter(_ context.Context, s *models.Scooter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scooters[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.scooters[s.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteScooter(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scooters[id]; !ok {
		return ErrNotFound
	}
	delete(m.scooters, id)
	return nil
}
