package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/fleetadmin/pkg/models"
)

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pgxpool connection and returns a ready store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

// isUniqueViolation reports whether err is a 23505 unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Accounts ---

func (p *PostgresStore) CreateAccount(ctx context.Context, a *models.Account) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO accounts (handle_cipher, password_hash, role, first_name_enc, last_name_enc, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		a.HandleCipher, a.PasswordHash, string(a.Role), a.FirstNameEnc, a.LastNameEnc, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetAccountByHandleCipher(ctx context.Context, handleCipher []byte) (*models.Account, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, handle_cipher, password_hash, role, first_name_enc, last_name_enc, created_at
		 FROM accounts WHERE handle_cipher = $1`,
		handleCipher,
	)
	return scanAccount(row)
}

func (p *PostgresStore) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, handle_cipher, password_hash, role, first_name_enc, last_name_enc, created_at
		 FROM accounts WHERE id = $1`,
		id,
	)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var role string
	err := row.Scan(&a.ID, &a.HandleCipher, &a.PasswordHash, &role, &a.FirstNameEnc, &a.LastNameEnc, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Role = models.Role(role)
	return &a, nil
}

func (p *PostgresStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, handle_cipher, password_hash, role, first_name_enc, last_name_enc, created_at
		 FROM accounts ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (p *PostgresStore) UpdateAccountPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2 WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateAccountProfile(ctx context.Context, id int64, firstNameEnc, lastNameEnc []byte) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE accounts SET first_name_enc = $2, last_name_enc = $3 WHERE id = $1`,
		id, firstNameEnc, lastNameEnc,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Sessions ---

// CreateSession persists a session. The handle field is deliberately not a
// column: the accounts table holds only handle ciphertext, so sessions
// reference the account ID and the handle is resolved on authenticate.
func (p *PostgresStore) CreateSession(ctx context.Context, s *models.Session) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO sessions (id, token_hash, account_id, role, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.TokenHash, s.AccountID, string(s.Role), s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, token_hash, account_id, role, created_at, expires_at, revoked_at
		 FROM sessions WHERE token_hash = $1`,
		tokenHash,
	)
	var s models.Session
	var role string
	err := row.Scan(&s.ID, &s.TokenHash, &s.AccountID, &role, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Role = models.Role(role)
	return &s, nil
}

func (p *PostgresStore) RevokeSession(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Audit log ---

func (p *PostgresStore) AppendAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO audit_log (logged_at, actor_cipher, description_cipher, detail_cipher, suspicious)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.Timestamp, e.ActorCipher, e.DescriptionCipher, e.DetailCipher, e.Suspicious,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListAuditEntries(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, logged_at, actor_cipher, description_cipher, detail_cipher, suspicious
		 FROM audit_log ORDER BY logged_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorCipher, &e.DescriptionCipher, &e.DetailCipher, &e.Suspicious); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (p *PostgresStore) CountAuditMatches(ctx context.Context, actorCipher, descriptionCipher []byte, since time.Time) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_log
		 WHERE actor_cipher = $1 AND description_cipher = $2 AND logged_at >= $3`,
		actorCipher, descriptionCipher, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting audit matches: %w", err)
	}
	return count, nil
}

func (p *PostgresStore) CountSuspicious(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log WHERE suspicious`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting suspicious entries: %w", err)
	}
	return count, nil
}

// --- Backups ---

func (p *PostgresStore) PutBackup(ctx context.Context, b *models.Backup) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO backups (id, name, created_by, created_at, size_bytes, snapshot)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.Name, b.CreatedBy, b.CreatedAt, b.SizeBytes, b.Snapshot,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting backup: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetBackup(ctx context.Context, id string) (*models.Backup, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, name, created_by, created_at, size_bytes, snapshot FROM backups WHERE id = $1`,
		id,
	)
	var b models.Backup
	err := row.Scan(&b.ID, &b.Name, &b.CreatedBy, &b.CreatedAt, &b.SizeBytes, &b.Snapshot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStore) ListBackups(ctx context.Context) ([]*models.BackupRef, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, created_by, created_at, size_bytes FROM backups ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*models.BackupRef
	for rows.Next() {
		var r models.BackupRef
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedBy, &r.CreatedAt, &r.SizeBytes); err != nil {
			return nil, err
		}
		refs = append(refs, &r)
	}
	return refs, rows.Err()
}

// Snapshot serializes the accounts, audit, traveller and scooter tables to
// JSON inside one repeatable-read transaction. Ciphertext columns are
// carried as-is.
func (p *PostgresStore) Snapshot(ctx context.Context) ([]byte, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	snap := SnapshotData{Version: 1, TakenAt: time.Now().UTC()}

	if snap.Accounts, err = listAccountsTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("snapshotting accounts: %w", err)
	}
	if snap.AuditLog, err = listAuditTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("snapshotting audit log: %w", err)
	}
	if snap.Travellers, err = listTravellersTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("snapshotting travellers: %w", err)
	}
	if snap.Scooters, err = listScootersTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("snapshotting scooters: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing snapshot tx: %w", err)
	}
	return json.Marshal(snap)
}

// RestoreSnapshot replaces the data tables with the snapshot content in a
// single transaction. Sessions, backups and restore codes are untouched.
func (p *PostgresStore) RestoreSnapshot(ctx context.Context, snapshot []byte) error {
	var snap SnapshotData
	if err := json.Unmarshal(snapshot, &snap); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning restore tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := applySnapshotTx(ctx, tx, &snap); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func applySnapshotTx(ctx context.Context, tx pgx.Tx, snap *SnapshotData) error {
	for _, table := range []string{"audit_log", "travellers", "scooters", "accounts"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	for _, a := range snap.Accounts {
		if _, err := tx.Exec(ctx,
			`INSERT INTO accounts (id, handle_cipher, password_hash, role, first_name_enc, last_name_enc, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ID, a.HandleCipher, a.PasswordHash, string(a.Role), a.FirstNameEnc, a.LastNameEnc, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("restoring account %d: %w", a.ID, err)
		}
	}
	for _, e := range snap.AuditLog {
		if _, err := tx.Exec(ctx,
			`INSERT INTO audit_log (id, logged_at, actor_cipher, description_cipher, detail_cipher, suspicious)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, e.Timestamp, e.ActorCipher, e.DescriptionCipher, e.DetailCipher, e.Suspicious,
		); err != nil {
			return fmt.Errorf("restoring audit entry %d: %w", e.ID, err)
		}
	}
	for _, t := range snap.Travellers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO travellers (id, profile_cipher, registered_at) VALUES ($1, $2, $3)`,
			t.ID, t.ProfileCipher, t.RegisteredAt,
		); err != nil {
			return fmt.Errorf("restoring traveller %d: %w", t.ID, err)
		}
	}
	for _, s := range snap.Scooters {
		if _, err := tx.Exec(ctx,
			`INSERT INTO scooters (id, brand, model, serial_number, charge, latitude, longitude,
			                       out_of_service, mileage, last_maintenance_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			s.ID, s.Brand, s.Model, s.SerialNumber, s.Charge, s.Latitude, s.Longitude,
			s.OutOfService, s.Mileage, s.LastMaintenanceAt, s.CreatedAt,
		); err != nil {
			return fmt.Errorf("restoring scooter %d: %w", s.ID, err)
		}
	}
	// Re-align identity sequences with the restored rows.
	for _, seq := range []struct{ table, col string }{
		{"accounts", "id"}, {"audit_log", "id"}, {"travellers", "id"}, {"scooters", "id"},
	} {
		q := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%s', '%s'), COALESCE(MAX(%s), 1)) FROM %s`,
			seq.table, seq.col, seq.col, seq.table,
		)
		if _, err := tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("resetting %s sequence: %w", seq.table, err)
		}
	}
	return nil
}

func listAccountsTx(ctx context.Context, tx pgx.Tx) ([]*models.Account, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, handle_cipher, password_hash, role, first_name_enc, last_name_enc, created_at
		 FROM accounts ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func listAuditTx(ctx context.Context, tx pgx.Tx) ([]*models.AuditEntry, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, logged_at, actor_cipher, description_cipher, detail_cipher, suspicious
		 FROM audit_log ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorCipher, &e.DescriptionCipher, &e.DetailCipher, &e.Suspicious); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func listTravellersTx(ctx context.Context, tx pgx.Tx) ([]*models.Traveller, error) {
	rows, err := tx.Query(ctx, `SELECT id, profile_cipher, registered_at FROM travellers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var travellers []*models.Traveller
	for rows.Next() {
		var t models.Traveller
		if err := rows.Scan(&t.ID, &t.ProfileCipher, &t.RegisteredAt); err != nil {
			return nil, err
		}
		travellers = append(travellers, &t)
	}
	return travellers, rows.Err()
}

func listScootersTx(ctx context.Context, tx pgx.Tx) ([]*models.Scooter, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, brand, model, serial_number, charge, latitude, longitude,
		        out_of_service, mileage, last_maintenance_at, created_at
		 FROM scooters ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scooters []*models.Scooter
	for rows.Next() {
		s, err := scanScooter(rows)
		if err != nil {
			return nil, err
		}
		scooters = append(scooters, s)
	}
	return scooters, rows.Err()
}

// --- Restore codes ---

func (p *PostgresStore) CreateRestoreCode(ctx context.Context, c *models.RestoreCode) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO restore_codes (code_hash, issued_by, target_handle, backup_id, used, issued_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)
		 RETURNING id`,
		c.CodeHash, c.IssuedBy, c.TargetHandle, c.BackupID, c.IssuedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting restore code: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetRestoreCode(ctx context.Context, codeHash string) (*models.RestoreCode, error) {
	return getRestoreCode(ctx, p.pool, codeHash, false)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getRestoreCode(ctx context.Context, q queryRower, codeHash string, forUpdate bool) (*models.RestoreCode, error) {
	query := `SELECT id, code_hash, issued_by, target_handle, backup_id, used, used_at, issued_at
	          FROM restore_codes WHERE code_hash = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var c models.RestoreCode
	err := q.QueryRow(ctx, query, codeHash).Scan(
		&c.ID, &c.CodeHash, &c.IssuedBy, &c.TargetHandle, &c.BackupID, &c.Used, &c.UsedAt, &c.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// RedeemRestoreCode marks the code used and restores its bound backup as one
// transaction. Two concurrent redemptions of the same code cannot both
// observe it unused: the row is locked before the check-and-set.
func (p *PostgresStore) RedeemRestoreCode(ctx context.Context, codeHash string) (*models.RestoreCode, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning redeem tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	code, err := getRestoreCode(ctx, tx, codeHash, true)
	if err != nil {
		return nil, err
	}
	if code.Used {
		return nil, ErrCodeUsed
	}

	var snapshot []byte
	err = tx.QueryRow(ctx, `SELECT snapshot FROM backups WHERE id = $1`, code.BackupID).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: bound backup %s is gone", ErrNotFound, code.BackupID)
		}
		return nil, err
	}

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE restore_codes SET used = TRUE, used_at = $2 WHERE id = $1 AND used = FALSE`,
		code.ID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("consuming restore code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrCodeUsed
	}

	var snap SnapshotData
	if err := json.Unmarshal(snapshot, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if err := applySnapshotTx(ctx, tx, &snap); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing redeem tx: %w", err)
	}
	code.Used = true
	code.UsedAt = &now
	return code, nil
}

func (p *PostgresStore) RevokeRestoreCode(ctx context.Context, codeHash string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE restore_codes SET used = TRUE, used_at = NOW() WHERE code_hash = $1 AND used = FALSE`,
		codeHash,
	)
	if err != nil {
		return fmt.Errorf("revoking restore code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := p.GetRestoreCode(ctx, codeHash); getErr != nil {
			return getErr
		}
		return ErrCodeUsed
	}
	return nil
}

func (p *PostgresStore) ListRestoreCodes(ctx context.Context) ([]*models.RestoreCode, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, code_hash, issued_by, target_handle, backup_id, used, used_at, issued_at
		 FROM restore_codes ORDER BY issued_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []*models.RestoreCode
	for rows.Next() {
		var c models.RestoreCode
		if err := rows.Scan(&c.ID, &c.CodeHash, &c.IssuedBy, &c.TargetHandle, &c.BackupID, &c.Used, &c.UsedAt, &c.IssuedAt); err != nil {
			return nil, err
		}
		codes = append(codes, &c)
	}
	return codes, rows.Err()
}

// --- Travellers ---

func (p *PostgresStore) CreateTraveller(ctx context.Context, t *models.Traveller) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO travellers (profile_cipher, registered_at) VALUES ($1, $2) RETURNING id`,
		t.ProfileCipher, t.RegisteredAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("inserting traveller: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetTraveller(ctx context.Context, id int64) (*models.Traveller, error) {
	var t models.Traveller
	err := p.pool.QueryRow(ctx,
		`SELECT id, profile_cipher, registered_at FROM travellers WHERE id = $1`, id,
	).Scan(&t.ID, &t.ProfileCipher, &t.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (p *PostgresStore) ListTravellers(ctx context.Context) ([]*models.Traveller, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, profile_cipher, registered_at FROM travellers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var travellers []*models.Traveller
	for rows.Next() {
		var t models.Traveller
		if err := rows.Scan(&t.ID, &t.ProfileCipher, &t.RegisteredAt); err != nil {
			return nil, err
		}
		travellers = append(travellers, &t)
	}
	return travellers, rows.Err()
}

func (p *PostgresStore) UpdateTraveller(ctx context.Context, t *models.Traveller) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE travellers SET profile_cipher = $2 WHERE id = $1`,
		t.ID, t.ProfileCipher,
	)
	if err != nil {
		return fmt.Errorf("updating traveller: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteTraveller(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM travellers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting traveller: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Scooters ---

func (p *PostgresStore) CreateScooter(ctx context.Context, s *models.Scooter) error {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO scooters (brand, model, serial_number, charge, latitude, longitude,
		                       out_of_service, mileage, last_maintenance_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		s.Brand, s.Model, s.SerialNumber, s.Charge, s.Latitude, s.Longitude,
		s.OutOfService, s.Mileage, s.LastMaintenanceAt, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting scooter: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetScooter(ctx context.Context, id int64) (*models.Scooter, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, brand, model, serial_number, charge, latitude, longitude,
		        out_of_service, mileage, last_maintenance_at, created_at
		 FROM scooters WHERE id = $1`,
		id,
	)
	return scanScooter(row)
}

func scanScooter(row pgx.Row) (*models.Scooter, error) {
	var s models.Scooter
	err := row.Scan(&s.ID, &s.Brand, &s.Model, &s.SerialNumber, &s.Charge, &s.Latitude, &s.Longitude,
		&s.OutOfService, &s.Mileage, &s.LastMaintenanceAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStore) ListScooters(ctx context.Context) ([]*models.Scooter, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, brand, model, serial_number, charge, latitude, longitude,
		        out_of_service, mileage, last_maintenance_at, created_at
		 FROM scooters ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scooters []*models.Scooter
	for rows.Next() {
		s, err := scanScooter(rows)
		if err != nil {
			return nil, err
		}
		scooters = append(scooters, s)
	}
	return scooters, rows.Err()
}

func (p *PostgresStore) SearchScooters(ctx context.Context, term string) ([]*models.Scooter, error) {
	pattern := "%" + term + "%"
	rows, err := p.pool.Query(ctx,
		`SELECT id, brand, model, serial_number, charge, latitude, longitude,
		        out_of_service, mileage, last_maintenance_at, created_at
		 FROM scooters
		 WHERE brand ILIKE $1 OR model ILIKE $1 OR serial_number ILIKE $1 OR id::TEXT LIKE $1
		 ORDER BY id`,
		pattern,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scooters []*models.Scooter
	for rows.Next() {
		s, err := scanScooter(rows)
		if err != nil {
			return nil, err
		}
		scooters = append(scooters, s)
	}
	return scooters, rows.Err()
}

func (p *PostgresStore) UpdateScooter(ctx context.Context, s *models.Scooter) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE scooters SET brand = $2, model = $3, serial_number = $4, charge = $5,
		        latitude = $6, longitude = $7, out_of_service = $8, mileage = $9,
		        last_maintenance_at = $10
		 WHERE id = $1`,
		s.ID, s.Brand, s.Model, s.SerialNumber, s.Charge, s.Latitude, s.Longitude,
		s.OutOfService, s.Mileage, s.LastMaintenanceAt,
	)
	if err != nil {
		return fmt.Errorf("updating scooter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteScooter(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM scooters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting scooter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
