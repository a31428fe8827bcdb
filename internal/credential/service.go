package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/crypto"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// ErrAuthentication is returned for any login failure. The message is
// deliberately generic; the attempted handle goes to the audit log, not the
// caller.
var ErrAuthentication = errors.New("invalid handle or password")

// ErrDuplicateAccount is returned when a handle is already taken.
var ErrDuplicateAccount = errors.New("account handle already exists")

// Service manages staff credentials. Passwords are stored only as bcrypt
// hashes; handles are stored as deterministic ciphertext so login lookup
// does not decrypt the whole table.
type Service struct {
	store storage.Store
	codec *crypto.Codec
}

// NewService creates a credential Service.
func NewService(store storage.Store, codec *crypto.Codec) *Service {
	return &Service{store: store, codec: codec}
}

// CreateAccount creates a staff account after verifying that requestingRole
// may manage the target role. Handle uniqueness is enforced atomically by
// the store's unique index on the handle ciphertext.
func (s *Service) CreateAccount(ctx context.Context, requestingRole models.Role, handle, password string, role models.Role, firstName, lastName string) (*models.Account, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if !access.CanManageRole(requestingRole, role) {
		return nil, access.ErrAuthorization
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	handleCipher, err := s.codec.EncryptString(handle, crypto.Deterministic)
	if err != nil {
		return nil, fmt.Errorf("encrypting handle: %w", err)
	}
	firstEnc, err := s.codec.EncryptString(firstName, crypto.Probabilistic)
	if err != nil {
		return nil, fmt.Errorf("encrypting first name: %w", err)
	}
	lastEnc, err := s.codec.EncryptString(lastName, crypto.Probabilistic)
	if err != nil {
		return nil, fmt.Errorf("encrypting last name: %w", err)
	}

	account := &models.Account{
		Handle:       handle,
		HandleCipher: handleCipher,
		PasswordHash: string(hash),
		Role:         role,
		FirstNameEnc: firstEnc,
		LastNameEnc:  lastEnc,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("storing account: %w", err)
	}
	return account, nil
}

// Verify checks a handle/password pair and returns the account on success.
// The password comparison is constant time (bcrypt). Callers must report
// both outcomes to the audit log so brute-force detection has data.
func (s *Service) Verify(ctx context.Context, handle, password string) (*models.Account, error) {
	account, err := s.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Burn a comparison so a missing handle costs the same as a
			// wrong password.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrAuthentication
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrAuthentication
	}
	return account, nil
}

// dummyHash is a bcrypt hash of an unguessable value, used to equalize
// verification time when the handle does not exist.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("fleetadmin-timing-pad"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// GetByHandle looks up an account via its deterministic handle ciphertext
// and fills in the decrypted handle.
func (s *Service) GetByHandle(ctx context.Context, handle string) (*models.Account, error) {
	handleCipher, err := s.codec.EncryptString(handle, crypto.Deterministic)
	if err != nil {
		return nil, fmt.Errorf("encrypting handle: %w", err)
	}
	account, err := s.store.GetAccountByHandleCipher(ctx, handleCipher)
	if err != nil {
		return nil, err
	}
	account.Handle = handle
	return account, nil
}

// GetByID loads an account and decrypts its handle.
func (s *Service) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	account, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	h, err := s.codec.DecryptString(account.HandleCipher, crypto.Deterministic)
	if err != nil {
		return nil, fmt.Errorf("decrypting handle: %w", err)
	}
	account.Handle = h
	return account, nil
}

// ResetPassword re-hashes and stores a new password for the target account.
// Permission-checked against the actor's role; the audit entry is the
// caller's responsibility.
func (s *Service) ResetPassword(ctx context.Context, actorRole models.Role, target *models.Account, newPassword string) error {
	if !access.CanManageRole(actorRole, target.Role) {
		return access.ErrAuthorization
	}
	return s.setPassword(ctx, target.ID, newPassword)
}

// ChangePassword lets an account owner rotate their own password after
// re-verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrAuthentication
	}
	return s.setPassword(ctx, account.ID, newPassword)
}

// UpdateProfile re-encrypts and stores new name fields for the target
// account. Owners may update their own profile; anyone else needs to
// manage the target's role.
func (s *Service) UpdateProfile(ctx context.Context, actorRole models.Role, actorID int64, target *models.Account, firstName, lastName string) error {
	if actorID != target.ID && !access.CanManageRole(actorRole, target.Role) {
		return access.ErrAuthorization
	}
	firstEnc, err := s.codec.EncryptString(firstName, crypto.Probabilistic)
	if err != nil {
		return fmt.Errorf("encrypting first name: %w", err)
	}
	lastEnc, err := s.codec.EncryptString(lastName, crypto.Probabilistic)
	if err != nil {
		return fmt.Errorf("encrypting last name: %w", err)
	}
	return s.store.UpdateAccountProfile(ctx, target.ID, firstEnc, lastEnc)
}

func (s *Service) setPassword(ctx context.Context, accountID int64, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.store.UpdateAccountPassword(ctx, accountID, string(hash))
}

// Seed creates the bootstrap super admin account if it does not exist yet.
// The identity comes from configuration, never from a literal in logic.
// Idempotent across restarts.
func (s *Service) Seed(ctx context.Context, handle, password, firstName, lastName string) (*models.Account, error) {
	if existing, err := s.GetByHandle(ctx, handle); err == nil {
		return existing, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing seed password: %w", err)
	}
	handleCipher, err := s.codec.EncryptString(handle, crypto.Deterministic)
	if err != nil {
		return nil, err
	}
	firstEnc, err := s.codec.EncryptString(firstName, crypto.Probabilistic)
	if err != nil {
		return nil, err
	}
	lastEnc, err := s.codec.EncryptString(lastName, crypto.Probabilistic)
	if err != nil {
		return nil, err
	}
	account := &models.Account{
		Handle:       handle,
		HandleCipher: handleCipher,
		PasswordHash: string(hash),
		Role:         models.RoleSuperAdmin,
		FirstNameEnc: firstEnc,
		LastNameEnc:  lastEnc,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Lost a race with a concurrent seed; re-read.
			return s.GetByHandle(ctx, handle)
		}
		return nil, fmt.Errorf("seeding super admin: %w", err)
	}
	return account, nil
}
