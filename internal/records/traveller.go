package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/crypto"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
)

// ErrSearchTerm is returned when a search term is too short to be useful.
var ErrSearchTerm = errors.New("search term must be at least 2 characters")

// TravellerService manages customer records. The whole profile is one
// probabilistically encrypted JSON document; nothing in it is ever used as
// a lookup key. Field-format validation (zip/phone/license patterns) is
// owned by the record-management layer above this core.
type TravellerService struct {
	store storage.Store
	codec *crypto.Codec
}

// NewTravellerService creates a TravellerService.
func NewTravellerService(store storage.Store, codec *crypto.Codec) *TravellerService {
	return &TravellerService{store: store, codec: codec}
}

// Create stores a new traveller. All three staff roles hold full traveller
// CRUD.
func (s *TravellerService) Create(ctx context.Context, actorRole models.Role, profile *models.TravellerProfile) (*models.Traveller, error) {
	if !access.Allowed(actorRole, models.ActionManageTravellers) {
		return nil, access.ErrAuthorization
	}
	cipher, err := s.encryptProfile(profile)
	if err != nil {
		return nil, err
	}
	t := &models.Traveller{ProfileCipher: cipher, RegisteredAt: time.Now().UTC()}
	if err := s.store.CreateTraveller(ctx, t); err != nil {
		return nil, fmt.Errorf("storing traveller: %w", err)
	}
	return t, nil
}

// Get loads and decrypts one traveller profile. Decryption failure is fatal
// for the call; a traveller record that cannot be decrypted is never
// partially returned.
func (s *TravellerService) Get(ctx context.Context, actorRole models.Role, id int64) (*models.TravellerProfile, *models.Traveller, error) {
	if !access.Allowed(actorRole, models.ActionManageTravellers) {
		return nil, nil, access.ErrAuthorization
	}
	t, err := s.store.GetTraveller(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.decryptProfile(t.ProfileCipher)
	if err != nil {
		return nil, nil, err
	}
	return profile, t, nil
}

// List returns all traveller IDs with registration times. Profiles stay
// encrypted; callers fetch individual records for the decrypted payload.
func (s *TravellerService) List(ctx context.Context, actorRole models.Role) ([]*models.Traveller, error) {
	if !access.Allowed(actorRole, models.ActionManageTravellers) {
		return nil, access.ErrAuthorization
	}
	return s.store.ListTravellers(ctx)
}

// TravellerMatch is one search hit with its decrypted profile.
type TravellerMatch struct {
	ID           int64                    `json:"id"`
	RegisteredAt time.Time                `json:"registered_at"`
	Profile      *models.TravellerProfile `json:"profile"`
}

// Search returns travellers whose name, email, phone, license number or ID
// contains term, case-insensitively. Profiles are encrypted at rest, so
// there is no index to use: every record is decrypted and matched here.
func (s *TravellerService) Search(ctx context.Context, actorRole models.Role, term string) ([]*TravellerMatch, error) {
	if !access.Allowed(actorRole, models.ActionManageTravellers) {
		return nil, access.ErrAuthorization
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if len(term) < 2 {
		return nil, ErrSearchTerm
	}
	travellers, err := s.store.ListTravellers(ctx)
	if err != nil {
		return nil, err
	}
	var matches []*TravellerMatch
	for _, t := range travellers {
		profile, err := s.decryptProfile(t.ProfileCipher)
		if err != nil {
			return nil, err
		}
		if profileMatches(profile, t.ID, term) {
			matches = append(matches, &TravellerMatch{ID: t.ID, RegisteredAt: t.RegisteredAt, Profile: profile})
		}
	}
	return matches, nil
}

func profileMatches(p *models.TravellerProfile, id int64, term string) bool {
	for _, field := range []string{
		p.FirstName, p.LastName, p.Email, p.MobilePhone, p.LicenseNumber,
		strconv.FormatInt(id, 10),
	} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Update re-encrypts and replaces a traveller profile.
func (s *TravellerService) Update(ctx context.Context, actorRole models.Role, id int64, profile *models.TravellerProfile) error {
	if !access.Allowed(actorRole, models.ActionManageTravellers) {
		return access.ErrAuthorization
	}
	cipher, err := s.encryptProfile(profile)
	if err != nil {
		return err
	}
	return s.store.UpdateTraveller(ctx, &models.Traveller{ID: id, ProfileCipher: cipher})
}

// Delete removes a traveller record.
func (s *TravellerService) Delete(ctx context.Context, actorRole models.Role, id int64) error {
	if !access.Allowed(actorRole, models.ActionManageTravellers) {
		return access.ErrAuthorization
	}
	return s.store.DeleteTraveller(ctx, id)
}

func (s *TravellerService) encryptProfile(profile *models.TravellerProfile) ([]byte, error) {
	plaintext, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("marshaling profile: %w", err)
	}
	cipher, err := s.codec.Encrypt(plaintext, crypto.Probabilistic)
	if err != nil {
		return nil, fmt.Errorf("encrypting profile: %w", err)
	}
	return cipher, nil
}

func (s *TravellerService) decryptProfile(cipher []byte) (*models.TravellerProfile, error) {
	plaintext, err := s.codec.Decrypt(cipher, crypto.Probabilistic)
	if err != nil {
		return nil, fmt.Errorf("decrypting profile: %w", err)
	}
	var profile models.TravellerProfile
	if err := json.Unmarshal(plaintext, &profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &profile, nil
}
