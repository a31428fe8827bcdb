package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/storage"
	"github.com/org/fleetadmin/pkg/models"
)

// ErrDuplicateSerial is returned when a scooter serial number is taken.
var ErrDuplicateSerial = errors.New("scooter serial number already exists")

// ScooterService manages fleet vehicles. Creation and deletion require
// admin rights; the limited telemetry fields (charge, location, service
// status, mileage, maintenance date) are updatable by every staff role
// including service engineers.
type ScooterService struct {
	store storage.Store
}

// NewScooterService creates a ScooterService.
func NewScooterService(store storage.Store) *ScooterService {
	return &ScooterService{store: store}
}

// Create registers a new scooter.
func (s *ScooterService) Create(ctx context.Context, actorRole models.Role, scooter *models.Scooter) error {
	if !access.Allowed(actorRole, models.ActionManageScooters) {
		return access.ErrAuthorization
	}
	scooter.CreatedAt = time.Now().UTC()
	if err := s.store.CreateScooter(ctx, scooter); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrDuplicateSerial
		}
		return fmt.Errorf("storing scooter: %w", err)
	}
	return nil
}

// Get returns one scooter. Viewing requires no more than the telemetry
// permission, which every staff role holds.
func (s *ScooterService) Get(ctx context.Context, actorRole models.Role, id int64) (*models.Scooter, error) {
	if !access.Allowed(actorRole, models.ActionUpdateScooterTelemetry) {
		return nil, access.ErrAuthorization
	}
	return s.store.GetScooter(ctx, id)
}

// List returns the whole fleet.
func (s *ScooterService) List(ctx context.Context, actorRole models.Role) ([]*models.Scooter, error) {
	if !access.Allowed(actorRole, models.ActionUpdateScooterTelemetry) {
		return nil, access.ErrAuthorization
	}
	return s.store.ListScooters(ctx)
}

// Search filters the fleet by a substring of brand, model, serial number
// or ID. Scooter columns hold no PII and sit in the clear, so matching
// happens in the store.
func (s *ScooterService) Search(ctx context.Context, actorRole models.Role, term string) ([]*models.Scooter, error) {
	if !access.Allowed(actorRole, models.ActionUpdateScooterTelemetry) {
		return nil, access.ErrAuthorization
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if len(term) < 2 {
		return nil, ErrSearchTerm
	}
	return s.store.SearchScooters(ctx, term)
}

// Update replaces every editable field of a scooter. Admin only; service
// engineers go through UpdateTelemetry.
func (s *ScooterService) Update(ctx context.Context, actorRole models.Role, scooter *models.Scooter) error {
	if !access.Allowed(actorRole, models.ActionManageScooters) {
		return access.ErrAuthorization
	}
	return s.store.UpdateScooter(ctx, scooter)
}

// UpdateTelemetry applies the provided subset of telemetry fields to a
// scooter. Nil fields are left untouched.
func (s *ScooterService) UpdateTelemetry(ctx context.Context, actorRole models.Role, id int64, tel *models.ScooterTelemetry) (*models.Scooter, error) {
	if !access.Allowed(actorRole, models.ActionUpdateScooterTelemetry) {
		return nil, access.ErrAuthorization
	}
	scooter, err := s.store.GetScooter(ctx, id)
	if err != nil {
		return nil, err
	}
	if tel.Charge != nil {
		scooter.Charge = *tel.Charge
	}
	if tel.Latitude != nil {
		scooter.Latitude = *tel.Latitude
	}
	if tel.Longitude != nil {
		scooter.Longitude = *tel.Longitude
	}
	if tel.OutOfService != nil {
		scooter.OutOfService = *tel.OutOfService
	}
	if tel.Mileage != nil {
		scooter.Mileage = *tel.Mileage
	}
	if tel.LastMaintenanceAt != nil {
		scooter.LastMaintenanceAt = tel.LastMaintenanceAt
	}
	if err := s.store.UpdateScooter(ctx, scooter); err != nil {
		return nil, err
	}
	return scooter, nil
}

// Delete decommissions a scooter.
func (s *ScooterService) Delete(ctx context.Context, actorRole models.Role, id int64) error {
	if !access.Allowed(actorRole, models.ActionManageScooters) {
		return access.ErrAuthorization
	}
	return s.store.DeleteScooter(ctx, id)
}
