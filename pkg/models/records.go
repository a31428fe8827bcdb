package models

import "time"

// Traveller is a customer record. The entire profile is one probabilistically
// encrypted JSON document; only the opaque ID and registration time are
// visible at rest.
type Traveller struct {
	ID            int64
	ProfileCipher []byte
	RegisteredAt  time.Time
}

// TravellerProfile is the decrypted traveller payload. Field-format
// validation (zip/phone/license patterns) is owned by the record-management
// layer, not this core.
type TravellerProfile struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Birthday      string `json:"birthday"`
	Gender        string `json:"gender"`
	StreetName    string `json:"street_name"`
	HouseNumber   string `json:"house_number"`
	ZipCode       string `json:"zip_code"`
	City          string `json:"city"`
	Email         string `json:"email"`
	MobilePhone   string `json:"mobile_phone"`
	LicenseNumber string `json:"driving_license_number"`
}

// Scooter is a fleet vehicle. No PII, stored in the clear.
type Scooter struct {
	ID                int64      `json:"id"`
	Brand             string     `json:"brand"`
	Model             string     `json:"model"`
	SerialNumber      string     `json:"serial_number"`
	Charge            int        `json:"charge"`
	Latitude          float64    `json:"latitude"`
	Longitude         float64    `json:"longitude"`
	OutOfService      bool       `json:"out_of_service"`
	Mileage           int        `json:"mileage"`
	LastMaintenanceAt *time.Time `json:"last_maintenance_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ScooterTelemetry is the limited field set a service engineer may update.
type ScooterTelemetry struct {
	Charge            *int       `json:"charge,omitempty"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	OutOfService      *bool      `json:"out_of_service,omitempty"`
	Mileage           *int       `json:"mileage,omitempty"`
	LastMaintenanceAt *time.Time `json:"last_maintenance_at,omitempty"`
}
