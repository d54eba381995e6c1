// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Base model with common fields
type BaseModel struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums

// LicenseStatus is the stored classification of a license. Expiry is
// never written as a status; it is derived at read time from ExpiresAt.
type LicenseStatus string

const (
	LicenseStatusInactive  LicenseStatus = "inactive"
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusDelivered LicenseStatus = "delivered"
	LicenseStatusSold      LicenseStatus = "sold"
	LicenseStatusDisabled  LicenseStatus = "disabled"
)

func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseStatusInactive, LicenseStatusActive, LicenseStatusDelivered,
		LicenseStatusSold, LicenseStatusDisabled:
		return true
	}
	return false
}

// LicenseSource records how a license or activation came to exist.
type LicenseSource string

const (
	SourceGenerator LicenseSource = "generator"
	SourceImport    LicenseSource = "import"
	SourceAPI       LicenseSource = "api"
	SourceMigration LicenseSource = "migration"
	SourceWeb       LicenseSource = "web"
)

func (s LicenseSource) Valid() bool {
	switch s {
	case SourceGenerator, SourceImport, SourceAPI, SourceMigration, SourceWeb:
		return true
	}
	return false
}
