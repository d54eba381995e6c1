// internal/models/license.go
package models

import "time"

// License is one sellable/issuable key and its entitlement metadata.
// The plaintext key never hits the database: KeyCiphertext holds the
// AES-GCM sealed value for display, KeyHash the HMAC lookup digest.
type License struct {
	BaseModel
	KeyCiphertext    string        `json:"-" gorm:"type:text;not null"`
	KeyHash          string        `json:"-" gorm:"type:varchar(64);not null;uniqueIndex"`
	Status           LicenseStatus `json:"status" gorm:"type:varchar(20);default:'inactive';index"`
	OrderID          *int64        `json:"order_id" gorm:"index"`
	ProductID        *int64        `json:"product_id" gorm:"index"`
	UserID           *int64        `json:"user_id" gorm:"index"`
	GeneratorID      *int64        `json:"generator_id" gorm:"index"`
	ExpiresAt        *time.Time    `json:"expires_at"`
	ValidFor         *int          `json:"valid_for"` // days from sale, applied on delivery
	ActivationsLimit *int          `json:"activations_limit"` // nil = unlimited
	Source           LicenseSource `json:"source" gorm:"type:varchar(20);not null"`
	CreatedBy        *int64        `json:"created_by"`
	UpdatedBy        *int64        `json:"updated_by"`

	// Relationships
	Activations []LicenseActivation `json:"activations,omitempty" gorm:"foreignKey:LicenseID"`
	Meta        []LicenseMeta       `json:"meta,omitempty" gorm:"foreignKey:LicenseID"`
}

// IsExpired reports whether the license's expiry timestamp has passed.
// Informational only: the stored status is never rewritten to reflect it.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now.UTC())
}

// LicenseActivation is one recorded use of a license, revocable
// independently of the license itself. Active iff DeactivatedAt is nil.
type LicenseActivation struct {
	BaseModel
	Token         string        `json:"token" gorm:"type:varchar(64);not null;uniqueIndex"`
	LicenseID     int64         `json:"license_id" gorm:"not null;index"`
	Label         string        `json:"label" gorm:"type:varchar(255)"`
	Source        LicenseSource `json:"source" gorm:"type:varchar(20);not null"`
	IPAddress     string        `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent     string        `json:"user_agent" gorm:"type:text"`
	MetaData      JSONB         `json:"meta_data" gorm:"type:jsonb"`
	DeactivatedAt *time.Time    `json:"deactivated_at"`
}

func (a *LicenseActivation) IsActive() bool {
	return a.DeactivatedAt == nil
}

// LicenseMeta is a key/value row attached to a license; a key may carry
// multiple values.
type LicenseMeta struct {
	BaseModel
	LicenseID int64  `json:"license_id" gorm:"not null;index:idx_license_meta_key"`
	MetaKey   string `json:"meta_key" gorm:"type:varchar(255);not null;index:idx_license_meta_key"`
	MetaValue string `json:"meta_value" gorm:"type:text"`
}
