// internal/repository/repository.go
package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/licenseforge/licenseforge/internal/models"
)

// LicenseFilter narrows Query results. Nil fields are ignored.
type LicenseFilter struct {
	OrderID       *int64
	ProductID     *int64
	UserID        *int64
	GeneratorID   *int64
	Status        *models.LicenseStatus
	Source        *models.LicenseSource
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Page          int
	Limit         int
}

// LicenseRepository persists license records. The underlying store does
// not enforce foreign keys, so cascade deletion of activations and meta
// is this layer's responsibility.
type LicenseRepository interface {
	Insert(license *models.License) error
	BulkInsert(licenses []*models.License) error
	FindByID(id int64) (*models.License, error)
	FindByHash(hash string) (*models.License, error)
	Query(filter LicenseFilter) ([]models.License, int64, error)
	Update(id int64, changes map[string]interface{}) (*models.License, error)
	Delete(id int64) error
}

// ActivationLedger records activation/deactivation events per license
// and enforces the activation quota atomically.
type ActivationLedger interface {
	// Record inserts a fresh activation after re-checking the quota under
	// a lock on the owning license row.
	Record(activation *models.LicenseActivation, limit *int) error
	FindByToken(token string) (*models.LicenseActivation, error)
	CountActive(licenseID int64) (int64, error)
	Deactivate(token string) (*models.LicenseActivation, error)
	// Reactivate clears deactivated_at after re-checking the quota; limit
	// carries the owning license's current activations_limit.
	Reactivate(token string, limit *int) (*models.LicenseActivation, error)
	ListActive(licenseID int64) ([]models.LicenseActivation, error)
	ListAll(licenseID int64) ([]models.LicenseActivation, error)
}

type GeneratorRepository interface {
	Insert(generator *models.Generator) error
	FindByID(id int64) (*models.Generator, error)
	List(page, limit int) ([]models.Generator, int64, error)
	Update(id int64, changes map[string]interface{}) (*models.Generator, error)
	Delete(id int64) error
}

type MetaRepository interface {
	Add(licenseID int64, key, value string) (*models.LicenseMeta, error)
	Get(licenseID int64, key string) ([]models.LicenseMeta, error)
	Update(id int64, value string) (*models.LicenseMeta, error)
	Delete(id int64) error
}

// isUniqueViolation matches Postgres unique-constraint errors across the
// drivers gorm may sit on (pgx or lib/pq).
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
