// internal/repository/license_postgres.go
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/licenseforge/licenseforge/internal/apperrors"
	"github.com/licenseforge/licenseforge/internal/models"
)

type licensePostgresRepository struct {
	db *gorm.DB
}

func NewLicenseRepository(db *gorm.DB) LicenseRepository {
	return &licensePostgresRepository{db: db}
}

func (r *licensePostgresRepository) Insert(license *models.License) error {
	if err := r.db.Create(license).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: hash collision on insert", apperrors.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to insert license: %w", err)
	}
	return nil
}

// BulkInsert writes all licenses in one transaction; a single duplicate
// rolls back the whole batch.
func (r *licensePostgresRepository) BulkInsert(licenses []*models.License) error {
	if len(licenses) == 0 {
		return nil
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, license := range licenses {
			if err := tx.Create(license).Error; err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: hash %s", apperrors.ErrDuplicateKey, license.KeyHash)
				}
				return err
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, apperrors.ErrDuplicateKey) {
		return fmt.Errorf("failed to bulk insert licenses: %w", err)
	}
	return err
}

func (r *licensePostgresRepository) FindByID(id int64) (*models.License, error) {
	var license models.License
	if err := r.db.First(&license, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: license %d", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

func (r *licensePostgresRepository) FindByHash(hash string) (*models.License, error) {
	var license models.License
	if err := r.db.Where("key_hash = ?", hash).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no license for key", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

func (r *licensePostgresRepository) Query(filter LicenseFilter) ([]models.License, int64, error) {
	query := r.db.Model(&models.License{})

	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.GeneratorID != nil {
		query = query.Where("generator_id = ?", *filter.GeneratorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	if filter.Limit > 0 {
		offset := 0
		if filter.Page > 1 {
			offset = (filter.Page - 1) * filter.Limit
		}
		query = query.Offset(offset).Limit(filter.Limit)
	}

	var licenses []models.License
	if err := query.Order("id").Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return licenses, total, nil
}

func (r *licensePostgresRepository) Update(id int64, changes map[string]interface{}) (*models.License, error) {
	result := r.db.Model(&models.License{}).Where("id = ?", id).Updates(changes)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return nil, fmt.Errorf("%w: hash collision on update", apperrors.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("failed to update license: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: license %d", apperrors.ErrNotFound, id)
	}

	return r.FindByID(id)
}

// Delete removes the license together with its activations and meta in
// one transaction. The schema carries no foreign keys, so the cascade
// happens here.
func (r *licensePostgresRepository) Delete(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.License{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete license: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: license %d", apperrors.ErrNotFound, id)
		}

		if err := tx.Where("license_id = ?", id).Delete(&models.LicenseActivation{}).Error; err != nil {
			return fmt.Errorf("failed to delete activations: %w", err)
		}
		if err := tx.Where("license_id = ?", id).Delete(&models.LicenseMeta{}).Error; err != nil {
			return fmt.Errorf("failed to delete meta: %w", err)
		}
		return nil
	})
}
