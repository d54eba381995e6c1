// internal/repository/meta_postgres.go
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/licenseforge/licenseforge/internal/apperrors"
	"github.com/licenseforge/licenseforge/internal/models"
)

type metaPostgresRepository struct {
	db *gorm.DB
}

func NewMetaRepository(db *gorm.DB) MetaRepository {
	return &metaPostgresRepository{db: db}
}

func (r *metaPostgresRepository) Add(licenseID int64, key, value string) (*models.LicenseMeta, error) {
	meta := &models.LicenseMeta{
		LicenseID: licenseID,
		MetaKey:   key,
		MetaValue: value,
	}
	if err := r.db.Create(meta).Error; err != nil {
		return nil, fmt.Errorf("failed to add meta: %w", err)
	}
	return meta, nil
}

func (r *metaPostgresRepository) Get(licenseID int64, key string) ([]models.LicenseMeta, error) {
	var meta []models.LicenseMeta
	query := r.db.Where("license_id = ?", licenseID)
	if key != "" {
		query = query.Where("meta_key = ?", key)
	}
	if err := query.Order("id").Find(&meta).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch meta: %w", err)
	}
	return meta, nil
}

func (r *metaPostgresRepository) Update(id int64, value string) (*models.LicenseMeta, error) {
	var meta models.LicenseMeta
	if err := r.db.First(&meta, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: meta %d", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := r.db.Model(&meta).Update("meta_value", value).Error; err != nil {
		return nil, fmt.Errorf("failed to update meta: %w", err)
	}
	meta.MetaValue = value
	return &meta, nil
}

func (r *metaPostgresRepository) Delete(id int64) error {
	result := r.db.Delete(&models.LicenseMeta{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete meta: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: meta %d", apperrors.ErrNotFound, id)
	}
	return nil
}
