// internal/repository/generator_postgres.go
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/licenseforge/licenseforge/internal/apperrors"
	"github.com/licenseforge/licenseforge/internal/models"
)

type generatorPostgresRepository struct {
	db *gorm.DB
}

func NewGeneratorRepository(db *gorm.DB) GeneratorRepository {
	return &generatorPostgresRepository{db: db}
}

func (r *generatorPostgresRepository) Insert(generator *models.Generator) error {
	if err := r.db.Create(generator).Error; err != nil {
		return fmt.Errorf("failed to insert generator: %w", err)
	}
	return nil
}

func (r *generatorPostgresRepository) FindByID(id int64) (*models.Generator, error) {
	var generator models.Generator
	if err := r.db.First(&generator, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: generator %d", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &generator, nil
}

func (r *generatorPostgresRepository) List(page, limit int) ([]models.Generator, int64, error) {
	var total int64
	if err := r.db.Model(&models.Generator{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count generators: %w", err)
	}

	query := r.db.Order("id")
	if limit > 0 {
		offset := 0
		if page > 1 {
			offset = (page - 1) * limit
		}
		query = query.Offset(offset).Limit(limit)
	}

	var generators []models.Generator
	if err := query.Find(&generators).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch generators: %w", err)
	}
	return generators, total, nil
}

func (r *generatorPostgresRepository) Update(id int64, changes map[string]interface{}) (*models.Generator, error) {
	result := r.db.Model(&models.Generator{}).Where("id = ?", id).Updates(changes)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update generator: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: generator %d", apperrors.ErrNotFound, id)
	}
	return r.FindByID(id)
}

// Delete removes the generator only. Licenses issued from it keep their
// generator_id reference; generation history is not rewritten.
func (r *generatorPostgresRepository) Delete(id int64) error {
	result := r.db.Delete(&models.Generator{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete generator: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: generator %d", apperrors.ErrNotFound, id)
	}
	return nil
}
