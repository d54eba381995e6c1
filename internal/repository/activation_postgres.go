// internal/repository/activation_postgres.go
package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/licenseforge/licenseforge/internal/apperrors"
	"github.com/licenseforge/licenseforge/internal/models"
)

type activationPostgresLedger struct {
	db *gorm.DB
}

func NewActivationLedger(db *gorm.DB) ActivationLedger {
	return &activationPostgresLedger{db: db}
}

// Record inserts the activation inside a transaction that first takes a
// FOR UPDATE lock on the owning license row. The lock serializes
// concurrent activations of the same license, so the count-compare-insert
// sequence cannot race past the quota.
func (l *activationPostgresLedger) Record(activation *models.LicenseActivation, limit *int) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := lockLicense(tx, activation.LicenseID); err != nil {
			return err
		}

		if limit != nil {
			active, err := countActiveTx(tx, activation.LicenseID)
			if err != nil {
				return err
			}
			if active >= int64(*limit) {
				return fmt.Errorf("%w: %d of %d activations used", apperrors.ErrQuotaExceeded, active, *limit)
			}
		}

		if err := tx.Create(activation).Error; err != nil {
			return fmt.Errorf("failed to record activation: %w", err)
		}
		return nil
	})
}

func (l *activationPostgresLedger) FindByToken(token string) (*models.LicenseActivation, error) {
	var activation models.LicenseActivation
	if err := l.db.Where("token = ?", token).First(&activation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: activation token", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &activation, nil
}

func (l *activationPostgresLedger) CountActive(licenseID int64) (int64, error) {
	return countActiveTx(l.db, licenseID)
}

func (l *activationPostgresLedger) Deactivate(token string) (*models.LicenseActivation, error) {
	activation, err := l.FindByToken(token)
	if err != nil {
		return nil, err
	}
	if activation.DeactivatedAt != nil {
		return nil, fmt.Errorf("%w: token deactivated at %s",
			apperrors.ErrAlreadyDeactivated, activation.DeactivatedAt.Format(time.RFC3339))
	}

	now := time.Now().UTC()
	if err := l.db.Model(activation).Update("deactivated_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to deactivate: %w", err)
	}
	activation.DeactivatedAt = &now
	return activation, nil
}

// Reactivate clears deactivated_at under the same license row lock used
// by Record, so it cannot push the active count over the quota.
func (l *activationPostgresLedger) Reactivate(token string, limit *int) (*models.LicenseActivation, error) {
	var activation *models.LicenseActivation

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var found models.LicenseActivation
		if err := tx.Where("token = ?", token).First(&found).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: activation token", apperrors.ErrNotFound)
			}
			return fmt.Errorf("database error: %w", err)
		}
		if found.DeactivatedAt == nil {
			// Already active, nothing to clear.
			activation = &found
			return nil
		}

		if err := lockLicense(tx, found.LicenseID); err != nil {
			return err
		}

		if limit != nil {
			active, err := countActiveTx(tx, found.LicenseID)
			if err != nil {
				return err
			}
			if active >= int64(*limit) {
				return fmt.Errorf("%w: %d of %d activations used", apperrors.ErrQuotaExceeded, active, *limit)
			}
		}

		if err := tx.Model(&found).Update("deactivated_at", nil).Error; err != nil {
			return fmt.Errorf("failed to reactivate: %w", err)
		}
		found.DeactivatedAt = nil
		activation = &found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activation, nil
}

func (l *activationPostgresLedger) ListActive(licenseID int64) ([]models.LicenseActivation, error) {
	var activations []models.LicenseActivation
	err := l.db.Where("license_id = ? AND deactivated_at IS NULL", licenseID).
		Order("id").Find(&activations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	return activations, nil
}

func (l *activationPostgresLedger) ListAll(licenseID int64) ([]models.LicenseActivation, error) {
	var activations []models.LicenseActivation
	err := l.db.Where("license_id = ?", licenseID).Order("id").Find(&activations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activations: %w", err)
	}
	return activations, nil
}

func lockLicense(tx *gorm.DB, licenseID int64) error {
	var license models.License
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&license, licenseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: license %d", apperrors.ErrNotFound, licenseID)
		}
		return fmt.Errorf("failed to lock license: %w", err)
	}
	return nil
}

func countActiveTx(tx *gorm.DB, licenseID int64) (int64, error) {
	var count int64
	err := tx.Model(&models.LicenseActivation{}).
		Where("license_id = ? AND deactivated_at IS NULL", licenseID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count activations: %w", err)
	}
	return count, nil
}
