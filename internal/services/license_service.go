// internal/services/license_service.go
package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/licenseforge/licenseforge/internal/apperrors"
	"github.com/licenseforge/licenseforge/internal/crypto"
	"github.com/licenseforge/licenseforge/internal/events"
	"github.com/licenseforge/licenseforge/internal/keygen"
	"github.com/licenseforge/licenseforge/internal/models"
	"github.com/licenseforge/licenseforge/internal/repository"
	"github.com/licenseforge/licenseforge/internal/utils"
)

// Bounded retry for bulk generation: attempts never exceed the requested
// count times this multiplier before GenerationExhausted surfaces.
const generationAttemptsMultiplier = 10

type LicenseService struct {
	licenses   repository.LicenseRepository
	ledger     repository.ActivationLedger
	generators repository.GeneratorRepository
	meta       repository.MetaRepository
	cryptoStr  *crypto.Store
	dispatcher *events.Dispatcher
}

type CreateLicenseRequest struct {
	Key              string                `json:"key,omitempty"`
	GeneratorID      *int64                `json:"generator_id,omitempty"`
	OrderID          *int64                `json:"order_id,omitempty"`
	ProductID        *int64                `json:"product_id,omitempty"`
	UserID           *int64                `json:"user_id,omitempty"`
	Status           models.LicenseStatus  `json:"status,omitempty"`
	ExpiresAt        *time.Time            `json:"expires_at,omitempty"`
	ValidFor         *int                  `json:"valid_for,omitempty"`
	ActivationsLimit *int                  `json:"activations_limit,omitempty"`
	Source           models.LicenseSource  `json:"source,omitempty"`
	CreatedBy        *int64                `json:"-"`
}

type GenerateLicensesRequest struct {
	Count            int                  `json:"count" validate:"required,gt=0"`
	GeneratorID      int64                `json:"generator_id" validate:"required"`
	OrderID          *int64               `json:"order_id,omitempty"`
	ProductID        *int64               `json:"product_id,omitempty"`
	UserID           *int64               `json:"user_id,omitempty"`
	Status           models.LicenseStatus `json:"status,omitempty"`
	ActivationsLimit *int                 `json:"activations_limit,omitempty"`
	CreatedBy        *int64               `json:"-"`
}

type ImportLicensesRequest struct {
	Keys             []string             `json:"keys" validate:"required,min=1,dive,required"`
	OrderID          *int64               `json:"order_id,omitempty"`
	ProductID        *int64               `json:"product_id,omitempty"`
	UserID           *int64               `json:"user_id,omitempty"`
	Status           models.LicenseStatus `json:"status,omitempty"`
	ActivationsLimit *int                 `json:"activations_limit,omitempty"`
	ValidFor         *int                 `json:"valid_for,omitempty"`
	CreatedBy        *int64               `json:"-"`
}

// UpdateLicenseRequest carries partial updates; nil pointers leave the
// field alone. The clear flags reset expiry and the activation quota
// back to NULL (no expiry, unlimited), which a pointer cannot express.
type UpdateLicenseRequest struct {
	OrderID               *int64                `json:"order_id,omitempty"`
	ProductID             *int64                `json:"product_id,omitempty"`
	UserID                *int64                `json:"user_id,omitempty"`
	Status                *models.LicenseStatus `json:"status,omitempty"`
	ExpiresAt             *time.Time            `json:"expires_at,omitempty"`
	ValidFor              *int                  `json:"valid_for,omitempty"`
	ActivationsLimit      *int                  `json:"activations_limit,omitempty"`
	ClearExpiresAt        bool                  `json:"clear_expires_at,omitempty"`
	ClearActivationsLimit bool                  `json:"clear_activations_limit,omitempty"`
	UpdatedBy             *int64                `json:"-"`
}

type ActivateRequest struct {
	Label     string               `json:"label,omitempty"`
	Source    models.LicenseSource `json:"source,omitempty"`
	IPAddress string               `json:"-"`
	UserAgent string               `json:"-"`
	MetaData  models.JSONB         `json:"meta_data,omitempty"`
}

func NewLicenseService(
	licenses repository.LicenseRepository,
	ledger repository.ActivationLedger,
	generators repository.GeneratorRepository,
	meta repository.MetaRepository,
	cryptoStore *crypto.Store,
	dispatcher *events.Dispatcher,
) *LicenseService {
	return &LicenseService{
		licenses:   licenses,
		ledger:     ledger,
		generators: generators,
		meta:       meta,
		cryptoStr:  cryptoStore,
		dispatcher: dispatcher,
	}
}

// Create stores a single license. The key is either caller-supplied
// plaintext (rejected when its hash already exists) or, when absent,
// produced from the referenced generator.
func (s *LicenseService) Create(req *CreateLicenseRequest) (*models.License, error) {
	key := req.Key
	source := req.Source
	if source == "" {
		source = models.SourceAPI
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", apperrors.ErrInvalidSpec, source)
	}

	status := req.Status
	if status == "" {
		status = models.LicenseStatusInactive
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidSpec, status)
	}

	license := &models.License{
		Status:           status,
		OrderID:          req.OrderID,
		ProductID:        req.ProductID,
		UserID:           req.UserID,
		GeneratorID:      req.GeneratorID,
		ExpiresAt:        req.ExpiresAt,
		ValidFor:         req.ValidFor,
		ActivationsLimit: req.ActivationsLimit,
		Source:           source,
		CreatedBy:        req.CreatedBy,
	}

	if key == "" {
		if req.GeneratorID == nil {
			return nil, fmt.Errorf("%w: either a key or a generator id is required", apperrors.ErrInvalidSpec)
		}
		generator, err := s.generators.FindByID(*req.GeneratorID)
		if err != nil {
			return nil, err
		}
		keys, err := s.generateUnique(1, generatorSpec(generator), nil)
		if err != nil {
			return nil, err
		}
		key = keys[0]
		license.Source = models.SourceGenerator
		applyGeneratorDefaults(license, generator)
	} else if _, err := s.licenses.FindByHash(s.cryptoStr.Hash(key)); err == nil {
		return nil, fmt.Errorf("%w: key is already stored", apperrors.ErrDuplicateKey)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if err := s.sealKey(license, key); err != nil {
		return nil, err
	}
	if err := s.licenses.Insert(license); err != nil {
		return nil, err
	}

	s.dispatcher.LicenseCreated(license)
	return license, nil
}

// Generate bulk-creates count licenses from a generator spec. Candidates
// colliding with stored hashes are regenerated; retry is bounded and
// exhaustion surfaces as GenerationExhausted, never a short result.
func (s *LicenseService) Generate(req *GenerateLicensesRequest) ([]*models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSpec, err)
	}

	generator, err := s.generators.FindByID(req.GeneratorID)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.LicenseStatusInactive
	}

	keys, err := s.generateUnique(req.Count, generatorSpec(generator), nil)
	if err != nil {
		return nil, err
	}

	licenses := make([]*models.License, 0, len(keys))
	for _, key := range keys {
		license := &models.License{
			Status:           status,
			OrderID:          req.OrderID,
			ProductID:        req.ProductID,
			UserID:           req.UserID,
			GeneratorID:      &generator.ID,
			ActivationsLimit: req.ActivationsLimit,
			Source:           models.SourceGenerator,
			CreatedBy:        req.CreatedBy,
		}
		applyGeneratorDefaults(license, generator)
		if err := s.sealKey(license, key); err != nil {
			return nil, err
		}
		licenses = append(licenses, license)
	}

	if err := s.licenses.BulkInsert(licenses); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"generator_id": generator.ID,
		"count":        len(licenses),
	}).Info("Generated licenses")

	s.dispatcher.LicensesGenerated(licenses)
	return licenses, nil
}

// ImportKeys stores externally supplied plaintext keys as one
// all-or-nothing batch. The first colliding key aborts the whole import
// and is named in the returned error.
func (s *LicenseService) ImportKeys(req *ImportLicensesRequest) ([]*models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSpec, err)
	}

	status := req.Status
	if status == "" {
		status = models.LicenseStatusInactive
	}

	seen := make(map[string]struct{}, len(req.Keys))
	licenses := make([]*models.License, 0, len(req.Keys))
	for _, key := range req.Keys {
		hash := s.cryptoStr.Hash(key)
		if _, dup := seen[hash]; dup {
			return nil, fmt.Errorf("%w: key %q appears twice in the import", apperrors.ErrDuplicateKey, key)
		}
		seen[hash] = struct{}{}

		if _, err := s.licenses.FindByHash(hash); err == nil {
			return nil, fmt.Errorf("%w: key %q is already stored", apperrors.ErrDuplicateKey, key)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}

		license := &models.License{
			Status:           status,
			OrderID:          req.OrderID,
			ProductID:        req.ProductID,
			UserID:           req.UserID,
			ValidFor:         req.ValidFor,
			ActivationsLimit: req.ActivationsLimit,
			Source:           models.SourceImport,
			CreatedBy:        req.CreatedBy,
		}
		if err := s.sealKey(license, key); err != nil {
			return nil, err
		}
		licenses = append(licenses, license)
	}

	if err := s.licenses.BulkInsert(licenses); err != nil {
		return nil, err
	}

	s.dispatcher.LicensesGenerated(licenses)
	return licenses, nil
}

// Find resolves a license by numeric id or by plaintext key.
func (s *LicenseService) Find(idOrKey string) (*models.License, error) {
	if id, err := strconv.ParseInt(idOrKey, 10, 64); err == nil {
		return s.licenses.FindByID(id)
	}
	return s.licenses.FindByHash(s.cryptoStr.Hash(idOrKey))
}

func (s *LicenseService) FindByKey(key string) (*models.License, error) {
	return s.licenses.FindByHash(s.cryptoStr.Hash(key))
}

// RevealKey decrypts the stored key for display. A DecryptionFailed
// result leaves the license usable; callers show a placeholder.
func (s *LicenseService) RevealKey(license *models.License) (string, error) {
	return s.cryptoStr.Decrypt(license.KeyCiphertext)
}

func (s *LicenseService) Query(filter repository.LicenseFilter) ([]models.License, int64, error) {
	return s.licenses.Query(filter)
}

// Update applies a partial update. Lowering activations_limit below the
// current active count is allowed: existing activations stay, new ones
// are blocked.
func (s *LicenseService) Update(id int64, req *UpdateLicenseRequest) (*models.License, error) {
	changes := map[string]interface{}{}
	if req.OrderID != nil {
		changes["order_id"] = *req.OrderID
	}
	if req.ProductID != nil {
		changes["product_id"] = *req.ProductID
	}
	if req.UserID != nil {
		changes["user_id"] = *req.UserID
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrInvalidSpec, *req.Status)
		}
		changes["status"] = *req.Status
	}
	if req.ExpiresAt != nil {
		changes["expires_at"] = *req.ExpiresAt
	}
	if req.ValidFor != nil {
		changes["valid_for"] = *req.ValidFor
	}
	if req.ActivationsLimit != nil {
		changes["activations_limit"] = *req.ActivationsLimit
	}
	if req.ClearExpiresAt {
		changes["expires_at"] = nil
	}
	if req.ClearActivationsLimit {
		changes["activations_limit"] = nil
	}
	if req.UpdatedBy != nil {
		changes["updated_by"] = *req.UpdatedBy
	}
	if len(changes) == 0 {
		return s.licenses.FindByID(id)
	}

	license, err := s.licenses.Update(id, changes)
	if err != nil {
		return nil, err
	}

	s.dispatcher.LicenseUpdated(license)
	return license, nil
}

// Delete hard-deletes the license; its activations and meta go with it.
func (s *LicenseService) Delete(id int64) error {
	if err := s.licenses.Delete(id); err != nil {
		return err
	}
	s.dispatcher.LicenseDeleted(id)
	return nil
}

// Activate records a new activation for the license identified by its
// plaintext key. The quota check runs atomically against concurrent
// activations inside the ledger.
func (s *LicenseService) Activate(key string, req *ActivateRequest) (*models.LicenseActivation, error) {
	license, err := s.FindByKey(key)
	if err != nil {
		return nil, err
	}
	if license.Status == models.LicenseStatusDisabled {
		return nil, fmt.Errorf("%w: license is disabled", apperrors.ErrNotFound)
	}

	source := req.Source
	if source == "" {
		source = models.SourceAPI
	}

	token, err := newActivationToken()
	if err != nil {
		return nil, err
	}

	activation := &models.LicenseActivation{
		Token:     token,
		LicenseID: license.ID,
		Label:     req.Label,
		Source:    source,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		MetaData:  req.MetaData,
	}

	if err := s.ledger.Record(activation, license.ActivationsLimit); err != nil {
		return nil, err
	}

	s.dispatcher.LicenseActivated(license, activation)
	return activation, nil
}

// Deactivate marks the activation inactive. A second call on the same
// token fails AlreadyDeactivated so callers can distinguish a retry.
func (s *LicenseService) Deactivate(token string) (*models.LicenseActivation, error) {
	activation, err := s.ledger.Deactivate(token)
	if err != nil {
		return nil, err
	}

	if license, findErr := s.licenses.FindByID(activation.LicenseID); findErr == nil {
		s.dispatcher.LicenseDeactivated(license, activation)
	}
	return activation, nil
}

// Reactivate clears a deactivation, re-checking the quota first.
func (s *LicenseService) Reactivate(token string) (*models.LicenseActivation, error) {
	activation, err := s.ledger.FindByToken(token)
	if err != nil {
		return nil, err
	}
	license, err := s.licenses.FindByID(activation.LicenseID)
	if err != nil {
		return nil, err
	}

	reactivated, err := s.ledger.Reactivate(token, license.ActivationsLimit)
	if err != nil {
		return nil, err
	}

	s.dispatcher.LicenseActivated(license, reactivated)
	return reactivated, nil
}

func (s *LicenseService) CountActive(licenseID int64) (int64, error) {
	return s.ledger.CountActive(licenseID)
}

func (s *LicenseService) ListActivations(licenseID int64, activeOnly bool) ([]models.LicenseActivation, error) {
	if activeOnly {
		return s.ledger.ListActive(licenseID)
	}
	return s.ledger.ListAll(licenseID)
}

// Meta pass-throughs

func (s *LicenseService) AddMeta(licenseID int64, key, value string) (*models.LicenseMeta, error) {
	if _, err := s.licenses.FindByID(licenseID); err != nil {
		return nil, err
	}
	return s.meta.Add(licenseID, key, value)
}

func (s *LicenseService) GetMeta(licenseID int64, key string) ([]models.LicenseMeta, error) {
	return s.meta.Get(licenseID, key)
}

func (s *LicenseService) UpdateMeta(id int64, value string) (*models.LicenseMeta, error) {
	return s.meta.Update(id, value)
}

func (s *LicenseService) DeleteMeta(id int64) error {
	return s.meta.Delete(id)
}

// generateUnique produces count key strings whose hashes exist neither
// in the store nor in the extra set. Attempts are bounded.
func (s *LicenseService) generateUnique(count int, spec keygen.Spec, extra map[string]struct{}) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", apperrors.ErrInvalidSpec)
	}

	maxAttempts := count * generationAttemptsMultiplier
	taken := make(map[string]struct{}, count)
	for hash := range extra {
		taken[hash] = struct{}{}
	}

	keys := make([]string, 0, count)
	for attempts := 0; len(keys) < count; {
		remaining := count - len(keys)
		candidates, err := keygen.Generate(remaining, spec)
		if err != nil {
			return nil, err
		}

		for _, candidate := range candidates {
			attempts++
			if attempts > maxAttempts {
				return nil, fmt.Errorf("%w: %d unique keys after %d attempts, wanted %d",
					apperrors.ErrGenerationExhausted, len(keys), maxAttempts, count)
			}

			hash := s.cryptoStr.Hash(candidate)
			if _, dup := taken[hash]; dup {
				continue
			}
			if _, err := s.licenses.FindByHash(hash); err == nil {
				continue
			} else if !errors.Is(err, apperrors.ErrNotFound) {
				return nil, err
			}

			taken[hash] = struct{}{}
			keys = append(keys, candidate)
		}

		if attempts >= maxAttempts && len(keys) < count {
			return nil, fmt.Errorf("%w: %d unique keys after %d attempts, wanted %d",
				apperrors.ErrGenerationExhausted, len(keys), maxAttempts, count)
		}
	}

	return keys, nil
}

func (s *LicenseService) sealKey(license *models.License, key string) error {
	ciphertext, err := s.cryptoStr.Encrypt(key)
	if err != nil {
		return err
	}
	license.KeyCiphertext = ciphertext
	license.KeyHash = s.cryptoStr.Hash(key)
	return nil
}

func generatorSpec(generator *models.Generator) keygen.Spec {
	return keygen.Spec{
		Charset:     generator.Charset,
		Chunks:      generator.Chunks,
		ChunkLength: generator.ChunkLength,
		Separator:   generator.Separator,
		Prefix:      generator.Prefix,
		Suffix:      generator.Suffix,
	}
}

func applyGeneratorDefaults(license *models.License, generator *models.Generator) {
	if license.ActivationsLimit == nil && generator.ActivationsLimit != nil {
		limit := *generator.ActivationsLimit
		license.ActivationsLimit = &limit
	}
	if license.ValidFor == nil && generator.ExpiresIn != nil {
		days := *generator.ExpiresIn
		license.ValidFor = &days
	}
}

// newActivationToken returns a 160-bit random hex token, independent of
// the license key material.
func newActivationToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}
	return hex.EncodeToString(b), nil
}
