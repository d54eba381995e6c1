// Package memory holds in-memory implementations of the repository
// interfaces. They back the service and handler tests and mirror the
// postgres implementations' error contract.
package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/licenseforge/licenseforge/internal/apperrors"
	"github.com/licenseforge/licenseforge/internal/models"
	"github.com/licenseforge/licenseforge/internal/repository"
)

type LicenseRepo struct {
	mtx    sync.Mutex
	nextID int64
	byID   map[int64]*models.License
	byHash map[string]int64
	ledger *Ledger
	meta   *MetaRepo
}

func NewLicenseRepo() *LicenseRepo {
	return &LicenseRepo{
		byID:   make(map[int64]*models.License),
		byHash: make(map[string]int64),
	}
}

// CascadeTo wires the ledger and meta stores so Delete removes a
// license's activations and metadata with it, matching the postgres
// repository's transactional cascade.
func (r *LicenseRepo) CascadeTo(ledger *Ledger, meta *MetaRepo) {
	r.ledger = ledger
	r.meta = meta
}

func (r *LicenseRepo) insertLocked(license *models.License) error {
	if _, dup := r.byHash[license.KeyHash]; dup {
		return fmt.Errorf("%w: key hash collision", apperrors.ErrDuplicateKey)
	}
	r.nextID++
	license.ID = r.nextID
	license.CreatedAt = time.Now()
	license.UpdatedAt = license.CreatedAt
	stored := *license
	r.byID[license.ID] = &stored
	r.byHash[license.KeyHash] = license.ID
	return nil
}

func (r *LicenseRepo) Insert(license *models.License) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.insertLocked(license)
}

func (r *LicenseRepo) BulkInsert(licenses []*models.License) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	inserted := make([]*models.License, 0, len(licenses))
	for _, license := range licenses {
		if err := r.insertLocked(license); err != nil {
			for _, l := range inserted {
				delete(r.byHash, l.KeyHash)
				delete(r.byID, l.ID)
			}
			return err
		}
		inserted = append(inserted, license)
	}
	return nil
}

func (r *LicenseRepo) FindByID(id int64) (*models.License, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	license, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: license %d", apperrors.ErrNotFound, id)
	}
	copied := *license
	return &copied, nil
}

func (r *LicenseRepo) FindByHash(hash string) (*models.License, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	id, ok := r.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("%w: no license for hash", apperrors.ErrNotFound)
	}
	copied := *r.byID[id]
	return &copied, nil
}

func (r *LicenseRepo) Query(filter repository.LicenseFilter) ([]models.License, int64, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	var out []models.License
	for id := int64(1); id <= r.nextID; id++ {
		license, ok := r.byID[id]
		if !ok {
			continue
		}
		if filter.OrderID != nil && (license.OrderID == nil || *license.OrderID != *filter.OrderID) {
			continue
		}
		if filter.ProductID != nil && (license.ProductID == nil || *license.ProductID != *filter.ProductID) {
			continue
		}
		if filter.UserID != nil && (license.UserID == nil || *license.UserID != *filter.UserID) {
			continue
		}
		if filter.GeneratorID != nil && (license.GeneratorID == nil || *license.GeneratorID != *filter.GeneratorID) {
			continue
		}
		if filter.Status != nil && license.Status != *filter.Status {
			continue
		}
		if filter.Source != nil && license.Source != *filter.Source {
			continue
		}
		if filter.CreatedAfter != nil && license.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && license.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		out = append(out, *license)
	}

	total := int64(len(out))
	if filter.Page > 0 && filter.Limit > 0 {
		start := (filter.Page - 1) * filter.Limit
		if start >= len(out) {
			return nil, total, nil
		}
		end := start + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (r *LicenseRepo) Update(id int64, changes map[string]interface{}) (*models.License, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	license, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: license %d", apperrors.ErrNotFound, id)
	}

	for column, value := range changes {
		switch column {
		case "order_id":
			v := value.(int64)
			license.OrderID = &v
		case "product_id":
			v := value.(int64)
			license.ProductID = &v
		case "user_id":
			v := value.(int64)
			license.UserID = &v
		case "status":
			license.Status = value.(models.LicenseStatus)
		case "expires_at":
			if value == nil {
				license.ExpiresAt = nil
			} else {
				v := value.(time.Time)
				license.ExpiresAt = &v
			}
		case "valid_for":
			v := value.(int)
			license.ValidFor = &v
		case "activations_limit":
			if value == nil {
				license.ActivationsLimit = nil
			} else {
				v := value.(int)
				license.ActivationsLimit = &v
			}
		case "updated_by":
			v := value.(int64)
			license.UpdatedBy = &v
		}
	}
	license.UpdatedAt = time.Now()
	copied := *license
	return &copied, nil
}

func (r *LicenseRepo) Delete(id int64) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	license, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: license %d", apperrors.ErrNotFound, id)
	}
	delete(r.byHash, license.KeyHash)
	delete(r.byID, id)

	if r.ledger != nil {
		r.ledger.purgeLicense(id)
	}
	if r.meta != nil {
		r.meta.purgeLicense(id)
	}
	return nil
}

type Ledger struct {
	mtx     sync.Mutex
	nextID  int64
	byToken map[string]*models.LicenseActivation
}

func NewLedger() *Ledger {
	return &Ledger{byToken: make(map[string]*models.LicenseActivation)}
}

func (l *Ledger) countActiveLocked(licenseID int64) int64 {
	var n int64
	for _, a := range l.byToken {
		if a.LicenseID == licenseID && a.DeactivatedAt == nil {
			n++
		}
	}
	return n
}

func (l *Ledger) Record(activation *models.LicenseActivation, limit *int) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if limit != nil && l.countActiveLocked(activation.LicenseID) >= int64(*limit) {
		return fmt.Errorf("%w: limit %d reached", apperrors.ErrQuotaExceeded, *limit)
	}

	l.nextID++
	activation.ID = l.nextID
	activation.CreatedAt = time.Now()
	stored := *activation
	l.byToken[activation.Token] = &stored
	return nil
}

func (l *Ledger) FindByToken(token string) (*models.LicenseActivation, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	activation, ok := l.byToken[token]
	if !ok {
		return nil, fmt.Errorf("%w: activation %s", apperrors.ErrNotFound, token)
	}
	copied := *activation
	return &copied, nil
}

func (l *Ledger) CountActive(licenseID int64) (int64, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.countActiveLocked(licenseID), nil
}

func (l *Ledger) Deactivate(token string) (*models.LicenseActivation, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	activation, ok := l.byToken[token]
	if !ok {
		return nil, fmt.Errorf("%w: activation %s", apperrors.ErrNotFound, token)
	}
	if activation.DeactivatedAt != nil {
		return nil, fmt.Errorf("%w: activation %s", apperrors.ErrAlreadyDeactivated, token)
	}
	now := time.Now()
	activation.DeactivatedAt = &now
	copied := *activation
	return &copied, nil
}

func (l *Ledger) Reactivate(token string, limit *int) (*models.LicenseActivation, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	activation, ok := l.byToken[token]
	if !ok {
		return nil, fmt.Errorf("%w: activation %s", apperrors.ErrNotFound, token)
	}
	if activation.DeactivatedAt == nil {
		copied := *activation
		return &copied, nil
	}
	if limit != nil && l.countActiveLocked(activation.LicenseID) >= int64(*limit) {
		return nil, fmt.Errorf("%w: limit %d reached", apperrors.ErrQuotaExceeded, *limit)
	}
	activation.DeactivatedAt = nil
	copied := *activation
	return &copied, nil
}

func (l *Ledger) purgeLicense(licenseID int64) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	for token, a := range l.byToken {
		if a.LicenseID == licenseID {
			delete(l.byToken, token)
		}
	}
}

func (l *Ledger) ListActive(licenseID int64) ([]models.LicenseActivation, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	var out []models.LicenseActivation
	for _, a := range l.byToken {
		if a.LicenseID == licenseID && a.DeactivatedAt == nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (l *Ledger) ListAll(licenseID int64) ([]models.LicenseActivation, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	var out []models.LicenseActivation
	for _, a := range l.byToken {
		if a.LicenseID == licenseID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type GeneratorRepo struct {
	mtx    sync.Mutex
	nextID int64
	byID   map[int64]*models.Generator
}

func NewGeneratorRepo() *GeneratorRepo {
	return &GeneratorRepo{byID: make(map[int64]*models.Generator)}
}

func (r *GeneratorRepo) Insert(generator *models.Generator) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.nextID++
	generator.ID = r.nextID
	generator.CreatedAt = time.Now()
	generator.UpdatedAt = generator.CreatedAt
	stored := *generator
	r.byID[generator.ID] = &stored
	return nil
}

func (r *GeneratorRepo) FindByID(id int64) (*models.Generator, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	generator, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: generator %d", apperrors.ErrNotFound, id)
	}
	copied := *generator
	return &copied, nil
}

func (r *GeneratorRepo) List(page, limit int) ([]models.Generator, int64, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	var all []models.Generator
	for id := int64(1); id <= r.nextID; id++ {
		if g, ok := r.byID[id]; ok {
			all = append(all, *g)
		}
	}

	total := int64(len(all))
	if page > 0 && limit > 0 {
		start := (page - 1) * limit
		if start >= len(all) {
			return nil, total, nil
		}
		end := start + limit
		if end > len(all) {
			end = len(all)
		}
		all = all[start:end]
	}
	return all, total, nil
}

func (r *GeneratorRepo) Update(id int64, changes map[string]interface{}) (*models.Generator, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	generator, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: generator %d", apperrors.ErrNotFound, id)
	}
	for column, value := range changes {
		switch column {
		case "name":
			generator.Name = value.(string)
		case "charset":
			generator.Charset = value.(string)
		case "chunks":
			generator.Chunks = value.(int)
		case "chunk_length":
			generator.ChunkLength = value.(int)
		case "separator":
			generator.Separator = value.(string)
		case "prefix":
			generator.Prefix = value.(string)
		case "suffix":
			generator.Suffix = value.(string)
		case "activations_limit":
			v := value.(int)
			generator.ActivationsLimit = &v
		case "expires_in":
			v := value.(int)
			generator.ExpiresIn = &v
		case "updated_by":
			v := value.(int64)
			generator.UpdatedBy = &v
		}
	}
	generator.UpdatedAt = time.Now()
	copied := *generator
	return &copied, nil
}

func (r *GeneratorRepo) Delete(id int64) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: generator %d", apperrors.ErrNotFound, id)
	}
	delete(r.byID, id)
	return nil
}

type MetaRepo struct {
	mtx    sync.Mutex
	nextID int64
	byID   map[int64]*models.LicenseMeta
}

func NewMetaRepo() *MetaRepo {
	return &MetaRepo{byID: make(map[int64]*models.LicenseMeta)}
}

func (r *MetaRepo) Add(licenseID int64, key, value string) (*models.LicenseMeta, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.nextID++
	meta := &models.LicenseMeta{LicenseID: licenseID, MetaKey: key, MetaValue: value}
	meta.ID = r.nextID
	meta.CreatedAt = time.Now()
	r.byID[meta.ID] = meta
	copied := *meta
	return &copied, nil
}

func (r *MetaRepo) Get(licenseID int64, key string) ([]models.LicenseMeta, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	var out []models.LicenseMeta
	for id := int64(1); id <= r.nextID; id++ {
		meta, ok := r.byID[id]
		if !ok || meta.LicenseID != licenseID {
			continue
		}
		if key != "" && meta.MetaKey != key {
			continue
		}
		out = append(out, *meta)
	}
	return out, nil
}

func (r *MetaRepo) purgeLicense(licenseID int64) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for id, meta := range r.byID {
		if meta.LicenseID == licenseID {
			delete(r.byID, id)
		}
	}
}

func (r *MetaRepo) Update(id int64, value string) (*models.LicenseMeta, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	meta, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: meta %d", apperrors.ErrNotFound, id)
	}
	meta.MetaValue = value
	copied := *meta
	return &copied, nil
}

func (r *MetaRepo) Delete(id int64) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("%w: meta %d", apperrors.ErrNotFound, id)
	}
	delete(r.byID, id)
	return nil
}
