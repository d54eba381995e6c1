// internal/services/fakes_test.go
package services

import (
	"sync"

	"github.com/licenseforge/licenseforge/internal/models"
)

// recordingListener captures dispatched events for assertions.
type recordingListener struct {
	mtx         sync.Mutex
	created     []*models.License
	generated   [][]*models.License
	updated     []*models.License
	deleted     []int64
	activated   []*models.LicenseActivation
	deactivated []*models.LicenseActivation
}

func (r *recordingListener) OnLicenseCreated(license *models.License) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.created = append(r.created, license)
}

func (r *recordingListener) OnLicensesGenerated(licenses []*models.License) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.generated = append(r.generated, licenses)
}

func (r *recordingListener) OnLicenseUpdated(license *models.License) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.updated = append(r.updated, license)
}

func (r *recordingListener) OnLicenseDeleted(licenseID int64) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.deleted = append(r.deleted, licenseID)
}

func (r *recordingListener) OnLicenseActivated(license *models.License, activation *models.LicenseActivation) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.activated = append(r.activated, activation)
}

func (r *recordingListener) OnLicenseDeactivated(license *models.License, activation *models.LicenseActivation) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.deactivated = append(r.deactivated, activation)
}
