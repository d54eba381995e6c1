// internal/events/events.go
package events

import (
	"sync"

	"github.com/licenseforge/licenseforge/internal/models"
)

// Listener receives license lifecycle events. Implementations must not
// block; slow side effects belong in their own goroutines.
type Listener interface {
	OnLicenseCreated(license *models.License)
	OnLicensesGenerated(licenses []*models.License)
	OnLicenseUpdated(license *models.License)
	OnLicenseDeleted(licenseID int64)
	OnLicenseActivated(license *models.License, activation *models.LicenseActivation)
	OnLicenseDeactivated(license *models.License, activation *models.LicenseActivation)
}

// BaseListener is a no-op Listener; embed it to subscribe to a subset
// of events.
type BaseListener struct{}

func (BaseListener) OnLicenseCreated(*models.License)                                  {}
func (BaseListener) OnLicensesGenerated([]*models.License)                             {}
func (BaseListener) OnLicenseUpdated(*models.License)                                  {}
func (BaseListener) OnLicenseDeleted(int64)                                            {}
func (BaseListener) OnLicenseActivated(*models.License, *models.LicenseActivation)     {}
func (BaseListener) OnLicenseDeactivated(*models.License, *models.LicenseActivation)   {}

// Dispatcher fans lifecycle events out to registered listeners.
// Listeners are registered at construction time; cascade cleanup never
// depends on them.
type Dispatcher struct {
	mtx       sync.RWMutex
	listeners []Listener
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Subscribe(listener Listener) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.listeners = append(d.listeners, listener)
}

func (d *Dispatcher) snapshot() []Listener {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return append([]Listener(nil), d.listeners...)
}

func (d *Dispatcher) LicenseCreated(license *models.License) {
	for _, l := range d.snapshot() {
		l.OnLicenseCreated(license)
	}
}

func (d *Dispatcher) LicensesGenerated(licenses []*models.License) {
	for _, l := range d.snapshot() {
		l.OnLicensesGenerated(licenses)
	}
}

func (d *Dispatcher) LicenseUpdated(license *models.License) {
	for _, l := range d.snapshot() {
		l.OnLicenseUpdated(license)
	}
}

func (d *Dispatcher) LicenseDeleted(licenseID int64) {
	for _, l := range d.snapshot() {
		l.OnLicenseDeleted(licenseID)
	}
}

func (d *Dispatcher) LicenseActivated(license *models.License, activation *models.LicenseActivation) {
	for _, l := range d.snapshot() {
		l.OnLicenseActivated(license, activation)
	}
}

func (d *Dispatcher) LicenseDeactivated(license *models.License, activation *models.LicenseActivation) {
	for _, l := range d.snapshot() {
		l.OnLicenseDeactivated(license, activation)
	}
}
