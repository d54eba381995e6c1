// internal/apperrors/errors.go
package apperrors

import "errors"

// Expected business conditions. Callers match with errors.Is; handlers
// translate each to a stable HTTP status.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrDuplicateKey        = errors.New("license key already exists")
	ErrQuotaExceeded       = errors.New("activation limit reached")
	ErrAlreadyDeactivated  = errors.New("activation is already deactivated")
	ErrInvalidSpec         = errors.New("invalid generator spec")
	ErrGenerationExhausted = errors.New("could not generate enough unique keys")
	ErrDecryptionFailed    = errors.New("license key could not be decrypted")
)
