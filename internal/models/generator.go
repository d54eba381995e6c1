// internal/models/generator.go
package models

// Generator is a named, reusable format spec for producing license key
// strings. Issued licenses reference it by id only; edits affect future
// generation, never already-issued keys, and deleting a generator does
// not cascade.
type Generator struct {
	BaseModel
	Name             string `json:"name" gorm:"type:varchar(255);not null"`
	Charset          string `json:"charset" gorm:"type:text;not null"`
	Chunks           int    `json:"chunks" gorm:"not null"`
	ChunkLength      int    `json:"chunk_length" gorm:"not null"`
	Separator        string `json:"separator" gorm:"type:varchar(16)"`
	Prefix           string `json:"prefix" gorm:"type:varchar(64)"`
	Suffix           string `json:"suffix" gorm:"type:varchar(64)"`
	ActivationsLimit *int   `json:"activations_limit"`
	ExpiresIn        *int   `json:"expires_in"` // validity in days for issued licenses
	CreatedBy        *int64 `json:"created_by"`
	UpdatedBy        *int64 `json:"updated_by"`
}
