// internal/services/generator_service.go
package services

import (
	"fmt"

	"github.com/licenseforge/licenseforge/internal/apperrors"
	"github.com/licenseforge/licenseforge/internal/keygen"
	"github.com/licenseforge/licenseforge/internal/models"
	"github.com/licenseforge/licenseforge/internal/repository"
	"github.com/licenseforge/licenseforge/internal/utils"
)

type GeneratorService struct {
	generators repository.GeneratorRepository
}

type CreateGeneratorRequest struct {
	Name             string `json:"name" validate:"required,max=255"`
	Charset          string `json:"charset" validate:"required,charset"`
	Chunks           int    `json:"chunks" validate:"required,gt=0"`
	ChunkLength      int    `json:"chunk_length" validate:"required,gt=0"`
	Separator        string `json:"separator,omitempty"`
	Prefix           string `json:"prefix,omitempty"`
	Suffix           string `json:"suffix,omitempty"`
	ActivationsLimit *int   `json:"activations_limit,omitempty"`
	ExpiresIn        *int   `json:"expires_in,omitempty"`
	CreatedBy        *int64 `json:"-"`
}

type UpdateGeneratorRequest struct {
	Name             *string `json:"name,omitempty"`
	Charset          *string `json:"charset,omitempty"`
	Chunks           *int    `json:"chunks,omitempty"`
	ChunkLength      *int    `json:"chunk_length,omitempty"`
	Separator        *string `json:"separator,omitempty"`
	Prefix           *string `json:"prefix,omitempty"`
	Suffix           *string `json:"suffix,omitempty"`
	ActivationsLimit *int    `json:"activations_limit,omitempty"`
	ExpiresIn        *int    `json:"expires_in,omitempty"`
	UpdatedBy        *int64  `json:"-"`
}

func NewGeneratorService(generators repository.GeneratorRepository) *GeneratorService {
	return &GeneratorService{generators: generators}
}

func (s *GeneratorService) Create(req *CreateGeneratorRequest) (*models.Generator, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSpec, err)
	}

	spec := keygen.Spec{
		Charset:     req.Charset,
		Chunks:      req.Chunks,
		ChunkLength: req.ChunkLength,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	generator := &models.Generator{
		Name:             req.Name,
		Charset:          req.Charset,
		Chunks:           req.Chunks,
		ChunkLength:      req.ChunkLength,
		Separator:        req.Separator,
		Prefix:           req.Prefix,
		Suffix:           req.Suffix,
		ActivationsLimit: req.ActivationsLimit,
		ExpiresIn:        req.ExpiresIn,
		CreatedBy:        req.CreatedBy,
	}
	if err := s.generators.Insert(generator); err != nil {
		return nil, err
	}
	return generator, nil
}

func (s *GeneratorService) Get(id int64) (*models.Generator, error) {
	return s.generators.FindByID(id)
}

func (s *GeneratorService) List(page, limit int) ([]models.Generator, int64, error) {
	return s.generators.List(page, limit)
}

// Update edits the format spec. Already-issued licenses are untouched;
// only future generation picks the changes up.
func (s *GeneratorService) Update(id int64, req *UpdateGeneratorRequest) (*models.Generator, error) {
	changes := map[string]interface{}{}
	if req.Name != nil {
		changes["name"] = *req.Name
	}
	if req.Charset != nil {
		if *req.Charset == "" {
			return nil, fmt.Errorf("%w: charset is empty", apperrors.ErrInvalidSpec)
		}
		changes["charset"] = *req.Charset
	}
	if req.Chunks != nil {
		if *req.Chunks <= 0 {
			return nil, fmt.Errorf("%w: chunks must be positive", apperrors.ErrInvalidSpec)
		}
		changes["chunks"] = *req.Chunks
	}
	if req.ChunkLength != nil {
		if *req.ChunkLength <= 0 {
			return nil, fmt.Errorf("%w: chunk length must be positive", apperrors.ErrInvalidSpec)
		}
		changes["chunk_length"] = *req.ChunkLength
	}
	if req.Separator != nil {
		changes["separator"] = *req.Separator
	}
	if req.Prefix != nil {
		changes["prefix"] = *req.Prefix
	}
	if req.Suffix != nil {
		changes["suffix"] = *req.Suffix
	}
	if req.ActivationsLimit != nil {
		changes["activations_limit"] = *req.ActivationsLimit
	}
	if req.ExpiresIn != nil {
		changes["expires_in"] = *req.ExpiresIn
	}
	if req.UpdatedBy != nil {
		changes["updated_by"] = *req.UpdatedBy
	}
	if len(changes) == 0 {
		return s.generators.FindByID(id)
	}

	return s.generators.Update(id, changes)
}

func (s *GeneratorService) Delete(id int64) error {
	return s.generators.Delete(id)
}
