// internal/services/generator_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenseforge/licenseforge/internal/apperrors"
	"github.com/licenseforge/licenseforge/internal/repository/memory"
)

func newGeneratorService() (*GeneratorService, *memory.GeneratorRepo) {
	repo := memory.NewGeneratorRepo()
	return NewGeneratorService(repo), repo
}

func TestGeneratorCreate(t *testing.T) {
	service, _ := newGeneratorService()

	generator, err := service.Create(&CreateGeneratorRequest{
		Name:        "retail",
		Charset:     "ABCDEF123456",
		Chunks:      4,
		ChunkLength: 5,
		Separator:   "-",
		Prefix:      "LF-",
	})
	require.NoError(t, err)
	assert.NotZero(t, generator.ID)
	assert.Equal(t, "retail", generator.Name)
}

func TestGeneratorCreateValidation(t *testing.T) {
	service, _ := newGeneratorService()

	tests := []struct {
		name string
		req  CreateGeneratorRequest
	}{
		{"missing name", CreateGeneratorRequest{Charset: "ABC", Chunks: 4, ChunkLength: 5}},
		{"missing charset", CreateGeneratorRequest{Name: "x", Chunks: 4, ChunkLength: 5}},
		{"repeated charset chars", CreateGeneratorRequest{Name: "x", Charset: "AAB", Chunks: 4, ChunkLength: 5}},
		{"zero chunks", CreateGeneratorRequest{Name: "x", Charset: "ABC", ChunkLength: 5}},
		{"zero chunk length", CreateGeneratorRequest{Name: "x", Charset: "ABC", Chunks: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(&tt.req)
			assert.ErrorIs(t, err, apperrors.ErrInvalidSpec)
		})
	}
}

func TestGeneratorUpdate(t *testing.T) {
	service, _ := newGeneratorService()

	generator, err := service.Create(&CreateGeneratorRequest{
		Name:        "retail",
		Charset:     "ABCDEF123456",
		Chunks:      4,
		ChunkLength: 5,
	})
	require.NoError(t, err)

	name := "wholesale"
	chunks := 6
	updated, err := service.Update(generator.ID, &UpdateGeneratorRequest{
		Name:   &name,
		Chunks: &chunks,
	})
	require.NoError(t, err)
	assert.Equal(t, "wholesale", updated.Name)
	assert.Equal(t, 6, updated.Chunks)
	// untouched fields keep their values
	assert.Equal(t, "ABCDEF123456", updated.Charset)

	empty := ""
	_, err = service.Update(generator.ID, &UpdateGeneratorRequest{Charset: &empty})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSpec)

	zero := 0
	_, err = service.Update(generator.ID, &UpdateGeneratorRequest{ChunkLength: &zero})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSpec)
}

func TestGeneratorUpdateNoChanges(t *testing.T) {
	service, _ := newGeneratorService()

	generator, err := service.Create(&CreateGeneratorRequest{
		Name:        "retail",
		Charset:     "ABCDEF123456",
		Chunks:      4,
		ChunkLength: 5,
	})
	require.NoError(t, err)

	same, err := service.Update(generator.ID, &UpdateGeneratorRequest{})
	require.NoError(t, err)
	assert.Equal(t, generator.ID, same.ID)
}

func TestGeneratorDelete(t *testing.T) {
	service, _ := newGeneratorService()

	generator, err := service.Create(&CreateGeneratorRequest{
		Name:        "retail",
		Charset:     "ABCDEF123456",
		Chunks:      4,
		ChunkLength: 5,
	})
	require.NoError(t, err)

	require.NoError(t, service.Delete(generator.ID))
	assert.ErrorIs(t, service.Delete(generator.ID), apperrors.ErrNotFound)
	_, err = service.Get(generator.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGeneratorList(t *testing.T) {
	service, _ := newGeneratorService()

	for _, name := range []string{"a", "b", "c"} {
		_, err := service.Create(&CreateGeneratorRequest{
			Name:        name,
			Charset:     "ABCDEF123456",
			Chunks:      2,
			ChunkLength: 4,
		})
		require.NoError(t, err)
	}

	generators, total, err := service.List(1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, generators, 3)
}
