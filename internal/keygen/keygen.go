// internal/keygen/keygen.go
package keygen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/licenseforge/licenseforge/internal/apperrors"
)

// Spec describes the layout of a license key string:
// prefix + chunk1 + separator + ... + chunkN + suffix.
type Spec struct {
	Charset     string
	Chunks      int
	ChunkLength int
	Separator   string
	Prefix      string
	Suffix      string
}

func (s Spec) Validate() error {
	if len(s.Charset) == 0 {
		return fmt.Errorf("%w: charset is empty", apperrors.ErrInvalidSpec)
	}
	if s.Chunks <= 0 {
		return fmt.Errorf("%w: chunks must be positive, got %d", apperrors.ErrInvalidSpec, s.Chunks)
	}
	if s.ChunkLength <= 0 {
		return fmt.Errorf("%w: chunk length must be positive, got %d", apperrors.ErrInvalidSpec, s.ChunkLength)
	}
	return nil
}

// Generate produces count license key strings following spec. Uniqueness
// against already-stored licenses is the caller's job, checked by hash.
func Generate(count int, spec Spec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", apperrors.ErrInvalidSpec, count)
	}

	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		key, err := generateOne(spec)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func generateOne(spec Spec) (string, error) {
	chunks := make([]string, 0, spec.Chunks)
	for i := 0; i < spec.Chunks; i++ {
		chunk, err := randomChunk(spec.Charset, spec.ChunkLength)
		if err != nil {
			return "", err
		}
		chunks = append(chunks, chunk)
	}

	return spec.Prefix + strings.Join(chunks, spec.Separator) + spec.Suffix, nil
}

func randomChunk(charset string, length int) (string, error) {
	// Draw by rune so multi-byte charsets stay valid UTF-8 and uniform.
	runes := []rune(charset)
	out := make([]rune, length)
	max := big.NewInt(int64(len(runes)))

	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		out[i] = runes[n.Int64()]
	}

	return string(out), nil
}
