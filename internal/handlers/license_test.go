// internal/handlers/license_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenseforge/licenseforge/internal/config"
	"github.com/licenseforge/licenseforge/internal/crypto"
	"github.com/licenseforge/licenseforge/internal/events"
	"github.com/licenseforge/licenseforge/internal/repository/memory"
	"github.com/licenseforge/licenseforge/internal/services"
	"github.com/licenseforge/licenseforge/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	store, err := crypto.NewStore([]byte("handler-test-secret"))
	require.NoError(t, err)

	licenseRepo := memory.NewLicenseRepo()
	ledger := memory.NewLedger()
	metaRepo := memory.NewMetaRepo()
	licenseRepo.CascadeTo(ledger, metaRepo)
	generatorRepo := memory.NewGeneratorRepo()
	licenseService := services.NewLicenseService(
		licenseRepo,
		ledger,
		generatorRepo,
		metaRepo,
		store,
		events.NewDispatcher(),
	)
	generatorService := services.NewGeneratorService(generatorRepo)
	exportService, err := services.NewExportService(licenseService, &config.Config{})
	require.NoError(t, err)

	licenseHandler := NewLicenseHandler(licenseService, exportService)
	generatorHandler := NewGeneratorHandler(generatorService, licenseService)

	r := gin.New()
	licenses := r.Group("/v1/licenses")
	{
		licenses.POST("", licenseHandler.CreateLicense)
		licenses.GET("", licenseHandler.ListLicenses)
		licenses.POST("/import", licenseHandler.ImportLicenses)
		licenses.GET("/export", licenseHandler.ExportLicenses)
		licenses.POST("/activate", licenseHandler.ActivateLicense)
		licenses.GET("/:id_or_key", licenseHandler.GetLicense)
		licenses.PUT("/:id_or_key", licenseHandler.UpdateLicense)
		licenses.DELETE("/:id_or_key", licenseHandler.DeleteLicense)
		licenses.GET("/:id_or_key/activations", licenseHandler.ListActivations)
		licenses.POST("/:id_or_key/meta", licenseHandler.AddMeta)
		licenses.GET("/:id_or_key/meta", licenseHandler.GetMeta)
	}
	activations := r.Group("/v1/activations")
	{
		activations.DELETE("/:token", licenseHandler.DeactivateLicense)
		activations.PUT("/:token", licenseHandler.ReactivateLicense)
	}
	generators := r.Group("/v1/generators")
	{
		generators.POST("", generatorHandler.CreateGenerator)
		generators.GET("/:id", generatorHandler.GetGenerator)
		generators.POST("/:id/generate", generatorHandler.GenerateLicenses)
	}
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateLicenseEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses", gin.H{"key": "HTTP-KEY-001"})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "HTTP-KEY-001", data["key"])
	assert.Equal(t, "inactive", data["status"])
	// ciphertext and hash never leave the server
	assert.NotContains(t, data, "key_ciphertext")
	assert.NotContains(t, data, "key_hash")
}

func TestCreateLicenseDuplicateReturns409(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses", gin.H{"key": "HTTP-KEY-001"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/licenses", gin.H{"key": "HTTP-KEY-001"})
	assert.Equal(t, http.StatusConflict, w.Code)

	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "DUPLICATE_KEY", resp.Error.Code)
}

func TestCreateLicenseInvalidBody(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/licenses", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLicenseByIDAndKey(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses", gin.H{"key": "HTTP-KEY-002"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/licenses/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	// key withheld unless asked for
	assert.NotContains(t, data, "key")

	w = doJSON(t, r, http.MethodGet, "/v1/licenses/HTTP-KEY-002?show_key=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, "HTTP-KEY-002", data["key"])

	w = doJSON(t, r, http.MethodGet, "/v1/licenses/NO-SUCH-KEY", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActivationFlowOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses", gin.H{
		"key":               "HTTP-ACT-KEY",
		"activations_limit": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/licenses/activate", gin.H{
		"key":   "HTTP-ACT-KEY",
		"label": "build-server",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	activation := decodeResponse(t, w).Data.(map[string]interface{})
	token := activation["token"].(string)
	assert.Len(t, token, 40)
	assert.Equal(t, "build-server", activation["label"])

	// quota of one is now exhausted
	w = doJSON(t, r, http.MethodPost, "/v1/licenses/activate", gin.H{"key": "HTTP-ACT-KEY"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "QUOTA_EXCEEDED", decodeResponse(t, w).Error.Code)

	w = doJSON(t, r, http.MethodDelete, "/v1/activations/"+token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/v1/activations/"+token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_DEACTIVATED", decodeResponse(t, w).Error.Code)

	w = doJSON(t, r, http.MethodPut, "/v1/activations/"+token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/licenses/HTTP-ACT-KEY/activations?active=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.Len(t, resp.Data.([]interface{}), 1)
}

func TestActivateMissingKey(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses/activate", gin.H{"label": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/licenses/activate", gin.H{"key": "GHOST"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses/import", gin.H{
		"keys": []string{"IMP-A", "IMP-B"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["imported"])

	// second import collides and nothing sticks
	w = doJSON(t, r, http.MethodPost, "/v1/licenses/import", gin.H{
		"keys": []string{"IMP-C", "IMP-A"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/licenses/IMP-C", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateAndDeleteEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses", gin.H{"key": "MUT-KEY"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPut, "/v1/licenses/1", gin.H{"status": "sold"})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, "sold", data["status"])

	w = doJSON(t, r, http.MethodPut, "/v1/licenses/1", gin.H{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, "/v1/licenses/not-a-number", gin.H{"status": "sold"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/v1/licenses/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodDelete, "/v1/licenses/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListLicensesEndpoint(t *testing.T) {
	r := newTestRouter(t)

	for i := 0; i < 3; i++ {
		w := doJSON(t, r, http.MethodPost, "/v1/licenses", gin.H{
			"key":      fmt.Sprintf("LIST-%d", i),
			"order_id": 5,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/v1/licenses?order_id=5&page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
	resp := decodeResponse(t, w)
	assert.Len(t, resp.Data.([]interface{}), 2)

	w = doJSON(t, r, http.MethodGet, "/v1/licenses?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetaEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses", gin.H{"key": "META-HTTP"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/licenses/META-HTTP/meta", gin.H{
		"key":   "seat",
		"value": "42",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/licenses/META-HTTP/meta?key=seat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.Len(t, resp.Data.([]interface{}), 1)
}

func TestExportEndpointStreamsCSV(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/licenses", gin.H{"key": "CSV-KEY"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/licenses/export", gin.H{"include_keys": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "key")
	assert.Contains(t, lines[1], "CSV-KEY")
}

func TestGenerateEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/generators", gin.H{
		"name":         "retail",
		"charset":      "ABCDEFGHJKLMNPQRSTUVWXYZ23456789",
		"chunks":       4,
		"chunk_length": 5,
		"separator":    "-",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/generators/1/generate", gin.H{"count": 10})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(10), data["generated"])

	w = doJSON(t, r, http.MethodGet, "/v1/licenses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-Total-Count"))

	w = doJSON(t, r, http.MethodPost, "/v1/generators/999/generate", gin.H{"count": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGeneratorValidationOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/generators", gin.H{
		"name":         "bad",
		"charset":      "AAB",
		"chunks":       4,
		"chunk_length": 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
