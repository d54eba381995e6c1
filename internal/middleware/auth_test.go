// internal/middleware/auth_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenseforge/licenseforge/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter() *gin.Engine {
	r := gin.New()
	r.GET("/protected", AuthRequired(), func(c *gin.Context) {
		clientID, _ := c.Get("client_id")
		c.JSON(http.StatusOK, gin.H{"client_id": clientID})
	})
	r.GET("/admin", AuthRequired(), AdminRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func get(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	r := newProtectedRouter()

	assert.Equal(t, http.StatusUnauthorized, get(r, "/protected", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/protected", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/protected", "Bearer not-a-token").Code)

	token, err := utils.GenerateJWT("store-frontend", "api", 1)
	require.NoError(t, err)
	w := get(r, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "store-frontend")
}

func TestAdminRequired(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	r := newProtectedRouter()

	apiToken, err := utils.GenerateJWT("store-frontend", "api", 1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(r, "/admin", "Bearer "+apiToken).Code)

	adminToken, err := utils.GenerateJWT("ops", "admin", 1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(r, "/admin", "Bearer "+adminToken).Code)
}

func TestRejectsTokenSignedWithOtherSecret(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	token, err := utils.GenerateJWT("store-frontend", "api", 1)
	require.NoError(t, err)

	utils.SetJWTSecret("rotated-secret")
	defer utils.SetJWTSecret("middleware-test-secret")

	r := newProtectedRouter()
	assert.Equal(t, http.StatusUnauthorized, get(r, "/protected", "Bearer "+token).Code)
}
