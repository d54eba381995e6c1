// internal/handlers/auth.go
package handlers

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/licenseforge/licenseforge/internal/config"
	"github.com/licenseforge/licenseforge/internal/utils"
)

type AuthHandler struct {
	config  *config.Config
	clients []config.APIClient
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		config:  cfg,
		clients: cfg.API.ParseClients(),
	}
}

type TokenRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// IssueToken exchanges configured client credentials for a signed
// access token.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}

	client, ok := h.lookupClient(req.ClientID, req.ClientSecret)
	if !ok {
		utils.UnauthorizedResponse(c, "Invalid client credentials")
		return
	}

	token, err := utils.GenerateJWT(client.ID, client.Role, h.config.JWT.AccessTokenTTL)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   h.config.JWT.AccessTokenTTL * 3600,
	})
}

func (h *AuthHandler) lookupClient(id, secret string) (config.APIClient, bool) {
	for _, client := range h.clients {
		idMatch := subtle.ConstantTimeCompare([]byte(client.ID), []byte(id)) == 1
		secretMatch := subtle.ConstantTimeCompare([]byte(client.Secret), []byte(secret)) == 1
		if idMatch && secretMatch {
			return client, true
		}
	}
	return config.APIClient{}, false
}
