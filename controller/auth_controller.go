// gatekeeper/controller/auth_controller.go
package controller

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/middleware"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

type AuthController struct {
	tokenService service.ITokenService
}

func NewAuthController(tokenService service.ITokenService) *AuthController {
	return &AuthController{tokenService: tokenService}
}

// RegisterRoutes registers the token routes
func (ac *AuthController) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth/token")
	{
		auth.POST("", ac.IssueToken)
		auth.POST("/refresh", ac.RefreshToken)
		auth.POST("/revoke", ac.RevokeToken)
		auth.POST("/revoke-all", ac.RevokeAllTokens)
	}
}

// IssueToken trades a signed API-key request for a bearer token pair.
func (ac *AuthController) IssueToken(c *gin.Context) {
	bodyHash, err := middleware.HashRequestBody(c)
	if err != nil {
		util.RespondWithError(c, http.StatusRequestEntityTooLarge, "Request body could not be read", err)
		return
	}
	req := &pdp_model.AccessRequest{
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		Headers:   c.Request.Header,
		BodyHash:  bodyHash,
		ClientIP:  middleware.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
	}

	pair, err := ac.tokenService.Exchange(c, req)
	if err != nil {
		respondWithServiceError(c, "Failed to issue token", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, pair)
}

func (ac *AuthController) RefreshToken(c *gin.Context) {
	var body model.RefreshRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid refresh request", err)
		return
	}

	pair, err := ac.tokenService.Refresh(c, body.RefreshToken, middleware.ClientIP(c))
	if err != nil {
		respondWithServiceError(c, "Failed to refresh token", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, pair)
}

type revokeRequest struct {
	Token string `json:"token"`
}

// RevokeToken revokes the token in the body, or the caller's own bearer
// token when the body is empty.
func (ac *AuthController) RevokeToken(c *gin.Context) {
	var body revokeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid revoke request", err)
			return
		}
	}
	token := body.Token
	if token == "" {
		if scheme, bearer, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
			token = strings.TrimSpace(bearer)
		}
	}
	if token == "" {
		util.RespondWithError(c, http.StatusBadRequest, "No token to revoke", nil)
		return
	}

	caller, _ := util.GetIdentityFromContext(c)
	if err := ac.tokenService.Revoke(c, token, caller); err != nil {
		respondWithServiceError(c, "Failed to revoke token", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RevokeAllTokens signs the caller out of every session.
func (ac *AuthController) RevokeAllTokens(c *gin.Context) {
	caller, ok := util.GetIdentityFromContext(c)
	if !ok {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	if err := ac.tokenService.RevokeAll(c, caller); err != nil {
		respondWithServiceError(c, "Failed to revoke tokens", err)
		return
	}
	c.Status(http.StatusNoContent)
}
