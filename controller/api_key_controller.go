// gatekeeper/controller/api_key_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

type APIKeyController struct {
	apiKeyService service.IAPIKeyService
}

func NewAPIKeyController(apiKeyService service.IAPIKeyService) *APIKeyController {
	return &APIKeyController{apiKeyService: apiKeyService}
}

// RegisterRoutes registers the API key routes
func (kc *APIKeyController) RegisterRoutes(r *gin.RouterGroup) {
	keys := r.Group("/apikeys")
	{
		keys.POST("", kc.CreateAPIKey)
		keys.PUT("/:id/status", kc.UpdateAPIKeyStatus)
		keys.GET("/:id", kc.GetAPIKey)
	}
}

// CreateAPIKey endpoint. The secret appears only in this response.
func (kc *APIKeyController) CreateAPIKey(c *gin.Context) {
	var req model.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid API key data", err)
		return
	}

	key, err := kc.apiKeyService.CreateAPIKey(actorContext(c), req)
	if err != nil {
		respondWithServiceError(c, "Failed to create API key", err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusCreated, key)
}

func (kc *APIKeyController) UpdateAPIKeyStatus(c *gin.Context) {
	var req model.UpdateAPIKeyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid API key status", err)
		return
	}

	key, err := kc.apiKeyService.UpdateAPIKeyStatus(actorContext(c), c.Param("id"), req.Status)
	if err != nil {
		respondWithServiceError(c, "Failed to update API key", err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (kc *APIKeyController) GetAPIKey(c *gin.Context) {
	key, err := kc.apiKeyService.GetAPIKey(c, c.Param("id"))
	if err != nil {
		respondWithServiceError(c, "Failed to get API key", err)
		return
	}
	c.JSON(http.StatusOK, key)
}
