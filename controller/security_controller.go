// gatekeeper/controller/security_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

type SecurityController struct {
	securityService service.ISecurityService
}

func NewSecurityController(securityService service.ISecurityService) *SecurityController {
	return &SecurityController{securityService: securityService}
}

// RegisterRoutes registers the lockout, blocklist and bulk revocation routes
func (sc *SecurityController) RegisterRoutes(r *gin.RouterGroup) {
	security := r.Group("/security")
	{
		security.POST("/lockouts/:subject", sc.LockAccount)
		security.DELETE("/lockouts/:subject", sc.UnlockAccount)
		security.GET("/lockouts/:subject", sc.AccountStatus)

		security.POST("/ip-blocklist", sc.BlockIP)
		security.DELETE("/ip-blocklist/:ip", sc.UnblockIP)
		security.GET("/ip-blocklist/:ip", sc.IPStatus)

		security.POST("/subjects/:subject/revoke-tokens", sc.RevokeSubjectTokens)
	}
}

func (sc *SecurityController) LockAccount(c *gin.Context) {
	var req model.LockAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid lock request", err)
		return
	}

	record, err := sc.securityService.LockAccount(actorContext(c), c.Param("subject"), req)
	if err != nil {
		respondWithServiceError(c, "Failed to lock account", err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (sc *SecurityController) UnlockAccount(c *gin.Context) {
	if err := sc.securityService.UnlockAccount(actorContext(c), c.Param("subject")); err != nil {
		respondWithServiceError(c, "Failed to unlock account", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (sc *SecurityController) AccountStatus(c *gin.Context) {
	status, err := sc.securityService.AccountStatus(c.Request.Context(), c.Param("subject"))
	if err != nil {
		respondWithServiceError(c, "Failed to read account status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// BlockIP endpoint. The ttl is mandatory; there are no permanent blocks.
func (sc *SecurityController) BlockIP(c *gin.Context) {
	var req model.BlockIPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid block request", err)
		return
	}

	record, err := sc.securityService.BlockIP(actorContext(c), req)
	if err != nil {
		respondWithServiceError(c, "Failed to block address", err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (sc *SecurityController) UnblockIP(c *gin.Context) {
	if err := sc.securityService.UnblockIP(actorContext(c), c.Param("ip")); err != nil {
		respondWithServiceError(c, "Failed to unblock address", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (sc *SecurityController) IPStatus(c *gin.Context) {
	status, err := sc.securityService.IPStatus(c.Request.Context(), c.Param("ip"))
	if err != nil {
		respondWithServiceError(c, "Failed to read address status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (sc *SecurityController) RevokeSubjectTokens(c *gin.Context) {
	if err := sc.securityService.RevokeSubjectTokens(actorContext(c), c.Param("subject")); err != nil {
		respondWithServiceError(c, "Failed to revoke tokens", err)
		return
	}
	c.Status(http.StatusNoContent)
}
