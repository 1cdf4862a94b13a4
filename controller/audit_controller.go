// gatekeeper/controller/audit_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
	helper_util "github.com/dev-mohitbeniwal/echo/gatekeeper/util/helper"
)

type AuditController struct {
	auditService audit.Service
}

func NewAuditController(auditService audit.Service) *AuditController {
	return &AuditController{auditService: auditService}
}

func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/logs", ac.QueryLogs)
}

// QueryLogs endpoint. from/to are RFC3339 and default to the last hour.
func (ac *AuditController) QueryLogs(c *gin.Context) {
	from, to, err := helper_util.ParseTimeRange(c.Query("from"), c.Query("to"), time.Now(), time.Hour)
	if err != nil {
		respondWithServiceError(c, "Invalid time range", err)
		return
	}

	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	logs, err := ac.auditService.QueryLogs(c, from, to, c.Query("subject"), c.Query("path"))
	if err != nil {
		respondWithServiceError(c, "Failed to query audit logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":   helper_util.Page(logs, limit, offset),
		"total":  len(logs),
		"limit":  limit,
		"offset": offset,
	})
}
