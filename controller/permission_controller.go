// gatekeeper/controller/permission_controller.go
package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/service"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

type PermissionController struct {
	permissionService service.IPermissionService
}

func NewPermissionController(permissionService service.IPermissionService) *PermissionController {
	return &PermissionController{permissionService: permissionService}
}

// RegisterRoutes registers the permission and permission-cache routes
func (pc *PermissionController) RegisterRoutes(r *gin.RouterGroup) {
	permissions := r.Group("/permissions")
	{
		permissions.PUT("/:subject", pc.GrantPermissions)
		permissions.DELETE("/:subject", pc.RevokePermission)
		permissions.GET("/:subject", pc.ListPermissions)
	}
	r.DELETE("/permission-cache/:subject", pc.InvalidateCache)
}

// actorContext carries the authenticated caller into audit records.
func actorContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if identity, ok := util.GetIdentityFromContext(c); ok {
		return util.WithActor(ctx, identity.SubjectID)
	}
	return ctx
}

// GrantPermissions endpoint
func (pc *PermissionController) GrantPermissions(c *gin.Context) {
	var grants []model.PermissionGrant
	if err := c.ShouldBindJSON(&grants); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid permission data", err)
		return
	}

	subjectID := c.Param("subject")
	if err := pc.permissionService.GrantPermissions(actorContext(c), subjectID, grants); err != nil {
		respondWithServiceError(c, "Failed to grant permissions", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RevokePermission endpoint; the resource key comes from ?resource=.
func (pc *PermissionController) RevokePermission(c *gin.Context) {
	resourceKey := c.Query("resource")
	if resourceKey == "" {
		util.RespondWithError(c, http.StatusBadRequest, "resource query parameter is required", nil)
		return
	}

	if err := pc.permissionService.RevokePermission(actorContext(c), c.Param("subject"), resourceKey); err != nil {
		respondWithServiceError(c, "Failed to revoke permission", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (pc *PermissionController) ListPermissions(c *gin.Context) {
	perms, err := pc.permissionService.ListPermissions(c, c.Param("subject"))
	if err != nil {
		respondWithServiceError(c, "Failed to list permissions", err)
		return
	}
	c.JSON(http.StatusOK, perms)
}

// InvalidateCache drops cached decisions for a subject, or one resource key
// of it with ?resource=.
func (pc *PermissionController) InvalidateCache(c *gin.Context) {
	if err := pc.permissionService.InvalidateCache(c, c.Param("subject"), c.Query("resource")); err != nil {
		respondWithServiceError(c, "Failed to invalidate permission cache", err)
		return
	}
	c.Status(http.StatusNoContent)
}
