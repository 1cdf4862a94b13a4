// gatekeeper/controller/errors.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/middleware"
	pdp_model "github.com/dev-mohitbeniwal/echo/gatekeeper/pdp/model"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/util"
)

var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{echo_errors.ErrAPIKeyNotFound, http.StatusNotFound, "API key not found"},
	{echo_errors.ErrPermissionNotFound, http.StatusNotFound, "Permission not found"},
	{echo_errors.ErrAPIKeyConflict, http.StatusConflict, "API key already exists"},
	{echo_errors.ErrInvalidAPIKeyData, http.StatusBadRequest, "Invalid API key data"},
	{echo_errors.ErrInvalidPermissionData, http.StatusBadRequest, "Invalid permission data"},
	{echo_errors.ErrInvalidTimeRange, http.StatusBadRequest, "Invalid time range"},
	{echo_errors.ErrInvalidSecurityData, http.StatusBadRequest, "Invalid security data"},
	{echo_errors.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{echo_errors.ErrDatabaseOperation, http.StatusInternalServerError, "Database operation failed"},
}

// respondWithServiceError maps a service error to a response. Errors from
// the auth taxonomy get the same body as a gateway denial.
func respondWithServiceError(c *gin.Context, fallback string, err error) {
	for _, row := range errorStatus {
		if errors.Is(err, row.err) {
			util.RespondWithError(c, row.status, row.message, err)
			return
		}
	}
	if echo_errors.IsCredentialError(err) || echo_errors.IsDependencyError(err) || errors.Is(err, echo_errors.ErrRateExceeded) {
		decision := pdp_model.Deny(err)
		middleware.RespondWithDecision(c, decision)
		return
	}
	util.RespondWithError(c, http.StatusInternalServerError, fallback, err)
}
