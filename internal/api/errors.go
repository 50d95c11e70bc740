package api

import (
	"errors"
	"net/http"

	"restocrm/internal/compat"
	"restocrm/internal/identity"
	"restocrm/internal/pagination"
	"restocrm/internal/service"
	"restocrm/internal/tenant"

	"github.com/gin-gonic/gin"
)

const msgReauthenticate = "please re-authenticate"

type errorResponse struct {
	Error string `json:"error"`
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: message})
}

// statusFor maps service errors onto HTTP statuses. Store failures are
// reported without their cause.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, tenant.ErrNoTenantSelected):
		return http.StatusUnauthorized, msgReauthenticate
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrRestaurantInactive):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, compat.ErrRecordNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrSlugTaken),
		errors.Is(err, identity.ErrAccountExists),
		errors.Is(err, compat.ErrRecordExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, compat.ErrInvalidRecord),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrInvalidEmail):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pagination.ErrNoNextPage), errors.Is(err, pagination.ErrPageOutOfRange):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, compat.ErrStoreOperationFailed):
		return http.StatusInternalServerError, "store operation failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func abortWithErr(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	abortWithError(c, status, msg)
}
