package handler

import (
	"errors"
	"net/http"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"
	relay_errors "relay-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

func currentUserID(c *gin.Context) (string, bool) {
	uid, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return "", false
	}
	return uid, true
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(message, "INVALID_REQUEST"))
}

// writeError answers with the status mapped from err. Unmapped errors are
// handed to the error middleware so they get logged.
func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, relay_errors.ErrServiceUnavailable) {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), services.ErrorCode(err)))
}
