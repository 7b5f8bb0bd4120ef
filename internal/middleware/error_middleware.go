package middleware

import (
	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"
	"relay-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error when
// nothing has been written yet.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		if status >= 500 {
			l.Ctx(c.Request.Context()).Error("request failed", zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}
		message := err.Error()
		if status >= 500 {
			message = "internal error"
		}
		c.JSON(status, httpdto.NewErrorResponse(message, services.ErrorCode(err)))
	}
}
