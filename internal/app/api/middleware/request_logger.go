package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/offertory/pkg/logctx"
)

// RequestLoggerMiddleware attaches a request-scoped logger enriched with
// trace_id and church_id (when the route carries one) to gin.Context and the
// request context.
func RequestLoggerMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetString(logctx.GinTraceIDKey)
		reqLogger := base.With("trace_id", traceID)
		ctx := c.Request.Context()
		if churchID := c.Param("church_id"); churchID != "" {
			reqLogger = reqLogger.With("church_id", churchID)
			ctx = logctx.WithChurch(ctx, churchID)
		}
		c.Set(logctx.GinLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(logctx.WithLogger(ctx, reqLogger))

		// mirror trace id to response header when available
		if traceID != "" {
			c.Writer.Header().Set("X-Request-ID", traceID)
		}

		c.Next()
	}
}
