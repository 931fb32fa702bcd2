package middleware

import (
  "time"

  "github.com/gin-gonic/gin"

  "github.com/edulens/edulens-backend/internal/logger"
)

type RequestLogMiddleware struct {
  log *logger.Logger
}

func NewRequestLogMiddleware(log *logger.Logger) *RequestLogMiddleware {
  return &RequestLogMiddleware{log: log.With("middleware", "RequestLog")}
}

func (m *RequestLogMiddleware) Handle() gin.HandlerFunc {
  return func(c *gin.Context) {
    start := time.Now()
    c.Next()

    m.log.Info("Request handled",
      "method", c.Request.Method,
      "path", c.Request.URL.Path,
      "status", c.Writer.Status(),
      "duration_ms", time.Since(start).Milliseconds(),
      "client_ip", c.ClientIP(),
    )
  }
}
