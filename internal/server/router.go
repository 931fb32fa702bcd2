package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/edulens/edulens-backend/internal/handlers"
  "github.com/edulens/edulens-backend/internal/middleware"
)

type RouterConfig struct {
  TranscriptionHandler *handlers.TranscriptionHandler
  RequestLog           *middleware.RequestLogMiddleware
  AllowedOrigins       []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.New()
  router.Use(gin.Recovery())
  if cfg.RequestLog != nil {
    router.Use(cfg.RequestLog.Handle())
  }

  origins := cfg.AllowedOrigins
  if len(origins) == 0 {
    origins = []string{"http://localhost:3000", "http://localhost:5173"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  router.POST("/transcribe", cfg.TranscriptionHandler.Submit)
  router.GET("/transcribe", cfg.TranscriptionHandler.Status)
  router.GET("/transcribe/stream", cfg.TranscriptionHandler.Stream)

  return router
}
