package main

import (
  "context"
  "fmt"
  "os"
  "time"

  "github.com/joho/godotenv"

  "github.com/edulens/edulens-backend/internal/db"
  "github.com/edulens/edulens-backend/internal/handlers"
  "github.com/edulens/edulens-backend/internal/logger"
  "github.com/edulens/edulens-backend/internal/middleware"
  "github.com/edulens/edulens-backend/internal/repos"
  "github.com/edulens/edulens-backend/internal/server"
  "github.com/edulens/edulens-backend/internal/services"
  "github.com/edulens/edulens-backend/internal/sse"
  "github.com/edulens/edulens-backend/internal/utils"
)

func main() {
  _ = godotenv.Load()

  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Config
  log.Info("Loading environment variables from main...")
  validatorCfg := services.DefaultValidatorConfig()
  validatorCfg.AllowedMimeTypes = utils.GetEnvAsCSV("ALLOWED_MIME_TYPES", validatorCfg.AllowedMimeTypes, log)
  validatorCfg.MaxUploadBytes = utils.GetEnvAsInt64("MAX_UPLOAD_BYTES", validatorCfg.MaxUploadBytes, log)

  pipelineCfg := services.DefaultTranscriptionConfig()
  pipelineCfg.PipelineTimeout = time.Duration(utils.GetEnvAsInt("PIPELINE_TIMEOUT_SECONDS", int(pipelineCfg.PipelineTimeout/time.Second), log)) * time.Second
  pipelineCfg.TierTimeout = time.Duration(utils.GetEnvAsInt("TIER_TIMEOUT_SECONDS", int(pipelineCfg.TierTimeout/time.Second), log)) * time.Second
  pipelineCfg.TitleMaxLength = utils.GetEnvAsInt("TITLE_MAX_LENGTH", pipelineCfg.TitleMaxLength, log)
  pipelineCfg.CourseMaxLength = utils.GetEnvAsInt("COURSE_MAX_LENGTH", pipelineCfg.CourseMaxLength, log)
  pipelineCfg.DescriptionMaxLength = utils.GetEnvAsInt("DESCRIPTION_MAX_LENGTH", pipelineCfg.DescriptionMaxLength, log)
  pipelineCfg.FallbackTitle = utils.GetEnv("FALLBACK_TITLE", pipelineCfg.FallbackTitle, log)
  pipelineCfg.FallbackCourse = utils.GetEnv("FALLBACK_COURSE", pipelineCfg.FallbackCourse, log)

  sanitizerCfg := services.SanitizerConfig{
    ExtraPatterns: utils.GetEnvAsCSV("SANITIZER_EXTRA_PATTERNS", nil, log),
  }

  // Job store: postgres when configured, in-memory otherwise.
  var jobRepo repos.TranscriptionJobRepo
  if os.Getenv("POSTGRES_HOST") != "" {
    postgresService, err := db.NewPostgresService(log)
    if err != nil {
      log.Error("Postgres init failed", "error", err)
      os.Exit(1)
    }
    if err := postgresService.AutoMigrateAll(); err != nil {
      log.Error("Postgres auto migration failed", "error", err)
      os.Exit(1)
    }
    jobRepo = repos.NewGormJobRepo(postgresService.DB(), log)
  } else {
    log.Info("POSTGRES_HOST not set, using in-memory job store")
    jobRepo = repos.NewMemoryJobRepo(log)
  }

  // SSE
  sseHub := sse.NewSSEHub(log)

  // Services
  log.Info("Setting up services from main...")
  validator := services.NewInputValidator(validatorCfg)
  sanitizer := services.NewMetadataSanitizer(log, sanitizerCfg)
  prompts := services.NewPromptBuilder()
  openaiClient := services.NewOpenAIClient(log)
  if !openaiClient.Configured() {
    log.Warn("OPENAI_API_KEY not set; transcription jobs will fail until it is configured")
  }

  var speechProvider services.SpeechProviderService
  if utils.GetEnvAsBool("GCP_SPEECH_ENABLED", false, log) {
    speechProvider, err = services.NewSpeechProviderService(log)
    if err != nil {
      log.Warn("Could not init SpeechProviderService, continuing without it", "error", err)
      speechProvider = nil
    } else {
      defer speechProvider.Close()
    }
  }

  enrichmentService := services.NewEnrichmentService(log, openaiClient, prompts)
  transcriptionService := services.NewTranscriptionService(
    log,
    pipelineCfg,
    jobRepo,
    sseHub,
    validator,
    sanitizer,
    prompts,
    openaiClient,
    speechProvider,
    enrichmentService,
  )
  transcriptionService.StartWorker(context.Background())

  // Handlers
  log.Info("Setting up handlers from main...")
  transcriptionHandler := handlers.NewTranscriptionHandler(log, transcriptionService, sseHub)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    TranscriptionHandler: transcriptionHandler,
    RequestLog:           middleware.NewRequestLogMiddleware(log),
    AllowedOrigins:       utils.GetEnvAsCSV("CORS_ALLOWED_ORIGINS", nil, log),
  })

  port := utils.GetEnv("PORT", "8080", log)
  log.Info("Server listening", "port", port)
  if err := router.Run(":" + port); err != nil {
    log.Error("Server failed", "error", err)
  }
}
