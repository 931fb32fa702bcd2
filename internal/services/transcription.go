package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "sync"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/edulens/edulens-backend/internal/logger"
  "github.com/edulens/edulens-backend/internal/repos"
  "github.com/edulens/edulens-backend/internal/sse"
  "github.com/edulens/edulens-backend/internal/types"
)

type TranscriptionConfig struct {
  // PipelineTimeout bounds one job end to end.
  PipelineTimeout time.Duration
  // TierTimeout bounds a single strategy attempt so a hung call cannot eat
  // the whole pipeline budget.
  TierTimeout time.Duration
  // WorkerPoll is the claim-loop tick interval.
  WorkerPoll time.Duration

  TitleMaxLength       int
  CourseMaxLength      int
  DescriptionMaxLength int
  FallbackTitle        string
  FallbackCourse       string
}

func DefaultTranscriptionConfig() TranscriptionConfig {
  return TranscriptionConfig{
    PipelineTimeout:      5 * time.Minute,
    TierTimeout:          90 * time.Second,
    WorkerPoll:           1 * time.Second,
    TitleMaxLength:       120,
    CourseMaxLength:      80,
    DescriptionMaxLength: 400,
    FallbackTitle:        "Untitled lecture",
    FallbackCourse:       "General course",
  }
}

type TranscriptionService interface {
  // Submit validates and sanitizes the upload, creates the job record, and
  // queues it for the worker. The record exists before Submit returns, so a
  // client can poll the returned id immediately.
  Submit(ctx context.Context, meta types.VideoMetadata, fileData []byte) (*types.TranscriptionJob, error)
  StartWorker(ctx context.Context)
  GetJob(ctx context.Context, id string) (*types.TranscriptionJob, error)
  ListJobs(ctx context.Context) ([]*types.TranscriptionJob, error)
}

type filePayload struct {
  fileName string
  mimeType string
  data     []byte
}

type transcriptionService struct {
  log       *logger.Logger
  cfg       TranscriptionConfig
  repo      repos.TranscriptionJobRepo
  sseHub    *sse.SSEHub
  validator *InputValidator
  sanitizer *MetadataSanitizer
  prompts   *PromptBuilder
  ai        OpenAIClient
  enricher  EnrichmentService

  strategies []TranscriptStrategy

  mu       sync.Mutex
  payloads map[string]filePayload
}

func NewTranscriptionService(
  baseLog *logger.Logger,
  cfg TranscriptionConfig,
  repo repos.TranscriptionJobRepo,
  sseHub *sse.SSEHub,
  validator *InputValidator,
  sanitizer *MetadataSanitizer,
  prompts *PromptBuilder,
  ai OpenAIClient,
  speech SpeechProviderService,
  enricher EnrichmentService,
) TranscriptionService {
  strategies := make([]TranscriptStrategy, 0, 4)
  if speech != nil {
    strategies = append(strategies, &gcpSpeechStrategy{speech: speech, timeout: cfg.TierTimeout})
  }
  strategies = append(strategies,
    &multimodalStrategy{ai: ai, prompts: prompts, timeout: cfg.TierTimeout},
    &contextFallbackStrategy{ai: ai, prompts: prompts, timeout: cfg.TierTimeout},
    &cannedStrategy{prompts: prompts},
  )

  return &transcriptionService{
    log:        baseLog.With("service", "TranscriptionService"),
    cfg:        cfg,
    repo:       repo,
    sseHub:     sseHub,
    validator:  validator,
    sanitizer:  sanitizer,
    prompts:    prompts,
    ai:         ai,
    enricher:   enricher,
    strategies: strategies,
    payloads:   make(map[string]filePayload),
  }
}

func newRequestID() string {
  suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
  return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), suffix)
}

func (s *transcriptionService) Submit(ctx context.Context, meta types.VideoMetadata, fileData []byte) (*types.TranscriptionJob, error) {
  if err := s.validator.Validate(meta.MimeType, int64(len(fileData))); err != nil {
    return nil, err
  }

  // Sanitize-then-store: only neutralized metadata ever reaches the job
  // record or a prompt template.
  meta.Title = s.sanitizer.Sanitize(meta.Title, s.cfg.FallbackTitle, s.cfg.TitleMaxLength)
  meta.CourseName = s.sanitizer.Sanitize(meta.CourseName, s.cfg.FallbackCourse, s.cfg.CourseMaxLength)
  if meta.Description != "" {
    meta.Description = s.sanitizer.Sanitize(meta.Description, "", s.cfg.DescriptionMaxLength)
  }
  meta.FileSize = int64(len(fileData))
  if meta.UploadedAt.IsZero() {
    meta.UploadedAt = time.Now()
  }

  now := time.Now()
  job := &types.TranscriptionJob{
    ID:            newRequestID(),
    Status:        types.JobStatusProcessing,
    Stage:         types.JobStageQueued,
    Progress:      0,
    VideoMetadata: meta,
    CreatedAt:     now,
    UpdatedAt:     now,
  }

  // The record must exist before the 201 response returns; a poll for this
  // id can never race the worker.
  if err := s.repo.Create(ctx, job); err != nil {
    return nil, fmt.Errorf("create job record: %w", err)
  }

  s.mu.Lock()
  s.payloads[job.ID] = filePayload{fileName: meta.FileName, mimeType: meta.MimeType, data: fileData}
  s.mu.Unlock()

  s.log.Info("Transcription job queued",
    "request_id", job.ID,
    "file_name", meta.FileName,
    "file_size", meta.FileSize,
    "mime_type", meta.MimeType,
  )
  return job, nil
}

func (s *transcriptionService) GetJob(ctx context.Context, id string) (*types.TranscriptionJob, error) {
  return s.repo.GetByID(ctx, id)
}

func (s *transcriptionService) ListJobs(ctx context.Context) ([]*types.TranscriptionJob, error) {
  return s.repo.List(ctx)
}

func (s *transcriptionService) StartWorker(ctx context.Context) {
  go func() {
    ticker := time.NewTicker(s.cfg.WorkerPoll)
    defer ticker.Stop()

    for {
      select {
      case <-ctx.Done():
        return
      case <-ticker.C:
        job, err := s.repo.ClaimNextQueued(ctx)
        if err != nil {
          s.log.Warn("ClaimNextQueued failed", "error", err)
          continue
        }
        if job == nil {
          continue
        }
        s.processJob(ctx, job)
      }
    }
  }()
}

func (s *transcriptionService) takePayload(jobID string) (filePayload, bool) {
  s.mu.Lock()
  defer s.mu.Unlock()
  payload, ok := s.payloads[jobID]
  if ok {
    delete(s.payloads, jobID)
  }
  return payload, ok
}

func messageForSource(source string) string {
  switch source {
  case types.TranscriptSourceGCPSpeech:
    return "Video processed with cloud speech transcription"
  case types.TranscriptSourceMultimodal:
    return "Video processed with direct multimodal transcription"
  case types.TranscriptSourceContextFallback:
    return "Video processed with a context-generated fallback transcript"
  case types.TranscriptSourceCannedDefault:
    return "Video processed with the default transcript template"
  default:
    return "Video processed"
  }
}

func (s *transcriptionService) processJob(ctx context.Context, job *types.TranscriptionJob) {
  jobID := job.ID
  log := s.log.With("request_id", jobID)

  // Terminal and checkpoint writes use a detached context so a pipeline
  // deadline cannot also kill the bookkeeping write.
  writeCtx := context.Background()

  fail := func(err error) {
    msg := err.Error()
    if uerr := s.repo.UpdateFields(writeCtx, jobID, repos.JobPatch{
      Status:       strPtr(types.JobStatusFailed),
      Stage:        strPtr(types.JobStageDone),
      ErrorMessage: &msg,
    }); uerr != nil {
      log.Error("Failed to record job failure", "error", uerr, "job_error", msg)
      return
    }
    log.Warn("Transcription job failed", "error", msg)
    s.broadcast(jobID, sse.SSEEventJobFailed, map[string]any{
      "requestId": jobID,
      "error":     msg,
    })
  }

  checkpoint := func(stage string, pct int, msg string) {
    if err := s.repo.UpdateFields(writeCtx, jobID, repos.JobPatch{
      Stage:    &stage,
      Progress: &pct,
    }); err != nil {
      log.Warn("Checkpoint write failed", "stage", stage, "progress", pct, "error", err)
      return
    }
    s.broadcast(jobID, sse.SSEEventJobProgress, map[string]any{
      "requestId": jobID,
      "stage":     stage,
      "progress":  pct,
      "message":   msg,
    })
  }

  payload, ok := s.takePayload(jobID)
  if !ok {
    fail(fmt.Errorf("upload payload no longer available for request %s", jobID))
    return
  }

  if !s.ai.Configured() {
    fail(fmt.Errorf("transcription credentials not configured (OPENAI_API_KEY is required)"))
    return
  }

  pctx, cancel := context.WithTimeout(ctx, s.cfg.PipelineTimeout)
  defer cancel()

  req := &TranscriptRequest{
    JobID:      jobID,
    SafeTitle:  job.VideoMetadata.Title,
    SafeCourse: job.VideoMetadata.CourseName,
    FileName:   payload.fileName,
    FileData:   payload.data,
    MimeType:   payload.mimeType,
  }

  // Tier cascade: checkpoints at 25/50/75, capped so an extra leading
  // strategy cannot push past the pre-success ceiling.
  var result *TranscriptResult
  for i, strat := range s.strategies {
    if pctx.Err() != nil {
      fail(fmt.Errorf("processing timed out after %s", s.cfg.PipelineTimeout))
      return
    }

    pct := 25 * (i + 1)
    if pct > 75 {
      pct = 75
    }
    checkpoint(types.JobStageTranscribing, pct, "Attempting "+strat.Name())

    res, err := strat.Attempt(pctx, req)
    if err != nil {
      log.Warn("Transcription strategy failed, demoting",
        "strategy", strat.Name(),
        "error", err.Error(),
      )
      continue
    }
    result = res
    break
  }
  if result == nil {
    // Unreachable while the canned strategy terminates the list; kept as a
    // hard stop in case the strategy set is misconfigured.
    fail(fmt.Errorf("all transcription strategies failed"))
    return
  }

  if pctx.Err() != nil {
    fail(fmt.Errorf("processing timed out after %s", s.cfg.PipelineTimeout))
    return
  }

  if err := s.repo.UpdateFields(writeCtx, jobID, repos.JobPatch{
    TranscriptionText:   &result.Text,
    TranscriptionSource: &result.Source,
  }); err != nil {
    fail(fmt.Errorf("store transcript: %w", err))
    return
  }
  checkpoint(types.JobStageEnriching, 90, "Transcript acquired via "+result.Source)

  enrichment := s.enricher.Enrich(pctx, result.Text, job.VideoMetadata.Title, job.VideoMetadata.CourseName)

  analysisJSON, err := json.Marshal(enrichment.Analysis)
  if err != nil {
    fail(fmt.Errorf("encode analysis: %w", err))
    return
  }
  analysis := datatypes.JSON(analysisJSON)

  message := messageForSource(result.Source)
  if err := s.repo.UpdateFields(writeCtx, jobID, repos.JobPatch{
    Status:          strPtr(types.JobStatusCompleted),
    Stage:           strPtr(types.JobStageDone),
    Progress:        intPtr(100),
    EnrichedContent: &enrichment.Content,
    Analysis:        &analysis,
    Message:         &message,
  }); err != nil {
    fail(fmt.Errorf("finalize job: %w", err))
    return
  }

  log.Info("Transcription job completed",
    "source", result.Source,
    "transcript_chars", len(result.Text),
  )
  s.broadcast(jobID, sse.SSEEventJobCompleted, map[string]any{
    "requestId": jobID,
    "source":    result.Source,
    "message":   message,
  })
}

func (s *transcriptionService) broadcast(jobID string, event sse.SSEEvent, data map[string]any) {
  if s.sseHub == nil {
    return
  }
  s.sseHub.Broadcast(sse.SSEMessage{
    Channel: jobID,
    Event:   event,
    Data:    data,
  })
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
