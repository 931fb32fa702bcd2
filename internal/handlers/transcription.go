package handlers

import (
  "errors"
  "io"
  "net/http"
  "strings"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/edulens/edulens-backend/internal/logger"
  "github.com/edulens/edulens-backend/internal/services"
  "github.com/edulens/edulens-backend/internal/sse"
  "github.com/edulens/edulens-backend/internal/types"
)

type TranscriptionHandler struct {
  log    *logger.Logger
  svc    services.TranscriptionService
  sseHub *sse.SSEHub
}

func NewTranscriptionHandler(log *logger.Logger, svc services.TranscriptionService, sseHub *sse.SSEHub) *TranscriptionHandler {
  return &TranscriptionHandler{
    log:    log.With("handler", "TranscriptionHandler"),
    svc:    svc,
    sseHub: sseHub,
  }
}

// POST /transcribe
// Multipart upload; validation failures are synchronous 400s, everything
// after acceptance is reported through the job's status.
func (h *TranscriptionHandler) Submit(c *gin.Context) {
  title := strings.TrimSpace(c.PostForm("title"))
  courseID := strings.TrimSpace(c.PostForm("courseId"))
  courseName := strings.TrimSpace(c.PostForm("courseName"))
  description := strings.TrimSpace(c.PostForm("description"))

  for field, value := range map[string]string{
    "title":      title,
    "courseId":   courseID,
    "courseName": courseName,
  } {
    if value == "" {
      respondError(c, http.StatusBadRequest, "missing required field: "+field)
      return
    }
  }

  fileHeader, err := c.FormFile("video")
  if err != nil {
    respondError(c, http.StatusBadRequest, "missing video file")
    return
  }

  file, err := fileHeader.Open()
  if err != nil {
    h.log.Error("Failed to open uploaded file", "error", err)
    respondError(c, http.StatusInternalServerError, "failed to read uploaded file")
    return
  }
  defer file.Close()

  data, err := io.ReadAll(file)
  if err != nil {
    h.log.Error("Failed to read uploaded file", "error", err)
    respondError(c, http.StatusInternalServerError, "failed to read uploaded file")
    return
  }

  meta := types.VideoMetadata{
    Title:       title,
    Description: description,
    CourseID:    courseID,
    CourseName:  courseName,
    FileName:    fileHeader.Filename,
    FileSize:    fileHeader.Size,
    MimeType:    fileHeader.Header.Get("Content-Type"),
    UploadedAt:  time.Now(),
  }

  job, err := h.svc.Submit(c.Request.Context(), meta, data)
  if err != nil {
    if errors.Is(err, services.ErrUnsupportedFileType) ||
      errors.Is(err, services.ErrFileTooLarge) ||
      errors.Is(err, services.ErrFileEmpty) {
      respondError(c, http.StatusBadRequest, err.Error())
      return
    }
    h.log.Error("Failed to submit transcription job", "error", err)
    respondError(c, http.StatusInternalServerError, "failed to accept transcription request")
    return
  }

  c.JSON(http.StatusCreated, gin.H{
    "success":       true,
    "requestId":     job.ID,
    "message":       "Video received and queued for transcription",
    "videoMetadata": job.VideoMetadata,
  })
}

// GET /transcribe?requestId=<id>
// With an id: the job record, or 404. Without: all jobs (operational use).
func (h *TranscriptionHandler) Status(c *gin.Context) {
  requestID := strings.TrimSpace(c.Query("requestId"))

  if requestID == "" {
    jobs, err := h.svc.ListJobs(c.Request.Context())
    if err != nil {
      h.log.Error("Failed to list transcription jobs", "error", err)
      respondError(c, http.StatusInternalServerError, "failed to list transcriptions")
      return
    }
    c.JSON(http.StatusOK, gin.H{"transcriptions": jobs})
    return
  }

  job, err := h.svc.GetJob(c.Request.Context(), requestID)
  if err != nil {
    h.log.Error("Failed to load transcription job", "request_id", requestID, "error", err)
    respondError(c, http.StatusInternalServerError, "failed to load transcription")
    return
  }
  if job == nil {
    respondError(c, http.StatusNotFound, "transcription request not found")
    return
  }
  c.JSON(http.StatusOK, job)
}

// GET /transcribe/stream?requestId=<id>
// SSE stream of checkpoint events for one job.
func (h *TranscriptionHandler) Stream(c *gin.Context) {
  requestID := strings.TrimSpace(c.Query("requestId"))
  if requestID == "" {
    respondError(c, http.StatusBadRequest, "missing required query parameter: requestId")
    return
  }

  job, err := h.svc.GetJob(c.Request.Context(), requestID)
  if err != nil {
    h.log.Error("Failed to load transcription job for stream", "request_id", requestID, "error", err)
    respondError(c, http.StatusInternalServerError, "failed to load transcription")
    return
  }
  if job == nil {
    respondError(c, http.StatusNotFound, "transcription request not found")
    return
  }

  client := h.sseHub.NewSSEClient()
  h.sseHub.AddChannel(client, requestID)
  defer h.sseHub.RemoveClient(client)

  h.sseHub.ServeHTTP(c.Writer, c.Request, client)
}
