package repos

import (
  "context"
  "errors"
  "sync"
  "time"

  "github.com/edulens/edulens-backend/internal/logger"
  "github.com/edulens/edulens-backend/internal/types"
)

// memoryJobRepo is the zero-configuration job store. Records live for the
// process lifetime. Reads return copies so the status API never observes a
// half-applied checkpoint.
type memoryJobRepo struct {
  mu    sync.RWMutex
  log   *logger.Logger
  jobs  map[string]*types.TranscriptionJob
  order []string
}

func NewMemoryJobRepo(baseLog *logger.Logger) TranscriptionJobRepo {
  return &memoryJobRepo{
    log:  baseLog.With("repo", "MemoryJobRepo"),
    jobs: make(map[string]*types.TranscriptionJob),
  }
}

func (r *memoryJobRepo) Create(ctx context.Context, job *types.TranscriptionJob) error {
  if job == nil {
    return errors.New("nil job")
  }
  r.mu.Lock()
  defer r.mu.Unlock()
  if _, exists := r.jobs[job.ID]; exists {
    return errors.New("duplicate job id")
  }
  cp := *job
  r.jobs[job.ID] = &cp
  r.order = append(r.order, job.ID)
  return nil
}

func (r *memoryJobRepo) GetByID(ctx context.Context, id string) (*types.TranscriptionJob, error) {
  if id == "" {
    return nil, nil
  }
  r.mu.RLock()
  defer r.mu.RUnlock()
  job, ok := r.jobs[id]
  if !ok {
    return nil, nil
  }
  cp := *job
  return &cp, nil
}

func (r *memoryJobRepo) List(ctx context.Context) ([]*types.TranscriptionJob, error) {
  r.mu.RLock()
  defer r.mu.RUnlock()
  out := make([]*types.TranscriptionJob, 0, len(r.order))
  // Newest first, mirroring the database-backed store.
  for i := len(r.order) - 1; i >= 0; i-- {
    if job, ok := r.jobs[r.order[i]]; ok {
      cp := *job
      out = append(out, &cp)
    }
  }
  return out, nil
}

func (r *memoryJobRepo) UpdateFields(ctx context.Context, id string, patch JobPatch) error {
  r.mu.Lock()
  defer r.mu.Unlock()
  job, ok := r.jobs[id]
  if !ok {
    return ErrJobNotFound
  }
  if job.Terminal() {
    return ErrJobTerminal
  }
  if patch.Status != nil {
    job.Status = *patch.Status
  }
  if patch.Stage != nil {
    job.Stage = *patch.Stage
  }
  if patch.Progress != nil && *patch.Progress > job.Progress {
    job.Progress = *patch.Progress
  }
  if patch.TranscriptionText != nil {
    job.TranscriptionText = *patch.TranscriptionText
  }
  if patch.TranscriptionSource != nil {
    job.TranscriptionSource = *patch.TranscriptionSource
  }
  if patch.EnrichedContent != nil {
    job.EnrichedContent = *patch.EnrichedContent
  }
  if patch.Analysis != nil {
    job.Analysis = *patch.Analysis
  }
  if patch.Message != nil {
    job.Message = *patch.Message
  }
  if patch.ErrorMessage != nil {
    job.ErrorMessage = *patch.ErrorMessage
  }
  job.UpdatedAt = time.Now()
  return nil
}

func (r *memoryJobRepo) ClaimNextQueued(ctx context.Context) (*types.TranscriptionJob, error) {
  r.mu.Lock()
  defer r.mu.Unlock()
  for _, id := range r.order {
    job, ok := r.jobs[id]
    if !ok {
      continue
    }
    if job.Stage == types.JobStageQueued && job.Status == types.JobStatusProcessing {
      job.Stage = types.JobStageTranscribing
      job.UpdatedAt = time.Now()
      cp := *job
      return &cp, nil
    }
  }
  return nil, nil
}
