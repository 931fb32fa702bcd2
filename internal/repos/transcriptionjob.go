package repos

import (
  "context"
  "errors"
  "time"

  "gorm.io/datatypes"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/edulens/edulens-backend/internal/logger"
  "github.com/edulens/edulens-backend/internal/types"
)

var (
  // ErrJobNotFound is returned by write paths when no record exists for the id.
  ErrJobNotFound = errors.New("transcription job not found")
  // ErrJobTerminal is returned when a write targets a completed or failed job.
  ErrJobTerminal = errors.New("transcription job is in a terminal state")
)

// JobPatch is a typed partial update. Nil fields are left untouched.
// Progress never moves backwards: a patch carrying a lower value than the
// stored one is clamped to the stored value.
type JobPatch struct {
  Status              *string
  Stage               *string
  Progress            *int
  TranscriptionText   *string
  TranscriptionSource *string
  EnrichedContent     *string
  Analysis            *datatypes.JSON
  Message             *string
  ErrorMessage        *string
}

// TranscriptionJobRepo is the pluggable job store. A job record is created
// before the submit response returns and is mutated only by the worker that
// owns it; the status API reads concurrently.
type TranscriptionJobRepo interface {
  Create(ctx context.Context, job *types.TranscriptionJob) error
  // GetByID returns (nil, nil) when no record exists.
  GetByID(ctx context.Context, id string) (*types.TranscriptionJob, error)
  // List returns all jobs, newest first.
  List(ctx context.Context) ([]*types.TranscriptionJob, error)
  // UpdateFields applies a patch to a non-terminal job. Writes against
  // completed or failed jobs return ErrJobTerminal.
  UpdateFields(ctx context.Context, id string, patch JobPatch) error
  // ClaimNextQueued atomically claims the oldest queued job for processing,
  // moving its stage to transcribing. Returns (nil, nil) when the queue is
  // empty.
  ClaimNextQueued(ctx context.Context) (*types.TranscriptionJob, error)
}

type gormJobRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewGormJobRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptionJobRepo {
  repoLog := baseLog.With("repo", "TranscriptionJobRepo")
  return &gormJobRepo{db: db, log: repoLog}
}

func (r *gormJobRepo) Create(ctx context.Context, job *types.TranscriptionJob) error {
  if job == nil {
    return errors.New("nil job")
  }
  return r.db.WithContext(ctx).Create(job).Error
}

func (r *gormJobRepo) GetByID(ctx context.Context, id string) (*types.TranscriptionJob, error) {
  if id == "" {
    return nil, nil
  }
  var job types.TranscriptionJob
  err := r.db.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&job).Error
  if err != nil {
    return nil, err
  }
  if job.ID == "" {
    return nil, nil
  }
  return &job, nil
}

func (r *gormJobRepo) List(ctx context.Context) ([]*types.TranscriptionJob, error) {
  var jobs []*types.TranscriptionJob
  if err := r.db.WithContext(ctx).
    Order("created_at DESC").
    Find(&jobs).Error; err != nil {
    return nil, err
  }
  return jobs, nil
}

func (r *gormJobRepo) UpdateFields(ctx context.Context, id string, patch JobPatch) error {
  if id == "" {
    return ErrJobNotFound
  }
  updates := map[string]interface{}{
    "updated_at": time.Now(),
  }
  if patch.Status != nil {
    updates["status"] = *patch.Status
  }
  if patch.Stage != nil {
    updates["stage"] = *patch.Stage
  }
  if patch.Progress != nil {
    // Portable monotonic clamp (GREATEST is not available on sqlite).
    updates["progress"] = gorm.Expr("CASE WHEN progress > ? THEN progress ELSE ? END", *patch.Progress, *patch.Progress)
  }
  if patch.TranscriptionText != nil {
    updates["transcription_text"] = *patch.TranscriptionText
  }
  if patch.TranscriptionSource != nil {
    updates["transcription_source"] = *patch.TranscriptionSource
  }
  if patch.EnrichedContent != nil {
    updates["enriched_content"] = *patch.EnrichedContent
  }
  if patch.Analysis != nil {
    updates["analysis"] = *patch.Analysis
  }
  if patch.Message != nil {
    updates["message"] = *patch.Message
  }
  if patch.ErrorMessage != nil {
    updates["error_message"] = *patch.ErrorMessage
  }

  res := r.db.WithContext(ctx).
    Model(&types.TranscriptionJob{}).
    Where("id = ? AND status = ?", id, types.JobStatusProcessing).
    Updates(updates)
  if res.Error != nil {
    return res.Error
  }
  if res.RowsAffected == 0 {
    existing, err := r.GetByID(ctx, id)
    if err != nil {
      return err
    }
    if existing == nil {
      return ErrJobNotFound
    }
    return ErrJobTerminal
  }
  return nil
}

func (r *gormJobRepo) ClaimNextQueued(ctx context.Context) (*types.TranscriptionJob, error) {
  var claimed *types.TranscriptionJob

  err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    var job types.TranscriptionJob

    qErr := tx.
      Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
      Where("stage = ? AND status = ?", types.JobStageQueued, types.JobStatusProcessing).
      Order("created_at ASC").
      First(&job).Error
    if errors.Is(qErr, gorm.ErrRecordNotFound) {
      return nil
    }
    if qErr != nil {
      return qErr
    }

    uErr := tx.Model(&types.TranscriptionJob{}).
      Where("id = ?", job.ID).
      Updates(map[string]interface{}{
        "stage":      types.JobStageTranscribing,
        "updated_at": time.Now(),
      }).Error
    if uErr != nil {
      return uErr
    }

    job.Stage = types.JobStageTranscribing
    claimed = &job
    return nil
  })

  if err != nil {
    return nil, err
  }
  return claimed, nil
}
