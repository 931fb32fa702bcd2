package repos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edulens/edulens-backend/internal/logger"
	"github.com/edulens/edulens-backend/internal/types"
)

func newMemoryRepo(t *testing.T) TranscriptionJobRepo {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewMemoryJobRepo(log)
}

func newJob(id string) *types.TranscriptionJob {
	now := time.Now()
	return &types.TranscriptionJob{
		ID:       id,
		Status:   types.JobStatusProcessing,
		Stage:    types.JobStageQueued,
		Progress: 0,
		VideoMetadata: types.VideoMetadata{
			Title:      "Intro",
			CourseID:   "cs101",
			CourseName: "CS101",
			FileName:   "lecture.mp4",
			FileSize:   1024,
			MimeType:   "video/mp4",
			UploadedAt: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryRepoCreateAndGet(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("req_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, "req_1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.ID != "req_1" {
		t.Fatalf("GetByID: job missing")
	}

	absent, err := repo.GetByID(ctx, "req_nope")
	if err != nil {
		t.Fatalf("GetByID absent: %v", err)
	}
	if absent != nil {
		t.Fatalf("GetByID absent: want nil, got %+v", absent)
	}
}

func TestMemoryRepoRejectsDuplicateID(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("req_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, newJob("req_1")); err == nil {
		t.Fatalf("Create duplicate: want error")
	}
}

func TestMemoryRepoReadsAreCopies(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("req_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := repo.GetByID(ctx, "req_1")
	got.Status = types.JobStatusFailed

	again, _ := repo.GetByID(ctx, "req_1")
	if again.Status != types.JobStatusProcessing {
		t.Fatalf("mutating a returned job leaked into the store")
	}
}

func TestMemoryRepoUpdateFields(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("req_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stage := types.JobStageTranscribing
	progress := 25
	text := "hello"
	if err := repo.UpdateFields(ctx, "req_1", JobPatch{
		Stage:             &stage,
		Progress:          &progress,
		TranscriptionText: &text,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	got, _ := repo.GetByID(ctx, "req_1")
	if got.Stage != stage || got.Progress != 25 || got.TranscriptionText != "hello" {
		t.Fatalf("UpdateFields not applied: %+v", got)
	}

	if err := repo.UpdateFields(ctx, "req_missing", JobPatch{Progress: &progress}); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("UpdateFields missing: want ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepoProgressNeverRegresses(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("req_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	high := 75
	low := 25
	if err := repo.UpdateFields(ctx, "req_1", JobPatch{Progress: &high}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := repo.UpdateFields(ctx, "req_1", JobPatch{Progress: &low}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	got, _ := repo.GetByID(ctx, "req_1")
	if got.Progress != 75 {
		t.Fatalf("progress regressed: want 75, got %d", got.Progress)
	}
}

func TestMemoryRepoTerminalStateImmutable(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("req_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	completed := types.JobStatusCompleted
	if err := repo.UpdateFields(ctx, "req_1", JobPatch{Status: &completed}); err != nil {
		t.Fatalf("UpdateFields to completed: %v", err)
	}

	progress := 10
	err := repo.UpdateFields(ctx, "req_1", JobPatch{Progress: &progress})
	if !errors.Is(err, ErrJobTerminal) {
		t.Fatalf("UpdateFields on terminal job: want ErrJobTerminal, got %v", err)
	}
}

func TestMemoryRepoClaimIsFIFOAndExclusive(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	first := newJob("req_1")
	time.Sleep(time.Millisecond)
	second := newJob("req_2")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := repo.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if claimed == nil || claimed.ID != "req_1" {
		t.Fatalf("claim order: want req_1, got %+v", claimed)
	}
	if claimed.Stage != types.JobStageTranscribing {
		t.Fatalf("claimed stage: want transcribing, got %q", claimed.Stage)
	}

	claimed2, err := repo.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if claimed2 == nil || claimed2.ID != "req_2" {
		t.Fatalf("claim order: want req_2, got %+v", claimed2)
	}

	claimed3, err := repo.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if claimed3 != nil {
		t.Fatalf("empty queue: want nil, got %+v", claimed3)
	}
}

func TestMemoryRepoListNewestFirst(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("req_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, newJob("req_2")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("List: want 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "req_2" || jobs[1].ID != "req_1" {
		t.Fatalf("List order: want newest first, got [%s %s]", jobs[0].ID, jobs[1].ID)
	}
}
