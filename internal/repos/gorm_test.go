package repos

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/edulens/edulens-backend/internal/logger"
	"github.com/edulens/edulens-backend/internal/types"
)

// The claim path uses SKIP LOCKED and is postgres-only; these tests cover
// the portable operations against sqlite.
func newSqliteRepo(t *testing.T) TranscriptionJobRepo {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	if err := db.AutoMigrate(&types.TranscriptionJob{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return NewGormJobRepo(db, log)
}

func TestGormRepoCreateGetList(t *testing.T) {
	repo := newSqliteRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("req_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, "req_1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.VideoMetadata.Title != "Intro" {
		t.Fatalf("GetByID: got %+v", got)
	}

	absent, err := repo.GetByID(ctx, "req_nope")
	if err != nil {
		t.Fatalf("GetByID absent: %v", err)
	}
	if absent != nil {
		t.Fatalf("GetByID absent: want nil, got %+v", absent)
	}

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("List: want 1 job, got %d", len(jobs))
	}
}

func TestGormRepoUpdateFieldsAndTerminalGuard(t *testing.T) {
	repo := newSqliteRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("req_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	progress := 50
	text := "transcript"
	if err := repo.UpdateFields(ctx, "req_1", JobPatch{
		Progress:          &progress,
		TranscriptionText: &text,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	got, _ := repo.GetByID(ctx, "req_1")
	if got.Progress != 50 || got.TranscriptionText != "transcript" {
		t.Fatalf("UpdateFields not applied: %+v", got)
	}

	// Lower progress must clamp to the stored value.
	low := 10
	if err := repo.UpdateFields(ctx, "req_1", JobPatch{Progress: &low}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ = repo.GetByID(ctx, "req_1")
	if got.Progress != 50 {
		t.Fatalf("progress regressed: want 50, got %d", got.Progress)
	}

	failed := types.JobStatusFailed
	msg := "boom"
	if err := repo.UpdateFields(ctx, "req_1", JobPatch{Status: &failed, ErrorMessage: &msg}); err != nil {
		t.Fatalf("UpdateFields to failed: %v", err)
	}

	if err := repo.UpdateFields(ctx, "req_1", JobPatch{Progress: &progress}); !errors.Is(err, ErrJobTerminal) {
		t.Fatalf("UpdateFields on terminal job: want ErrJobTerminal, got %v", err)
	}

	if err := repo.UpdateFields(ctx, "req_missing", JobPatch{Progress: &progress}); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("UpdateFields missing: want ErrJobNotFound, got %v", err)
	}
}
