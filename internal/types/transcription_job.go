package types

import (
	"time"

	"gorm.io/datatypes"
)

// Observable job statuses. A job is "processing" from the moment the
// submission is accepted; there is no client-visible pending state.
const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Internal pipeline stages. The stage drives worker scheduling and is not
// part of the API response shape.
const (
	JobStageQueued       = "queued"
	JobStageTranscribing = "transcribing"
	JobStageEnriching    = "enriching"
	JobStageDone         = "done"
)

// Transcript provenance, set by whichever strategy produced the transcript.
const (
	TranscriptSourceGCPSpeech       = "gcp_speech"
	TranscriptSourceMultimodal      = "multimodal"
	TranscriptSourceContextFallback = "context_fallback"
	TranscriptSourceCannedDefault   = "canned_default"
)

type TranscriptionJob struct {
	ID                  string         `gorm:"primaryKey" json:"id"`
	Status              string         `gorm:"column:status;not null;index" json:"status"`
	Stage               string         `gorm:"column:stage;not null;index" json:"-"`
	Progress            int            `gorm:"column:progress;not null;default:0" json:"progress"`
	VideoMetadata       VideoMetadata  `gorm:"embedded;embeddedPrefix:meta_" json:"videoMetadata"`
	TranscriptionText   string         `gorm:"column:transcription_text;type:text" json:"transcriptionText,omitempty"`
	TranscriptionSource string         `gorm:"column:transcription_source" json:"transcriptionSource,omitempty"`
	EnrichedContent     string         `gorm:"column:enriched_content;type:text" json:"enrichedContent,omitempty"`
	Analysis            datatypes.JSON `gorm:"type:jsonb;column:analysis" json:"analysis,omitempty"`
	Message             string         `gorm:"column:message" json:"message,omitempty"`
	ErrorMessage        string         `gorm:"column:error_message" json:"errorMessage,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;index" json:"createdAt"`
	UpdatedAt           time.Time      `gorm:"not null" json:"updatedAt"`
}

func (TranscriptionJob) TableName() string { return "transcription_job" }

// Terminal reports whether the job has reached a state that must never be
// written to again.
func (j *TranscriptionJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// VideoMetadata is a value object captured at submission time and embedded
// in the job record. It is never mutated after creation.
type VideoMetadata struct {
	Title       string    `gorm:"column:title" json:"title"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	CourseID    string    `gorm:"column:course_id" json:"courseId"`
	CourseName  string    `gorm:"column:course_name" json:"courseName"`
	FileName    string    `gorm:"column:file_name" json:"fileName"`
	FileSize    int64     `gorm:"column:file_size" json:"fileSize"`
	MimeType    string    `gorm:"column:mime_type" json:"mimeType"`
	Duration    string    `gorm:"column:duration" json:"duration,omitempty"`
	UploadedAt  time.Time `gorm:"column:uploaded_at" json:"uploadedAt"`
}
