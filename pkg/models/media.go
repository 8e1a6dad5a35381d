package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MediaStatus string

const (
	MediaStatusPending MediaStatus = "pending"
	MediaStatusReady   MediaStatus = "ready"
	MediaStatusFailed  MediaStatus = "failed"
)

// MediaAttachment is an uploaded object. It starts pending and becomes ready
// (or failed) once its ProcessingJob finishes.
type MediaAttachment struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID     uuid.UUID   `json:"owner_id" gorm:"type:uuid;index;not null"`
	PostID      *uuid.UUID  `json:"post_id,omitempty" gorm:"type:uuid;index"`
	StorageKey  string      `json:"storage_key" gorm:"type:varchar(500);uniqueIndex;not null"`
	PublicURL   string      `json:"public_url" gorm:"type:varchar(500)"`
	ContentType string      `json:"content_type" gorm:"type:varchar(100);not null"`
	SizeBytes   int64       `json:"size_bytes" gorm:"not null"`
	Status      MediaStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (MediaAttachment) TableName() string {
	return "media_attachments"
}

func (m *MediaAttachment) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

// jobTransitions is the allowed state graph. Cancelled is reachable from any
// non-terminal state; a failed attempt below MaxAttempts re-queues as pending.
var jobTransitions = map[JobState][]JobState{
	JobStatePending:    {JobStateQueued, JobStateCancelled},
	JobStateQueued:     {JobStateProcessing, JobStateCancelled},
	JobStateProcessing: {JobStateCompleted, JobStateFailed, JobStatePending, JobStateCancelled},
	JobStateCompleted:  {},
	JobStateFailed:     {},
	JobStateCancelled:  {},
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobState) IsTerminal() bool {
	return len(jobTransitions[s]) == 0
}

// ProcessingJob is the async work item attached to an upload. The worker
// drives it pending → queued → processing → completed/failed, bumping
// Attempts on each processing run.
type ProcessingJob struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	AttachmentID uuid.UUID      `json:"attachment_id" gorm:"type:uuid;index;not null"`
	State        JobState       `json:"state" gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts     int            `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts  int            `json:"max_attempts" gorm:"not null;default:3"`
	LastError    *string        `json:"last_error,omitempty" gorm:"type:text"`
	Payload      datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (ProcessingJob) TableName() string {
	return "processing_jobs"
}

func (j *ProcessingJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.State == "" {
		j.State = JobStatePending
	}
	return nil
}

// CanTransition reports whether the job may move to the target state.
func (j *ProcessingJob) CanTransition(to JobState) bool {
	for _, allowed := range jobTransitions[j.State] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the job to the target state, stamping StartedAt and
// CompletedAt as appropriate. Invalid transitions are rejected.
func (j *ProcessingJob) Transition(to JobState) error {
	if !j.CanTransition(to) {
		return fmt.Errorf("invalid job transition %s → %s", j.State, to)
	}
	now := time.Now().UTC()
	switch to {
	case JobStateProcessing:
		j.Attempts++
		j.StartedAt = &now
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		j.CompletedAt = &now
	}
	j.State = to
	return nil
}
