package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of a transcode job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusFailed     Status = "FAILED"
)

// Valid status transitions:
// PENDING -> PROCESSING -> READY
//                     \-> FAILED
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusReady, StatusFailed},
	StatusReady:      {},
	StatusFailed:     {},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReady, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) CanTransitionTo(next Status) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transition can occur.
func (s Status) IsTerminal() bool {
	return s == StatusReady || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// TranscodeJob is the durable status record for one transcode attempt of a
// file. A file's current status is the status of its most recent job; a
// reprocess request creates a new job rather than reviving a FAILED one.
type TranscodeJob struct {
	ID            uuid.UUID
	FileID        uuid.UUID
	SourceKey     string
	Status        Status
	ProcessedPath string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	ErrInvalidFileID     = errors.New("file ID cannot be nil")
	ErrEmptySourceKey    = errors.New("source key cannot be empty")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// maxErrorMessageLength bounds the failure reason persisted on the record.
const maxErrorMessageLength = 500

// NewTranscodeJob creates a new job in PENDING status.
func NewTranscodeJob(fileID uuid.UUID, sourceKey string) (*TranscodeJob, error) {
	if fileID == uuid.Nil {
		return nil, ErrInvalidFileID
	}
	if sourceKey == "" {
		return nil, ErrEmptySourceKey
	}

	now := time.Now()
	return &TranscodeJob{
		ID:        uuid.New(),
		FileID:    fileID,
		SourceKey: sourceKey,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo attempts to change the job status.
// Returns error if the transition is not allowed.
func (j *TranscodeJob) TransitionTo(next Status) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !j.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	j.Status = next
	j.UpdatedAt = time.Now()
	return nil
}

// MarkReady moves a PROCESSING job to READY with its manifest key.
func (j *TranscodeJob) MarkReady(processedPath string) error {
	if err := j.TransitionTo(StatusReady); err != nil {
		return err
	}
	j.ProcessedPath = processedPath
	return nil
}

// MarkFailed moves a PROCESSING job to FAILED, recording a truncated reason.
func (j *TranscodeJob) MarkFailed(reason string) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.ErrorMessage = TruncateReason(reason)
	return nil
}

// TruncateReason shortens a failure reason to what the record stores.
func TruncateReason(reason string) string {
	if len(reason) <= maxErrorMessageLength {
		return reason
	}
	return reason[:maxErrorMessageLength]
}

// IsReady returns true if the processed output is discoverable.
func (j *TranscodeJob) IsReady() bool {
	return j.Status == StatusReady
}

// IsFailed returns true if the job reached the terminal FAILED state.
func (j *TranscodeJob) IsFailed() bool {
	return j.Status == StatusFailed
}
