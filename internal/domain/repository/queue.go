package repository

import (
	"context"

	"github.com/google/uuid"
)

// TranscodeTask represents a transcode job message.
type TranscodeTask struct {
	JobID     uuid.UUID `json:"job_id"`
	FileID    uuid.UUID `json:"file_id"`
	SourceKey string    `json:"source_key"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishTranscodeTask sends a transcode task to the queue.
	PublishTranscodeTask(ctx context.Context, task TranscodeTask) error

	// ConsumeTranscodeTasks consumes tasks until ctx is cancelled, calling
	// handler for each received task.
	ConsumeTranscodeTasks(ctx context.Context, handler func(ctx context.Context, task TranscodeTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
