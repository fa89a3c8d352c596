package models

import "time"

// CleanupJob asks the worker to delete an object that a best-effort delete
// could not remove.
type CleanupJob struct {
	ID        string    `json:"id"`
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Error     string    `json:"error,omitempty"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	CleanupReasonReplaced = "replaced"
	CleanupReasonRemoved  = "removed"
	CleanupReasonRollback = "rollback"
)
