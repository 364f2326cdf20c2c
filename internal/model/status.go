package model

// TaskStatus represents the lifecycle state of a download task
type TaskStatus string

const (
	// TaskStatusPending means the task is queued and waiting for a free slot
	TaskStatusPending TaskStatus = "Pending"

	// TaskStatusStarting means pre-flight and engine setup are running
	TaskStatusStarting TaskStatus = "Starting"

	// TaskStatusDownloading means the engine is transferring data
	TaskStatusDownloading TaskStatus = "Downloading"

	// TaskStatusRetrying means the last attempt failed and the task waits for the next one
	TaskStatusRetrying TaskStatus = "Retrying"

	// TaskStatusStopping means cancellation was requested
	TaskStatusStopping TaskStatus = "Stopping"

	// TaskStatusStopped means the task was cancelled by the user
	TaskStatusStopped TaskStatus = "Stopped"

	// TaskStatusCompleted means the engine reported success
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusError means the task failed for good
	TaskStatusError TaskStatus = "Error"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true while a worker goroutine owns the task
func (ts TaskStatus) IsActive() bool {
	switch ts {
	case TaskStatusStarting, TaskStatusDownloading, TaskStatusRetrying, TaskStatusStopping:
		return true
	}
	return false
}

// IsFinished returns true if the task is in a terminal state (completed, stopped, or error)
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusStopped || ts == TaskStatusError
}
