package model

import "testing"

func TestTaskStatus_Lifecycle(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		label    string
		active   bool
		finished bool
	}{
		{TaskStatusPending, "Pending", false, false},
		{TaskStatusStarting, "Starting", true, false},
		{TaskStatusDownloading, "Downloading", true, false},
		{TaskStatusRetrying, "Retrying", true, false},
		{TaskStatusStopping, "Stopping", true, false},
		{TaskStatusStopped, "Stopped", false, true},
		{TaskStatusCompleted, "Completed", false, true},
		{TaskStatusError, "Error", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := tt.status.String(); got != tt.label {
				t.Errorf("String() = %q, want %q", got, tt.label)
			}
			if got := tt.status.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if got := tt.status.IsFinished(); got != tt.finished {
				t.Errorf("IsFinished() = %v, want %v", got, tt.finished)
			}
			if tt.status.IsActive() && tt.status.IsFinished() {
				t.Errorf("%s is both active and finished", tt.status)
			}
		})
	}
}

func TestTaskStatus_UnknownIsNeither(t *testing.T) {
	s := TaskStatus("Paused")
	if s.IsActive() || s.IsFinished() {
		t.Errorf("unknown status %q should be neither active nor finished", s)
	}
}
