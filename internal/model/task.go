package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DownloadTask represents a single download request and its runtime state
type DownloadTask struct {
	ID            string
	URL           string
	Quality       string // quality preset name, e.g. "1080p" or "mp3"
	OutputDir     string // directory the engine writes into
	Status        TaskStatus
	Progress      float64   // 0.0 to 1.0
	Percent       int       // 0 to 100
	Speed         string    // human readable speed (e.g., "1.2 MB/s")
	ETASec        int       // ETA in seconds, -1 if unknown
	Attempt       int       // 1-based attempt currently running
	LastError     string    // last error message if any
	ErrorCategory string    // classification of LastError
	OutputPath    string    // path to downloaded file
	Title         string    // video title
	FileSize      int64     // file size in bytes
	StartedAt     time.Time // when the task was accepted
	FinishedAt    time.Time // when the task reached a terminal state
}

// Snapshot returns a copy that can be handed to another goroutine
func (dt *DownloadTask) Snapshot() DownloadTask {
	return *dt
}

// GetETAString returns ETA formatted as mm:ss or hh:mm:ss, or "—" if unknown
func (dt *DownloadTask) GetETAString() string {
	return FormatETA(dt.ETASec)
}

// FormatETA formats seconds as mm:ss or hh:mm:ss; non-positive values are unknown
func FormatETA(sec int) string {
	if sec <= 0 {
		return "—"
	}

	hours := sec / 3600
	minutes := (sec % 3600) / 60
	seconds := sec % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// GetDisplayTitle returns title, filename, or URL in order of preference
func (dt *DownloadTask) GetDisplayTitle() string {
	if dt.Title != "" && !strings.HasPrefix(dt.Title, "http") {
		return dt.Title
	}

	if dt.OutputPath != "" {
		// yt-dlp may report Windows paths even when tests run elsewhere
		name := filepath.Base(strings.ReplaceAll(dt.OutputPath, "\\", "/"))
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[:idx]
		}
		if name != "" && name != "." && name != "/" {
			return name
		}
	}

	return dt.URL
}
