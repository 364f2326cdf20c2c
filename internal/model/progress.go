package model

import "time"

// ProgressStatus mirrors the engine's progress phases
type ProgressStatus string

const (
	ProgressDownloading ProgressStatus = "downloading"
	ProgressFinished    ProgressStatus = "finished"
	ProgressError       ProgressStatus = "error"
)

// Progress is a transient snapshot reported by the engine while a file is transferred
type Progress struct {
	TaskID          string
	Status          ProgressStatus
	DownloadedBytes int
	TotalBytes      int
	SpeedBps        float64 // bytes per second, 0 if unknown
	ETA             time.Duration
	Filename        string
	Title           string
}

// Fraction returns completed ratio in [0, 1], or 0 when the total is unknown
func (p Progress) Fraction() float64 {
	if p.TotalBytes <= 0 {
		return 0
	}
	f := float64(p.DownloadedBytes) / float64(p.TotalBytes)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// Percent returns Fraction scaled to 0..100
func (p Progress) Percent() int {
	return int(p.Fraction() * 100)
}
