package model

import (
	"time"
)

// PlaylistStatus represents the current status of a playlist
type PlaylistStatus string

const (
	PlaylistStatusParsing     PlaylistStatus = "parsing"
	PlaylistStatusReady       PlaylistStatus = "ready"
	PlaylistStatusDownloading PlaylistStatus = "downloading"
	PlaylistStatusCompleted   PlaylistStatus = "completed"
	PlaylistStatusCancelled   PlaylistStatus = "cancelled"
	PlaylistStatusError       PlaylistStatus = "error"
)

// VideoStatus represents the status of a single playlist entry
type VideoStatus string

const (
	VideoStatusPending     VideoStatus = "pending"
	VideoStatusDownloading VideoStatus = "downloading"
	VideoStatusCompleted   VideoStatus = "completed"
	VideoStatusError       VideoStatus = "error"
	VideoStatusSkipped     VideoStatus = "skipped"
)

// PlaylistVideo represents a single entry in a playlist
type PlaylistVideo struct {
	Index      int         `json:"index" yaml:"index"` // 1-based position
	ID         string      `json:"id" yaml:"id"`
	Title      string      `json:"title" yaml:"title"`
	URL        string      `json:"url" yaml:"url"`
	Status     VideoStatus `json:"status" yaml:"status"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
	OutputPath string      `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at" yaml:"updated_at"`
}

// Playlist represents a playlist and its entries in download order
type Playlist struct {
	ID        string           `json:"id" yaml:"id"`
	Title     string           `json:"title" yaml:"title"`
	URL       string           `json:"url" yaml:"url"`
	IsMix     bool             `json:"is_mix" yaml:"is_mix"`
	Videos    []*PlaylistVideo `json:"videos" yaml:"videos"`
	Status    PlaylistStatus   `json:"status" yaml:"status"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" yaml:"updated_at"`
}

// NewPlaylist creates a new playlist instance
func NewPlaylist(url string) *Playlist {
	now := time.Now()
	return &Playlist{
		URL:       url,
		Status:    PlaylistStatusParsing,
		Videos:    make([]*PlaylistVideo, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddVideo appends an entry and assigns its position
func (p *Playlist) AddVideo(video *PlaylistVideo) {
	video.Index = len(p.Videos) + 1
	if video.Status == "" {
		video.Status = VideoStatusPending
	}
	p.Videos = append(p.Videos, video)
	p.UpdatedAt = time.Now()
}

// Truncate keeps at most limit entries; limit <= 0 keeps everything
func (p *Playlist) Truncate(limit int) {
	if limit <= 0 || len(p.Videos) <= limit {
		return
	}
	p.Videos = p.Videos[:limit]
	p.UpdatedAt = time.Now()
}

// Total returns the number of entries
func (p *Playlist) Total() int {
	return len(p.Videos)
}

// UpdateStatus updates the playlist status
func (p *Playlist) UpdateStatus(status PlaylistStatus) {
	p.Status = status
	p.UpdatedAt = time.Now()
}

// SetVideoStatus updates the status of an entry and records an optional error
func (p *Playlist) SetVideoStatus(video *PlaylistVideo, status VideoStatus, err error) {
	video.Status = status
	if err != nil {
		video.Error = err.Error()
	}
	video.UpdatedAt = time.Now()
	p.UpdatedAt = video.UpdatedAt
}

// Completed returns the number of successfully downloaded entries
func (p *Playlist) Completed() int {
	return p.count(VideoStatusCompleted)
}

// Failed returns the number of failed entries
func (p *Playlist) Failed() int {
	return p.count(VideoStatusError)
}

// Skipped returns the number of entries skipped after cancellation
func (p *Playlist) Skipped() int {
	return p.count(VideoStatusSkipped)
}

func (p *Playlist) count(status VideoStatus) int {
	n := 0
	for _, v := range p.Videos {
		if v.Status == status {
			n++
		}
	}
	return n
}

// GetDownloadProgress returns overall download progress as percentage
func (p *Playlist) GetDownloadProgress() float64 {
	if len(p.Videos) == 0 {
		return 0
	}
	done := p.Completed() + p.Failed() + p.Skipped()
	return float64(done) / float64(len(p.Videos)) * 100
}
