package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/video-downloader/internal/model"
	"github.com/ytget/video-downloader/internal/validate"
)

// DefaultListTimeout bounds a playlist listing
const DefaultListTimeout = 60 * time.Second

// Playlist naming
const (
	DefaultPlaylistName = "Unknown Playlist"
	MinPrefixLength     = 10
	PlaylistSuffix      = " Playlist"
	MixPrefix           = "Mix - "
)

// YouTubeVideoURLTemplate builds a watch URL from a video id
const YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"

// PlaylistItem is one entry returned by an ItemSource
type PlaylistItem struct {
	VideoID string
	Title   string
}

// ItemSource fetches playlist entries; limit <= 0 means all
type ItemSource func(ctx context.Context, playlistID string, limit int) ([]PlaylistItem, error)

// PlaylistLister resolves a playlist URL into a model.Playlist
type PlaylistLister struct {
	timeout time.Duration
	source  ItemSource
}

// NewPlaylistLister creates a lister backed by github.com/ytget/ytdlp/v2
func NewPlaylistLister() *PlaylistLister {
	return &PlaylistLister{timeout: DefaultListTimeout, source: ytdlpItems}
}

// NewPlaylistListerWithSource is used by tests and alternative backends
func NewPlaylistListerWithSource(source ItemSource) *PlaylistLister {
	return &PlaylistLister{timeout: DefaultListTimeout, source: source}
}

// SetTimeout sets the timeout for listing
func (l *PlaylistLister) SetTimeout(timeout time.Duration) {
	l.timeout = timeout
}

func ytdlpItems(ctx context.Context, playlistID string, limit int) ([]PlaylistItem, error) {
	if limit < 0 {
		limit = 0
	}
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]PlaylistItem, 0, len(items))
	for _, it := range items {
		out = append(out, PlaylistItem{VideoID: it.VideoID, Title: it.Title})
	}
	return out, nil
}

// List fetches the entries of a playlist URL. Mix playlists are endless, so
// they are always capped at validate.MixPlaylistLimit; limit caps the rest.
func (l *PlaylistLister) List(ctx context.Context, url string, limit int) (*model.Playlist, error) {
	if !validate.IsPlaylistURL(url) {
		return nil, fmt.Errorf("invalid playlist URL: %s", url)
	}
	id := validate.PlaylistID(url)
	if id == "" {
		return nil, fmt.Errorf("could not extract playlist ID from URL: %s", url)
	}

	playlist := model.NewPlaylist(url)
	playlist.ID = id
	playlist.IsMix = validate.IsMixPlaylist(url)
	if playlist.IsMix && (limit <= 0 || limit > validate.MixPlaylistLimit) {
		limit = validate.MixPlaylistLimit
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	items, err := l.source(ctx, id, limit)
	if err != nil {
		playlist.Error = err.Error()
		playlist.UpdateStatus(model.PlaylistStatusError)
		return playlist, fmt.Errorf("failed to get playlist items: %w", err)
	}

	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		playlist.AddVideo(&model.PlaylistVideo{
			ID:    it.VideoID,
			Title: it.Title,
			URL:   fmt.Sprintf(YouTubeVideoURLTemplate, it.VideoID),
		})
	}
	playlist.Truncate(limit)
	playlist.Title = playlistTitle(playlist)
	playlist.UpdateStatus(model.PlaylistStatusReady)
	return playlist, nil
}

// playlistTitle derives a folder-friendly name from the entries, since the
// listing does not carry the playlist's own title
func playlistTitle(p *model.Playlist) string {
	if len(p.Videos) == 0 {
		if p.ID != "" {
			return "Playlist " + p.ID
		}
		return DefaultPlaylistName
	}
	if p.IsMix {
		return MixPrefix + p.Videos[0].Title
	}
	if len(p.Videos) > 1 {
		prefix := commonPrefix(p.Videos[0].Title, p.Videos[1].Title)
		if len(prefix) > MinPrefixLength {
			return strings.TrimSpace(prefix) + PlaylistSuffix
		}
	}
	return p.Videos[0].Title + PlaylistSuffix
}

func commonPrefix(s1, s2 string) string {
	r1, r2 := []rune(s1), []rune(s2)
	n := min(len(r1), len(r2))
	for i := 0; i < n; i++ {
		if r1[i] != r2[i] {
			return string(r1[:i])
		}
	}
	return string(r1[:n])
}
