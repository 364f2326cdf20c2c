package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ytget/video-downloader/internal/diag"
	"github.com/ytget/video-downloader/internal/events"
	"github.com/ytget/video-downloader/internal/model"
	"github.com/ytget/video-downloader/internal/platform"
	"github.com/ytget/video-downloader/internal/validate"
)

// PlaylistResult summarises a playlist download
type PlaylistResult struct {
	Playlist  *model.Playlist
	Dir       string
	Total     int
	Completed int
	Failed    int
	Skipped   int
}

// OK reports whether every entry was downloaded
func (r *PlaylistResult) OK() bool {
	return r != nil && r.Total > 0 && r.Completed == r.Total
}

// DownloadPlaylist lists the playlist behind req.URL and downloads its
// entries one after another into a subfolder named after the playlist.
// Entries left when ctx ends are marked skipped.
func (s *Service) DownloadPlaylist(ctx context.Context, req Request) (*PlaylistResult, error) {
	log := s.logger.With(slog.String("playlist_url", req.URL))

	pl, err := s.lister.List(ctx, req.URL, req.PlaylistLimit)
	if err != nil {
		return &PlaylistResult{Playlist: pl}, fmt.Errorf("failed to list playlist: %w", err)
	}
	if pl.Total() == 0 {
		pl.UpdateStatus(model.PlaylistStatusError)
		return &PlaylistResult{Playlist: pl}, errors.New("playlist has no entries")
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		s.tasksMutex.RLock()
		outputDir = s.outputDir
		s.tasksMutex.RUnlock()
	}
	dir := filepath.Join(outputDir, validate.SanitizeName(pl.Title))
	if err := platform.CreateDirectoryIfNotExists(dir); err != nil {
		pl.UpdateStatus(model.PlaylistStatusError)
		return &PlaylistResult{Playlist: pl, Dir: dir}, fmt.Errorf("failed to create playlist directory: %w", err)
	}

	log.Info("downloading playlist", slog.String("title", pl.Title), slog.Int("entries", pl.Total()), slog.String("dir", dir))
	pl.UpdateStatus(model.PlaylistStatusDownloading)

	for _, v := range pl.Videos {
		if ctx.Err() != nil {
			s.setItem(pl, v, model.VideoStatusSkipped, nil)
			continue
		}
		s.setItem(pl, v, model.VideoStatusDownloading, nil)
		log.Info("playlist entry", slog.Int("index", v.Index), slog.Int("total", pl.Total()), slog.String("title", v.Title))

		task, err := s.Run(ctx, Request{
			URL:       v.URL,
			OutputDir: dir,
			Quality:   req.Quality,
			AudioOnly: req.AudioOnly,
		})
		switch {
		case err == nil:
			v.OutputPath = task.OutputPath
			s.setItem(pl, v, model.VideoStatusCompleted, nil)
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			s.setItem(pl, v, model.VideoStatusSkipped, nil)
		default:
			s.setItem(pl, v, model.VideoStatusError, err)
		}
	}

	res := &PlaylistResult{
		Playlist:  pl,
		Dir:       dir,
		Total:     pl.Total(),
		Completed: pl.Completed(),
		Failed:    pl.Failed(),
		Skipped:   pl.Skipped(),
	}
	if err := ctx.Err(); err != nil {
		pl.UpdateStatus(model.PlaylistStatusCancelled)
		log.Warn("playlist cancelled", slog.Int("completed", res.Completed), slog.Int("skipped", res.Skipped))
		return res, err
	}

	pl.UpdateStatus(model.PlaylistStatusCompleted)
	attrs := []any{slog.Int("completed", res.Completed), slog.Int("failed", res.Failed), slog.Int("total", res.Total)}
	if res.OK() {
		attrs = append(attrs, diag.Success())
	}
	log.Info("playlist finished", attrs...)
	return res, nil
}

func (s *Service) setItem(pl *model.Playlist, v *model.PlaylistVideo, status model.VideoStatus, err error) {
	pl.SetVideoStatus(v, status, err)
	s.bus.PublishPlaylistItem(events.PlaylistItemEvent{
		PlaylistID: pl.ID,
		Video:      *v,
		Total:      pl.Total(),
	})
}
