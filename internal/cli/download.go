package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytget/video-downloader/internal/config"
	"github.com/ytget/video-downloader/internal/diag"
	"github.com/ytget/video-downloader/internal/download"
	"github.com/ytget/video-downloader/internal/model"
	"github.com/ytget/video-downloader/internal/preflight"
	"github.com/ytget/video-downloader/internal/quality"
	"github.com/ytget/video-downloader/internal/retry"
	"github.com/ytget/video-downloader/internal/toolchain"
	"github.com/ytget/video-downloader/internal/validate"
)

// shutdownTimeout bounds how long queued downloads get to stop on exit
const shutdownTimeout = 10 * time.Second

type downloadFlags struct {
	quality     string
	outputDir   string
	audioOnly   bool
	retries     int
	browser     string
	noPreflight bool
	playlist    bool
	limit       int
	logDir      string
}

func (a *App) downloadCommand() *cobra.Command {
	var f downloadFlags
	cmd := &cobra.Command{
		Use:   "download URL [URL...]",
		Short: "Download videos, their audio tracks or a playlist",
		Example: `  vdl download "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
  vdl download "https://youtu.be/dQw4w9WgXcQ" -o ~/Videos --quality 1080p
  vdl download "https://youtu.be/dQw4w9WgXcQ" -a
  vdl download "https://www.youtube.com/playlist?list=PL..." --playlist --limit 20
  vdl download "https://youtu.be/aaaaaaaaaaa" "https://youtu.be/bbbbbbbbbbb"`,
		Args: minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("retries") && f.retries < 1 {
				return usagef("--retries must be at least 1, got %d", f.retries)
			}
			if f.limit < 0 {
				return usagef("--limit must not be negative, got %d", f.limit)
			}
			if f.playlist && len(args) > 1 {
				return usagef("--playlist takes a single URL, got %d", len(args))
			}
			return a.runDownload(cmd.Context(), args, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.quality, "quality", "q", "", "quality: "+strings.Join(quality.Names(), ", ")+" (default from config)")
	fl.StringVarP(&f.outputDir, "output", "o", "", "output directory (default from config)")
	fl.BoolVarP(&f.audioOnly, "audio-only", "a", false, "download audio only")
	fl.IntVar(&f.retries, "retries", 0, "total download attempts (default from config)")
	fl.StringVar(&f.browser, "browser", "", "browser to read cookies from, or \"none\" (default: automatic)")
	fl.BoolVar(&f.noPreflight, "no-preflight", false, "skip the connectivity and disk space checks")
	fl.BoolVar(&f.playlist, "playlist", false, "download every entry of the playlist in URL")
	fl.IntVar(&f.limit, "limit", 0, "maximum number of playlist entries, 0 for all")
	fl.StringVar(&f.logDir, "log-dir", "", "write a diagnostics log file into this directory when done")
	return cmd
}

func (a *App) runDownload(ctx context.Context, rawURLs []string, f downloadFlags) error {
	cfg, logger, buf, err := a.setup()
	if err != nil {
		return err
	}
	if f.logDir != "" {
		defer func() { a.exportLog(buf, f.logDir) }()
	}

	urls := make([]string, 0, len(rawURLs))
	for _, raw := range rawURLs {
		u, err := validate.URL(raw)
		if err != nil {
			return err
		}
		urls = append(urls, u)
	}
	q := f.quality
	if q == "" {
		q = cfg.Download.Quality
	}
	if _, err := quality.Lookup(q); err != nil {
		return err
	}
	outputDir := cfg.Download.OutputDir
	if f.outputDir != "" {
		if outputDir, err = validate.OutputPath(f.outputDir, ""); err != nil {
			return err
		}
	}
	attempts := cfg.Download.RetryAttempts
	if f.retries > 0 {
		attempts = f.retries
	}
	browser := cfg.Cookies.Browser
	if f.browser != "" {
		browser = f.browser
	}

	tc := a.Discover(ctx, toolchain.Options{Logger: logger})
	if !tc.YTDLP.Found() {
		return errors.New("yt-dlp not found, run 'vdl check-deps --install'")
	}

	if cfg.Preflight.Enabled && !f.noPreflight {
		if err := a.runPreflight(ctx, cfg, outputDir, logger); err != nil {
			return err
		}
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = attempts
	svc := download.NewService(download.Options{
		OutputDir:   outputDir,
		MaxParallel: cfg.Download.MaxConcurrent,
		Policy:      policy,
		Runner:      a.NewRunner(tc, logger),
		Cookies:     a.NewCookies(browser, logger),
		Lister:      a.NewLister(cfg.DownloadTimeout()),
		Prober:      tc,
		Logger:      logger,
		Timer:       a.RetryTimer,
	})

	// concurrent tasks would fight over a redrawn line
	printer := newProgressPrinter(a.Stdout, a.IsTerminal(a.Stdout) && len(urls) == 1)
	unsubscribe, err := svc.Bus().OnProgress(printer.Update)
	if err != nil {
		return err
	}
	defer unsubscribe()

	req := download.Request{
		URL:           urls[0],
		OutputDir:     outputDir,
		Quality:       q,
		AudioOnly:     f.audioOnly,
		Playlist:      f.playlist,
		PlaylistLimit: f.limit,
	}
	fmt.Fprintf(a.Stdout, "Downloading to: %s\n", outputDir)

	if len(urls) > 1 {
		return a.downloadAll(ctx, svc, req, urls, printer)
	}

	if f.playlist {
		res, err := svc.DownloadPlaylist(ctx, req)
		printer.Done()
		if res != nil && res.Playlist != nil && res.Total > 0 {
			fmt.Fprintf(a.Stdout, "Playlist %q: %d/%d downloaded, %d failed, %d skipped -> %s\n",
				res.Playlist.Title, res.Completed, res.Total, res.Failed, res.Skipped, res.Dir)
		}
		if err != nil {
			return err
		}
		if !res.OK() {
			return fmt.Errorf("%d of %d playlist entries were not downloaded", res.Total-res.Completed, res.Total)
		}
		return nil
	}

	task, err := svc.Run(ctx, req)
	printer.Done()
	if err != nil {
		return err
	}
	if task.OutputPath != "" {
		fmt.Fprintf(a.Stdout, "Saved: %s\n", task.OutputPath)
	} else {
		fmt.Fprintf(a.Stdout, "Downloaded: %s\n", task.GetDisplayTitle())
	}
	return nil
}

// downloadAll queues every URL and reports each result in argument order
func (a *App) downloadAll(ctx context.Context, svc *download.Service, base download.Request, urls []string, printer *progressPrinter) error {
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = svc.Shutdown(sctx)
	}()

	ids := make([]string, len(urls))
	failed := 0
	for i, u := range urls {
		req := base
		req.URL = u
		task, err := svc.AddTask(req)
		if err != nil {
			fmt.Fprintf(a.Stderr, "skipped %s: %v\n", u, err)
			failed++
			continue
		}
		ids[i] = task.ID
	}

	for i, id := range ids {
		if id == "" {
			continue
		}
		task, err := svc.Wait(ctx, id)
		if err != nil {
			printer.Done()
			return err
		}
		if task.Status != model.TaskStatusCompleted {
			fmt.Fprintf(a.Stderr, "failed %s: %s\n", urls[i], task.LastError)
			failed++
			continue
		}
		fmt.Fprintf(a.Stdout, "Saved: %s\n", task.OutputPath)
	}
	printer.Done()

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(urls))
	}
	return nil
}

func (a *App) runPreflight(ctx context.Context, cfg *config.Config, outputDir string, logger *slog.Logger) error {
	res := a.Preflight(ctx, preflight.Options{
		OutputDir:    outputDir,
		MinFreeBytes: cfg.MinFreeBytes(),
		Logger:       logger,
	})
	for _, w := range res.Warnings {
		logger.Warn("pre-flight", slog.String("warning", w))
	}
	if !res.Passed {
		for _, issue := range res.Issues {
			fmt.Fprintf(a.Stderr, "pre-flight: %s\n", issue)
		}
		return errors.New("pre-flight checks failed")
	}
	return nil
}

func (a *App) exportLog(buf *diag.Buffer, dir string) {
	path, err := buf.Export(dir)
	if err != nil {
		fmt.Fprintf(a.Stderr, "could not write log file: %v\n", err)
		return
	}
	fmt.Fprintf(a.Stderr, "log written to %s\n", path)
}
