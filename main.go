package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"github.com/ytget/video-downloader/internal/config"
	"github.com/ytget/video-downloader/internal/cookies"
	"github.com/ytget/video-downloader/internal/diag"
	"github.com/ytget/video-downloader/internal/download"
	"github.com/ytget/video-downloader/internal/platform"
	"github.com/ytget/video-downloader/internal/preflight"
	"github.com/ytget/video-downloader/internal/retry"
	"github.com/ytget/video-downloader/internal/toolchain"
	"github.com/ytget/video-downloader/internal/ui"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	AppID = "com.ytget.video-downloader"

	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		cfg = config.Default()
	}

	buf := diag.NewBuffer(0)
	buf.Version = version
	logger := slog.New(diag.NewHandler(cfg.Log.Handler(os.Stderr), buf))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	logger.Info("starting", "version", version, "config", cfg.Path)

	myApp := app.NewWithID(AppID)
	myApp.Settings().SetTheme(ui.NewCompactTheme())
	if icon, err := ui.LoadLogoResource(); err == nil {
		myApp.SetIcon(icon)
	}
	settings := config.NewSettings(myApp, cfg)

	myWindow := myApp.NewWindow(fmt.Sprintf("%s v%s", cfg.App.Title, version))
	myWindow.Resize(fyne.NewSize(ui.WindowWidth, ui.WindowHeight))

	ctx := context.Background()
	tc := toolchain.Discover(ctx, toolchain.Options{AllowDownload: true, Logger: logger})
	go reportDependencies(ctx, tc, logger)

	downloads, _ := platform.DownloadsDir()
	selector := cookies.NewSelector("", platform.AppDir(), downloads)
	selector.Logger = logger

	lister := platform.NewPlaylistLister()
	lister.SetTimeout(cfg.DownloadTimeout())

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Download.RetryAttempts

	svc := download.NewService(download.Options{
		OutputDir:   settings.GetDownloadDirectory(),
		MaxParallel: settings.GetMaxParallelDownloads(),
		Policy:      policy,
		Runner:      download.NewEngine(tc, logger),
		Cookies:     ui.SettingsCookies{Base: selector, Settings: settings},
		Lister:      lister,
		Prober:      tc,
		Logger:      logger,
	})

	root := ui.NewRootUI(ui.Options{
		App:         myApp,
		Window:      myWindow,
		Service:     svc,
		Settings:    settings,
		Diagnostics: buf,
		Preflight: func(ctx context.Context, outputDir string) preflight.Result {
			return preflight.Run(ctx, preflight.Options{
				OutputDir:    outputDir,
				MinFreeBytes: cfg.MinFreeBytes(),
				Logger:       logger,
			})
		},
		Logger: logger,
	})

	myWindow.ShowAndRun()

	root.Close()
	sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := svc.Shutdown(sctx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
}

func reportDependencies(ctx context.Context, tc *toolchain.Toolchain, logger *slog.Logger) {
	deps := tc.Check(ctx)
	for _, d := range deps {
		if d.Found {
			logger.Info("dependency found", "name", d.Name, "version", d.Version, "path", d.Path)
		}
	}
	for _, name := range toolchain.MissingRequired(deps) {
		logger.Error("required dependency missing", "name", name)
	}
}
