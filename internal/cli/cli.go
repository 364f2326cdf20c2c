// Package cli implements the vdl command line: download, check-deps and version.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ytget/video-downloader/internal/config"
	"github.com/ytget/video-downloader/internal/cookies"
	"github.com/ytget/video-downloader/internal/diag"
	"github.com/ytget/video-downloader/internal/download"
	"github.com/ytget/video-downloader/internal/platform"
	"github.com/ytget/video-downloader/internal/preflight"
	"github.com/ytget/video-downloader/internal/toolchain"
)

// Exit codes
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// usageError marks bad flags or arguments
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// App holds the command's environment. Zero fields get production defaults.
type App struct {
	Version string
	Stdout  io.Writer
	Stderr  io.Writer

	Discover   func(ctx context.Context, opts toolchain.Options) *toolchain.Toolchain
	NewRunner  func(tc *toolchain.Toolchain, logger *slog.Logger) download.Runner
	NewLister  func(timeout time.Duration) download.PlaylistLister
	NewCookies func(forced string, logger *slog.Logger) download.CookieSelector
	Preflight  func(ctx context.Context, opts preflight.Options) preflight.Result
	IsTerminal func(w io.Writer) bool
	RetryTimer backoff.Timer // nil uses real time

	configPath string
	verbose    bool
}

func (a *App) defaults() {
	if a.Version == "" {
		a.Version = "dev"
	}
	if a.Stdout == nil {
		a.Stdout = os.Stdout
	}
	if a.Stderr == nil {
		a.Stderr = os.Stderr
	}
	if a.Discover == nil {
		a.Discover = toolchain.Discover
	}
	if a.NewRunner == nil {
		a.NewRunner = func(tc *toolchain.Toolchain, logger *slog.Logger) download.Runner {
			return download.NewEngine(tc, logger)
		}
	}
	if a.NewLister == nil {
		a.NewLister = func(timeout time.Duration) download.PlaylistLister {
			l := platform.NewPlaylistLister()
			l.SetTimeout(timeout)
			return l
		}
	}
	if a.NewCookies == nil {
		a.NewCookies = func(forced string, logger *slog.Logger) download.CookieSelector {
			downloads, _ := platform.DownloadsDir()
			s := cookies.NewSelector(forced, platform.AppDir(), downloads)
			s.Logger = logger
			return s
		}
	}
	if a.Preflight == nil {
		a.Preflight = preflight.Run
	}
	if a.IsTerminal == nil {
		a.IsTerminal = func(w io.Writer) bool {
			f, ok := w.(*os.File)
			return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
		}
	}
}

// Command builds the root command
func (a *App) Command() *cobra.Command {
	a.defaults()
	root := &cobra.Command{
		Use:           "vdl",
		Short:         "Download videos and audio from YouTube and other sites with yt-dlp",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (default: config.toml next to the executable)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output with debug information")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	root.AddCommand(a.downloadCommand(), a.checkDepsCommand(), a.versionCommand())
	return root
}

// Execute runs the command line and returns the process exit code
func (a *App) Execute(ctx context.Context, args []string) int {
	cmd := a.Command()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return a.exitCode(ctx, err)
}

func (a *App) exitCode(ctx context.Context, err error) int {
	if err == nil {
		return ExitOK
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		fmt.Fprintln(a.Stderr, "interrupted")
		return ExitInterrupted
	}
	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(a.Stderr, "error: %v\nRun 'vdl --help' for usage.\n", err)
		return ExitUsage
	}
	fmt.Fprintf(a.Stderr, "error: %v\n", err)
	return ExitFailure
}

// setup loads the configuration and builds the logger. Log records also go
// into the returned buffer so they can be exported.
func (a *App) setup() (*config.Config, *slog.Logger, *diag.Buffer, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	buf := diag.NewBuffer(0)
	buf.Version = a.Version
	logger := slog.New(diag.NewHandler(cfg.Log.Handler(a.Stderr), buf))
	for _, w := range cfg.Warnings {
		logger.Warn("configuration", slog.String("warning", w), slog.String("file", cfg.Path))
	}
	return cfg, logger, buf, nil
}

// minArgs is cobra.MinimumNArgs reported as a usage error
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// exactArgs is cobra.ExactArgs reported as a usage error
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
