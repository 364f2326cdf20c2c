// Package toolchain finds the external programs the downloader depends on:
// yt-dlp itself, ffmpeg/ffprobe for muxing and post-processing, and a
// JavaScript runtime (deno, node or bun) yt-dlp needs for YouTube player
// scripts. Bundled copies in a bin/ directory next to the executable win
// over copies on PATH.
package toolchain

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/lrstanley/go-ytdlp"
)

// Tool names
const (
	YTDLP   = "yt-dlp"
	FFmpeg  = "ffmpeg"
	FFprobe = "ffprobe"
)

// JSRuntimes in priority order
var JSRuntimes = []string{"deno", "node", "bun"}

// Tool is a discovered executable
type Tool struct {
	Name    string
	Path    string
	Bundled bool
	Version string // known without probing, e.g. from the installer
}

// Found reports whether the tool has a path
func (t Tool) Found() bool {
	return t.Path != ""
}

// Dir returns the directory holding the executable
func (t Tool) Dir() string {
	if t.Path == "" {
		return ""
	}
	return filepath.Dir(t.Path)
}

// Options controls discovery
type Options struct {
	// BinDir holds bundled executables; empty means <executable dir>/bin
	BinDir string
	// AllowDownload lets yt-dlp be fetched into the user cache when missing
	AllowDownload bool

	GOOS         string
	LookPath     func(file string) (string, error)
	Exists       func(path string) bool
	ResolveYTDLP func(ctx context.Context, allowDownload bool) (path, version string, err error)
	Run          CommandRunner
	Logger       *slog.Logger
}

// Toolchain is the result of discovery
type Toolchain struct {
	BinDir    string
	YTDLP     Tool
	FFmpeg    Tool
	FFprobe   Tool
	JSRuntime Tool

	ytdlpErr error
	run      CommandRunner
	logger   *slog.Logger

	mu            sync.Mutex
	probedVersion string
}

func (o *Options) defaults() {
	if o.GOOS == "" {
		o.GOOS = runtime.GOOS
	}
	if o.BinDir == "" {
		o.BinDir = DefaultBinDir()
	}
	if o.LookPath == nil {
		o.LookPath = exec.LookPath
	}
	if o.Exists == nil {
		o.Exists = func(p string) bool {
			st, err := os.Stat(p)
			return err == nil && !st.IsDir()
		}
	}
	if o.ResolveYTDLP == nil {
		o.ResolveYTDLP = installYTDLP
	}
	if o.Run == nil {
		o.Run = execRunner
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// DefaultBinDir is the bin/ directory beside the running executable
func DefaultBinDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "bin"
	}
	return filepath.Join(filepath.Dir(exe), "bin")
}

// Discover locates every tool. Missing tools are not an error here; Check
// reports them.
func Discover(ctx context.Context, opts Options) *Toolchain {
	opts.defaults()
	tc := &Toolchain{
		BinDir: opts.BinDir,
		run:    opts.Run,
		logger: opts.Logger,
	}

	for _, name := range JSRuntimes {
		if t := find(name, opts); t.Found() {
			tc.JSRuntime = t
			tc.logger.Info("javascript runtime found", slog.String("name", name), slog.String("path", t.Path), slog.Bool("bundled", t.Bundled))
			break
		}
	}
	if !tc.JSRuntime.Found() {
		tc.logger.Warn("no JavaScript runtime found (deno, node or bun), some extractors may not work; recommended: https://deno.com/")
	}

	tc.FFmpeg = find(FFmpeg, opts)
	if !tc.FFmpeg.Found() {
		tc.logger.Warn("ffmpeg not found, required for merging and audio extraction; download from https://ffmpeg.org/download.html")
	}
	tc.FFprobe = find(FFprobe, opts)

	if t := bundled(YTDLP, opts); t.Found() {
		tc.YTDLP = t
	} else {
		path, version, err := opts.ResolveYTDLP(ctx, opts.AllowDownload)
		if err != nil {
			tc.ytdlpErr = err
			tc.logger.Warn("yt-dlp not available", slog.Any("error", err))
		} else {
			tc.YTDLP = Tool{Name: YTDLP, Path: path, Version: version}
		}
	}
	return tc
}

func exeName(name, goos string) string {
	if goos == "windows" {
		return name + ".exe"
	}
	return name
}

func bundled(name string, opts Options) Tool {
	p := filepath.Join(opts.BinDir, exeName(name, opts.GOOS))
	if opts.Exists(p) {
		return Tool{Name: name, Path: p, Bundled: true}
	}
	return Tool{Name: name}
}

func find(name string, opts Options) Tool {
	if t := bundled(name, opts); t.Found() {
		return t
	}
	if p, err := opts.LookPath(name); err == nil {
		return Tool{Name: name, Path: p}
	}
	return Tool{Name: name}
}

func installYTDLP(ctx context.Context, allowDownload bool) (string, string, error) {
	r, err := ytdlp.Install(ctx, &ytdlp.InstallOptions{DisableDownload: !allowDownload})
	if err != nil {
		return "", "", err
	}
	return r.Executable, r.Version, nil
}

// PathEnv returns PATH with the bundled bin directory and the JavaScript
// runtime directory in front, so yt-dlp picks them up.
func (tc *Toolchain) PathEnv() string {
	var dirs []string
	seen := map[string]bool{}
	add := func(d string) {
		if d != "" && !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	add(tc.BinDir)
	add(tc.JSRuntime.Dir())
	if cur := os.Getenv("PATH"); cur != "" {
		dirs = append(dirs, cur)
	}
	return strings.Join(dirs, string(os.PathListSeparator))
}

// FFmpegDir is the value for yt-dlp's --ffmpeg-location, or "" to let yt-dlp search
func (tc *Toolchain) FFmpegDir() string {
	return tc.FFmpeg.Dir()
}
