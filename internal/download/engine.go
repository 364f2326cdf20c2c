package download

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/lrstanley/go-ytdlp"

	"github.com/ytget/video-downloader/internal/cookies"
	"github.com/ytget/video-downloader/internal/model"
	"github.com/ytget/video-downloader/internal/platform"
	"github.com/ytget/video-downloader/internal/quality"
	"github.com/ytget/video-downloader/internal/toolchain"
)

// OutputTemplate names files "<title>_<id>.<ext>" with the title cut to 100 characters
const OutputTemplate = "%(title).100s_%(id)s.%(ext)s"

// Engine flags
const (
	EngineRetries     = "10"
	FragmentRetries   = "infinite"
	FileAccessRetries = "3"
	SocketTimeout     = 15.0
	ProgressInterval  = 500 * time.Millisecond

	// PrintFinalPath makes yt-dlp print each file's path after post-processing
	PrintFinalPath = "after_move:filepath"
)

// Job is one engine invocation
type Job struct {
	URL        string
	OutputDir  string
	Profile    quality.Profile
	Cookies    cookies.Source
	UserAgent  string
	OnProgress func(model.Progress)
}

// Outcome is what a successful invocation produced
type Outcome struct {
	Files []string
	Title string
}

// Runner executes jobs; Engine is the production implementation
type Runner interface {
	Run(ctx context.Context, job Job) (*Outcome, error)
}

// EngineError is a non-zero yt-dlp exit with the tail of its stderr, which
// carries the message Classify needs
type EngineError struct {
	Err      error
	ExitCode int
	Stderr   string
	Command  string // shell-quoted command line, for logs
}

func (e *EngineError) Error() string {
	msg := e.Err.Error()
	if line := lastErrorLine(e.Stderr); line != "" && !strings.Contains(msg, line) {
		return msg + ": " + line
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// lastErrorLine returns the last "ERROR:" line, or the last non-empty line
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); strings.HasPrefix(l, "ERROR:") {
			return l
		}
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// Engine drives yt-dlp through go-ytdlp
type Engine struct {
	tc     *toolchain.Toolchain
	logger *slog.Logger
}

// NewEngine creates an engine using the discovered toolchain; tc may be nil
// to rely on yt-dlp and ffmpeg from PATH
func NewEngine(tc *toolchain.Toolchain, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tc: tc, logger: logger}
}

// invocation is the flag set handed to yt-dlp, kept as plain data
type invocation struct {
	Executable     string
	Output         string
	Format         string
	MergeFormat    string
	ExtractAudio   bool
	AudioFormat    string
	AudioQuality   string
	EmbedMetadata  bool
	EmbedThumbnail bool
	BrowserCookies string
	CookieFile     string
	Header         string
	FFmpegLocation string
	PathEnv        string
	// ExtraArgs are flags the builder has no method for, placed before the URL
	ExtraArgs []string
}

func (e *Engine) invocation(ctx context.Context, job Job) invocation {
	p := job.Profile
	inv := invocation{
		Output:         filepath.Join(job.OutputDir, OutputTemplate),
		Format:         p.Format,
		MergeFormat:    p.MergeFormat,
		ExtractAudio:   p.AudioOnly,
		EmbedMetadata:  p.EmbedMetadata,
		EmbedThumbnail: p.EmbedThumbnail,
		BrowserCookies: job.Cookies.Browser,
		CookieFile:     job.Cookies.CookieFile,
	}
	if p.AudioOnly {
		inv.AudioFormat = p.AudioCodec
		inv.AudioQuality = p.AudioQuality
	}
	if inv.BrowserCookies != "" {
		inv.CookieFile = ""
	}

	ua := job.UserAgent
	if ua == "" {
		ua = cookies.UserAgentForSource(job.Cookies)
	}
	inv.Header = "User-Agent:" + ua

	if e.tc != nil {
		inv.Executable = e.tc.YTDLP.Path
		inv.FFmpegLocation = e.tc.FFmpegDir()
		inv.PathEnv = e.tc.PathEnv()
		inv.ExtraArgs = e.tc.JSRuntimeArgs(ctx)
	}
	return inv
}

func (inv invocation) args(url string) []string {
	return append(append([]string(nil), inv.ExtraArgs...), url)
}

func (inv invocation) command() *ytdlp.Command {
	dl := ytdlp.New().
		Output(inv.Output).
		RestrictFilenames().
		WindowsFilenames().
		NoPlaylist().
		Print(PrintFinalPath).
		NoSimulate().
		Format(inv.Format).
		Retries(EngineRetries).
		FragmentRetries(FragmentRetries).
		FileAccessRetries(FileAccessRetries).
		SocketTimeout(SocketTimeout).
		AddHeaders(inv.Header)

	if inv.MergeFormat != "" {
		dl.MergeOutputFormat(inv.MergeFormat)
	}
	if inv.ExtractAudio {
		dl.ExtractAudio().AudioFormat(inv.AudioFormat).AudioQuality(inv.AudioQuality)
	}
	if inv.EmbedMetadata {
		dl.EmbedMetadata()
	}
	if inv.EmbedThumbnail {
		dl.EmbedThumbnail()
	}
	switch {
	case inv.BrowserCookies != "":
		dl.CookiesFromBrowser(inv.BrowserCookies)
	case inv.CookieFile != "":
		dl.Cookies(inv.CookieFile)
	}
	if inv.Executable != "" {
		dl.SetExecutable(inv.Executable)
	}
	if inv.FFmpegLocation != "" {
		dl.FFmpegLocation(inv.FFmpegLocation)
	}
	if inv.PathEnv != "" {
		dl.SetEnvVar("PATH", inv.PathEnv)
	}
	return dl
}

// Run downloads job.URL and blocks until yt-dlp exits or ctx is cancelled
func (e *Engine) Run(ctx context.Context, job Job) (*Outcome, error) {
	inv := e.invocation(ctx, job)
	dl := inv.command()

	out := &Outcome{}
	var lastFile string
	dl.ProgressFunc(ProgressInterval, func(update ytdlp.ProgressUpdate) {
		p := progressFromUpdate(update)
		if p.Title != "" {
			out.Title = p.Title
		}
		if p.Filename != "" {
			lastFile = p.Filename
		}
		if job.OnProgress != nil {
			job.OnProgress(p)
		}
	})

	e.logger.Info("starting download",
		slog.String("url", job.URL),
		slog.String("output_dir", job.OutputDir),
		slog.String("quality", job.Profile.String()),
		slog.String("cookies", job.Cookies.String()))

	res, err := dl.Run(ctx, inv.args(job.URL)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		ee := &EngineError{Err: err}
		if res != nil {
			ee.ExitCode = res.ExitCode
			ee.Stderr = res.Stderr
			ee.Command = commandLine(res.Executable, res.Args)
		}
		return nil, ee
	}

	out.Files = e.collectFiles(res, job, lastFile)
	return out, nil
}

func commandLine(executable string, args []string) string {
	return shellescape.QuoteCommand(append([]string{executable}, args...))
}

// collectFiles works out which files the run produced, preferring the paths
// yt-dlp printed and falling back to searching the output directory
func (e *Engine) collectFiles(res *ytdlp.Result, job Job, lastFile string) []string {
	if files := printedFiles(res); len(files) > 0 {
		return files
	}

	if found, err := platform.FindDownloadedFile(job.OutputDir, videoIDFromURL(job.URL), ""); err == nil {
		return []string{found}
	} else if !errors.Is(err, platform.ErrFileNotFound) {
		e.logger.Warn("could not search output directory", slog.Any("error", err))
	}
	if lastFile != "" && fileExists(lastFile) {
		return []string{lastFile}
	}
	return nil
}

// printedFiles returns the existing files named on stdout by PrintFinalPath
func printedFiles(res *ytdlp.Result) []string {
	if res == nil {
		return nil
	}
	var files []string
	seen := map[string]bool{}
	for _, l := range res.OutputLogs {
		if l == nil || l.Pipe != "stdout" {
			continue
		}
		path := strings.TrimSpace(l.Line)
		if path == "" || seen[path] || !fileExists(path) {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files
}

func progressFromUpdate(u ytdlp.ProgressUpdate) model.Progress {
	p := model.Progress{
		Status:          model.ProgressStatus(u.Status),
		DownloadedBytes: u.DownloadedBytes,
		TotalBytes:      u.TotalBytes,
		ETA:             u.ETA(),
		Filename:        u.Filename,
	}
	if !u.Started.IsZero() {
		if elapsed := time.Since(u.Started).Seconds(); elapsed > 0 {
			p.SpeedBps = float64(u.DownloadedBytes) / elapsed
		}
	}
	if u.Info != nil && u.Info.Title != nil {
		p.Title = *u.Info.Title
	}
	return p
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// videoIDFromURL extracts the YouTube video id from watch, short and
// youtu.be URLs; other sites yield ""
func videoIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")
	switch {
	case host == "youtu.be":
		return path
	case strings.HasPrefix(path, "shorts/"), strings.HasPrefix(path, "live/"), strings.HasPrefix(path, "embed/"):
		return path[strings.Index(path, "/")+1:]
	}
	return ""
}
