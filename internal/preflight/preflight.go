// Package preflight runs the connectivity and disk checks done before a
// download starts.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/video-downloader/internal/cookies"
)

// Defaults
const (
	DefaultInternetTimeout = 5 * time.Second
	DefaultYouTubeTimeout  = 10 * time.Second
	DefaultMinFreeBytes    = 2 << 30
	DefaultYouTubeURL      = "https://www.youtube.com/robots.txt"
)

// DefaultInternetURLs are tried in order; any answer means we are online
var DefaultInternetURLs = []string{
	"https://www.google.com",
	"https://1.1.1.1",
	"https://www.cloudflare.com",
}

// Check names
const (
	CheckInternet = "internet"
	CheckYouTube  = "youtube"
	CheckDisk     = "disk"
)

// Options configures a run. Zero values fall back to the defaults above.
type Options struct {
	OutputDir string
	// MinFreeBytes of 0 uses DefaultMinFreeBytes; a negative value accepts
	// any amount of free space
	MinFreeBytes int64
	SkipYouTube  bool

	InternetURLs    []string
	YouTubeURL      string
	InternetTimeout time.Duration
	YouTubeTimeout  time.Duration

	Client   *http.Client
	DiskFree func(ctx context.Context, path string) (uint64, error)
	Logger   *slog.Logger
}

// Check is the outcome of one probe
type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Result collects the issues that block a download and the warnings that don't
type Result struct {
	Passed   bool
	Issues   []string
	Warnings []string
	Checks   []Check
}

func (o *Options) defaults() {
	if o.MinFreeBytes == 0 {
		o.MinFreeBytes = DefaultMinFreeBytes
	}
	if len(o.InternetURLs) == 0 {
		o.InternetURLs = DefaultInternetURLs
	}
	if o.YouTubeURL == "" {
		o.YouTubeURL = DefaultYouTubeURL
	}
	if o.InternetTimeout <= 0 {
		o.InternetTimeout = DefaultInternetTimeout
	}
	if o.YouTubeTimeout <= 0 {
		o.YouTubeTimeout = DefaultYouTubeTimeout
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	if o.DiskFree == nil {
		o.DiskFree = diskFree
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type outcome struct {
	check   Check
	issue   string
	warning string
}

// Run executes all checks concurrently. The YouTube probe only runs once the
// internet probe has passed.
func Run(ctx context.Context, opts Options) Result {
	opts.defaults()

	var network []outcome
	var space outcome

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		inet := checkInternet(gctx, opts)
		network = append(network, inet)
		if inet.check.OK && !opts.SkipYouTube {
			network = append(network, checkYouTube(gctx, opts))
		}
		return nil
	})
	g.Go(func() error {
		space = checkDisk(gctx, opts)
		return nil
	})
	_ = g.Wait()

	var res Result
	for _, o := range append(network, space) {
		res.Checks = append(res.Checks, o.check)
		if o.issue != "" {
			res.Issues = append(res.Issues, o.issue)
		}
		if o.warning != "" {
			res.Warnings = append(res.Warnings, o.warning)
		}
	}
	res.Passed = len(res.Issues) == 0

	opts.Logger.Info("pre-flight checks finished",
		slog.Bool("passed", res.Passed),
		slog.Int("issues", len(res.Issues)),
		slog.Int("warnings", len(res.Warnings)))
	return res
}

func checkInternet(ctx context.Context, opts Options) outcome {
	for _, u := range opts.InternetURLs {
		err := probe(ctx, opts.Client, http.MethodHead, u, opts.InternetTimeout, nil)
		if err == nil {
			return outcome{check: Check{Name: CheckInternet, OK: true, Message: "Internet connection OK"}}
		}
		opts.Logger.Debug("connectivity probe failed", slog.String("url", u), slog.Any("error", err))
	}
	msg := "No internet connection detected"
	return outcome{check: Check{Name: CheckInternet, Message: msg}, issue: msg}
}

type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

func probe(ctx context.Context, client *http.Client, method, url string, timeout time.Duration, header http.Header) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError{resp.StatusCode}
	}
	return nil
}

func checkYouTube(ctx context.Context, opts Options) outcome {
	header := http.Header{"User-Agent": {cookies.RandomUserAgent()}}
	err := probe(ctx, opts.Client, http.MethodGet, opts.YouTubeURL, opts.YouTubeTimeout, header)
	if err == nil {
		return outcome{check: Check{Name: CheckYouTube, OK: true, Message: "YouTube accessible"}}
	}

	var msg string
	if se, ok := err.(statusError); ok {
		switch se.code {
		case http.StatusTooManyRequests:
			msg = "YouTube is rate limiting this IP, wait before retrying"
			// still reachable, so the download may work
			return outcome{check: Check{Name: CheckYouTube, OK: true, Message: msg}, warning: msg}
		case http.StatusForbidden:
			msg = "YouTube is blocking this IP, try using a VPN"
		default:
			msg = fmt.Sprintf("YouTube HTTP error: %d", se.code)
		}
	} else {
		msg = fmt.Sprintf("Cannot reach YouTube: %v", err)
	}
	return outcome{check: Check{Name: CheckYouTube, Message: msg}, issue: msg}
}

func checkDisk(ctx context.Context, opts Options) outcome {
	dir := existingParent(opts.OutputDir)
	free, err := opts.DiskFree(ctx, dir)
	if err != nil {
		msg := fmt.Sprintf("Could not check disk space: %v", err)
		return outcome{check: Check{Name: CheckDisk, OK: true, Message: msg}, warning: msg}
	}

	avail := humanize.IBytes(free)
	if opts.MinFreeBytes < 0 {
		return outcome{check: Check{Name: CheckDisk, OK: true, Message: avail + " available"}}
	}
	need := uint64(opts.MinFreeBytes)
	switch {
	case free < need:
		msg := fmt.Sprintf("Low disk space: %s available (need %s)", avail, humanize.IBytes(need))
		return outcome{check: Check{Name: CheckDisk, Message: msg}, issue: msg}
	case free < need*2:
		msg := fmt.Sprintf("Disk space is limited: %s remaining", avail)
		return outcome{check: Check{Name: CheckDisk, OK: true, Message: msg}, warning: msg}
	}
	return outcome{check: Check{Name: CheckDisk, OK: true, Message: avail + " available"}}
}

// existingParent walks up from p until it finds a directory that exists
func existingParent(p string) string {
	if p == "" {
		p = "."
	}
	p, _ = filepath.Abs(p)
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

func diskFree(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
