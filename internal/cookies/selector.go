package cookies

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// CookieFileName is searched for when no browser can be used
const CookieFileName = "cookies.txt"

// Source is the cookie configuration for one download
type Source struct {
	Browser    string   // browser passed to --cookies-from-browser
	CookieFile string   // Netscape cookie file passed to --cookies
	Fallbacks  []string // other usable browsers, in priority order
	Locked     []string // installed browsers skipped because they are running
}

// Anonymous reports whether no cookies will be sent
func (s Source) Anonymous() bool {
	return s.Browser == "" && s.CookieFile == ""
}

func (s Source) String() string {
	switch {
	case s.Browser != "":
		return "browser:" + s.Browser
	case s.CookieFile != "":
		return "file:" + s.CookieFile
	}
	return "anonymous"
}

// Next returns the source that uses the first fallback browser, and false when none remain
func (s Source) Next() (Source, bool) {
	if len(s.Fallbacks) == 0 {
		return s, false
	}
	return Source{
		Browser:   s.Fallbacks[0],
		Fallbacks: append([]string(nil), s.Fallbacks[1:]...),
		Locked:    s.Locked,
	}, true
}

// Selector decides which cookie source to use
type Selector struct {
	// Forced selects a browser by name, or None to disable cookies; empty means auto
	Forced string

	Home         string
	AppDir       string
	DownloadsDir string
	GOOS         string

	Processes ProcessLister
	Exists    func(path string) bool
	Logger    *slog.Logger
}

// NewSelector returns a selector for the current user and OS
func NewSelector(forced, appDir, downloadsDir string) *Selector {
	home, _ := os.UserHomeDir()
	return &Selector{
		Forced:       forced,
		Home:         home,
		AppDir:       appDir,
		DownloadsDir: downloadsDir,
		GOOS:         runtime.GOOS,
		Processes:    SystemProcesses{},
	}
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Selector) exists(path string) bool {
	if s.Exists != nil {
		return s.Exists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// Select returns the cookie source for the next download
func (s *Selector) Select(ctx context.Context) (Source, error) {
	forced := strings.ToLower(strings.TrimSpace(s.Forced))
	switch {
	case forced == None:
		return Source{}, nil
	case forced != "":
		if !IsSupported(forced) {
			return Source{}, fmt.Errorf("unsupported browser %q (supported: %s)", s.Forced, strings.Join(Browsers, ", "))
		}
		return Source{Browser: forced}, nil
	}

	available, locked := s.Available(ctx)
	if len(locked) > 0 {
		s.logger().Warn("browsers with locked cookies, close them for better authentication",
			slog.String("browsers", strings.Join(locked, ", ")))
	}
	if len(available) > 0 {
		src := Source{Browser: available[0], Fallbacks: available[1:], Locked: locked}
		s.logger().Info("using browser cookies", slog.String("browser", src.Browser))
		return src, nil
	}

	if file := s.FindCookieFile(); file != "" {
		s.logger().Info("using cookies file", slog.String("path", file))
		return Source{CookieFile: file, Locked: locked}, nil
	}

	s.logger().Warn("no browser cookies available, some videos may require authentication")
	return Source{Locked: locked}, nil
}

// Available returns installed browsers that are not locked, and the locked ones
func (s *Selector) Available(ctx context.Context) (available, locked []string) {
	running := map[string]bool{}
	if s.Processes != nil {
		names, err := s.Processes.ProcessNames(ctx)
		if err != nil {
			s.logger().Debug("process listing failed, assuming browsers are closed", slog.Any("error", err))
		} else {
			running = names
		}
	}

	for _, b := range Browsers {
		if !s.installed(b) {
			continue
		}
		if locksDatabase(b) && running[processNames[b]] {
			locked = append(locked, b)
			continue
		}
		available = append(available, b)
	}
	return available, locked
}

func (s *Selector) installed(browser string) bool {
	if browser == "safari" {
		// no profile directory to probe; yt-dlp reports a missing store itself
		return s.GOOS == "darwin"
	}
	for _, p := range profilePaths(s.Home, browser) {
		if s.exists(p) {
			return true
		}
	}
	return false
}

// FindCookieFile looks for a Netscape cookie file next to the app, in the
// home directory and in Downloads.
func (s *Selector) FindCookieFile() string {
	var dirs []string
	for _, d := range []string{s.AppDir, s.Home, s.DownloadsDir} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	for _, d := range dirs {
		p := filepath.Join(d, CookieFileName)
		if looksLikeCookieFile(p) {
			return p
		}
	}
	return ""
}

func looksLikeCookieFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(sc.Text()))
	return strings.Contains(first, "cookie") || strings.HasPrefix(first, "#")
}
