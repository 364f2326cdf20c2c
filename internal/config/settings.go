package config

import (
	"fyne.io/fyne/v2"

	"github.com/ytget/video-downloader/internal/cookies"
	"github.com/ytget/video-downloader/internal/quality"
)

// Settings keys for Fyne preferences
const (
	KeyDownloadDir        = "download_directory"
	KeyMaxParallel        = "max_parallel_downloads"
	KeyQuality            = "quality"
	KeyCookieBrowser      = "cookie_browser"
	KeyLanguage           = "app_language"
	KeyAutoRevealComplete = "auto_reveal_on_complete"
)

// Default values
const (
	DefaultMaxParallel        = 1
	MaxParallelLimit          = 10
	DefaultLanguage           = "system"
	DefaultAutoRevealComplete = true
	CookieBrowserAuto         = "auto"
)

// Settings stores the desktop app's choices in Fyne preferences. Values never
// set fall back to the loaded Config.
type Settings struct {
	app fyne.App
	cfg *Config
}

// NewSettings creates a new settings manager; cfg may be nil
func NewSettings(app fyne.App, cfg *Config) *Settings {
	if cfg == nil {
		cfg = Default()
		cfg.normalize()
	}
	return &Settings{app: app, cfg: cfg}
}

// GetDownloadDirectory returns the configured download directory
func (s *Settings) GetDownloadDirectory() string {
	if dir := s.app.Preferences().String(KeyDownloadDir); dir != "" {
		return dir
	}
	return s.cfg.Download.OutputDir
}

// SetDownloadDirectory sets the download directory
func (s *Settings) SetDownloadDirectory(dir string) {
	s.app.Preferences().SetString(KeyDownloadDir, dir)
}

// GetMaxParallelDownloads returns the maximum number of parallel downloads
func (s *Settings) GetMaxParallelDownloads() int {
	value := s.app.Preferences().Int(KeyMaxParallel)
	if value <= 0 {
		return DefaultMaxParallel
	}
	return value
}

// SetMaxParallelDownloads sets the maximum number of parallel downloads
func (s *Settings) SetMaxParallelDownloads(count int) {
	if count < 1 {
		count = 1
	}
	if count > MaxParallelLimit {
		count = MaxParallelLimit
	}
	s.app.Preferences().SetInt(KeyMaxParallel, count)
}

// GetQuality returns the selected quality name
func (s *Settings) GetQuality() string {
	name := s.app.Preferences().String(KeyQuality)
	if quality.IsValid(name) {
		return name
	}
	return s.cfg.Download.Quality
}

// SetQuality stores a quality name; unknown names are ignored
func (s *Settings) SetQuality(name string) {
	if !quality.IsValid(name) {
		return
	}
	s.app.Preferences().SetString(KeyQuality, name)
}

// GetQualityOptions returns the qualities offered in the window
func (s *Settings) GetQualityOptions() []string {
	return quality.GUIOptions()
}

// GetCookieBrowser returns "" for automatic selection, "none" or a browser
func (s *Settings) GetCookieBrowser() string {
	b := s.app.Preferences().String(KeyCookieBrowser)
	switch {
	case b == CookieBrowserAuto:
		return ""
	case b == cookies.None || cookies.IsSupported(b):
		return b
	}
	return s.cfg.Cookies.Browser
}

// SetCookieBrowser stores the cookie source; "auto" or "" restore automatic selection
func (s *Settings) SetCookieBrowser(b string) {
	if b == "" {
		b = CookieBrowserAuto
	}
	s.app.Preferences().SetString(KeyCookieBrowser, b)
}

// GetCookieBrowserOptions lists the choices for the settings dialog
func (s *Settings) GetCookieBrowserOptions() []string {
	return append([]string{CookieBrowserAuto, cookies.None}, cookies.Browsers...)
}

// GetLanguage returns the configured language
func (s *Settings) GetLanguage() string {
	lang := s.app.Preferences().String(KeyLanguage)
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// SetLanguage sets the application language
func (s *Settings) SetLanguage(lang string) {
	s.app.Preferences().SetString(KeyLanguage, lang)
}

// GetAutoRevealOnComplete returns whether to open the folder after a download
func (s *Settings) GetAutoRevealOnComplete() bool {
	return s.app.Preferences().BoolWithFallback(KeyAutoRevealComplete, DefaultAutoRevealComplete)
}

// SetAutoRevealOnComplete sets whether to open the folder after a download
func (s *Settings) SetAutoRevealOnComplete(autoReveal bool) {
	s.app.Preferences().SetBool(KeyAutoRevealComplete, autoReveal)
}

// GetLanguageOptions returns available language options
func (s *Settings) GetLanguageOptions() map[string]string {
	return map[string]string{
		"system": "System Default",
		"en":     "English",
		"ru":     "Русский",
		"pt":     "Português",
	}
}

// Config returns the file configuration behind the preferences
func (s *Settings) Config() *Config {
	return s.cfg
}
