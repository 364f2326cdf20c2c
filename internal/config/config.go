package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ytget/video-downloader/internal/platform"
	"github.com/ytget/video-downloader/internal/quality"
	"github.com/ytget/video-downloader/internal/validate"
)

// FileName is the default configuration file name
const FileName = "config.toml"

// EnvPrefix prefixes environment overrides, e.g. VDL_DOWNLOAD_QUALITY
const EnvPrefix = "VDL"

// DownloadsPlaceholder in output_dir means the user's Downloads folder
const DownloadsPlaceholder = "downloads"

// ErrInvalidConfig wraps parse failures of the configuration file
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the application configuration document
type Config struct {
	App       AppConfig       `mapstructure:"app" toml:"app"`
	Download  DownloadConfig  `mapstructure:"download" toml:"download"`
	Cookies   CookiesConfig   `mapstructure:"cookies" toml:"cookies"`
	Preflight PreflightConfig `mapstructure:"preflight" toml:"preflight"`
	Log       LogConfig       `mapstructure:"log" toml:"log"`

	// Path is the file the configuration was loaded from
	Path string `mapstructure:"-" toml:"-"`
	// Warnings collects values that were corrected during validation
	Warnings []string `mapstructure:"-" toml:"-"`
}

// AppConfig holds presentation settings
type AppConfig struct {
	Title string `mapstructure:"title" toml:"title"`
}

// DownloadConfig holds download settings
type DownloadConfig struct {
	OutputDir     string `mapstructure:"output_dir" toml:"output_dir"`
	Quality       string `mapstructure:"quality" toml:"quality"`
	MaxConcurrent int    `mapstructure:"max_concurrent" toml:"max_concurrent"`
	Timeout       int    `mapstructure:"timeout" toml:"timeout"`
	RetryAttempts int    `mapstructure:"retry_attempts" toml:"retry_attempts"`
}

// CookiesConfig selects the cookie source: "" for automatic, "none" or a browser name
type CookiesConfig struct {
	Browser string `mapstructure:"browser" toml:"browser"`
}

// PreflightConfig controls the checks run before a download
type PreflightConfig struct {
	Enabled   bool    `mapstructure:"enabled" toml:"enabled"`
	MinFreeGB float64 `mapstructure:"min_free_gb" toml:"min_free_gb"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// Default returns the configuration written to a fresh config.toml
func Default() *Config {
	return &Config{
		App: AppConfig{Title: "Video Downloader"},
		Download: DownloadConfig{
			OutputDir:     DownloadsPlaceholder,
			Quality:       quality.Default,
			MaxConcurrent: 3,
			Timeout:       300,
			RetryAttempts: 3,
		},
		Preflight: PreflightConfig{Enabled: true, MinFreeGB: 2},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath is config.toml next to the executable
func DefaultPath() string {
	return filepath.Join(platform.AppDir(), FileName)
}

// downloadsDir is swapped in tests
var downloadsDir = platform.DownloadsDir

// Load reads the configuration at path (DefaultPath when empty). A missing
// file is created with the defaults. A .env file next to it is loaded
// first, then VDL_* variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	path, err := filepath.Abs(validate.ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.Path = path
	cfg.normalize()
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("app.title", d.App.Title)
	v.SetDefault("download.output_dir", d.Download.OutputDir)
	v.SetDefault("download.quality", d.Download.Quality)
	v.SetDefault("download.max_concurrent", d.Download.MaxConcurrent)
	v.SetDefault("download.timeout", d.Download.Timeout)
	v.SetDefault("download.retry_attempts", d.Download.RetryAttempts)
	v.SetDefault("cookies.browser", d.Cookies.Browser)
	v.SetDefault("preflight.enabled", d.Preflight.Enabled)
	v.SetDefault("preflight.min_free_gb", d.Preflight.MinFreeGB)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

const defaultHeader = `# Video Downloader configuration
#
# download.output_dir: "downloads" is your Downloads folder, "~" expands to
# your home directory, relative paths are resolved next to this file.
# download.quality: best, native, 2160p, 1080p, 720p, 480p, 360p,
# mp3, wav, flac, aac, opus
# cookies.browser: "" picks a browser automatically, "none" disables cookies
# Every key can be overridden with VDL_<SECTION>_<KEY>, e.g. VDL_DOWNLOAD_QUALITY.

`

// WriteDefault writes the default configuration to path
func WriteDefault(path string) error {
	if err := platform.CreateDirectoryIfNotExists(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create default config: %w", err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, defaultHeader); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(Default()); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// normalize clamps numeric values, falls back from unknown names and
// resolves the output directory
func (c *Config) normalize() {
	d := Default()
	if strings.TrimSpace(c.App.Title) == "" {
		c.App.Title = d.App.Title
	}

	if c.Download.MaxConcurrent < 1 {
		c.warnf("download.max_concurrent must be at least 1, got %d", c.Download.MaxConcurrent)
		c.Download.MaxConcurrent = 1
	}
	if c.Download.Timeout < 1 {
		c.warnf("download.timeout must be positive, got %d", c.Download.Timeout)
		c.Download.Timeout = 1
	}
	if c.Download.RetryAttempts < 1 {
		c.warnf("download.retry_attempts must be at least 1, got %d", c.Download.RetryAttempts)
		c.Download.RetryAttempts = 1
	}

	if p, err := quality.Lookup(c.Download.Quality); err != nil {
		c.warnf("unknown quality %q, using %q", c.Download.Quality, quality.Default)
		c.Download.Quality = quality.Default
	} else {
		c.Download.Quality = p.Name
	}

	c.Cookies.Browser = strings.ToLower(strings.TrimSpace(c.Cookies.Browser))

	if c.Preflight.MinFreeGB < 0 {
		c.Preflight.MinFreeGB = 0
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	if _, ok := levels[c.Log.Level]; !ok {
		c.warnf("unknown log level %q, using %q", c.Log.Level, d.Log.Level)
		c.Log.Level = d.Log.Level
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Log.Format != "text" && c.Log.Format != "json" {
		c.warnf("unknown log format %q, using %q", c.Log.Format, d.Log.Format)
		c.Log.Format = d.Log.Format
	}

	c.Download.OutputDir = c.resolveOutputDir(c.Download.OutputDir)
}

func (c *Config) resolveOutputDir(dir string) string {
	dir = strings.TrimSpace(dir)
	switch {
	case dir == "" || strings.EqualFold(dir, DownloadsPlaceholder) || dir == "~/Downloads":
		if d, err := downloadsDir(); err == nil {
			return d
		}
		c.warnf("could not locate the Downloads folder, using the working directory")
		return "."
	case strings.HasPrefix(dir, "~"):
		return validate.ExpandHome(dir)
	case !filepath.IsAbs(dir) && c.Path != "":
		return filepath.Join(filepath.Dir(c.Path), dir)
	}
	return dir
}

// DownloadTimeout returns download.timeout as a duration
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.Timeout) * time.Second
}

// MinFreeBytes returns preflight.min_free_gb in bytes. A threshold of 0 turns
// into -1, which pre-flight reads as "no minimum" rather than its default.
func (c *Config) MinFreeBytes() int64 {
	if c.Preflight.MinFreeGB <= 0 {
		return -1
	}
	return int64(c.Preflight.MinFreeGB * (1 << 30))
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps log.level to a slog level
func (l LogConfig) SlogLevel() slog.Level {
	if lvl, ok := levels[strings.ToLower(l.Level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Handler builds the slog handler described by the config
func (l LogConfig) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
