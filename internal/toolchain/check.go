package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// VersionTimeout bounds each version probe
const VersionTimeout = 10 * time.Second

// CommandRunner runs an executable and returns its combined output
type CommandRunner func(ctx context.Context, path string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, path string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	hideWindow(cmd)
	return cmd.CombinedOutput()
}

// Dependency is one row of the dependency report
type Dependency struct {
	Name     string `json:"name" yaml:"name"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
	Required bool   `json:"required" yaml:"required"`
	Found    bool   `json:"found" yaml:"found"`
	Bundled  bool   `json:"bundled" yaml:"bundled"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the dependency is usable or optional
func (d Dependency) OK() bool {
	return d.Found || !d.Required
}

var ffmpegVersion = regexp.MustCompile(`(?i)ff(?:mpeg|probe) version n?(\d+\.\d+(?:\.\d+)?)`)

// ParseVersion extracts a version string from tool output
func ParseVersion(name, output string) string {
	if m := ffmpegVersion.FindStringSubmatch(output); m != nil {
		return m[1]
	}
	first := strings.TrimSpace(strings.SplitN(strings.TrimSpace(output), "\n", 2)[0])
	fields := strings.Fields(first)
	switch {
	case len(fields) == 0:
		return ""
	case (name == FFmpeg || name == FFprobe) && len(fields) >= 3:
		// custom builds: "ffmpeg version 2024-03-11-git-abc ..."
		return fields[2]
	case len(fields) >= 2 && strings.EqualFold(fields[0], name):
		// "deno 2.1.4 (stable, ...)"
		return fields[1]
	}
	return strings.TrimPrefix(fields[0], "v")
}

func versionArgs(name string) []string {
	if name == FFmpeg || name == FFprobe {
		return []string{"-version"}
	}
	return []string{"--version"}
}

func (tc *Toolchain) probe(ctx context.Context, t Tool, required bool) Dependency {
	d := Dependency{Name: t.Name, Path: t.Path, Required: required, Found: t.Found(), Bundled: t.Bundled}
	if !t.Found() {
		d.Error = "not found"
		return d
	}
	ctx, cancel := context.WithTimeout(ctx, VersionTimeout)
	defer cancel()

	out, err := tc.run(ctx, t.Path, versionArgs(t.Name)...)
	if err != nil {
		// the binary exists, so keep it usable and report what went wrong
		d.Error = fmt.Sprintf("version check failed: %v", err)
		tc.logger.Warn("version check failed", slog.String("tool", t.Name), slog.Any("error", err))
		return d
	}
	d.Version = ParseVersion(t.Name, string(out))
	return d
}

// Check probes every tool and returns the report in a fixed order:
// yt-dlp, ffmpeg, ffprobe, JavaScript runtime.
func (tc *Toolchain) Check(ctx context.Context) []Dependency {
	var deps []Dependency

	yt := tc.probe(ctx, tc.YTDLP, true)
	if yt.Name == "" {
		yt.Name = YTDLP
	}
	if yt.Version == "" && tc.YTDLP.Version != "" {
		yt.Version = tc.YTDLP.Version
	}
	if !yt.Found && tc.ytdlpErr != nil {
		yt.Error = tc.ytdlpErr.Error()
	}
	deps = append(deps, yt)

	deps = append(deps, tc.probe(ctx, named(tc.FFmpeg, FFmpeg), true))
	deps = append(deps, tc.probe(ctx, named(tc.FFprobe, FFprobe), false))

	js := tc.probe(ctx, named(tc.JSRuntime, "js-runtime"), false)
	if tc.JSRuntime.Found() {
		js.Name = tc.JSRuntime.Name
	}
	deps = append(deps, js)
	return deps
}

func named(t Tool, name string) Tool {
	if t.Name == "" {
		t.Name = name
	}
	return t
}

// MissingRequired returns the names of required dependencies that were not found
func MissingRequired(deps []Dependency) []string {
	var missing []string
	for _, d := range deps {
		if !d.OK() {
			missing = append(missing, d.Name)
		}
	}
	return missing
}

// JSRuntimesMinVersion is the first yt-dlp release that takes --js-runtimes
// and --remote-components
const JSRuntimesMinVersion = "2025.11.12"

// RemoteComponents lets yt-dlp fetch its challenge solver scripts
const RemoteComponents = "ejs:github"

var ytdlpRelease = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}`)

// SupportsJSRuntimes reports whether a yt-dlp version string ("2025.11.12",
// nightly "2025.11.12.232946") is new enough for JSRuntimeArgs
func SupportsJSRuntimes(version string) bool {
	date := ytdlpRelease.FindString(strings.TrimSpace(version))
	return date != "" && date >= JSRuntimesMinVersion
}

// YTDLPVersion returns the yt-dlp version, asking the binary once when the
// installer did not report it. Failed probes are retried on the next call.
func (tc *Toolchain) YTDLPVersion(ctx context.Context) string {
	if tc.YTDLP.Version != "" || !tc.YTDLP.Found() {
		return tc.YTDLP.Version
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.probedVersion != "" {
		return tc.probedVersion
	}
	run := tc.run
	if run == nil {
		run = execRunner
	}
	ctx, cancel := context.WithTimeout(ctx, VersionTimeout)
	defer cancel()
	out, err := run(ctx, tc.YTDLP.Path, versionArgs(YTDLP)...)
	if err != nil {
		return ""
	}
	tc.probedVersion = ParseVersion(YTDLP, string(out))
	return tc.probedVersion
}

// JSRuntimeArgs returns the yt-dlp flags selecting the discovered JavaScript
// runtime, or nil when there is none or yt-dlp predates the flags. Older
// releases only see the runtime through PathEnv.
func (tc *Toolchain) JSRuntimeArgs(ctx context.Context) []string {
	if !tc.JSRuntime.Found() {
		return nil
	}
	version := tc.YTDLPVersion(ctx)
	if !SupportsJSRuntimes(version) {
		if tc.logger != nil {
			tc.logger.Debug("yt-dlp too old for --js-runtimes", slog.String("version", version))
		}
		return nil
	}
	return []string{
		"--js-runtimes", tc.JSRuntime.Name + ":" + tc.JSRuntime.Path,
		"--remote-components", RemoteComponents,
	}
}

// ProbeDuration asks ffprobe for the duration of a media file
func (tc *Toolchain) ProbeDuration(ctx context.Context, file string) (time.Duration, error) {
	if !tc.FFprobe.Found() {
		return 0, fmt.Errorf("ffprobe not available")
	}
	out, err := tc.run(ctx, tc.FFprobe.Path, "-v", "error", "-show_entries", "format=duration", "-of", "csv=p=0", file)
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
