package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeFS map[string]bool

func (f fakeFS) exists(p string) bool { return f[p] }

func lookPathFrom(found map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if p, ok := found[name]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
}

func noYTDLP(ctx context.Context, allow bool) (string, string, error) {
	return "", "", errors.New("yt-dlp missing")
}

func baseOptions(bin string, fs fakeFS, onPath map[string]string) Options {
	return Options{
		BinDir:       bin,
		GOOS:         "linux",
		Exists:       fs.exists,
		LookPath:     lookPathFrom(onPath),
		ResolveYTDLP: noYTDLP,
		Run: func(ctx context.Context, path string, args ...string) ([]byte, error) {
			return nil, errors.New("not expected")
		},
	}
}

func TestDiscover_BundledWinsOverPath(t *testing.T) {
	bin := "/app/bin"
	fs := fakeFS{"/app/bin/ffmpeg": true, "/app/bin/node": true, "/app/bin/yt-dlp": true}
	opts := baseOptions(bin, fs, map[string]string{"ffmpeg": "/usr/bin/ffmpeg", "deno": "/usr/bin/deno"})

	tc := Discover(context.Background(), opts)

	if tc.FFmpeg.Path != "/app/bin/ffmpeg" || !tc.FFmpeg.Bundled {
		t.Errorf("FFmpeg = %+v, want bundled copy", tc.FFmpeg)
	}
	// deno on PATH outranks a bundled node because runtimes are tried in order
	if tc.JSRuntime.Name != "deno" || tc.JSRuntime.Path != "/usr/bin/deno" {
		t.Errorf("JSRuntime = %+v, want deno from PATH", tc.JSRuntime)
	}
	if tc.YTDLP.Path != "/app/bin/yt-dlp" {
		t.Errorf("YTDLP = %+v, want bundled copy", tc.YTDLP)
	}
}

func TestDiscover_JSRuntimeOrder(t *testing.T) {
	tests := []struct {
		name   string
		onPath map[string]string
		want   string
	}{
		{"deno first", map[string]string{"deno": "/d", "node": "/n", "bun": "/b"}, "deno"},
		{"node second", map[string]string{"node": "/n", "bun": "/b"}, "node"},
		{"bun last", map[string]string{"bun": "/b"}, "bun"},
		{"none", map[string]string{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := Discover(context.Background(), baseOptions("/nowhere", fakeFS{}, tt.onPath))
			if tc.JSRuntime.Name != tt.want && !(tt.want == "" && !tc.JSRuntime.Found()) {
				t.Errorf("JSRuntime = %+v, want %q", tc.JSRuntime, tt.want)
			}
		})
	}
}

func TestDiscover_WindowsExeNames(t *testing.T) {
	opts := baseOptions(`C:\app\bin`, fakeFS{filepath.Join(`C:\app\bin`, "ffmpeg.exe"): true}, nil)
	opts.GOOS = "windows"

	tc := Discover(context.Background(), opts)
	if !tc.FFmpeg.Bundled {
		t.Errorf("expected bundled ffmpeg.exe, got %+v", tc.FFmpeg)
	}
}

func TestDiscover_ResolvesYTDLP(t *testing.T) {
	opts := baseOptions("/nowhere", fakeFS{}, nil)
	var gotAllow bool
	opts.AllowDownload = true
	opts.ResolveYTDLP = func(ctx context.Context, allow bool) (string, string, error) {
		gotAllow = allow
		return "/cache/yt-dlp", "2025.01.15", nil
	}

	tc := Discover(context.Background(), opts)
	if !gotAllow {
		t.Error("AllowDownload should be passed to the resolver")
	}
	if tc.YTDLP.Path != "/cache/yt-dlp" || tc.YTDLP.Version != "2025.01.15" {
		t.Errorf("YTDLP = %+v", tc.YTDLP)
	}
}

func TestCheck_Report(t *testing.T) {
	opts := baseOptions("/nowhere", fakeFS{}, map[string]string{"ffmpeg": "/usr/bin/ffmpeg", "node": "/usr/bin/node"})
	opts.Run = func(ctx context.Context, path string, args ...string) ([]byte, error) {
		switch filepath.Base(path) {
		case "ffmpeg":
			return []byte("ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023\nbuilt with gcc"), nil
		case "node":
			return []byte("v20.11.1\n"), nil
		}
		return nil, errors.New("unexpected " + path)
	}

	tc := Discover(context.Background(), opts)
	deps := tc.Check(context.Background())

	if len(deps) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(deps))
	}
	byName := map[string]Dependency{}
	for _, d := range deps {
		byName[d.Name] = d
	}

	if d := byName[YTDLP]; d.Found || !d.Required || !strings.Contains(d.Error, "yt-dlp missing") {
		t.Errorf("yt-dlp row = %+v", d)
	}
	if d := byName[FFmpeg]; !d.Found || d.Version != "6.1.1" {
		t.Errorf("ffmpeg row = %+v", d)
	}
	if d := byName[FFprobe]; d.Found || d.Required {
		t.Errorf("ffprobe row = %+v", d)
	}
	if d := byName["node"]; !d.Found || d.Version != "20.11.1" {
		t.Errorf("node row = %+v", d)
	}

	missing := MissingRequired(deps)
	if len(missing) != 1 || missing[0] != YTDLP {
		t.Errorf("MissingRequired = %v, want [yt-dlp]", missing)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name, output, want string
	}{
		{FFmpeg, "ffmpeg version 7.0.2 Copyright (c) 2000-2024", "7.0.2"},
		{FFmpeg, "ffmpeg version n6.1 Copyright", "6.1"},
		{FFmpeg, "ffmpeg version 2024-03-11-git-3d1860ec8d-full_build", "2024-03-11-git-3d1860ec8d-full_build"},
		{FFprobe, "ffprobe version 6.0 Copyright", "6.0"},
		{"deno", "deno 2.1.4 (stable, release, x86_64-unknown-linux-gnu)\nv8 13.0", "2.1.4"},
		{"node", "v22.3.0", "22.3.0"},
		{"bun", "1.1.38", "1.1.38"},
		{YTDLP, "2025.01.15\n", "2025.01.15"},
		{YTDLP, "", ""},
	}

	for _, tt := range tests {
		if got := ParseVersion(tt.name, tt.output); got != tt.want {
			t.Errorf("ParseVersion(%s, %q) = %q, want %q", tt.name, tt.output, got, tt.want)
		}
	}
}

func TestPathEnv(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	tc := &Toolchain{BinDir: "/app/bin", JSRuntime: Tool{Name: "deno", Path: "/opt/deno/bin/deno"}}

	got := tc.PathEnv()
	parts := strings.Split(got, string(os.PathListSeparator))
	want := []string{"/app/bin", "/opt/deno/bin", "/usr/bin"}
	if len(parts) != len(want) {
		t.Fatalf("PathEnv() = %q", got)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("PathEnv()[%d] = %q, want %q", i, parts[i], want[i])
		}
	}
}

func TestProbeDuration(t *testing.T) {
	tc := &Toolchain{
		FFprobe: Tool{Name: FFprobe, Path: "/usr/bin/ffprobe"},
		run: func(ctx context.Context, path string, args ...string) ([]byte, error) {
			return []byte("212.480000\n"), nil
		},
	}

	d, err := tc.ProbeDuration(context.Background(), "/tmp/x.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if d != 212480*time.Millisecond {
		t.Errorf("duration = %v", d)
	}

	tc.FFprobe = Tool{}
	if _, err := tc.ProbeDuration(context.Background(), "/tmp/x.mp4"); err == nil {
		t.Error("expected error without ffprobe")
	}
}

func TestSupportsJSRuntimes(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"2025.06.30", false},
		{"2025.11.12", true},
		{"2025.11.12.232946", true},
		{"2026.01.03\n", true},
		{"", false},
		{"unknown", false},
	}
	for _, tt := range tests {
		if got := SupportsJSRuntimes(tt.version); got != tt.want {
			t.Errorf("SupportsJSRuntimes(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestJSRuntimeArgs(t *testing.T) {
	node := Tool{Name: "node", Path: "/usr/bin/node"}
	tests := []struct {
		name    string
		ytdlp   Tool
		runtime Tool
		want    []string
	}{
		{"no runtime", Tool{Name: YTDLP, Path: "/bin/yt-dlp", Version: "2025.11.12"}, Tool{}, nil},
		{"old yt-dlp", Tool{Name: YTDLP, Path: "/bin/yt-dlp", Version: "2025.06.30"}, node, nil},
		{"current yt-dlp", Tool{Name: YTDLP, Path: "/bin/yt-dlp", Version: "2025.12.08"}, node,
			[]string{"--js-runtimes", "node:/usr/bin/node", "--remote-components", RemoteComponents}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &Toolchain{YTDLP: tt.ytdlp, JSRuntime: tt.runtime}
			got := tc.JSRuntimeArgs(context.Background())
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("JSRuntimeArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestYTDLPVersion_ProbesOnce(t *testing.T) {
	calls := 0
	tc := &Toolchain{
		YTDLP:     Tool{Name: YTDLP, Path: "/app/bin/yt-dlp", Bundled: true},
		JSRuntime: Tool{Name: "bun", Path: "/opt/bun/bun"},
		run: func(ctx context.Context, path string, args ...string) ([]byte, error) {
			calls++
			if path != "/app/bin/yt-dlp" || len(args) != 1 || args[0] != "--version" {
				t.Errorf("unexpected probe %s %v", path, args)
			}
			return []byte("2025.11.12\n"), nil
		},
	}

	for i := 0; i < 3; i++ {
		if v := tc.YTDLPVersion(context.Background()); v != "2025.11.12" {
			t.Fatalf("YTDLPVersion() = %q", v)
		}
	}
	if calls != 1 {
		t.Errorf("version probed %d times, want 1", calls)
	}
	if args := tc.JSRuntimeArgs(context.Background()); len(args) < 2 || args[1] != "bun:/opt/bun/bun" {
		t.Errorf("JSRuntimeArgs() = %q", args)
	}
}
