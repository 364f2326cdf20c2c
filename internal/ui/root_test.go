package ui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"

	"github.com/ytget/video-downloader/internal/config"
	"github.com/ytget/video-downloader/internal/diag"
	"github.com/ytget/video-downloader/internal/download"
	"github.com/ytget/video-downloader/internal/events"
	"github.com/ytget/video-downloader/internal/model"
	"github.com/ytget/video-downloader/internal/preflight"
)

type fakeDownloader struct {
	mu       sync.Mutex
	requests []download.Request
	run      func(ctx context.Context, req download.Request) (model.DownloadTask, error)
	stopped  []string
	removed  []string
	parallel int
	dir      string
	onUpdate func(model.DownloadTask)
	bus      *events.Bus
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		bus: events.New(),
		run: func(_ context.Context, req download.Request) (model.DownloadTask, error) {
			return model.DownloadTask{ID: "task-1", URL: req.URL, Status: model.TaskStatusCompleted, OutputPath: "/tmp/out/v.mp4"}, nil
		},
	}
}

func (f *fakeDownloader) Run(ctx context.Context, req download.Request) (model.DownloadTask, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.run(ctx, req)
}

func (f *fakeDownloader) DownloadPlaylist(_ context.Context, req download.Request) (*download.PlaylistResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return &download.PlaylistResult{Dir: "/tmp/out/pl", Total: 3, Completed: 2, Failed: 1}, nil
}

func (f *fakeDownloader) StopTask(id string) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeDownloader) RemoveTask(id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDownloader) GetAllTasks() []model.DownloadTask            { return nil }
func (f *fakeDownloader) SetUpdateCallback(fn func(model.DownloadTask)) { f.onUpdate = fn }
func (f *fakeDownloader) SetMaxParallel(n int)                         { f.parallel = n }
func (f *fakeDownloader) SetOutputDir(dir string)                      { f.dir = dir }
func (f *fakeDownloader) Bus() *events.Bus                             { return f.bus }

func (f *fakeDownloader) calls() []download.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]download.Request(nil), f.requests...)
}

type opened struct {
	mu    sync.Mutex
	paths []string
}

func (o *opened) record(p string) error {
	o.mu.Lock()
	o.paths = append(o.paths, p)
	o.mu.Unlock()
	return nil
}

func newTestRoot(t *testing.T, svc *fakeDownloader, pre PreflightFunc) (*RootUI, *opened) {
	t.Helper()
	app := test.NewApp()
	w := test.NewWindow(nil)
	t.Cleanup(w.Close)

	cfg := config.Default()
	cfg.Download.OutputDir = t.TempDir()
	settings := config.NewSettings(app, cfg)

	o := &opened{}
	buf := diag.NewBuffer(0)
	ui := NewRootUI(Options{
		App:         app,
		Window:      w,
		Service:     svc,
		Settings:    settings,
		Diagnostics: buf,
		Preflight:   pre,
		Files:       FileActions{OpenFolder: o.record, Reveal: o.record, Open: o.record},
		Logger:      slog.New(diag.NewHandler(slog.NewTextHandler(io.Discard, nil), buf)),
	})
	t.Cleanup(ui.Close)
	return ui, o
}

// eventually polls cond on the fyne goroutine
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ok := false
		fyne.DoAndWait(func() { ok = cond() })
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestRootUI_Initialization(t *testing.T) {
	svc := newFakeDownloader()
	ui, _ := newTestRoot(t, svc, nil)

	if svc.onUpdate == nil {
		t.Error("update callback should be registered")
	}
	if svc.parallel != config.DefaultMaxParallel {
		t.Errorf("max parallel = %d, want %d", svc.parallel, config.DefaultMaxParallel)
	}
	if svc.dir != ui.settings.GetDownloadDirectory() {
		t.Errorf("output dir = %q", svc.dir)
	}
	if !ui.cancelBtn.Disabled() || ui.downloadBtn.Disabled() {
		t.Error("only Download should be enabled when idle")
	}
	if ui.qualitySelect.Selected != "best" {
		t.Errorf("quality = %q, want best", ui.qualitySelect.Selected)
	}
}

func TestRootUI_InvalidURL(t *testing.T) {
	svc := newFakeDownloader()
	ui, _ := newTestRoot(t, svc, nil)

	ui.urlEntry.SetText("ftp://example.com/file")
	ui.onDownloadClick()

	if ui.statusLabel.Text != ui.localization.GetText(KeyInvalidURL) {
		t.Errorf("status = %q", ui.statusLabel.Text)
	}
	if len(svc.calls()) != 0 {
		t.Error("invalid URLs must not reach the service")
	}
}

func TestRootUI_DownloadCompletes(t *testing.T) {
	svc := newFakeDownloader()
	ui, o := newTestRoot(t, svc, nil)
	ui.settings.SetAutoRevealOnComplete(true)

	ui.qualitySelect.SetSelected("720p")
	ui.urlEntry.SetText(" https://www.youtube.com/watch?v=dQw4w9WgXcQ ")
	ui.onDownloadClick()

	eventually(t, func() bool { return !ui.isRunning() })

	calls := svc.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one request, got %d", len(calls))
	}
	if calls[0].URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" || calls[0].Quality != "720p" {
		t.Errorf("request = %+v", calls[0])
	}
	if !strings.HasPrefix(ui.statusLabel.Text, ui.localization.GetText(KeyDownloadCompleted)) {
		t.Errorf("status = %q", ui.statusLabel.Text)
	}
	if len(o.paths) != 1 || o.paths[0] != "/tmp/out/v.mp4" {
		t.Errorf("auto reveal opened %v", o.paths)
	}
	if ui.settings.GetQuality() != "720p" {
		t.Error("quality selection should persist")
	}
}

func TestRootUI_PreflightAborts(t *testing.T) {
	svc := newFakeDownloader()
	pre := func(context.Context, string) preflight.Result {
		return preflight.Result{Issues: []string{"no internet connection"}}
	}
	ui, _ := newTestRoot(t, svc, pre)

	ui.urlEntry.SetText("https://youtu.be/dQw4w9WgXcQ")
	ui.onDownloadClick()

	eventually(t, func() bool { return !ui.isRunning() })
	if len(svc.calls()) != 0 {
		t.Error("failed pre-flight must not start a download")
	}
	if ui.statusLabel.Text != ui.localization.GetText(KeyPreflightFailed) {
		t.Errorf("status = %q", ui.statusLabel.Text)
	}

	var logged bool
	for _, e := range ui.diagnostics.buffer.Entries() {
		if e.Level == diag.LevelError && strings.Contains(e.String(), "no internet connection") {
			logged = true
		}
	}
	if !logged {
		t.Errorf("pre-flight issue missing from diagnostics: %q", ui.diagnostics.buffer.Text())
	}
}

func TestRootUI_Cancel(t *testing.T) {
	svc := newFakeDownloader()
	started := make(chan struct{})
	svc.run = func(ctx context.Context, _ download.Request) (model.DownloadTask, error) {
		close(started)
		<-ctx.Done()
		return model.DownloadTask{Status: model.TaskStatusStopped}, ctx.Err()
	}
	ui, _ := newTestRoot(t, svc, nil)

	ui.urlEntry.SetText("https://youtu.be/dQw4w9WgXcQ")
	ui.onDownloadClick()
	<-started

	if !ui.downloadBtn.Disabled() || ui.cancelBtn.Disabled() {
		t.Error("only Cancel should be enabled while running")
	}
	ui.onDownloadClick()
	if got := len(svc.calls()); got != 1 {
		t.Errorf("second click should be ignored, got %d calls", got)
	}

	ui.onCancelClick()
	eventually(t, func() bool { return !ui.isRunning() })
	if ui.statusLabel.Text != ui.localization.GetText(KeyDownloadCancelled) {
		t.Errorf("status = %q", ui.statusLabel.Text)
	}
}

func TestRootUI_ProgressStatus(t *testing.T) {
	svc := newFakeDownloader()
	ui, _ := newTestRoot(t, svc, nil)

	ui.itemPrefix = "[2/5] "
	ui.showProgress(model.DownloadTask{
		ID: "t", Title: "Song", Status: model.TaskStatusDownloading,
		Progress: 0.5, Speed: "2.0 MiB/s", ETASec: 65,
	})

	want := "[2/5] Downloading: Song | 2.0 MiB/s | ETA 01:05"
	if ui.statusLabel.Text != want {
		t.Errorf("status = %q, want %q", ui.statusLabel.Text, want)
	}
	if ui.progressBar.Value != 0.5 {
		t.Errorf("progress = %v", ui.progressBar.Value)
	}
}

func TestRootUI_TaskList(t *testing.T) {
	svc := newFakeDownloader()
	ui, _ := newTestRoot(t, svc, nil)

	ui.upsertTask(model.DownloadTask{ID: "a", Status: model.TaskStatusDownloading})
	ui.upsertTask(model.DownloadTask{ID: "b", Status: model.TaskStatusPending})
	ui.upsertTask(model.DownloadTask{ID: "a", Status: model.TaskStatusCompleted})

	if len(ui.tasks) != 2 || ui.tasks[0].Status != model.TaskStatusCompleted {
		t.Fatalf("tasks = %+v", ui.tasks)
	}

	ui.onStopTask("b")
	ui.onRemoveTask("a")
	if len(svc.stopped) != 1 || len(svc.removed) != 1 {
		t.Errorf("stopped %v removed %v", svc.stopped, svc.removed)
	}
	if len(ui.tasks) != 1 || ui.tasks[0].ID != "b" {
		t.Errorf("tasks after remove = %+v", ui.tasks)
	}
}

func TestRootUI_PlaylistSummary(t *testing.T) {
	svc := newFakeDownloader()
	ui, o := newTestRoot(t, svc, nil)
	ui.settings.SetAutoRevealOnComplete(true)

	ui.start(download.Request{URL: "https://www.youtube.com/playlist?list=PL1", Playlist: true})
	eventually(t, func() bool { return !ui.isRunning() })

	if !strings.Contains(ui.statusLabel.Text, "2 of 3 downloaded, 1 failed, 0 skipped") {
		t.Errorf("status = %q", ui.statusLabel.Text)
	}
	if len(o.paths) != 1 || o.paths[0] != "/tmp/out/pl" {
		t.Errorf("opened %v", o.paths)
	}
}

func TestRootUI_LanguageChange(t *testing.T) {
	svc := newFakeDownloader()
	ui, _ := newTestRoot(t, svc, nil)

	ui.onLanguageChange("pt")
	if ui.settings.GetLanguage() != "pt" {
		t.Error("language should persist")
	}
	if ui.downloadBtn.Text != ui.localization.GetText(KeyDownload) || ui.localization.GetCurrentLanguage() != "pt" {
		t.Errorf("download button = %q", ui.downloadBtn.Text)
	}
}

func TestSettingsDialog_Apply(t *testing.T) {
	app := test.NewApp()
	w := test.NewWindow(nil)
	defer w.Close()
	settings := config.NewSettings(app, config.Default())

	saved := false
	sd := NewSettingsDialog(settings, NewLocalization(), w, func() { saved = true })
	sd.loadCurrentSettings()

	sd.maxParallelEntry.SetText("4")
	sd.qualitySelect.SetSelected("mp3")
	sd.cookieSelect.SetSelected("firefox")
	sd.languageSelect.SetSelected("Русский")
	sd.autoRevealCheck.SetChecked(true)
	sd.apply()

	if !saved {
		t.Error("onSaved should run")
	}
	if settings.GetMaxParallelDownloads() != 4 || settings.GetQuality() != "mp3" ||
		settings.GetCookieBrowser() != "firefox" || settings.GetLanguage() != "ru" ||
		!settings.GetAutoRevealOnComplete() {
		t.Error("settings were not applied")
	}

	sd.maxParallelEntry.SetText("99")
	sd.apply()
	if settings.GetMaxParallelDownloads() != 4 {
		t.Error("out of range values must be ignored")
	}
}

func TestParseParallel(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"10", 10, false},
		{"0", 0, true},
		{"11", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseParallel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseParallel(%q) = %d, %v", tt.in, got, err)
		}
	}
}
