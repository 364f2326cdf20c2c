package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ytget/video-downloader/internal/cookies"
	"github.com/ytget/video-downloader/internal/events"
	"github.com/ytget/video-downloader/internal/model"
	"github.com/ytget/video-downloader/internal/retry"
)

// fakeTimer fires immediately
type fakeTimer struct {
	ch chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{ch: make(chan time.Time, 1)}
}

func (f *fakeTimer) Start(time.Duration) { f.ch <- time.Now() }
func (f *fakeTimer) Stop()               {}
func (f *fakeTimer) C() <-chan time.Time { return f.ch }

// fakeRunner answers jobs from a function and records them
type fakeRunner struct {
	mu   sync.Mutex
	jobs []Job
	fn   func(ctx context.Context, n int, job Job) (*Outcome, error)
}

func (r *fakeRunner) Run(ctx context.Context, job Job) (*Outcome, error) {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	n := len(r.jobs)
	r.mu.Unlock()
	return r.fn(ctx, n, job)
}

func (r *fakeRunner) calls() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Job(nil), r.jobs...)
}

type fixedCookies struct {
	src cookies.Source
}

func (f fixedCookies) Select(context.Context) (cookies.Source, error) {
	return f.src, nil
}

type fakeLister struct {
	titles []string
}

func (f fakeLister) List(_ context.Context, url string, limit int) (*model.Playlist, error) {
	pl := model.NewPlaylist(url)
	pl.ID = "PLtest"
	pl.Title = "My: Playlist"
	for i, title := range f.titles {
		pl.AddVideo(&model.PlaylistVideo{
			ID:    fmt.Sprintf("vid%08d", i+1),
			Title: title,
			URL:   fmt.Sprintf("https://www.youtube.com/watch?v=vid%08d", i+1),
		})
	}
	pl.UpdateStatus(model.PlaylistStatusReady)
	return pl, nil
}

func newTestService(t *testing.T, runner Runner, opts ...func(*Options)) *Service {
	t.Helper()
	o := Options{
		OutputDir: t.TempDir(),
		Policy:    retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Runner:    runner,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timer:     newFakeTimer(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewService(o)
}

func succeed(dir string) func(context.Context, int, Job) (*Outcome, error) {
	return func(_ context.Context, n int, job Job) (*Outcome, error) {
		path := filepath.Join(job.OutputDir, fmt.Sprintf("video_%d.mp4", n))
		if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
			return nil, err
		}
		if job.OnProgress != nil {
			job.OnProgress(model.Progress{DownloadedBytes: 4, TotalBytes: 4, Title: "Test Video"})
		}
		return &Outcome{Files: []string{path}, Title: "Test Video"}, nil
	}
}

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestAddTask_Validation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	runner := &fakeRunner{fn: func(ctx context.Context, _ int, _ Job) (*Outcome, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}}
	s := newTestService(t, runner)
	defer s.Shutdown(context.Background())

	task, err := s.AddTask(Request{URL: "  " + testURL + "  "})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}
	if !strings.HasPrefix(task.ID, "task-") {
		t.Errorf("expected task- prefix, got %q", task.ID)
	}
	if task.URL != testURL {
		t.Errorf("expected trimmed URL, got %q", task.URL)
	}
	if task.Quality != "best" {
		t.Errorf("expected default quality, got %q", task.Quality)
	}

	if _, err := s.AddTask(Request{URL: testURL}); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("expected duplicate error, got %v", err)
	}
	if _, err := s.AddTask(Request{URL: "ftp://example.com/x"}); err == nil {
		t.Error("expected invalid URL error")
	}
	if _, err := s.AddTask(Request{URL: "https://youtu.be/abc", Quality: "4k-ultra"}); err == nil {
		t.Error("expected invalid quality error")
	}
}

func TestRun_Success(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestService(t, runner)
	runner.fn = succeed(s.outputDir)

	var statuses []model.TaskStatus
	var mu sync.Mutex
	unsub, err := s.Bus().OnStatus(func(e events.StatusEvent) {
		mu.Lock()
		statuses = append(statuses, e.Status)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer unsub()

	task, err := s.Run(context.Background(), Request{URL: testURL, Quality: "720p"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if task.Status != model.TaskStatusCompleted {
		t.Errorf("expected Completed, got %s", task.Status)
	}
	if task.Title != "Test Video" || task.FileSize != 4 || task.Percent != 100 {
		t.Errorf("unexpected task %+v", task)
	}
	if len(runner.calls()) != 1 {
		t.Errorf("expected 1 call, got %d", len(runner.calls()))
	}
	if runner.calls()[0].Profile.Name != "720p" {
		t.Errorf("expected 720p profile, got %s", runner.calls()[0].Profile.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) == 0 || statuses[0] != model.TaskStatusStarting {
		t.Errorf("expected Starting first, got %v", statuses)
	}
}

func TestRun_FatalNotRetried(t *testing.T) {
	runner := &fakeRunner{fn: func(context.Context, int, Job) (*Outcome, error) {
		return nil, errors.New("ERROR: [youtube] x: Private video")
	}}
	s := newTestService(t, runner)

	task, err := s.Run(context.Background(), Request{URL: testURL})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := len(runner.calls()); n != 1 {
		t.Errorf("fatal error must not be retried, got %d calls", n)
	}
	if task.Status != model.TaskStatusError {
		t.Errorf("expected Error status, got %s", task.Status)
	}
	if task.ErrorCategory != string(CategoryVideoUnavailable) {
		t.Errorf("expected video_unavailable, got %q", task.ErrorCategory)
	}
}

func TestRun_AttemptsAtMostPolicy(t *testing.T) {
	runner := &fakeRunner{fn: func(context.Context, int, Job) (*Outcome, error) {
		return nil, errors.New("HTTP Error 429: Too Many Requests")
	}}
	s := newTestService(t, runner)

	task, err := s.Run(context.Background(), Request{URL: testURL})
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if n := len(runner.calls()); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
	if task.Attempt != 3 {
		t.Errorf("expected attempt 3, got %d", task.Attempt)
	}
	if task.ErrorCategory != string(CategoryRateLimited) {
		t.Errorf("expected rate_limited, got %q", task.ErrorCategory)
	}
}

func TestRun_SwitchesBrowserOnBotCheck(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestService(t, runner, func(o *Options) {
		o.Cookies = fixedCookies{src: cookies.Source{Browser: "chrome", Fallbacks: []string{"firefox"}}}
	})
	ok := succeed(s.outputDir)
	runner.fn = func(ctx context.Context, n int, job Job) (*Outcome, error) {
		if n == 1 {
			return nil, errors.New("Sign in to confirm you're not a bot")
		}
		return ok(ctx, n, job)
	}

	if _, err := s.Run(context.Background(), Request{URL: testURL}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	calls := runner.calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Cookies.Browser != "chrome" || calls[1].Cookies.Browser != "firefox" {
		t.Errorf("expected chrome then firefox, got %s then %s", calls[0].Cookies.Browser, calls[1].Cookies.Browser)
	}
}

func TestStopTask(t *testing.T) {
	started := make(chan struct{})
	runner := &fakeRunner{fn: func(ctx context.Context, _ int, _ Job) (*Outcome, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s := newTestService(t, runner)

	task, err := s.AddTask(Request{URL: testURL})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	if err := s.StopTask(task.ID); err != nil {
		t.Fatalf("StopTask failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := s.Wait(ctx, task.ID)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if final.Status != model.TaskStatusStopped {
		t.Errorf("expected Stopped, got %s", final.Status)
	}
	if err := s.StopTask(task.ID); !errors.Is(err, ErrTaskInactive) {
		t.Errorf("expected inactive error, got %v", err)
	}
	if err := s.RemoveTask(task.ID); err != nil {
		t.Errorf("RemoveTask failed: %v", err)
	}
	if _, ok := s.GetTask(task.ID); ok {
		t.Error("task should be gone")
	}
}

func TestQueue_RespectsMaxParallel(t *testing.T) {
	release := make(chan struct{})
	runner := &fakeRunner{}
	s := newTestService(t, runner)
	ok := succeed(s.outputDir)
	runner.fn = func(ctx context.Context, n int, job Job) (*Outcome, error) {
		<-release
		return ok(ctx, n, job)
	}

	first, err := s.AddTask(Request{URL: testURL})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.AddTask(Request{URL: "https://youtu.be/aaaaaaaaaaa"})
	if err != nil {
		t.Fatal(err)
	}

	if got, _ := s.GetTask(second.ID); got.Status != model.TaskStatusPending {
		t.Errorf("second task should wait, got %s", got.Status)
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range []string{first.ID, second.ID} {
		task, err := s.Wait(ctx, id)
		if err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
		if task.Status != model.TaskStatusCompleted {
			t.Errorf("expected Completed, got %s", task.Status)
		}
	}
	if all := s.GetAllTasks(); len(all) != 2 || all[0].ID != first.ID {
		t.Errorf("expected tasks in insertion order, got %v", all)
	}
}

func TestDownloadPlaylist(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestService(t, runner, func(o *Options) {
		o.Lister = fakeLister{titles: []string{"one", "two", "three"}}
	})
	ok := succeed(s.outputDir)
	runner.fn = func(ctx context.Context, n int, job Job) (*Outcome, error) {
		if strings.HasSuffix(job.URL, "vid00000002") {
			return nil, errors.New("ERROR: Video unavailable")
		}
		return ok(ctx, n, job)
	}

	var items []events.PlaylistItemEvent
	var mu sync.Mutex
	unsub, _ := s.Bus().OnPlaylistItem(func(e events.PlaylistItemEvent) {
		mu.Lock()
		items = append(items, e)
		mu.Unlock()
	})
	defer unsub()

	res, err := s.DownloadPlaylist(context.Background(), Request{URL: "https://www.youtube.com/playlist?list=PLtest"})
	if err != nil {
		t.Fatalf("DownloadPlaylist failed: %v", err)
	}
	if res.Total != 3 || res.Completed != 2 || res.Failed != 1 || res.Skipped != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.OK() {
		t.Error("result with a failure must not be OK")
	}
	if filepath.Dir(res.Dir) != s.outputDir || strings.ContainsAny(filepath.Base(res.Dir), ":") {
		t.Errorf("expected sanitized subfolder of the output dir, got %q", res.Dir)
	}
	for _, job := range runner.calls() {
		if job.OutputDir != res.Dir {
			t.Errorf("entry downloaded to %q, want %q", job.OutputDir, res.Dir)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(items) != 6 {
		t.Errorf("expected 2 events per entry, got %d", len(items))
	}
}

func TestDownloadPlaylist_CancelSkipsRest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &fakeRunner{}
	s := newTestService(t, runner, func(o *Options) {
		o.Lister = fakeLister{titles: []string{"one", "two", "three"}}
	})
	ok := succeed(s.outputDir)
	runner.fn = func(c context.Context, n int, job Job) (*Outcome, error) {
		out, err := ok(c, n, job)
		cancel()
		return out, err
	}

	res, err := s.DownloadPlaylist(ctx, Request{URL: "https://www.youtube.com/playlist?list=PLtest"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res.Completed != 1 || res.Skipped != 2 {
		t.Errorf("expected 1 completed and 2 skipped, got %+v", res)
	}
	if res.Playlist.Status != model.PlaylistStatusCancelled {
		t.Errorf("expected cancelled playlist, got %s", res.Playlist.Status)
	}
}

func TestShutdown_StopsQueued(t *testing.T) {
	runner := &fakeRunner{fn: func(ctx context.Context, _ int, _ Job) (*Outcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s := newTestService(t, runner)

	a, _ := s.AddTask(Request{URL: testURL})
	b, _ := s.AddTask(Request{URL: "https://youtu.be/aaaaaaaaaaa"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	for _, id := range []string{a.ID, b.ID} {
		if task, _ := s.GetTask(id); task.Status != model.TaskStatusStopped {
			t.Errorf("task %s: expected Stopped, got %s", id, task.Status)
		}
	}
	if _, err := s.AddTask(Request{URL: "https://youtu.be/bbbbbbbbbbb"}); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected shutdown error, got %v", err)
	}
}

func TestExecute_StoppedWhilePendingStartsNext(t *testing.T) {
	runner := &fakeRunner{}
	runner.fn = succeed(t.TempDir())
	s := newTestService(t, runner, func(o *Options) { o.MaxParallel = 1 })

	// a worker was launched for a, but a was stopped before the worker ran
	a, err := s.register(Request{URL: testURL}, false)
	if err != nil {
		t.Fatal(err)
	}
	s.tasksMutex.Lock()
	a.task.Status = model.TaskStatusStopped
	s.activeCount++
	s.tasksMutex.Unlock()

	b, err := s.AddTask(Request{URL: "https://youtu.be/aaaaaaaaaaa"})
	if err != nil {
		t.Fatal(err)
	}
	if task, _ := s.GetTask(b.ID); task.Status != model.TaskStatusPending {
		t.Fatalf("b should wait for a free slot, got %s", task.Status)
	}

	if err := s.execute(context.Background(), a); !errors.Is(err, context.Canceled) {
		t.Fatalf("execute() = %v, want context.Canceled", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := s.Wait(ctx, b.ID)
	if err != nil {
		t.Fatalf("queued task never started: %v", err)
	}
	if task.Status != model.TaskStatusCompleted {
		t.Errorf("expected Completed, got %s", task.Status)
	}
}

func TestShutdown_StopsRegisteredTask(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	runner := &fakeRunner{fn: func(ctx context.Context, _ int, _ Job) (*Outcome, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}}
	s := newTestService(t, runner, func(o *Options) { o.MaxParallel = 1 })

	if _, err := s.AddTask(Request{URL: testURL}); err != nil {
		t.Fatal(err)
	}
	// registered and queued, but AddTask has not scheduled it yet
	st, err := s.register(Request{URL: "https://youtu.be/aaaaaaaaaaa"}, true)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	task, err := s.Wait(ctx, st.task.ID)
	if err != nil {
		t.Fatalf("Wait() = %v, the task was left pending", err)
	}
	if task.Status != model.TaskStatusStopped {
		t.Errorf("expected Stopped, got %s", task.Status)
	}
}
