package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ytget/video-downloader/internal/cookies"
	"github.com/ytget/video-downloader/internal/diag"
	"github.com/ytget/video-downloader/internal/events"
	"github.com/ytget/video-downloader/internal/model"
	"github.com/ytget/video-downloader/internal/platform"
	"github.com/ytget/video-downloader/internal/quality"
	"github.com/ytget/video-downloader/internal/retry"
	"github.com/ytget/video-downloader/internal/validate"
)

// ProgressLogInterval throttles progress lines in the log
const ProgressLogInterval = 5 * time.Second

// Errors returned by the service
var (
	ErrDuplicateTask = errors.New("task already exists for URL")
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskActive    = errors.New("task is still active")
	ErrTaskInactive  = errors.New("task is not active")
	ErrShutdown      = errors.New("service is shut down")
)

// Request describes one download
type Request struct {
	URL           string
	OutputDir     string // empty means the service default
	Quality       string // empty means quality.Default
	AudioOnly     bool   // force audio extraction for video qualities
	Playlist      bool
	PlaylistLimit int
}

// CookieSelector picks the cookie source for a download
type CookieSelector interface {
	Select(ctx context.Context) (cookies.Source, error)
}

// PlaylistLister resolves a playlist URL into its entries
type PlaylistLister interface {
	List(ctx context.Context, url string, limit int) (*model.Playlist, error)
}

// DurationProber reports the duration of a finished media file
type DurationProber interface {
	ProbeDuration(ctx context.Context, file string) (time.Duration, error)
}

// Options configures a Service
type Options struct {
	OutputDir   string
	MaxParallel int
	Policy      retry.Policy

	Runner  Runner
	Cookies CookieSelector
	Lister  PlaylistLister
	Prober  DurationProber
	Bus     *events.Bus
	Logger  *slog.Logger

	// Timer replaces the real backoff timer in tests
	Timer backoff.Timer
}

type taskState struct {
	task    *model.DownloadTask
	req     Request
	profile quality.Profile
	cancel  context.CancelFunc
	done    chan struct{}
	logger  rate.Sometimes
}

// Service runs download tasks with a parallel limit
type Service struct {
	tasks       map[string]*taskState
	queue       []string
	tasksMutex  sync.RWMutex
	maxParallel int
	activeCount int
	outputDir   string
	onUpdate    func(model.DownloadTask) // callback for UI updates

	policy  retry.Policy
	runner  Runner
	cookies CookieSelector
	lister  PlaylistLister
	prober  DurationProber
	bus     *events.Bus
	logger  *slog.Logger
	timer   backoff.Timer

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

// NewService creates a new download service
func NewService(opts Options) *Service {
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Bus == nil {
		opts.Bus = events.New()
	}
	if opts.Runner == nil {
		opts.Runner = NewEngine(nil, opts.Logger)
	}
	if opts.Lister == nil {
		opts.Lister = platform.NewPlaylistLister()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		tasks:       make(map[string]*taskState),
		maxParallel: opts.MaxParallel,
		outputDir:   opts.OutputDir,
		policy:      opts.Policy,
		runner:      opts.Runner,
		cookies:     opts.Cookies,
		lister:      opts.Lister,
		prober:      opts.Prober,
		bus:         opts.Bus,
		logger:      opts.Logger,
		timer:       opts.Timer,
		baseCtx:     ctx,
		baseCancel:  cancel,
	}
}

// SetUpdateCallback sets the callback function for task updates. It is
// called from worker goroutines with a copy of the task.
func (s *Service) SetUpdateCallback(callback func(model.DownloadTask)) {
	s.tasksMutex.Lock()
	s.onUpdate = callback
	s.tasksMutex.Unlock()
}

// Bus returns the event bus progress is published on
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// SetMaxParallel changes the parallel limit; queued tasks start if room opens
func (s *Service) SetMaxParallel(n int) {
	if n < 1 {
		n = 1
	}
	s.tasksMutex.Lock()
	s.maxParallel = n
	s.tasksMutex.Unlock()
	s.startNextPendingTask()
}

// SetOutputDir changes the default output directory for new tasks
func (s *Service) SetOutputDir(dir string) {
	s.tasksMutex.Lock()
	s.outputDir = dir
	s.tasksMutex.Unlock()
}

// register validates req and records a pending task, appending it to the
// queue in the same critical section when enqueue is set
func (s *Service) register(req Request, enqueue bool) (*taskState, error) {
	u, err := validate.URL(req.URL)
	if err != nil {
		return nil, err
	}
	req.URL = u
	if req.Quality == "" {
		req.Quality = quality.Default
	}
	profile, err := quality.Lookup(req.Quality)
	if err != nil {
		return nil, err
	}
	if req.AudioOnly {
		profile = quality.ForceAudio(profile)
	}

	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	if s.closed {
		return nil, ErrShutdown
	}
	if req.OutputDir == "" {
		req.OutputDir = s.outputDir
	}

	// Check for duplicate URLs
	for _, st := range s.tasks {
		if st.task.URL == req.URL && !st.task.Status.IsFinished() {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, req.URL)
		}
	}

	st := &taskState{
		task: &model.DownloadTask{
			ID:        generateTaskID(),
			URL:       req.URL,
			Quality:   profile.Name,
			OutputDir: req.OutputDir,
			Status:    model.TaskStatusPending,
			ETASec:    -1,
			StartedAt: time.Now(),
		},
		req:     req,
		profile: profile,
		done:    make(chan struct{}),
		logger:  rate.Sometimes{First: 1, Interval: ProgressLogInterval},
	}
	s.tasks[st.task.ID] = st
	if enqueue {
		s.queue = append(s.queue, st.task.ID)
	}
	return st, nil
}

// AddTask adds a new download task. It starts at once when under the
// parallel limit and is queued otherwise.
func (s *Service) AddTask(req Request) (*model.DownloadTask, error) {
	st, err := s.register(req, true)
	if err != nil {
		return nil, err
	}
	snapshot := s.snapshot(st)

	s.logger.Info("task added", slog.String("task", snapshot.ID), slog.String("url", snapshot.URL), slog.String("quality", snapshot.Quality))
	s.notifyUpdate(snapshot)
	s.startNextPendingTask()
	return &snapshot, nil
}

// Run downloads req in the calling goroutine, ignoring the parallel limit,
// and returns the final task state. A nil error means the engine reported
// success.
func (s *Service) Run(ctx context.Context, req Request) (model.DownloadTask, error) {
	st, err := s.register(req, false)
	if err != nil {
		return model.DownloadTask{}, err
	}
	s.tasksMutex.Lock()
	s.activeCount++
	s.tasksMutex.Unlock()

	err = s.execute(ctx, st)
	return s.snapshot(st), err
}

// GetTask returns a copy of a task by ID
func (s *Service) GetTask(id string) (model.DownloadTask, bool) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	st, exists := s.tasks[id]
	if !exists {
		return model.DownloadTask{}, false
	}
	return st.task.Snapshot(), true
}

// GetAllTasks returns copies of all tasks, oldest first
func (s *Service) GetAllTasks() []model.DownloadTask {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()

	tasks := make([]model.DownloadTask, 0, len(s.tasks))
	for _, st := range s.tasks {
		tasks = append(tasks, st.task.Snapshot())
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].StartedAt.Equal(tasks[j].StartedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].StartedAt.Before(tasks[j].StartedAt)
	})
	return tasks
}

// StopTask cancels a running or queued task
func (s *Service) StopTask(id string) error {
	s.tasksMutex.Lock()
	st, exists := s.tasks[id]
	if !exists {
		s.tasksMutex.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	switch {
	case st.task.Status == model.TaskStatusPending:
		s.dequeue(id)
		st.task.Status = model.TaskStatusStopped
		st.task.FinishedAt = time.Now()
		close(st.done)
	case st.task.Status.IsActive():
		st.task.Status = model.TaskStatusStopping
		if st.cancel != nil {
			st.cancel()
		}
	default:
		status := st.task.Status
		s.tasksMutex.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskInactive, status)
	}
	snapshot := st.task.Snapshot()
	s.tasksMutex.Unlock()

	s.logger.Info("stopping task", slog.String("task", id))
	s.notifyUpdate(snapshot)
	return nil
}

// RemoveTask forgets a finished task
func (s *Service) RemoveTask(id string) error {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	st, exists := s.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if !st.task.Status.IsFinished() {
		return fmt.Errorf("%w: %s", ErrTaskActive, st.task.Status)
	}
	delete(s.tasks, id)
	return nil
}

// Wait blocks until the task finishes or ctx is done
func (s *Service) Wait(ctx context.Context, id string) (model.DownloadTask, error) {
	s.tasksMutex.RLock()
	st, exists := s.tasks[id]
	s.tasksMutex.RUnlock()
	if !exists {
		return model.DownloadTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	select {
	case <-st.done:
		return s.snapshot(st), nil
	case <-ctx.Done():
		return s.snapshot(st), ctx.Err()
	}
}

// Shutdown cancels every task and waits for the workers to exit
func (s *Service) Shutdown(ctx context.Context) error {
	s.tasksMutex.Lock()
	s.closed = true
	var stopped []model.DownloadTask
	for _, id := range s.queue {
		st := s.tasks[id]
		st.task.Status = model.TaskStatusStopped
		st.task.FinishedAt = time.Now()
		close(st.done)
		stopped = append(stopped, st.task.Snapshot())
	}
	s.queue = nil
	s.tasksMutex.Unlock()

	for _, t := range stopped {
		s.notifyUpdate(t)
	}
	s.baseCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startNextPendingTask starts queued tasks while there is capacity
func (s *Service) startNextPendingTask() {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	for s.activeCount < s.maxParallel && len(s.queue) > 0 && !s.closed {
		id := s.queue[0]
		s.queue = s.queue[1:]
		st, ok := s.tasks[id]
		if !ok || st.task.Status != model.TaskStatusPending {
			continue
		}
		s.activeCount++
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.execute(s.baseCtx, st)
		}()
	}
}

func (s *Service) dequeue(id string) {
	for i, q := range s.queue {
		if q == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// execute runs one task to completion; activeCount must already include it
func (s *Service) execute(parent context.Context, st *taskState) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	s.tasksMutex.Lock()
	if st.task.Status != model.TaskStatusPending {
		// stopped while waiting
		s.activeCount--
		s.tasksMutex.Unlock()
		s.startNextPendingTask()
		return context.Canceled
	}
	st.cancel = cancel
	s.tasksMutex.Unlock()

	s.update(st, func(t *model.DownloadTask) {
		t.Status = model.TaskStatusStarting
	})

	outcome, err := s.download(ctx, st)

	s.tasksMutex.Lock()
	t := st.task
	switch {
	case err == nil:
		t.Status = model.TaskStatusCompleted
		t.Progress = 1.0
		t.Percent = 100
		t.ETASec = 0
		if outcome != nil {
			if len(outcome.Files) > 0 {
				t.OutputPath = outcome.Files[0]
				if fi, statErr := os.Stat(t.OutputPath); statErr == nil {
					t.FileSize = fi.Size()
				}
			}
			if outcome.Title != "" {
				t.Title = outcome.Title
			}
		}
	case errors.Is(err, context.Canceled):
		t.Status = model.TaskStatusStopped
	default:
		t.Status = model.TaskStatusError
		t.LastError = err.Error()
		t.ErrorCategory = string(CategoryOf(err))
	}
	t.FinishedAt = time.Now()
	s.activeCount--
	snapshot := t.Snapshot()
	close(st.done)
	s.tasksMutex.Unlock()

	s.finish(ctx, snapshot, err)
	s.startNextPendingTask()
	return err
}

func (s *Service) finish(ctx context.Context, t model.DownloadTask, err error) {
	log := s.logger.With(slog.String("task", t.ID))
	switch t.Status {
	case model.TaskStatusCompleted:
		attrs := []any{slog.String("file", t.OutputPath), diag.Success()}
		if t.FileSize > 0 {
			attrs = append(attrs, slog.String("size", humanize.IBytes(uint64(t.FileSize))))
		}
		if t.OutputPath != "" && s.prober != nil {
			if d, perr := s.prober.ProbeDuration(ctx, t.OutputPath); perr == nil {
				attrs = append(attrs, slog.Duration("duration", d.Round(time.Second)))
			}
		}
		log.Info("download complete", attrs...)
	case model.TaskStatusStopped:
		log.Info("download cancelled")
	default:
		log.Error("download failed", slog.String("category", t.ErrorCategory), slog.Any("error", err))
	}

	s.notifyUpdate(t)
	s.bus.PublishDone(events.DoneEvent{Task: t, Err: err})
}

// download runs the engine under the retry policy, switching to the next
// cookie browser after bot checks and 403s
func (s *Service) download(ctx context.Context, st *taskState) (*Outcome, error) {
	log := s.logger.With(slog.String("task", st.task.ID))
	src := cookies.Source{}
	if s.cookies != nil {
		var err error
		if src, err = s.cookies.Select(ctx); err != nil {
			return nil, err
		}
	}
	log.Debug("cookie source", slog.String("source", src.String()))

	if err := platform.CreateDirectoryIfNotExists(st.req.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var outcome *Outcome
	op := func(ctx context.Context, attempt int) error {
		s.update(st, func(t *model.DownloadTask) {
			t.Attempt = attempt
			if t.Status != model.TaskStatusStopping {
				t.Status = model.TaskStatusDownloading
			}
		})
		log.Info("download attempt", slog.Int("attempt", attempt), slog.Int("max_attempts", s.policy.MaxAttempts))

		out, err := s.runner.Run(ctx, Job{
			URL:        st.req.URL,
			OutputDir:  st.req.OutputDir,
			Profile:    st.profile,
			Cookies:    src,
			OnProgress: func(p model.Progress) { s.onProgress(st, p) },
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			classified := Classify(err)
			var ee *EngineError
			if errors.As(err, &ee) && ee.Command != "" {
				log.Warn("engine command failed", slog.String("command", ee.Command), slog.Int("exit_code", ee.ExitCode))
			}
			if classified.Fatal {
				log.Error("fatal error", slog.String("category", string(classified.Category)), slog.Any("error", err))
				return classified
			}
			log.Warn("recoverable error", slog.String("category", string(classified.Category)), slog.Int("attempt", attempt), slog.Any("error", err))
			if switchesBrowser(classified) {
				if next, ok := src.Next(); ok {
					log.Info("switching cookie browser", slog.String("from", src.Browser), slog.String("to", next.Browser))
					src = next
				}
			}
			return classified
		}
		outcome = out
		return nil
	}

	opts := []retry.Option{
		retry.WithFatal(IsFatal),
		retry.OnRetry(func(attempt int, err error, wait time.Duration) {
			s.update(st, func(t *model.DownloadTask) {
				t.Status = model.TaskStatusRetrying
				t.LastError = err.Error()
				t.ErrorCategory = string(CategoryOf(err))
			})
			s.bus.PublishStatus(events.StatusEvent{TaskID: st.task.ID, Status: model.TaskStatusRetrying, Attempt: attempt + 1, Err: err})
			log.Info("waiting before retry", slog.Duration("wait", wait.Round(100*time.Millisecond)), slog.Int("next_attempt", attempt+1))
		}),
	}
	if s.timer != nil {
		opts = append(opts, retry.WithTimer(s.timer))
	}

	if err := retry.Do(ctx, s.policy, op, opts...); err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *Service) onProgress(st *taskState, p model.Progress) {
	p.TaskID = st.task.ID
	s.tasksMutex.Lock()
	t := st.task
	if p.TotalBytes > 0 {
		t.Progress = p.Fraction()
		t.Percent = p.Percent()
	}
	if p.SpeedBps > 0 {
		t.Speed = humanize.Bytes(uint64(p.SpeedBps)) + "/s"
	}
	if p.ETA > 0 {
		t.ETASec = int(p.ETA.Seconds())
	}
	if p.Title != "" && t.Title == "" {
		t.Title = p.Title
	}
	if t.Status != model.TaskStatusDownloading && t.Status.IsActive() && t.Status != model.TaskStatusStopping {
		t.Status = model.TaskStatusDownloading
	}
	snapshot := t.Snapshot()
	s.tasksMutex.Unlock()

	st.logger.Do(func() {
		s.logger.Debug("progress",
			slog.String("task", snapshot.ID),
			slog.Int("percent", snapshot.Percent),
			slog.String("speed", snapshot.Speed),
			slog.String("eta", snapshot.GetETAString()))
	})
	s.notifyUpdate(snapshot)
	s.bus.PublishProgress(p)
}

// update applies fn under the lock, then notifies listeners
func (s *Service) update(st *taskState, fn func(*model.DownloadTask)) {
	s.tasksMutex.Lock()
	prev := st.task.Status
	fn(st.task)
	snapshot := st.task.Snapshot()
	s.tasksMutex.Unlock()

	if snapshot.Status != prev {
		s.bus.PublishStatus(events.StatusEvent{TaskID: snapshot.ID, Status: snapshot.Status, Attempt: snapshot.Attempt})
	}
	s.notifyUpdate(snapshot)
}

func (s *Service) snapshot(st *taskState) model.DownloadTask {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	return st.task.Snapshot()
}

// notifyUpdate calls the update callback if set
func (s *Service) notifyUpdate(task model.DownloadTask) {
	s.tasksMutex.RLock()
	cb := s.onUpdate
	s.tasksMutex.RUnlock()
	if cb != nil {
		cb(task)
	}
}

// generateTaskID generates a unique, time-ordered task ID
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "task-" + uuid.NewString()
	}
	return "task-" + id.String()
}
