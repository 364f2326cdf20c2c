package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeTimer fires immediately and records every requested wait
type fakeTimer struct {
	waits []time.Duration
	ch    chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{ch: make(chan time.Time, 1)}
}

func (f *fakeTimer) Start(d time.Duration) {
	f.waits = append(f.waits, d)
	f.ch <- time.Now()
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.ch }

var errTransient = errors.New("HTTP Error 429: Too Many Requests")

func TestDo_SucceedsFirstTry(t *testing.T) {
	timer := newFakeTimer()
	calls := 0

	err := Do(context.Background(), DefaultPolicy(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	}, WithTimer(timer))

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(timer.waits) != 0 {
		t.Errorf("expected no waits, got %v", timer.waits)
	}
}

func TestDo_AttemptsAtMostN(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		timer := newFakeTimer()
		var attempts []int

		p := DefaultPolicy()
		p.MaxAttempts = n
		err := Do(context.Background(), p, func(ctx context.Context, attempt int) error {
			attempts = append(attempts, attempt)
			return errTransient
		}, WithTimer(timer))

		if len(attempts) != n {
			t.Errorf("MaxAttempts=%d: op called %d times", n, len(attempts))
		}
		for i, a := range attempts {
			if a != i+1 {
				t.Errorf("MaxAttempts=%d: attempt #%d numbered %d", n, i, a)
			}
		}
		if len(timer.waits) != n-1 {
			t.Errorf("MaxAttempts=%d: %d waits, want %d", n, len(timer.waits), n-1)
		}
		if !errors.Is(err, ErrExhausted) {
			t.Errorf("MaxAttempts=%d: error %v should match ErrExhausted", n, err)
		}
		if !errors.Is(err, errTransient) {
			t.Errorf("MaxAttempts=%d: error %v should wrap the last failure", n, err)
		}
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	timer := newFakeTimer()
	var retried []int

	err := Do(context.Background(), DefaultPolicy(), func(ctx context.Context, attempt int) error {
		if attempt < 3 {
			return errTransient
		}
		return nil
	}, WithTimer(timer), OnRetry(func(attempt int, err error, wait time.Duration) {
		retried = append(retried, attempt)
	}))

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retried)
	}
}

func TestDo_WaitsAreNonDecreasing(t *testing.T) {
	// alternating jitter would shrink the wait without the clamp
	vals := []float64{0.99, 0.0, 0.99, 0.0, 0.99, 0.0, 0.99, 0.0}
	i := 0
	p := Policy{
		MaxAttempts: 9,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      0.5,
		Rand: func() float64 {
			v := vals[i%len(vals)]
			i++
			return v
		},
	}
	timer := newFakeTimer()

	_ = Do(context.Background(), p, func(ctx context.Context, attempt int) error {
		return errTransient
	}, WithTimer(timer))

	if len(timer.waits) != 8 {
		t.Fatalf("expected 8 waits, got %d", len(timer.waits))
	}
	for k := 1; k < len(timer.waits); k++ {
		if timer.waits[k] < timer.waits[k-1] {
			t.Errorf("wait %d (%v) shorter than wait %d (%v)", k, timer.waits[k], k-1, timer.waits[k-1])
		}
	}
	for _, w := range timer.waits {
		if w > p.Ceiling() {
			t.Errorf("wait %v exceeds ceiling %v", w, p.Ceiling())
		}
	}
}

func TestPolicy_DelaysWithoutJitter(t *testing.T) {
	p := Policy{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Jitter: 0}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}

	got := p.Delays(len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPolicy_JitterRange(t *testing.T) {
	p := Policy{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Jitter: 0.5, Rand: func() float64 { return 0.999 }}
	d := p.Delays(1)[0]
	if d < 2*time.Second || d >= 3*time.Second {
		t.Errorf("first delay %v outside [2s, 3s)", d)
	}
}

func TestDo_FatalNeverRetries(t *testing.T) {
	errFatal := errors.New("ERROR: Video unavailable")
	isFatal := func(err error) bool { return errors.Is(err, errFatal) }

	timer := newFakeTimer()
	calls := 0
	err := Do(context.Background(), DefaultPolicy(), func(ctx context.Context, attempt int) error {
		calls++
		return errFatal
	}, WithTimer(timer), WithFatal(isFatal))

	if calls != 1 {
		t.Errorf("fatal error retried: %d calls", calls)
	}
	if len(timer.waits) != 0 {
		t.Errorf("fatal error should not wait, got %v", timer.waits)
	}
	if !errors.Is(err, errFatal) || errors.Is(err, ErrExhausted) {
		t.Errorf("expected the fatal error back, got %v", err)
	}
}

func TestDo_FatalOnLaterAttemptStops(t *testing.T) {
	errFatal := errors.New("private video")
	timer := newFakeTimer()
	calls := 0

	err := Do(context.Background(), Policy{MaxAttempts: 5}, func(ctx context.Context, attempt int) error {
		calls++
		if attempt == 2 {
			return Permanent(errFatal)
		}
		return errTransient
	}, WithTimer(timer))

	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if err != errFatal {
		t.Errorf("expected unwrapped fatal error, got %v", err)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errTransient
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_AlreadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, DefaultPolicy(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	if calls != 0 {
		t.Errorf("op should not run on a cancelled context, ran %d times", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPolicy_Normalized(t *testing.T) {
	p := Policy{MaxAttempts: 0, BaseDelay: 10 * time.Second, MaxDelay: time.Second, Jitter: 3}.normalized()

	if p.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", p.MaxAttempts, DefaultMaxAttempts)
	}
	if p.MaxDelay != p.BaseDelay {
		t.Errorf("MaxDelay should be raised to BaseDelay, got %v", p.MaxDelay)
	}
	if p.Jitter != 1 {
		t.Errorf("Jitter should be clamped to 1, got %v", p.Jitter)
	}
}
