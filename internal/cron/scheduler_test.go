package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	mu       sync.Mutex
	calls    int
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func (j *simpleJob) callCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func TestScheduler_RegisterJob(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	if err := s.RegisterJob(&simpleJob{name: "a", schedule: "* * * * *"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := s.RegisterJob(&simpleJob{name: "a", schedule: "* * * * *"}); err == nil {
		t.Error("duplicate registration should fail")
	}
	if err := s.RegisterJob(&simpleJob{name: "b", schedule: "invalid"}); err == nil {
		t.Error("invalid schedule should fail")
	}
	if err := s.RegisterJob(&simpleJob{name: "c", schedule: "@hourly"}); err != nil {
		t.Errorf("descriptor schedule: %v", err)
	}

	got := s.Jobs()
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("Jobs() = %v, want [a c]", got)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second start should fail")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_Trigger(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("boom")
	ok := &simpleJob{name: "ok", schedule: "@hourly"}
	bad := &simpleJob{name: "bad", schedule: "@hourly", runFunc: func(context.Context) error { return wantErr }}

	s := NewScheduler(nil)
	_ = s.RegisterJob(ok)
	_ = s.RegisterJob(bad)

	if err := s.Trigger(context.Background(), "ok"); err != nil {
		t.Fatalf("Trigger(ok): %v", err)
	}
	if ok.callCount() != 1 {
		t.Errorf("ok calls = %d, want 1", ok.callCount())
	}
	if err := s.Trigger(context.Background(), "bad"); !errors.Is(err, wantErr) {
		t.Errorf("Trigger(bad) = %v, want %v", err, wantErr)
	}
	if err := s.Trigger(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Trigger(missing) = %v, want ErrUnknownJob", err)
	}
}

func TestScheduler_NoParallelExecution(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	slow := &simpleJob{
		name:     "slow",
		schedule: "@hourly",
		runFunc: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}

	s := NewScheduler(nil)
	_ = s.RegisterJob(slow)

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background(), "slow") }()
	<-started

	if err := s.Trigger(context.Background(), "slow"); !errors.Is(err, ErrJobRunning) {
		t.Errorf("overlapping Trigger = %v, want ErrJobRunning", err)
	}
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("first Trigger: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first Trigger did not return")
	}
	if slow.callCount() != 1 {
		t.Errorf("calls = %d, want 1", slow.callCount())
	}
}

func TestScheduler_StopCancelsRuns(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	job := &simpleJob{name: "wait", schedule: "@hourly", runFunc: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	_ = s.RegisterJob(job)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
