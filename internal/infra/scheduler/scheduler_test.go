package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{Schedule: "not a cron"}, func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Config{}, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Stop()

	if s.cfg.Schedule != "0 0 * * *" || s.cfg.Location != time.UTC || s.cfg.Name != "job" {
		t.Errorf("cfg = %+v", s.cfg)
	}
}

func TestRunNow_RecordsStats(t *testing.T) {
	done := make(chan struct{}, 2)
	calls := 0
	s, err := New(Config{Name: "sweep", Schedule: "0 0 1 1 *"}, func(ctx context.Context) error {
		calls++
		defer func() { done <- struct{}{} }()
		if calls == 2 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	s.Start()
	defer s.Stop()

	for i := 0; i < 2; i++ {
		if err := s.RunNow(); err != nil {
			t.Fatalf("RunNow() error: %v", err)
		}
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("run did not happen")
		}
	}

	// Stats are written after the run func returns.
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := s.Stats()
		if st.Runs == 2 {
			if st.Failures != 1 || st.LastError != "boom" {
				t.Errorf("stats = %+v", st)
			}
			if st.NextRun.IsZero() {
				t.Error("NextRun should be set")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats never reached 2 runs: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New(Config{Schedule: "0 0 1 1 *", RunOnStart: true}, func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("RunOnStart did not trigger a run")
	}
}

func TestTimeoutCancelsRun(t *testing.T) {
	got := make(chan error, 1)
	s, err := New(Config{Schedule: "0 0 1 1 *", Timeout: 20 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	s.Start()
	defer s.Stop()

	if err := s.RunNow(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("ctx err = %v, want DeadlineExceeded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run was not cancelled")
	}
}
