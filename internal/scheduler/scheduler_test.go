package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("not a cron spec", func(context.Context) error { return nil }, nil); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestRunOnceReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	s, err := New("0 8 * * *", func(context.Context) error { return boom }, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestTicksRunJob(t *testing.T) {
	var runs int32
	done := make(chan struct{}, 1)
	s, err := New("@every 1s", func(context.Context) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			done <- struct{}{}
		}
		return errors.New("failures do not stop the schedule")
	}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not run within 5s")
	}
}

func TestStopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{}, 1)
	cancelled := make(chan struct{}, 1)
	s, err := New("@every 1s", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		select {
		case cancelled <- struct{}{}:
		default:
		}
		return ctx.Err()
	}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	s.Start()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not start within 5s")
	}
	go s.Stop()

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatalf("running job was not cancelled by Stop")
	}
}
