package async

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRun_DeliversValue(t *testing.T) {
	f := Run(func() (int, error) { return 42, nil })
	v, err := f.Wait(context.Background())
	if err != nil || v != 42 {
		t.Fatalf("wait: v=%d err=%v", v, err)
	}
}

func TestRun_PanicBecomesError(t *testing.T) {
	f := Run(func() (int, error) { panic("boom") })
	if _, err := f.Wait(context.Background()); err == nil {
		t.Fatalf("expected panic to surface as error")
	}
}

func TestThen_FailureCallback(t *testing.T) {
	want := errors.New("disk full")
	got := make(chan error, 1)
	Failed[struct{}](want).Then(func(struct{}) { t.Errorf("unexpected success") }, func(err error) { got <- err })
	select {
	case err := <-got:
		if !errors.Is(err, want) {
			t.Fatalf("got %v want %v", err, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("failure callback not called")
	}
}

func TestWait_ContextCancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	f := Run(func() (int, error) { <-block; return 0, nil })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
