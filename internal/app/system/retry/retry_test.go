package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errTransient = errors.New("transient")

func instant(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func testPolicy() Policy {
	p := Default(func(err error) bool { return errors.Is(err, errTransient) })
	p.After = instant
	return p
}

func TestDo_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), testPolicy(), zap.NewNop(), "read", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != 42 || calls != 3 {
		t.Errorf("v=%d calls=%d, want 42 and 3", v, calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	retries := 0
	p := testPolicy()
	p.OnRetry = func(string, int, error) { retries++ }

	_, err := Do(context.Background(), p, nil, "read", func(context.Context) (string, error) {
		calls++
		return "", errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Errorf("err = %v, want transient", err)
	}
	if calls != DefaultAttempts {
		t.Errorf("calls = %d, want %d", calls, DefaultAttempts)
	}
	if retries != DefaultAttempts-1 {
		t.Errorf("retries = %d, want %d", retries, DefaultAttempts-1)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	perm := errors.New("group is full")
	calls := 0
	_, err := Do(context.Background(), testPolicy(), nil, "read", func(context.Context) (int, error) {
		calls++
		return 0, perm
	})
	if !errors.Is(err, perm) || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := testPolicy()
	p.After = func(time.Duration) <-chan time.Time { return nil }

	calls := 0
	_, err := Do(ctx, p, nil, "read", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Errorf("err = %v, want last error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoff(t *testing.T) {
	p := Policy{BaseDelay: 200 * time.Millisecond}
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 0},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.retry); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}
