package provider

import (
	"context"
	"testing"
	"time"

	"callsync/internal/clock"
	"callsync/internal/errs"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Base: time.Millisecond}
}

func TestRetryStopsAfterAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errs.New(errs.KindTransientService, "transcribe", "503")
	})
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
	if !errs.Is(err, errs.KindTransientService) {
		t.Fatalf("err=%v", err)
	}
}

func TestRetryAbortsOnQuota(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errs.New(errs.KindQuotaExhausted, "transcribe", "quota")
	})
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
	if !errs.Is(err, errs.KindQuotaExhausted) {
		t.Fatalf("err=%v", err)
	}
}

func TestRetrySucceedsAfterRateLimit(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy()
	p.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errs.New(errs.KindRateLimited, "transcribe", "429")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 || len(retried) != 1 || retried[0] != 2 {
		t.Fatalf("calls=%d retried=%v", calls, retried)
	}
}

func TestRetryDelayIncreases(t *testing.T) {
	p := RetryPolicy{Base: 100 * time.Millisecond}
	if p.Delay(1) != 0 || p.Delay(2) != 100*time.Millisecond || p.Delay(3) != 200*time.Millisecond {
		t.Fatalf("delays=%v %v %v", p.Delay(1), p.Delay(2), p.Delay(3))
	}
}

func TestRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Attempts: 3, Base: time.Hour}
	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errs.New(errs.KindNetwork, "transcribe", "reset")
	})
	if err != context.Canceled || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryWaitsOnInjectedClock(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	p := RetryPolicy{Attempts: 3, Base: time.Minute, Clock: clk}
	calls := make(chan int, 3)
	n := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(context.Background(), func(ctx context.Context) error {
			n++
			calls <- n
			return errs.New(errs.KindRateLimited, "transcribe", "429")
		})
	}()

	waitPending := func() {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for clk.Pending() != 1 {
			if time.Now().After(deadline) {
				t.Fatal("backoff was not scheduled on the clock")
			}
			time.Sleep(time.Millisecond)
		}
	}

	<-calls
	waitPending()
	clk.Advance(59 * time.Second)
	select {
	case <-calls:
		t.Fatal("retried before the backoff elapsed")
	default:
	}
	clk.Advance(time.Second)
	<-calls
	waitPending()
	clk.Advance(2 * time.Minute)
	<-calls

	if err := <-done; !errs.Is(err, errs.KindRateLimited) {
		t.Fatalf("err=%v", err)
	}
}

func TestRetryCancelStopsBackoff(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Attempts: 2, Base: time.Hour, Clock: clk}
	err := p.Do(ctx, func(ctx context.Context) error {
		cancel()
		return errs.New(errs.KindNetwork, "transcribe", "reset")
	})
	if err != context.Canceled {
		t.Fatalf("err=%v", err)
	}
	if clk.Pending() != 0 {
		t.Fatalf("pending=%d, want the backoff stopped", clk.Pending())
	}
}
