package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSweeper struct {
	swept int
	err   error
	calls int
	at    time.Time
}

func (f *fakeSweeper) ExpirePending(_ context.Context, now time.Time) (int, error) {
	f.calls++
	f.at = now
	return f.swept, f.err
}

func TestOrderExpiryJobSweeps(t *testing.T) {
	sweeper := &fakeSweeper{swept: 3}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: testLog(), Ledger: sweeper})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "order-expiry" {
		t.Fatalf("job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("sweeper called %d times", sweeper.calls)
	}
	if sweeper.at.Location() != time.UTC {
		t.Fatal("sweep cutoff not in UTC")
	}
}

func TestOrderExpiryJobPropagatesError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: testLog(), Ledger: sweeper})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error to propagate")
	}
}

func TestNewOrderExpiryJobValidates(t *testing.T) {
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Ledger: &fakeSweeper{}}); err == nil {
		t.Fatal("nil logger accepted")
	}
	if _, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: testLog()}); err == nil {
		t.Fatal("nil ledger accepted")
	}
}
