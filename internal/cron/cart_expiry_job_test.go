package cron

import (
	"context"
	"errors"
	"testing"
)

type stubExpirer struct {
	batches []int
	calls   int
	err     error
}

func (s *stubExpirer) ExpireStale(context.Context) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.calls >= len(s.batches) {
		return 0, nil
	}
	n := s.batches[s.calls]
	s.calls++
	return n, nil
}

func TestCartExpiryJobDrainsAllBatches(t *testing.T) {
	expirer := &stubExpirer{batches: []int{100, 37}}

	job, err := NewCartExpiryJob(expirer, testLogger())
	if err != nil {
		t.Fatalf("NewCartExpiryJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.calls != 2 {
		t.Fatalf("expected 2 full batches swept, got %d", expirer.calls)
	}
}

func TestCartExpiryJobPropagatesErrors(t *testing.T) {
	expirer := &stubExpirer{err: errors.New("db down")}

	job, err := NewCartExpiryJob(expirer, testLogger())
	if err != nil {
		t.Fatalf("NewCartExpiryJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error from failing sweep")
	}
}
