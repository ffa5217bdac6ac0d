package syncer

import (
	"context"
	"sort"
	"time"
)

// Op names a remote operation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpDiscard drops an item deleted before it ever reached the remote store.
	OpDiscard Op = "discard"
)

// Failure describes the last failed remote operation for an item.
type Failure struct {
	Ref         string    `json:"ref"`
	Op          Op        `json:"op"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error"`
	FailedAt    time.Time `json:"failed_at"`
	NextAttempt time.Time `json:"next_attempt,omitzero"`
	// Exhausted is set once automatic retries stopped.
	Exhausted bool `json:"exhausted"`
}

type Status struct {
	InFlight int       `json:"in_flight"`
	Failures []Failure `json:"failures"`
}

// Status reports operations in flight and items whose last remote
// operation failed.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	failures := make([]Failure, 0, len(s.failures))
	for _, f := range s.failures {
		failures = append(failures, *f)
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Ref < failures[j].Ref })

	return Status{InFlight: len(s.inflight), Failures: failures}
}

// backoff returns the retry delay after the given number of consecutive
// failures.
func (s *Synchronizer) backoff(attempts int) time.Duration {
	d := s.opts.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= s.opts.MaxBackoff {
			return s.opts.MaxBackoff
		}
	}
	return d
}

// recordFailure must be called with s.mu held. The item keeps its state;
// a retry pass is scheduled unless attempts are exhausted or the
// synchronizer is shutting down.
func (s *Synchronizer) recordFailure(ctx context.Context, key string, j job, err error) {
	f, ok := s.failures[key]
	if !ok {
		f = &Failure{}
		s.failures[key] = f
	}
	now := s.now()
	f.Ref = j.item.Ref()
	f.Op = j.op
	f.Attempts++
	f.LastError = err.Error()
	f.FailedAt = now
	f.NextAttempt = time.Time{}
	f.Exhausted = false

	if ctx.Err() != nil {
		s.logger.Warn("remote operation interrupted", "item", f.Ref, "op", j.op, "error", err)
		return
	}

	if f.Attempts >= s.opts.MaxAttempts {
		f.Exhausted = true
		s.logger.Error("remote operation failed, retrying on next change",
			"item", f.Ref, "op", j.op, "attempt", f.Attempts, "error", err)
		return
	}

	delay := s.backoff(f.Attempts)
	f.NextAttempt = now.Add(delay)
	s.logger.Warn("remote operation failed, will retry",
		"item", f.Ref, "op", j.op, "attempt", f.Attempts, "retry_in", delay, "error", err)

	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(delay, s.Trigger)
}
