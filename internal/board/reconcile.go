package board

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy controls how failed writes are retried. A write is tried
// once and then retried up to Attempts times, waiting BaseDelay*2^(n-1)
// (capped at MaxDelay) before retry n.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is used when Options.Retry is the zero value.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}

// Delay returns the wait before retry n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// outcome is how one reconciled write ended.
type outcome int

const (
	outcomeDone outcome = iota
	outcomeSuperseded
	outcomeExhausted
	outcomeCanceled
)

// write is one entity's persistence call.
type write func(ctx context.Context) error

// reconcile runs w until it succeeds, is superseded by a newer write for
// the same key, exhausts the retry policy, or ctx ends. It returns the
// outcome, the number of tries made and the last error.
func (s *Synchronizer) reconcile(ctx context.Context, key Key, gen uint64, w write) (outcome, int, error) {
	var lastErr error
	for try := 1; ; try++ {
		if s.superseded(key, gen) {
			return outcomeSuperseded, try - 1, lastErr
		}
		lastErr = w(ctx)
		if lastErr == nil {
			return outcomeDone, try, nil
		}
		if ctx.Err() != nil {
			return outcomeCanceled, try, lastErr
		}
		if try > s.policy.Attempts {
			return outcomeExhausted, try, lastErr
		}

		log.Debug().
			Str("key", key.String()).
			Int("try", try).
			Err(lastErr).
			Msg("board.reconcile: write failed, retrying")

		timer := time.NewTimer(s.policy.Delay(try))
		select {
		case <-ctx.Done():
			timer.Stop()
			return outcomeCanceled, try, lastErr
		case <-timer.C:
		}
	}
}

// claim registers a new write for key and returns its generation. Older
// pending writes for key see themselves superseded.
func (s *Synchronizer) claim(key Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[key]++
	return s.gens[key]
}

func (s *Synchronizer) superseded(key Key, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key] != gen
}
