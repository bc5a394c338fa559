package testutil

import (
	"context"
	"slices"
	"sync"
	"time"
)

// RecordingSleeper records every requested delay instead of waiting it out.
//
// Sleep matches engine.Sleeper, so it can be passed to engine.WithSleeper
// as a method value. It still honors cancellation: a done context makes
// Sleep return ctx.Err().
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

// NewRecordingSleeper creates a sleeper with no recorded delays.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d and returns immediately.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Delays returns a copy of the recorded delays in call order.
func (s *RecordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.delays)
}

// Reset forgets every recorded delay.
func (s *RecordingSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = nil
}

// ZeroJitter always picks the shortest delay.
func ZeroJitter(int64) int64 { return 0 }

// MaxJitter always picks the longest delay below the bound.
func MaxJitter(n int64) int64 { return n - 1 }
