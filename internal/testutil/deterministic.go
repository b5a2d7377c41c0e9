package testutil

import (
	"fmt"
	"sync"
	"time"
)

// FixedTime is the wall-clock instant deterministic tests pin their
// store to. Timestamps in golden output all carry this value.
var FixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// FixedClock returns a clock function frozen at FixedTime.
//
// Audit ordering never depends on wall time (the store's seq clock
// does that), so a frozen clock keeps output reproducible without
// affecting semantics.
func FixedClock() func() time.Time {
	return func() time.Time { return FixedTime }
}

// IDSequence generates deterministic identities: prefix-0001,
// prefix-0002, and so on. Each sequence is independent.
//
// Thread-safe: the store may mint identities from concurrent test
// goroutines.
type IDSequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewIDSequence creates a sequence with the given prefix.
func NewIDSequence(prefix string) *IDSequence {
	return &IDSequence{prefix: prefix}
}

// Next returns the next identity in the sequence.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%04d", s.prefix, s.n)
}
