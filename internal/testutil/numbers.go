package testutil

import (
	"fmt"
	"sync"
)

// SequentialNumberer issues card numbers "TEST-0001", "TEST-0002", ...
//
// This enables deterministic assertions and golden output comparison.
// Implements provision.CardNumberer.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialNumberer struct {
	mu sync.Mutex
	n  int
}

// NewSequentialNumberer creates a numberer starting at TEST-0001.
func NewSequentialNumberer() *SequentialNumberer {
	return &SequentialNumberer{}
}

// Next returns the next card number.
func (s *SequentialNumberer) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("TEST-%04d", s.n)
}
