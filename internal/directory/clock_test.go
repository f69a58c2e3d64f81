package directory

import "time"

// SetClock replaces the session clock in tests.
func (s *Sessions) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
