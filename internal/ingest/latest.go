package ingest

import "sync"

// latestSlot is a single-slot mailbox between the socket read loop and the
// throttle worker. A new frame overwrites the previous one, so the worker
// always emits the most recent market state and never works a backlog.
type latestSlot struct {
	mu    sync.Mutex
	frame []byte
	set   bool
}

// Store replaces the held frame.
func (s *latestSlot) Store(frame []byte) {
	s.mu.Lock()
	s.frame = frame
	s.set = true
	s.mu.Unlock()
}

// Take removes and returns the held frame, if any.
func (s *latestSlot) Take() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return nil, false
	}
	frame := s.frame
	s.frame = nil
	s.set = false
	return frame, true
}
