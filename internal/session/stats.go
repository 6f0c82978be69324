package session

// Stats counts what happened during one run.
type Stats struct {
	RunID            string            `json:"run_id"`
	Frames           uint64            `json:"frames"`
	MissedDetections uint64            `json:"missed_detections"`
	DetectorErrors   uint64            `json:"detector_errors"`
	Windows          uint64            `json:"windows"`
	Classified       uint64            `json:"classified"`
	Skipped          uint64            `json:"skipped"`
	Dropped          uint64            `json:"dropped"`
	Replaced         uint64            `json:"replaced"`
	Rejected         uint64            `json:"rejected"`
	Transitions      map[string]uint64 `json:"transitions"`
}

func newStats(runID string) Stats {
	return Stats{RunID: runID, Transitions: make(map[string]uint64)}
}

// Stats returns a copy of the counters for the current or most recent run.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.Transitions = make(map[string]uint64, len(s.stats.Transitions))
	for label, n := range s.stats.Transitions {
		out.Transitions[label] = n
	}
	return out
}
