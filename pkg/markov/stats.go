package markov

// ModelStats holds aggregated statistics for a Model.
type ModelStats struct {
	Tokens         int // The number of distinct tokens.
	Transitions    int // The number of unique prev->next links.
	TotalFrequency int // The sum of all link counts; the number of trained transitions.
	DeadEnds       int // Tokens that were never followed by anything.
}

// Stats returns a snapshot of statistics for the model.
func (m *Model) Stats() ModelStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ModelStats{Tokens: len(m.vocab)}
	for _, s := range m.table {
		stats.Transitions += len(s.next)
		stats.TotalFrequency += s.total
		if s.total == 0 {
			stats.DeadEnds++
		}
	}
	return stats
}
