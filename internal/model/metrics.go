package model

import "time"

// AnalysisMetrics records counters for one analysis run.
type AnalysisMetrics struct {
	TotalNodes        int           `json:"total_nodes"`
	BogusNodes        int           `json:"bogus_nodes"`
	ContaminatedNodes int           `json:"contaminated_nodes"`
	ProcessingTime    time.Duration `json:"processing_time"`
	FilesProcessed    int           `json:"files_processed"`
	ErrorsEncountered int           `json:"errors_encountered"`
	CacheHits         int           `json:"cache_hits"`
	CacheMisses       int           `json:"cache_misses"`
	CyclesDetected    int           `json:"cycles_detected"`
}

// Tally refreshes the node counts from a classified set.
func (m *AnalysisMetrics) Tally(nodes NodeSet) {
	m.TotalNodes = len(nodes)
	m.BogusNodes = 0
	m.ContaminatedNodes = 0
	for _, n := range nodes {
		if n.IsBogus {
			m.BogusNodes++
		}
		if n.IsContaminated {
			m.ContaminatedNodes++
		}
	}
}
