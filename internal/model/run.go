package model

import "time"

// RunStatus represents the state of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted analysis run over one root ledger.
type Run struct {
	ID             string           `json:"id"`
	RootPAN        string           `json:"root_pan"`
	RootFile       string           `json:"root_file"`
	BogusThreshold float64          `json:"bogus_threshold"`
	Status         RunStatus        `json:"status"`
	Metrics        *AnalysisMetrics `json:"metrics,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
