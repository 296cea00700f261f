package schemas

import "time"

// -- Report Schemas --

// RunSummary is the computed overview of a completed run.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	DeviceID        string    `json:"device_id"`
	AppPackage      string    `json:"app_package"`
	Status          RunStatus `json:"status"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	StepCount       int       `json:"step_count"`
}

// TimelineEntry pairs one step with the network requests whose timestamps
// fall inside the step's time window.
type TimelineEntry struct {
	Step     Step             `json:"step"`
	Requests []NetworkRequest `json:"requests"`
}

// RunReportData is the correlator's output and the sole artifact handed to
// report rendering: run identity, computed summary, the enriched timeline,
// and the security analysis, if any.
type RunReportData struct {
	Run      Run               `json:"run"`
	Summary  RunSummary        `json:"summary"`
	Timeline []TimelineEntry   `json:"timeline"`
	Security *SecurityAnalysis `json:"security,omitempty"`
}
