package schemas

import (
	"encoding/json"
	"time"
)

// -- Run Schemas --

// RunStatus represents the lifecycle state of an exploration run. The
// values are lowercase to align with database ENUMs.
type RunStatus string

const (
	RunStatusUninitialized RunStatus = "uninitialized"
	RunStatusInitializing  RunStatus = "initializing"
	RunStatusRunning       RunStatus = "running"
	RunStatusPaused        RunStatus = "paused"
	RunStatusStopping      RunStatus = "stopping"
	RunStatusCompleted     RunStatus = "completed"
	RunStatusFailed        RunStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Run identifies one exploration session of an app on a device. It is
// created at run start, mutated only by the crawl state machine (status,
// end time), and read back by the correlator.
type Run struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"device_id"`
	AppPackage    string    `json:"app_package"`
	StartActivity string    `json:"start_activity,omitempty"`
	EndActivity   string    `json:"end_activity,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time,omitempty"`
	Status        RunStatus `json:"status"`

	// Provider and Model identify the AI backend that drove the run.
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// SessionPath is the on-disk directory holding screenshots and other
	// per-run artifacts.
	SessionPath string `json:"session_path"`
}

// Step is one iteration of the control loop. Steps are append-only and
// owned exclusively by the run that produced them; Number is 1-based and
// monotonic within a run.
type Step struct {
	RunID      string          `json:"run_id"`
	Number     int             `json:"number"`
	Timestamp  time.Time       `json:"timestamp"`
	ActionType string          `json:"action_type"`
	Params     json.RawMessage `json:"params,omitempty"`

	// Screenshot is the path of the pre-action frame, relative to the
	// run's session directory.
	Screenshot string `json:"screenshot,omitempty"`

	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	NavigatedAway bool   `json:"navigated_away"`
}
