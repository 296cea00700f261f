package schemas

import (
	"context"
	"time"
)

// -- Collaborator Interfaces --

// DeviceDriver abstracts the on-device automation layer. Implementations
// are synchronous; callers impose timeouts through the context.
type DeviceDriver interface {
	// Handshake verifies the device is reachable and ready.
	Handshake(ctx context.Context) error
	// CaptureScreen returns the raw image bytes of the visible screen.
	CaptureScreen(ctx context.Context) ([]byte, error)
	// Execute performs one concrete device command.
	Execute(ctx context.Context, cmd DeviceCommand) error
	// CurrentActivity returns the foreground activity name, best effort.
	CurrentActivity(ctx context.Context) (string, error)
	// LaunchApp brings the target package to the foreground.
	LaunchApp(ctx context.Context, pkg, activity string) error
}

// GroundingClient localizes text/element regions on a screenshot. The
// returned slice is ordered by the provider's reading order.
type GroundingClient interface {
	DetectRegions(ctx context.Context, imagePath string) ([]DetectedRegion, error)
}

// GenerationOptions holds parameters for controlling LLM generation.
type GenerationOptions struct {
	Temperature     float32
	MaxTokens       int
	ForceJSONFormat bool
}

// GenerationRequest encapsulates all inputs for a single LLM API call.
// ImagePath, when set, is attached to the user prompt as inline image data.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	ImagePath    string
	Options      GenerationOptions
}

// GenerationUsage carries token accounting returned by the provider.
type GenerationUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient abstracts the AI model provider. Retry policy is owned by the
// implementation, bounded, and subject to the caller's context deadline.
type LLMClient interface {
	GenerateResponse(ctx context.Context, req GenerationRequest) (string, GenerationUsage, error)
}

// ChangeDetector compares two screen captures and reports whether the
// screen changed meaningfully. Exact pixel equality is not the criterion.
type ChangeDetector interface {
	Changed(before, after []byte) (bool, error)
}

// TrafficParser turns a capture file into requests ordered by timestamp.
// Missing or corrupt files yield an empty slice, never an error that
// reaches the correlator's caller.
type TrafficParser interface {
	ParseTraffic(path string) ([]NetworkRequest, error)
}

// SecurityReportParser turns a scan report file into a SecurityAnalysis.
type SecurityReportParser interface {
	ParseReport(path string) (*SecurityAnalysis, error)
}

// RunStore is the durable persistence collaborator, keyed by run id and
// step number. Implementations serialize writes per run id.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	// FinishRun persists the terminal status, end time, and end activity.
	FinishRun(ctx context.Context, runID string, status RunStatus, endTime time.Time, endActivity string) error
	AppendStep(ctx context.Context, step *Step) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	// GetSteps returns the run's steps ordered by timestamp ascending.
	GetSteps(ctx context.Context, runID string) ([]Step, error)
}
