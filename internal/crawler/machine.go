// Package crawler owns the exploration control loop: capture, grounding,
// decision, action execution, and change detection, with recovery from
// stuck states.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/config"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/grounding"
)

// State is the lifecycle position of one run's control loop.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInitializing  State = "INITIALIZING"
	StateRunning       State = "RUNNING"
	StatePaused        State = "PAUSED"
	StateStuck         State = "STUCK"
	StateStopping      State = "STOPPING"
	StateCompleted     State = "COMPLETED"
	StateFailed        State = "FAILED"
)

// errConcluded signals that the model declared the objective complete.
var errConcluded = errors.New("model concluded the exploration")

// actionExecAttempts bounds device-layer retries of a single command.
const actionExecAttempts = 2

// Deps are the collaborators one machine drives. All of them are owned by
// the caller; the machine never closes them.
type Deps struct {
	Device   schemas.DeviceDriver
	Grounder schemas.GroundingClient
	LLM      schemas.LLMClient
	Store    schemas.RunStore
	Detector schemas.ChangeDetector
}

// Machine sequences the exploration control loop for exactly one run. It
// is single-threaded per run: a cycle completes fully before the next
// begins. Pause, Resume, and Stop are observed at cycle boundaries only.
type Machine struct {
	cfg        config.CrawlerConfig
	logger     *zap.Logger
	deps       Deps
	translator *Translator
	labels     *grounding.LabelMap
	journal    *Journal
	run        *schemas.Run
	rng        *rand.Rand

	mu          sync.Mutex
	cond        *sync.Cond
	state       State
	paused      bool
	stopRequest bool

	stepNum     int
	stuckCycles int
}

// New builds a machine for the given run. The run must carry its identity
// fields (id, device, package, provider, session path); the machine owns
// its status and end time from here on.
func New(cfg config.CrawlerConfig, run *schemas.Run, deps Deps, logger *zap.Logger) (*Machine, error) {
	if run.ID == "" {
		return nil, fmt.Errorf("run is missing an id")
	}
	if deps.Device == nil || deps.Grounder == nil || deps.LLM == nil || deps.Store == nil || deps.Detector == nil {
		return nil, fmt.Errorf("all collaborators are required")
	}

	m := &Machine{
		cfg:        cfg,
		logger:     logger.Named("crawler").With(zap.String("run_id", run.ID)),
		deps:       deps,
		translator: NewTranslator(),
		labels:     grounding.NewLabelMap(),
		journal:    NewJournal(cfg.JournalWindow),
		run:        run,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		state:      StateUninitialized,
	}
	m.cond = sync.NewCond(&m.mu)
	return m, nil
}

// State returns the machine's current lifecycle position.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pause suspends the loop at the next cycle boundary. No cycle work
// happens while paused.
func (m *Machine) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning {
		m.paused = true
	}
}

// Resume lifts a pause.
func (m *Machine) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	m.cond.Broadcast()
}

// Stop requests a graceful stop, honored at the next cycle boundary.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopRequest = true
	m.paused = false
	m.cond.Broadcast()
}

// Run drives the machine from UNINITIALIZED to a terminal state. The
// terminal status and end time are persisted even on cancellation, which
// is observed at cycle boundaries, never mid-action.
func (m *Machine) Run(ctx context.Context) error {
	m.setState(StateInitializing)
	m.run.Status = schemas.RunStatusInitializing
	m.run.StartTime = time.Now().UTC()

	if err := m.deps.Store.CreateRun(ctx, m.run); err != nil {
		m.setState(StateFailed)
		return fmt.Errorf("persisting new run: %w", err)
	}

	if err := m.initialize(ctx); err != nil {
		m.finish(StateFailed, err.Error())
		return err
	}

	m.setState(StateRunning)
	m.run.Status = schemas.RunStatusRunning
	m.logger.Info("Exploration loop entered RUNNING",
		zap.Int("max_steps", m.cfg.MaxSteps),
		zap.Duration("max_duration", m.cfg.MaxDuration))

	deadline := m.run.StartTime.Add(m.cfg.MaxDuration)
	cycleFailures := 0

	for {
		// The pause gate comes first so a Stop issued while paused is
		// honored at this boundary, before any further cycle work.
		m.waitWhilePaused()
		if stop, reason := m.shouldStop(ctx, deadline); stop {
			m.logger.Info("Stopping exploration", zap.String("reason", reason))
			m.finish(StateCompleted, "")
			return nil
		}

		navigated, err := m.cycle(ctx)
		switch {
		case err == nil:
			cycleFailures = 0
		case errors.Is(err, errConcluded):
			m.finish(StateCompleted, "")
			return nil
		case ctx.Err() != nil:
			// Cancellation mid-capture surfaces here; treat it like an
			// explicit stop so the terminal status is still persisted. A
			// wrapped deadline from a collaborator's own timeout is not a
			// stop signal and falls through to the retry budget below.
			m.finish(StateCompleted, "")
			return nil
		default:
			cycleFailures++
			m.logger.Warn("Decision cycle failed",
				zap.Int("consecutive_failures", cycleFailures), zap.Error(err))
			if cycleFailures > m.cfg.CycleRetries {
				m.finish(StateFailed, err.Error())
				return fmt.Errorf("exceeded cycle retry budget: %w", err)
			}
			continue
		}

		if navigated {
			m.stuckCycles = 0
			continue
		}

		m.stuckCycles++
		if m.stuckCycles < m.cfg.StuckThreshold {
			continue
		}

		if !m.recover(ctx) {
			err := fmt.Errorf("exhausted every stuck-recovery strategy after %d static cycles", m.stuckCycles)
			m.finish(StateFailed, err.Error())
			return err
		}
		m.stuckCycles = 0
	}
}

// initialize performs the device and provider handshakes within the
// configured timeout and launches the target app.
func (m *Machine) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, m.cfg.InitTimeout)
	defer cancel()

	if err := m.deps.Device.Handshake(initCtx); err != nil {
		return &schemas.InitializationError{Stage: "device", Err: err}
	}

	probe := schemas.GenerationRequest{
		SystemPrompt: "Reply with the single word OK.",
		UserPrompt:   "OK?",
		Options:      schemas.GenerationOptions{MaxTokens: 8},
	}
	if _, _, err := m.deps.LLM.GenerateResponse(initCtx, probe); err != nil {
		return &schemas.InitializationError{Stage: "provider", Err: err}
	}

	if m.run.AppPackage != "" {
		if err := m.deps.Device.LaunchApp(initCtx, m.run.AppPackage, m.run.StartActivity); err != nil {
			return &schemas.InitializationError{Stage: "device", Err: err}
		}
	}

	if err := os.MkdirAll(m.run.SessionPath, 0o755); err != nil {
		return &schemas.InitializationError{Stage: "device", Err: err}
	}

	// INITIALIZING completes only once a first capture and grounding
	// round-trip succeeds.
	_, path, err := m.captureFrame(initCtx, "initial")
	if err != nil {
		return &schemas.InitializationError{Stage: "device", Err: err}
	}
	if _, err := m.deps.Grounder.DetectRegions(initCtx, path); err != nil {
		return &schemas.InitializationError{Stage: "device", Err: err}
	}
	return nil
}

// cycle runs one capture -> grounding -> decision -> execution -> change
// detection iteration. It reports whether any executed action produced a
// navigation change.
func (m *Machine) cycle(ctx context.Context) (bool, error) {
	before, beforePath, err := m.captureFrame(ctx, fmt.Sprintf("cycle_%04d", m.stepNum+1))
	if err != nil {
		return false, fmt.Errorf("capturing screen: %w", err)
	}

	regions, err := m.deps.Grounder.DetectRegions(ctx, beforePath)
	if err != nil {
		return false, fmt.Errorf("grounding screenshot: %w", err)
	}
	m.labels.Assign(grounding.SortReadingOrder(regions))

	req := buildGenerationRequest(m.cfg.Objective, beforePath, m.journal, m.labels)
	response, usage, err := m.deps.LLM.GenerateResponse(ctx, req)
	if err != nil {
		return false, fmt.Errorf("querying model: %w", err)
	}
	m.logger.Debug("Model responded",
		zap.Int("labels", m.labels.Len()), zap.Int("total_tokens", usage.TotalTokens))

	actions, err := parseActionResponse(response)
	if err != nil {
		return false, fmt.Errorf("parsing model response: %w", err)
	}

	navigated := false
	for _, action := range actions {
		if action.Kind == schemas.ActionConclude {
			m.journal.RecordNote("model concluded: " + action.Rationale)
			return navigated, errConcluded
		}

		stepNavigated, err := m.executeAction(ctx, action, before, beforePath)
		if err != nil {
			// The step is already persisted as failed; the cycle continues
			// with the remaining actions.
			m.logger.Warn("Action skipped", zap.String("kind", string(action.Kind)), zap.Error(err))
			continue
		}
		if stepNavigated {
			// The remaining plan referenced a screen that no longer exists.
			navigated = true
			break
		}
	}
	return navigated, nil
}

// executeAction translates, executes, and records a single action as one
// persisted step. Translation failures degrade to a failed step.
func (m *Machine) executeAction(ctx context.Context, action schemas.AIAction, before []byte, beforePath string) (bool, error) {
	m.stepNum++
	params, _ := json.Marshal(action)
	step := schemas.Step{
		RunID:      m.run.ID,
		Number:     m.stepNum,
		Timestamp:  time.Now().UTC(),
		ActionType: string(action.Kind),
		Params:     params,
		Screenshot: filepath.Base(beforePath),
	}

	cmd, err := m.translator.Translate(action, m.labels)
	if err != nil {
		step.Success = false
		step.Error = err.Error()
		m.persistStep(ctx, &step, action.Rationale)
		return false, err
	}

	if execErr := m.executeWithRetry(ctx, cmd); execErr != nil {
		step.Success = false
		step.Error = execErr.Error()
		m.persistStep(ctx, &step, action.Rationale)
		return false, execErr
	}

	step.Success = true
	if after, _, err := m.captureFrame(ctx, fmt.Sprintf("step_%04d_after", m.stepNum)); err == nil {
		changed, detectErr := m.deps.Detector.Changed(before, after)
		if detectErr != nil {
			m.logger.Warn("Change detection failed", zap.Error(detectErr))
		} else {
			step.NavigatedAway = changed
		}
	}

	m.persistStep(ctx, &step, action.Rationale)
	return step.NavigatedAway, nil
}

// executeWithRetry drives the device command through the bounded retry
// policy for device-layer failures.
func (m *Machine) executeWithRetry(ctx context.Context, cmd schemas.DeviceCommand) error {
	var lastErr error
	for attempt := 1; attempt <= actionExecAttempts; attempt++ {
		if err := m.deps.Device.Execute(ctx, cmd); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return nil
	}
	return &schemas.ActionExecutionError{Command: cmd.Kind, Err: lastErr}
}

// recover enters the STUCK sub-mode and folds over the recovery ladder.
// It reports whether navigation was restored.
func (m *Machine) recover(ctx context.Context) bool {
	m.setState(StateStuck)
	defer m.setState(StateRunning)
	m.logger.Warn("No navigation signal; entering recovery",
		zap.Int("static_cycles", m.stuckCycles))

	rc := recoveryContext{labels: m.labels, rng: m.rng}
	name, ok := runLadder(recoveryLadder, rc, func(name string, cmd schemas.DeviceCommand) bool {
		before, _, err := m.captureFrame(ctx, "recovery_before")
		if err != nil {
			return false
		}
		if err := m.deps.Device.Execute(ctx, cmd); err != nil {
			m.logger.Warn("Recovery command failed", zap.String("strategy", name), zap.Error(err))
			return false
		}
		after, _, err := m.captureFrame(ctx, "recovery_after")
		if err != nil {
			return false
		}
		changed, err := m.deps.Detector.Changed(before, after)
		if err != nil {
			return false
		}
		m.journal.RecordNote(fmt.Sprintf("recovery %s: changed=%v", name, changed))
		return changed
	})

	if ok {
		m.logger.Info("Recovery restored navigation", zap.String("strategy", name))
	}
	return ok
}

// captureFrame grabs the current screen and archives it under the run's
// session directory.
func (m *Machine) captureFrame(ctx context.Context, tag string) ([]byte, string, error) {
	frame, err := m.deps.Device.CaptureScreen(ctx)
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(m.run.SessionPath, tag+".png")
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		return nil, "", fmt.Errorf("archiving screenshot: %w", err)
	}
	return frame, path, nil
}

// persistStep appends the step and feeds the journal. Persistence errors
// are logged, never silent; the step outcome is what the report shows.
func (m *Machine) persistStep(ctx context.Context, step *schemas.Step, rationale string) {
	if err := m.deps.Store.AppendStep(ctx, step); err != nil {
		m.logger.Error("Failed to persist step",
			zap.Int("step", step.Number), zap.Error(err))
	}
	m.journal.RecordStep(*step, rationale)
}

// shouldStop checks every graceful stop condition at the cycle boundary.
func (m *Machine) shouldStop(ctx context.Context, deadline time.Time) (bool, string) {
	m.mu.Lock()
	stop := m.stopRequest
	m.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		return true, "context cancelled"
	case stop:
		return true, "explicit stop request"
	case m.stepNum >= m.cfg.MaxSteps:
		return true, "maximum step count reached"
	case time.Now().After(deadline):
		return true, "maximum duration reached"
	}
	return false, ""
}

// waitWhilePaused blocks between cycles while the machine is paused.
func (m *Machine) waitWhilePaused() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.paused && !m.stopRequest {
		m.state = StatePaused
		m.cond.Wait()
	}
	if m.state == StatePaused {
		m.state = StateRunning
	}
}

// finish transitions into a terminal state and persists the run's status
// and end time. It uses a detached context so cancellation cannot drop
// the terminal write.
func (m *Machine) finish(terminal State, errMsg string) {
	m.setState(StateStopping)

	status := schemas.RunStatusCompleted
	if terminal == StateFailed {
		status = schemas.RunStatusFailed
	}

	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	endActivity := ""
	if activity, err := m.deps.Device.CurrentActivity(persistCtx); err == nil {
		endActivity = activity
	}

	now := time.Now().UTC()
	if err := m.deps.Store.FinishRun(persistCtx, m.run.ID, status, now, endActivity); err != nil {
		m.logger.Error("Failed to persist terminal run state", zap.Error(err))
	}
	m.run.Status = status
	m.run.EndTime = now
	m.run.EndActivity = endActivity

	m.setState(terminal)
	if errMsg != "" {
		m.logger.Error("Run finished", zap.String("status", string(status)), zap.String("error", errMsg))
	} else {
		m.logger.Info("Run finished", zap.String("status", string(status)), zap.Int("steps", m.stepNum))
	}
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != s {
		m.logger.Debug("State transition",
			zap.String("from", string(m.state)), zap.String("to", string(s)))
		m.state = s
	}
}
