package schemas

import "fmt"

// -- Error Kinds --
//
// Only InitializationError (and exhausting every stuck-recovery strategy)
// is fatal to a run. Every other kind degrades a single step to failure
// and the loop continues.

// InitializationError reports a failed device or AI provider handshake.
type InitializationError struct {
	Stage string // "device" or "provider"
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed at %s handshake: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// UnresolvedLabelError reports an AI action referencing a label id absent
// from the current cycle's label map. The offending action is skipped.
type UnresolvedLabelError struct {
	Label int
}

func (e *UnresolvedLabelError) Error() string {
	return fmt.Sprintf("label %d not present in current label map", e.Label)
}

// TranslationError reports a malformed action payload. The offending
// action is skipped.
type TranslationError struct {
	Reason string
}

func (e *TranslationError) Error() string {
	return "cannot translate action: " + e.Reason
}

// ActionExecutionError reports a device-layer failure while executing a
// translated command.
type ActionExecutionError struct {
	Command DeviceCommandKind
	Err     error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("device execution of %s failed: %v", e.Command, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

// ProviderTimeoutError reports an AI call that exceeded its budget.
type ProviderTimeoutError struct {
	Provider string
	Err      error
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("provider %s exceeded its time budget: %v", e.Provider, e.Err)
}

func (e *ProviderTimeoutError) Unwrap() error { return e.Err }

// CorrelationInputError reports a malformed side-channel file. It is
// neutralized by the correlator and never propagates out of it.
type CorrelationInputError struct {
	Path string
	Err  error
}

func (e *CorrelationInputError) Error() string {
	return fmt.Sprintf("unusable side-channel input %s: %v", e.Path, e.Err)
}

func (e *CorrelationInputError) Unwrap() error { return e.Err }
