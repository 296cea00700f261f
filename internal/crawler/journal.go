package crawler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

// Journal keeps a rolling textual history of executed steps. The rendered
// window is replayed into every decision prompt so the model remembers
// what it already tried.
type Journal struct {
	mu      sync.Mutex
	window  int
	entries []string
}

// NewJournal creates a journal that renders at most window entries.
func NewJournal(window int) *Journal {
	if window <= 0 {
		window = 10
	}
	return &Journal{window: window}
}

// RecordStep appends a one-line account of an executed step.
func (j *Journal) RecordStep(step schemas.Step, rationale string) {
	outcome := "ok"
	if !step.Success {
		outcome = "failed: " + step.Error
	} else if step.NavigatedAway {
		outcome = "ok, screen changed"
	}

	line := fmt.Sprintf("step %d: %s (%s) -> %s", step.Number, step.ActionType, rationale, outcome)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, line)
}

// RecordNote appends a free-form event, e.g. a recovery attempt.
func (j *Journal) RecordNote(note string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, note)
}

// Render returns the most recent window of entries, oldest first.
func (j *Journal) Render() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.entries) == 0 {
		return "(no steps executed yet)"
	}
	start := 0
	if len(j.entries) > j.window {
		start = len(j.entries) - j.window
	}
	return strings.Join(j.entries[start:], "\n")
}

// Len returns the total number of recorded entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
