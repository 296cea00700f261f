package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

// TextReporter renders a human-readable run summary for terminal use.
type TextReporter struct {
	writer io.WriteCloser
}

// NewTextReporter takes ownership of the writer.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

func (r *TextReporter) Write(report *schemas.RunReportData) error {
	var b strings.Builder

	s := report.Summary
	fmt.Fprintf(&b, "Run %s (%s)\n", s.RunID, s.Status)
	fmt.Fprintf(&b, "  App:      %s on %s\n", s.AppPackage, s.DeviceID)
	fmt.Fprintf(&b, "  Duration: %.0fs, %d steps\n", s.DurationSeconds, s.StepCount)

	if report.Security != nil {
		fmt.Fprintf(&b, "  Security: score %.0f grade %s (%d high, %d warning, %d info)\n",
			report.Security.Score, report.Security.Grade,
			len(report.Security.High), len(report.Security.Warning), len(report.Security.Info))
	}

	b.WriteString("\nTimeline:\n")
	for _, entry := range report.Timeline {
		status := "ok"
		if !entry.Step.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "  %4d  %s  %-12s %s\n",
			entry.Step.Number, entry.Step.Timestamp.Format("15:04:05"), entry.Step.ActionType, status)
		for _, req := range entry.Requests {
			fmt.Fprintf(&b, "        -> %s %s\n", req.Method, req.URL)
		}
	}

	if _, err := io.WriteString(r.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (r *TextReporter) Close() error {
	return r.writer.Close()
}
