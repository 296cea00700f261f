package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// stubStoreProvider injects a pre-seeded in-memory store into the report
// command.
type stubStoreProvider struct {
	store schemas.RunStore
}

func (p *stubStoreProvider) Create(context.Context) (schemas.RunStore, func(), error) {
	return p.store, func() {}, nil
}

func seedStore(t *testing.T) (*store.Memory, *schemas.Run) {
	t.Helper()
	mem := store.NewMemory()
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	run := &schemas.Run{
		ID:         "run-report-test",
		DeviceID:   "emulator-5554",
		AppPackage: "com.example.shop",
		StartTime:  start,
		EndTime:    start.Add(5 * time.Minute),
		Status:     schemas.RunStatusCompleted,
		Provider:   "gemini",
		Model:      "gemini-2.5-flash",
	}
	require.NoError(t, mem.CreateRun(context.Background(), run))
	require.NoError(t, mem.FinishRun(context.Background(), run.ID, run.Status, run.EndTime, ".HomeActivity"))

	step := schemas.Step{
		RunID: run.ID, Number: 1, Timestamp: start.Add(time.Minute),
		ActionType: "TAP", Success: true, NavigatedAway: true,
	}
	require.NoError(t, mem.AppendStep(context.Background(), &step))
	return mem, run
}

func TestReportCommand(t *testing.T) {
	t.Run("writes a correlated JSON report", func(t *testing.T) {
		mem, run := seedStore(t)

		harPath := filepath.Join(t.TempDir(), "capture.har")
		har := `{"log":{"entries":[{"startedDateTime":"2026-08-30T10:01:30Z","request":{"method":"GET","url":"https://api.example.com/catalog"},"response":{"status":200}}]}}`
		require.NoError(t, os.WriteFile(harPath, []byte(har), 0o644))

		outPath := filepath.Join(t.TempDir(), "report.json")

		cmd := newReportCmd(&stubStoreProvider{store: mem})
		cmd.SetArgs([]string{
			"--run-id", run.ID,
			"--pcap", harPath,
			"--mobsf", filepath.Join(t.TempDir(), "missing-scan.json"),
			"--output", outPath,
			"--format", "json",
		})
		require.NoError(t, cmd.Execute())

		data, err := os.ReadFile(outPath)
		require.NoError(t, err)

		var report schemas.RunReportData
		require.NoError(t, json.Unmarshal(data, &report))
		assert.Equal(t, run.ID, report.Summary.RunID)
		assert.Equal(t, 300.0, report.Summary.DurationSeconds)
		require.Len(t, report.Timeline, 1)
		require.Len(t, report.Timeline[0].Requests, 1)
		assert.Equal(t, "https://api.example.com/catalog", report.Timeline[0].Requests[0].URL)

		// The security scan file is absent, so the report carries the
		// neutral analysis rather than failing.
		require.NotNil(t, report.Security)
		assert.Equal(t, "ERROR", report.Security.Grade)
		assert.Equal(t, 0.0, report.Security.Score)
	})

	t.Run("run-id flag is required", func(t *testing.T) {
		mem, _ := seedStore(t)
		cmd := newReportCmd(&stubStoreProvider{store: mem})
		cmd.SetArgs([]string{"--format", "json"})
		require.Error(t, cmd.Execute())
	})

	t.Run("unknown run id fails", func(t *testing.T) {
		mem, _ := seedStore(t)
		cmd := newReportCmd(&stubStoreProvider{store: mem})
		cmd.SetArgs([]string{"--run-id", "does-not-exist"})
		require.Error(t, cmd.Execute())
	})
}
