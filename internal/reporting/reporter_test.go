package reporting

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

type captureWriter struct {
	bytes.Buffer
	closed bool
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func sampleReport() *schemas.RunReportData {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	return &schemas.RunReportData{
		Run: schemas.Run{ID: "run-1", DeviceID: "emulator-5554", AppPackage: "com.example.shop", Status: schemas.RunStatusCompleted},
		Summary: schemas.RunSummary{
			RunID: "run-1", DeviceID: "emulator-5554", AppPackage: "com.example.shop",
			Status: schemas.RunStatusCompleted, StartTime: start, EndTime: start.Add(5 * time.Minute),
			DurationSeconds: 300, StepCount: 1,
		},
		Timeline: []schemas.TimelineEntry{
			{
				Step: schemas.Step{RunID: "run-1", Number: 1, Timestamp: start.Add(time.Minute), ActionType: "TAP", Success: true},
				Requests: []schemas.NetworkRequest{
					{Timestamp: start.Add(65 * time.Second), Method: "GET", URL: "https://api.example.com/catalog"},
				},
			},
		},
		Security: schemas.NeutralSecurityAnalysis(),
	}
}

func TestJSONReporter(t *testing.T) {
	w := &captureWriter{}
	r := NewJSONReporter(w)

	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())
	assert.True(t, w.closed)

	var decoded schemas.RunReportData
	require.NoError(t, json.Unmarshal(w.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.Summary.RunID)
	require.Len(t, decoded.Timeline, 1)
	require.Len(t, decoded.Timeline[0].Requests, 1)
	assert.Equal(t, "ERROR", decoded.Security.Grade)
}

func TestTextReporter(t *testing.T) {
	w := &captureWriter{}
	r := NewTextReporter(w)

	require.NoError(t, r.Write(sampleReport()))
	out := w.String()

	assert.Contains(t, out, "Run run-1 (completed)")
	assert.Contains(t, out, "com.example.shop")
	assert.Contains(t, out, "300s, 1 steps")
	assert.Contains(t, out, "GET https://api.example.com/catalog")
	assert.Contains(t, out, "grade ERROR")
}

func TestNewReporter(t *testing.T) {
	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.json")
		r, err := New("json", path)
		require.NoError(t, err)
		require.NoError(t, r.Write(sampleReport()))
		require.NoError(t, r.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"run_id": "run-1"`)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := New("xml", "")
		require.Error(t, err)
	})
}
