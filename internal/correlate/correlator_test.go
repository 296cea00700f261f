package correlate

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func makeRun(t *testing.T, start, end string) schemas.Run {
	t.Helper()
	return schemas.Run{
		ID:         "run-1",
		DeviceID:   "emulator-5554",
		AppPackage: "com.example.shop",
		StartTime:  at(t, start),
		EndTime:    at(t, end),
		Status:     schemas.RunStatusCompleted,
	}
}

func makeStep(t *testing.T, n int, ts string) schemas.Step {
	t.Helper()
	return schemas.Step{RunID: "run-1", Number: n, Timestamp: at(t, ts), ActionType: "TAP", Success: true}
}

type stubTraffic struct {
	requests []schemas.NetworkRequest
	err      error
}

func (s *stubTraffic) ParseTraffic(string) ([]schemas.NetworkRequest, error) {
	return s.requests, s.err
}

type stubSecurity struct {
	analysis *schemas.SecurityAnalysis
	err      error
}

func (s *stubSecurity) ParseReport(string) (*schemas.SecurityAnalysis, error) {
	return s.analysis, s.err
}

func TestCorrelate(t *testing.T) {
	t.Run("joins requests into step windows", func(t *testing.T) {
		run := makeRun(t, "2026-08-30T10:00:00Z", "2026-08-30T10:05:00Z")
		steps := []schemas.Step{
			makeStep(t, 1, "2026-08-30T10:01:00Z"),
			makeStep(t, 2, "2026-08-30T10:03:00Z"),
		}
		traffic := &stubTraffic{requests: []schemas.NetworkRequest{
			{Timestamp: at(t, "2026-08-30T10:01:05Z"), Method: "GET", URL: "https://api.example.com/a"},
			{Timestamp: at(t, "2026-08-30T10:04:00Z"), Method: "POST", URL: "https://api.example.com/b"},
		}}

		c := NewCorrelator(traffic, &stubSecurity{}, zap.NewNop())
		report := c.Correlate(run, steps, "capture.har", "")

		require.Len(t, report.Timeline, 2)
		require.Len(t, report.Timeline[0].Requests, 1)
		assert.Equal(t, "https://api.example.com/a", report.Timeline[0].Requests[0].URL)
		require.Len(t, report.Timeline[1].Requests, 1)
		assert.Equal(t, "https://api.example.com/b", report.Timeline[1].Requests[0].URL)

		assert.Equal(t, 300.0, report.Summary.DurationSeconds)
		assert.Equal(t, 2, report.Summary.StepCount)
		assert.Nil(t, report.Security)
	})

	t.Run("drops requests outside the run window", func(t *testing.T) {
		run := makeRun(t, "2026-08-30T10:00:00Z", "2026-08-30T10:05:00Z")
		steps := []schemas.Step{makeStep(t, 1, "2026-08-30T10:01:00Z")}
		traffic := &stubTraffic{requests: []schemas.NetworkRequest{
			{Timestamp: at(t, "2026-08-30T10:00:30Z"), URL: "before-first"},
			{Timestamp: at(t, "2026-08-30T10:05:00Z"), URL: "at-end"},
			{Timestamp: at(t, "2026-08-30T10:06:00Z"), URL: "after-end"},
			{Timestamp: at(t, "2026-08-30T10:02:00Z"), URL: "inside"},
		}}

		c := NewCorrelator(traffic, &stubSecurity{}, zap.NewNop())
		report := c.Correlate(run, steps, "capture.har", "")

		require.Len(t, report.Timeline[0].Requests, 1)
		assert.Equal(t, "inside", report.Timeline[0].Requests[0].URL)
	})

	t.Run("boundary request goes to the later window", func(t *testing.T) {
		run := makeRun(t, "2026-08-30T10:00:00Z", "2026-08-30T10:05:00Z")
		steps := []schemas.Step{
			makeStep(t, 1, "2026-08-30T10:01:00Z"),
			makeStep(t, 2, "2026-08-30T10:03:00Z"),
		}
		traffic := &stubTraffic{requests: []schemas.NetworkRequest{
			{Timestamp: at(t, "2026-08-30T10:03:00Z"), URL: "boundary"},
		}}

		c := NewCorrelator(traffic, &stubSecurity{}, zap.NewNop())
		report := c.Correlate(run, steps, "capture.har", "")

		assert.Empty(t, report.Timeline[0].Requests)
		require.Len(t, report.Timeline[1].Requests, 1)
	})

	t.Run("unusable traffic capture degrades to empty request lists", func(t *testing.T) {
		run := makeRun(t, "2026-08-30T10:00:00Z", "2026-08-30T10:05:00Z")
		steps := []schemas.Step{makeStep(t, 1, "2026-08-30T10:01:00Z")}
		traffic := &stubTraffic{err: &schemas.CorrelationInputError{Path: "capture.har", Err: os.ErrNotExist}}

		c := NewCorrelator(traffic, &stubSecurity{}, zap.NewNop())
		report := c.Correlate(run, steps, "capture.har", "")

		require.Len(t, report.Timeline, 1)
		assert.Empty(t, report.Timeline[0].Requests)
	})

	t.Run("unusable security report yields neutral analysis", func(t *testing.T) {
		run := makeRun(t, "2026-08-30T10:00:00Z", "2026-08-30T10:05:00Z")
		security := &stubSecurity{err: &schemas.CorrelationInputError{Path: "scan.json", Err: os.ErrNotExist}}

		c := NewCorrelator(&stubTraffic{}, security, zap.NewNop())
		report := c.Correlate(run, nil, "", "scan.json")

		require.NotNil(t, report.Security)
		assert.Equal(t, 0.0, report.Security.Score)
		assert.Equal(t, "ERROR", report.Security.Grade)
		assert.Empty(t, report.Security.High)
		assert.Empty(t, report.Security.Warning)
		assert.Empty(t, report.Security.Info)
	})

	t.Run("no security path means no analysis", func(t *testing.T) {
		run := makeRun(t, "2026-08-30T10:00:00Z", "2026-08-30T10:05:00Z")
		c := NewCorrelator(&stubTraffic{}, &stubSecurity{analysis: schemas.NeutralSecurityAnalysis()}, zap.NewNop())
		report := c.Correlate(run, nil, "", "")
		assert.Nil(t, report.Security)
	})

	t.Run("unordered steps are sorted before joining", func(t *testing.T) {
		run := makeRun(t, "2026-08-30T10:00:00Z", "2026-08-30T10:05:00Z")
		steps := []schemas.Step{
			makeStep(t, 2, "2026-08-30T10:03:00Z"),
			makeStep(t, 1, "2026-08-30T10:01:00Z"),
		}
		c := NewCorrelator(&stubTraffic{}, &stubSecurity{}, zap.NewNop())
		report := c.Correlate(run, steps, "", "")

		require.Len(t, report.Timeline, 2)
		assert.Equal(t, 1, report.Timeline[0].Step.Number)
		assert.Equal(t, 2, report.Timeline[1].Step.Number)
	})
}

// Every request falls in at most one window, and requests inside
// [first step, run end) are attached exactly once.
func TestJoinPartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := at(t, "2026-08-30T10:00:00Z")
	run := schemas.Run{ID: "run-1", StartTime: base, EndTime: base.Add(10 * time.Minute), Status: schemas.RunStatusCompleted}

	steps := make([]schemas.Step, 0, 12)
	offset := time.Duration(0)
	for i := 1; i <= 12; i++ {
		offset += time.Duration(1+rng.Intn(40)) * time.Second
		steps = append(steps, schemas.Step{RunID: run.ID, Number: i, Timestamp: base.Add(offset)})
	}

	requests := make([]schemas.NetworkRequest, 0, 200)
	for i := 0; i < 200; i++ {
		requests = append(requests, schemas.NetworkRequest{
			Timestamp: base.Add(time.Duration(rng.Intn(660)-30) * time.Second),
			URL:       "https://api.example.com/r",
		})
	}

	c := NewCorrelator(&stubTraffic{requests: requests}, &stubSecurity{}, zap.NewNop())
	report := c.Correlate(run, steps, "capture.har", "")

	attached := 0
	for i, entry := range report.Timeline {
		windowStart := steps[i].Timestamp
		windowEnd := run.EndTime
		if i+1 < len(steps) {
			windowEnd = steps[i+1].Timestamp
		}
		for _, req := range entry.Requests {
			assert.False(t, req.Timestamp.Before(windowStart))
			assert.True(t, req.Timestamp.Before(windowEnd))
		}
		attached += len(entry.Requests)
	}

	inRange := 0
	for _, req := range requests {
		if !req.Timestamp.Before(steps[0].Timestamp) && req.Timestamp.Before(run.EndTime) {
			inRange++
		}
	}
	assert.Equal(t, inRange, attached)
}

func TestHARParser(t *testing.T) {
	t.Run("parses entries ordered by timestamp", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "capture.har")
		har := `{"log":{"entries":[
			{"startedDateTime":"2026-08-30T10:02:00Z","request":{"method":"POST","url":"https://api.example.com/later","httpVersion":"HTTP/2"},"response":{"status":201}},
			{"startedDateTime":"2026-08-30T10:01:00Z","request":{"method":"GET","url":"https://api.example.com/earlier","httpVersion":"HTTP/1.1"},"response":{"status":200}},
			{"startedDateTime":"not-a-time","request":{"method":"GET","url":"https://api.example.com/skipped"},"response":{"status":200}}
		]}}`
		require.NoError(t, os.WriteFile(path, []byte(har), 0o644))

		requests, err := NewHARParser().ParseTraffic(path)
		require.NoError(t, err)
		require.Len(t, requests, 2)
		assert.Equal(t, "GET", requests[0].Method)
		assert.Equal(t, "api.example.com", requests[0].Host)
		assert.Equal(t, 200, requests[0].StatusCode)
		assert.Equal(t, "https://api.example.com/later", requests[1].URL)
	})

	t.Run("missing file is a CorrelationInputError", func(t *testing.T) {
		_, err := NewHARParser().ParseTraffic(filepath.Join(t.TempDir(), "missing.har"))
		var cerr *schemas.CorrelationInputError
		require.ErrorAs(t, err, &cerr)
	})

	t.Run("malformed JSON is a CorrelationInputError", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.har")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := NewHARParser().ParseTraffic(path)
		var cerr *schemas.CorrelationInputError
		require.ErrorAs(t, err, &cerr)
	})
}

func TestMobSFParser(t *testing.T) {
	t.Run("partitions findings by severity", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scan.json")
		scorecard := `{
			"security_score": 54,
			"high": [{"title":"Cleartext traffic enabled","description":"usesCleartextTraffic=true","section":"manifest"}],
			"warning": [{"title":"Debug enabled"},{"title":"Backup allowed"}],
			"info": [{"title":"Uses INTERNET permission"}]
		}`
		require.NoError(t, os.WriteFile(path, []byte(scorecard), 0o644))

		analysis, err := NewMobSFParser().ParseReport(path)
		require.NoError(t, err)
		assert.Equal(t, 54.0, analysis.Score)
		assert.Equal(t, "C", analysis.Grade)
		require.Len(t, analysis.High, 1)
		assert.Equal(t, schemas.SeverityHigh, analysis.High[0].Severity)
		assert.Len(t, analysis.Warning, 2)
		assert.Len(t, analysis.Info, 1)
		assert.Equal(t, 4, analysis.Total())
	})

	t.Run("explicit grade wins over banding", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scan.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"security_score": 85, "grade": "B"}`), 0o644))
		analysis, err := NewMobSFParser().ParseReport(path)
		require.NoError(t, err)
		assert.Equal(t, "B", analysis.Grade)
	})

	t.Run("corrupt report is a CorrelationInputError", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scan.json")
		require.NoError(t, os.WriteFile(path, []byte("<html>"), 0o644))
		_, err := NewMobSFParser().ParseReport(path)
		var cerr *schemas.CorrelationInputError
		require.ErrorAs(t, err, &cerr)
	})
}
