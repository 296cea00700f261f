// Package correlate implements the offline run correlation engine: a
// stateless join of a run's persisted step timeline with externally
// captured traffic and security scan data into one report structure.
package correlate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

// Correlator assembles RunReportData from already-persisted run data and
// optional side-channel files. It holds no mutable state: Correlate is
// re-entrant and may run concurrently with a live run or with other
// correlations.
type Correlator struct {
	traffic  schemas.TrafficParser
	security schemas.SecurityReportParser
	logger   *zap.Logger
}

// NewCorrelator builds a correlator around the given side-channel parsers.
func NewCorrelator(traffic schemas.TrafficParser, security schemas.SecurityReportParser, logger *zap.Logger) *Correlator {
	return &Correlator{
		traffic:  traffic,
		security: security,
		logger:   logger.Named("correlate"),
	}
}

// Correlate joins the run's steps with the side-channel artifacts at
// pcapPath and mobsfPath (either may be empty) and returns the enriched
// report structure. A malformed or missing side-channel file degrades to
// an empty request list or a neutral security analysis; the report is
// always producible from the step timeline alone. Correlate reads its
// inputs and nothing else: no persistence, no mutation of run or steps.
func (c *Correlator) Correlate(run schemas.Run, steps []schemas.Step, pcapPath, mobsfPath string) schemas.RunReportData {
	ordered := make([]schemas.Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	summary := schemas.RunSummary{
		RunID:           run.ID,
		DeviceID:        run.DeviceID,
		AppPackage:      run.AppPackage,
		Status:          run.Status,
		StartTime:       run.StartTime,
		EndTime:         run.EndTime,
		DurationSeconds: run.EndTime.Sub(run.StartTime).Seconds(),
		StepCount:       len(ordered),
	}

	var requests []schemas.NetworkRequest
	if pcapPath != "" {
		parsed, err := c.traffic.ParseTraffic(pcapPath)
		if err != nil {
			c.logger.Warn("Traffic capture unusable, continuing without requests",
				zap.String("path", pcapPath), zap.Error(err))
		} else {
			requests = parsed
		}
	}

	timeline := joinRequests(run, ordered, requests)

	var analysis *schemas.SecurityAnalysis
	if mobsfPath != "" {
		parsed, err := c.security.ParseReport(mobsfPath)
		if err != nil {
			c.logger.Warn("Security report unusable, substituting neutral analysis",
				zap.String("path", mobsfPath), zap.Error(err))
			analysis = schemas.NeutralSecurityAnalysis()
		} else {
			analysis = parsed
		}
	}

	return schemas.RunReportData{
		Run:      run,
		Summary:  summary,
		Timeline: timeline,
		Security: analysis,
	}
}

// joinRequests attaches each request to the step whose half-open window
// [step[i].Timestamp, step[i+1].Timestamp) contains it; the final window
// extends to the run's end time. Requests before the first step or at or
// after the run end are dropped. Windows are contiguous and
// non-overlapping, so every request lands in at most one window.
func joinRequests(run schemas.Run, steps []schemas.Step, requests []schemas.NetworkRequest) []schemas.TimelineEntry {
	timeline := make([]schemas.TimelineEntry, len(steps))
	for i, s := range steps {
		timeline[i] = schemas.TimelineEntry{Step: s, Requests: []schemas.NetworkRequest{}}
	}
	if len(steps) == 0 {
		return timeline
	}

	for _, req := range requests {
		if req.Timestamp.Before(steps[0].Timestamp) {
			continue
		}
		if !run.EndTime.IsZero() && !req.Timestamp.Before(run.EndTime) {
			continue
		}
		// Greatest step whose timestamp is <= the request's. sort.Search
		// finds the first step strictly after it.
		idx := sort.Search(len(steps), func(i int) bool {
			return steps[i].Timestamp.After(req.Timestamp)
		}) - 1
		timeline[idx].Requests = append(timeline[idx].Requests, req)
	}
	return timeline
}
