package correlate

import (
	"net/url"
	"os"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HARParser reads HTTP Archive (HAR) captures exported by the traffic
// interception layer and flattens them into NetworkRequests ordered by
// timestamp.
type HARParser struct{}

var _ schemas.TrafficParser = (*HARParser)(nil)

func NewHARParser() *HARParser { return &HARParser{} }

type harFile struct {
	Log struct {
		Entries []harEntry `json:"entries"`
	} `json:"log"`
}

type harEntry struct {
	StartedDateTime string `json:"startedDateTime"`
	Request         struct {
		Method      string `json:"method"`
		URL         string `json:"url"`
		HTTPVersion string `json:"httpVersion"`
	} `json:"request"`
	Response struct {
		Status int `json:"status"`
	} `json:"response"`
}

// ParseTraffic reads the HAR file at path. An unreadable or malformed
// file is a CorrelationInputError; entries with unparseable individual
// fields are skipped rather than failing the whole capture.
func (p *HARParser) ParseTraffic(path string) ([]schemas.NetworkRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &schemas.CorrelationInputError{Path: path, Err: err}
	}

	var har harFile
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, &schemas.CorrelationInputError{Path: path, Err: err}
	}

	requests := make([]schemas.NetworkRequest, 0, len(har.Log.Entries))
	for _, entry := range har.Log.Entries {
		ts, err := time.Parse(time.RFC3339Nano, entry.StartedDateTime)
		if err != nil {
			continue
		}
		req := schemas.NetworkRequest{
			Timestamp:  ts,
			Method:     entry.Request.Method,
			URL:        entry.Request.URL,
			Protocol:   entry.Request.HTTPVersion,
			StatusCode: entry.Response.Status,
		}
		if u, err := url.Parse(entry.Request.URL); err == nil {
			req.Host = u.Host
		}
		requests = append(requests, req)
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].Timestamp.Before(requests[j].Timestamp)
	})
	return requests, nil
}
