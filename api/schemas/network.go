package schemas

import "time"

// -- Traffic Schemas --

// NetworkRequest is one externally captured traffic record. It is a
// read-only input to the correlator.
type NetworkRequest struct {
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	Host      string    `json:"host"`
	Protocol  string    `json:"protocol,omitempty"`
	// StatusCode is zero when the capture recorded no response.
	StatusCode int `json:"status_code,omitempty"`
}
