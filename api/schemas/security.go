package schemas

// -- Security Scan Schemas --

// Severity represents the severity bucket of a static/dynamic finding.
type Severity string

const (
	SeverityHigh    Severity = "high"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Vulnerability is one finding from an external security scan report.
type Vulnerability struct {
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
	Section     string   `json:"section,omitempty"`
	CVSS        float64  `json:"cvss,omitempty"`
	CWE         string   `json:"cwe,omitempty"`
}

// SecurityAnalysis aggregates an external scan report, partitioned by
// severity. A neutral analysis (score 0, grade "ERROR", empty buckets)
// stands in when the report file is missing or malformed.
type SecurityAnalysis struct {
	Score   float64         `json:"score"`
	Grade   string          `json:"grade"`
	High    []Vulnerability `json:"high"`
	Warning []Vulnerability `json:"warning"`
	Info    []Vulnerability `json:"info"`
}

// NeutralSecurityAnalysis returns the sentinel analysis used when the
// side-channel report could not be read.
func NeutralSecurityAnalysis() *SecurityAnalysis {
	return &SecurityAnalysis{
		Score:   0.0,
		Grade:   "ERROR",
		High:    []Vulnerability{},
		Warning: []Vulnerability{},
		Info:    []Vulnerability{},
	}
}

// Total returns the number of findings across all buckets.
func (a *SecurityAnalysis) Total() int {
	return len(a.High) + len(a.Warning) + len(a.Info)
}
