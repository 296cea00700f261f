package correlate

import (
	"os"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

// MobSFParser reads the appsec scorecard JSON produced by a MobSF scan
// and partitions the findings by severity.
type MobSFParser struct{}

var _ schemas.SecurityReportParser = (*MobSFParser)(nil)

func NewMobSFParser() *MobSFParser { return &MobSFParser{} }

type mobsfScorecard struct {
	SecurityScore float64        `json:"security_score"`
	Grade         string         `json:"grade"`
	High          []mobsfFinding `json:"high"`
	Warning       []mobsfFinding `json:"warning"`
	Info          []mobsfFinding `json:"info"`
}

type mobsfFinding struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Section     string  `json:"section"`
	CVSS        float64 `json:"cvss"`
	CWE         string  `json:"cwe"`
}

// ParseReport reads the scorecard at path. An unreadable or malformed
// file is a CorrelationInputError; the caller substitutes a neutral
// analysis in that case.
func (p *MobSFParser) ParseReport(path string) (*schemas.SecurityAnalysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &schemas.CorrelationInputError{Path: path, Err: err}
	}

	var card mobsfScorecard
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, &schemas.CorrelationInputError{Path: path, Err: err}
	}

	analysis := &schemas.SecurityAnalysis{
		Score:   card.SecurityScore,
		Grade:   card.Grade,
		High:    convertFindings(card.High, schemas.SeverityHigh),
		Warning: convertFindings(card.Warning, schemas.SeverityWarning),
		Info:    convertFindings(card.Info, schemas.SeverityInfo),
	}
	if analysis.Grade == "" {
		analysis.Grade = gradeFromScore(analysis.Score)
	}
	return analysis, nil
}

func convertFindings(in []mobsfFinding, sev schemas.Severity) []schemas.Vulnerability {
	out := make([]schemas.Vulnerability, 0, len(in))
	for _, f := range in {
		out = append(out, schemas.Vulnerability{
			Title:       f.Title,
			Severity:    sev,
			Description: f.Description,
			Section:     f.Section,
			CVSS:        f.CVSS,
			CWE:         f.CWE,
		})
	}
	return out
}

// gradeFromScore mirrors the MobSF scorecard banding for reports that
// predate the grade field.
func gradeFromScore(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	default:
		return "F"
	}
}
