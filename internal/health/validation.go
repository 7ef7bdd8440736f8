package health

import (
	"math"

	"github.com/rpattn/permitsync/internal/domain"
	"github.com/rpattn/permitsync/internal/ingest"
)

// Verdict is the readiness gate outcome for a newly configured source.
type Verdict string

const (
	VerdictReady          Verdict = "ready"
	VerdictNeedsAttention Verdict = "needs_attention"
	VerdictBlocked        Verdict = "blocked"
)

// minNormalizationRate below which a source needs attention.
const minNormalizationRate = 0.8

// ValidationReport scores a dry-run preview of a source before it is enabled.
type ValidationReport struct {
	SourceKey         string   `json:"source_key"`
	Verdict           Verdict  `json:"verdict"`
	NormalizationRate float64  `json:"normalization_rate"`
	ReadinessScore    int      `json:"readiness_score"`
	Notes             []string `json:"notes,omitempty"`
}

// BuildSourceValidationReport turns a dry-run preview into a readiness
// verdict. A nil source or nil preview (the dry run itself failed) blocks.
func BuildSourceValidationReport(source *domain.SourceDefinition, preview *ingest.Preview) ValidationReport {
	report := ValidationReport{Verdict: VerdictBlocked}
	if source == nil {
		report.Notes = append(report.Notes, "source not found")
		return report
	}
	report.SourceKey = source.Key

	if preview == nil {
		report.Notes = append(report.Notes, "dry-run sync failed")
		return report
	}

	if preview.Fetched > 0 {
		report.NormalizationRate = float64(preview.Normalized) / float64(preview.Fetched)
	}
	cleanRun := preview.Errors == 0

	score := 0.7 * report.NormalizationRate
	if cleanRun {
		score += 0.3
	}
	report.ReadinessScore = int(math.Round(100 * score))

	switch {
	case preview.Fetched == 0:
		report.Verdict = VerdictBlocked
		report.Notes = append(report.Notes, "source returned no records")
	case !cleanRun:
		report.Verdict = VerdictBlocked
		report.Notes = append(report.Notes, preview.ErrorMessages...)
	case report.NormalizationRate < minNormalizationRate:
		report.Verdict = VerdictNeedsAttention
		report.Notes = append(report.Notes, "low normalization rate; inspect field mappings")
	default:
		report.Verdict = VerdictReady
	}
	return report
}
