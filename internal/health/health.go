// Package health produces read-only operational reports over accumulated
// permits, runs and source definitions. Nothing here mutates state.
package health

import (
	"sort"
	"strings"
	"time"

	"github.com/rpattn/permitsync/internal/domain"
)

// stalenessFactor: a source is stale once its latest run is older than this
// many poll intervals.
const stalenessFactor = 2

// SourceHealth summarizes the latest run for one source.
type SourceHealth struct {
	SourceKey  string     `json:"source_key"`
	SourceName string     `json:"source_name,omitempty"`
	Enabled    bool       `json:"enabled"`
	Stale      bool       `json:"stale"`
	AgeHours   *float64   `json:"age_hours,omitempty"`
	LastRunID  string     `json:"last_run_id,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	Fetched    int        `json:"fetched"`
	Inserted   int        `json:"inserted"`
	Updated    int        `json:"updated"`
	Errors     int        `json:"errors"`
}

// DuplicateCluster lists permits colliding on one grouping value.
type DuplicateCluster struct {
	Value      string   `json:"value"`
	PermitKeys []string `json:"permit_keys"`
}

// Report is the full ingestion health summary.
type Report struct {
	GeneratedAt             time.Time          `json:"generated_at"`
	Sources                 []SourceHealth     `json:"sources"`
	StatusBreakdown         map[string]int     `json:"status_breakdown"`
	DuplicateExternalIDs    []DuplicateCluster `json:"duplicate_external_ids"`
	DuplicateTitleLocations []DuplicateCluster `json:"duplicate_title_locations"`
}

// Summarize computes staleness, latest-run counters, the global status
// histogram and duplicate clusters.
func Summarize(sources []domain.SourceDefinition, permits []domain.Permit, runs []domain.IngestionRun, now time.Time) Report {
	report := Report{
		GeneratedAt:             now,
		Sources:                 []SourceHealth{},
		StatusBreakdown:         map[string]int{},
		DuplicateExternalIDs:    []DuplicateCluster{},
		DuplicateTitleLocations: []DuplicateCluster{},
	}

	for _, source := range sources {
		report.Sources = append(report.Sources, sourceHealth(source, runs, now))
	}

	for _, permit := range permits {
		report.StatusBreakdown[permit.Status]++
	}

	report.DuplicateExternalIDs = clusters(permits, func(p domain.Permit) string {
		return strings.ToLower(strings.TrimSpace(p.ExternalID))
	})
	report.DuplicateTitleLocations = clusters(permits, func(p domain.Permit) string {
		return strings.ToLower(p.ProjectTitle) + "::" + strings.ToLower(p.Location)
	})

	return report
}

func sourceHealth(source domain.SourceDefinition, runs []domain.IngestionRun, now time.Time) SourceHealth {
	health := SourceHealth{
		SourceKey:  source.Key,
		SourceName: source.Name,
		Enabled:    source.IsEnabled(),
	}

	latest := latestRunFor(source.Key, runs)
	if latest == nil {
		health.Stale = health.Enabled
		return health
	}

	at := latest.StartedAt
	if latest.CompletedAt != nil {
		at = *latest.CompletedAt
	}
	age := now.Sub(at).Hours()
	health.AgeHours = &age
	health.LastRunID = latest.ID
	health.LastRunAt = &at

	threshold := float64(stalenessFactor) * source.PollInterval().Hours()
	health.Stale = health.Enabled && age > threshold

	for _, result := range latest.SourceResults {
		if result.SourceKey == source.Key {
			health.Fetched = result.Fetched
			health.Inserted = result.Inserted
			health.Updated = result.Updated
			health.Errors = result.Errors
			break
		}
	}
	return health
}

// latestRunFor returns the most recent run (by started_at) that attempted the
// source.
func latestRunFor(sourceKey string, runs []domain.IngestionRun) *domain.IngestionRun {
	var latest *domain.IngestionRun
	for i := range runs {
		run := &runs[i]
		if !run.Attempted(sourceKey) {
			continue
		}
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	return latest
}

func clusters(permits []domain.Permit, keyFn func(domain.Permit) string) []DuplicateCluster {
	groups := map[string][]string{}
	for _, permit := range permits {
		key := keyFn(permit)
		if key == "" || key == "::" {
			continue
		}
		groups[key] = append(groups[key], permit.IngestKey)
	}

	out := []DuplicateCluster{}
	for value, keys := range groups {
		if len(keys) > 1 {
			out = append(out, DuplicateCluster{Value: value, PermitKeys: keys})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
