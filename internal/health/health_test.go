package health

import (
	"testing"
	"time"

	"github.com/rpattn/permitsync/internal/domain"
	"github.com/rpattn/permitsync/internal/ingest"
)

var reportNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func completedRun(id string, at time.Time, stats domain.SourceSyncStats) domain.IngestionRun {
	completed := at.Add(time.Minute)
	run := domain.IngestionRun{
		ID:          id,
		StartedAt:   at,
		CompletedAt: &completed,
		SourceKeys:  []string{stats.SourceKey},
	}
	run.Fold(stats)
	return run
}

func TestSummarizeStaleness(t *testing.T) {
	sources := []domain.SourceDefinition{
		{Key: "fresh", PollIntervalHours: 24},
		{Key: "old", PollIntervalHours: 24},
		{Key: "never"},
	}
	runs := []domain.IngestionRun{
		completedRun("r1", reportNow.Add(-3*time.Hour), domain.SourceSyncStats{SourceKey: "fresh", Fetched: 5, Inserted: 1}),
		completedRun("r2", reportNow.Add(-80*time.Hour), domain.SourceSyncStats{SourceKey: "old", Fetched: 2, Errors: 1}),
	}

	report := Summarize(sources, nil, runs, reportNow)
	if len(report.Sources) != 3 {
		t.Fatalf("sources = %d", len(report.Sources))
	}

	byKey := map[string]SourceHealth{}
	for _, s := range report.Sources {
		byKey[s.SourceKey] = s
	}

	if byKey["fresh"].Stale {
		t.Error("fresh source flagged stale")
	}
	if byKey["fresh"].Fetched != 5 || byKey["fresh"].Inserted != 1 {
		t.Errorf("fresh counters = %+v", byKey["fresh"])
	}
	if !byKey["old"].Stale {
		t.Error("old source not flagged stale")
	}
	if byKey["old"].Errors != 1 {
		t.Errorf("old errors = %d", byKey["old"].Errors)
	}
	if !byKey["never"].Stale {
		t.Error("never-run enabled source must be stale")
	}
	if byKey["never"].AgeHours != nil {
		t.Error("never-run source should have no age")
	}
}

func TestSummarizeDisabledSourceNeverStale(t *testing.T) {
	disabled := false
	sources := []domain.SourceDefinition{{Key: "off", Enabled: &disabled}}
	report := Summarize(sources, nil, nil, reportNow)
	if report.Sources[0].Stale {
		t.Fatal("disabled source flagged stale")
	}
}

func TestSummarizeStatusBreakdown(t *testing.T) {
	permits := []domain.Permit{
		{IngestKey: "a:1", Status: "Pending"},
		{IngestKey: "a:2", Status: "Pending"},
		{IngestKey: "a:3", Status: "Approved"},
	}
	report := Summarize(nil, permits, nil, reportNow)
	if report.StatusBreakdown["Pending"] != 2 || report.StatusBreakdown["Approved"] != 1 {
		t.Fatalf("breakdown = %v", report.StatusBreakdown)
	}
}

func TestSummarizeDuplicateExternalIDs(t *testing.T) {
	permits := []domain.Permit{
		{IngestKey: "ea:EPR-1", SourceKey: "ea", ExternalID: "EPR-1", ProjectTitle: "A", Location: "X"},
		{IngestKey: "ea:epr-1-dup", SourceKey: "ea", ExternalID: "epr-1", ProjectTitle: "B", Location: "Y"},
		{IngestKey: "ea:EPR-2", SourceKey: "ea", ExternalID: "EPR-2", ProjectTitle: "C", Location: "Z"},
	}
	report := Summarize(nil, permits, nil, reportNow)
	if len(report.DuplicateExternalIDs) != 1 {
		t.Fatalf("duplicate clusters = %v", report.DuplicateExternalIDs)
	}
	cluster := report.DuplicateExternalIDs[0]
	if cluster.Value != "epr-1" || len(cluster.PermitKeys) != 2 {
		t.Fatalf("cluster = %+v", cluster)
	}
}

func TestSummarizeDuplicateTitleLocation(t *testing.T) {
	permits := []domain.Permit{
		{IngestKey: "a:1", ProjectTitle: "Quarry", Location: "Devon"},
		{IngestKey: "b:2", ProjectTitle: "QUARRY", Location: "devon"},
	}
	report := Summarize(nil, permits, nil, reportNow)
	if len(report.DuplicateTitleLocations) != 1 {
		t.Fatalf("clusters = %v", report.DuplicateTitleLocations)
	}
	if report.DuplicateTitleLocations[0].Value != "quarry::devon" {
		t.Fatalf("cluster value = %q", report.DuplicateTitleLocations[0].Value)
	}
}

func TestValidationReportReady(t *testing.T) {
	source := &domain.SourceDefinition{Key: "s"}
	preview := &ingest.Preview{SourceKey: "s", Fetched: 10, Normalized: 10}
	report := BuildSourceValidationReport(source, preview)

	if report.Verdict != VerdictReady {
		t.Fatalf("verdict = %s", report.Verdict)
	}
	if report.ReadinessScore != 100 {
		t.Fatalf("score = %d, want 100", report.ReadinessScore)
	}
}

func TestValidationReportNeedsAttention(t *testing.T) {
	source := &domain.SourceDefinition{Key: "s"}
	preview := &ingest.Preview{SourceKey: "s", Fetched: 10, Normalized: 5}
	report := BuildSourceValidationReport(source, preview)

	if report.Verdict != VerdictNeedsAttention {
		t.Fatalf("verdict = %s", report.Verdict)
	}
	// 0.7*0.5 + 0.3 = 0.65
	if report.ReadinessScore != 65 {
		t.Fatalf("score = %d, want 65", report.ReadinessScore)
	}
}

func TestValidationReportBlocked(t *testing.T) {
	source := &domain.SourceDefinition{Key: "s"}

	if report := BuildSourceValidationReport(nil, nil); report.Verdict != VerdictBlocked {
		t.Errorf("missing source verdict = %s", report.Verdict)
	}
	if report := BuildSourceValidationReport(source, nil); report.Verdict != VerdictBlocked {
		t.Errorf("failed dry-run verdict = %s", report.Verdict)
	}
	if report := BuildSourceValidationReport(source, &ingest.Preview{Fetched: 0}); report.Verdict != VerdictBlocked {
		t.Errorf("zero-fetch verdict = %s", report.Verdict)
	}

	preview := &ingest.Preview{Fetched: 5, Normalized: 5, Errors: 2, ErrorMessages: []string{"boom"}}
	report := BuildSourceValidationReport(source, preview)
	if report.Verdict != VerdictBlocked {
		t.Errorf("errored dry-run verdict = %s", report.Verdict)
	}
	// 0.7*1.0 + 0 = 0.7
	if report.ReadinessScore != 70 {
		t.Errorf("score = %d, want 70", report.ReadinessScore)
	}
}
