package tests

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpattn/permitsync/internal/domain"
	"github.com/rpattn/permitsync/internal/health"
)

const catalogJSON = `[
	{
		"key": "ea_waste",
		"name": "Environment Agency Waste Permits",
		"type": "local_file",
		"country": "United Kingdom",
		"path": "ea_waste.json",
		"field_map": {
			"external_id": "permit_ref",
			"project_title": "operator",
			"location": "site_address",
			"status": "permit_status",
			"activity": "activity_desc"
		}
	},
	{
		"key": "sepa_csv",
		"name": "SEPA Licence Register",
		"type": "local_file",
		"country": "United Kingdom",
		"path": "sepa.csv",
		"field_map": {
			"external_id": "licence_no",
			"project_title": "holder",
			"location": "site",
			"status": "decision"
		}
	}
]`

const eaFeedV1 = `[
	{"permit_ref": "EPR/AB1234", "operator": "Acme Recycling Ltd", "site_address": "Unit 4, Leeds", "permit_status": "application received", "activity_desc": "Waste transfer"},
	{"permit_ref": "EPR/CD5678", "operator": "Riverside Composting", "site_address": "Mill Lane, York", "permit_status": "granted", "activity_desc": "Composting"}
]`

const eaFeedV2 = `[
	{"permit_ref": "EPR/AB1234", "operator": "Acme Recycling Ltd", "site_address": "Unit 4, Leeds", "permit_status": "granted", "activity_desc": "Waste transfer"},
	{"permit_ref": "EPR/CD5678", "operator": "Riverside Composting", "site_address": "Mill Lane, York", "permit_status": "granted", "activity_desc": "Composting"}
]`

const sepaCSV = "licence_no,holder,site,decision\nWML/100,Clyde Metals,Glasgow,refused\n"

func TestSyncRoundTrip(t *testing.T) {
	app := startApp(t, catalogJSON)
	app.writeFeed(t, "ea_waste.json", eaFeedV1)
	app.writeFeed(t, "sepa.csv", sepaCSV)

	var run domain.IngestionRun
	resp := postJSON(t, app.URL+"/sync", nil, &run)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync returned %d", resp.StatusCode)
	}
	if run.Fetched != 3 || run.Inserted != 3 {
		t.Fatalf("expected 3 fetched/inserted, got fetched=%d inserted=%d", run.Fetched, run.Inserted)
	}
	if len(run.SourceKeys) != 2 {
		t.Errorf("expected 2 source keys, got %v", run.SourceKeys)
	}

	// Stores were flushed to disk.
	for _, name := range []string{"permits.json", "ingestion_runs.json"} {
		if _, err := os.Stat(filepath.Join(app.DataDir, name)); err != nil {
			t.Errorf("expected %s to exist after sync: %v", name, err)
		}
	}
}

func TestResyncIsIdempotentAndTracksStatusChanges(t *testing.T) {
	app := startApp(t, catalogJSON)
	app.writeFeed(t, "ea_waste.json", eaFeedV1)
	app.writeFeed(t, "sepa.csv", sepaCSV)

	var first domain.IngestionRun
	postJSON(t, app.URL+"/sync?source=ea_waste", nil, &first)
	if first.Inserted != 2 {
		t.Fatalf("expected 2 inserted on first run, got %d", first.Inserted)
	}

	// Same feed again: pure update pass, no history events.
	var second domain.IngestionRun
	postJSON(t, app.URL+"/sync?source=ea_waste", nil, &second)
	if second.Inserted != 0 || second.Updated != 2 || second.StatusChanged != 0 {
		t.Fatalf("expected idempotent resync, got %+v", second)
	}

	// EPR/AB1234 flips Pending -> Approved.
	app.writeFeed(t, "ea_waste.json", eaFeedV2)
	var third domain.IngestionRun
	postJSON(t, app.URL+"/sync?source=ea_waste", nil, &third)
	if third.StatusChanged != 1 {
		t.Fatalf("expected 1 status change, got %d", third.StatusChanged)
	}

	events, err := app.Files.History.List(t.Context())
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 history event, got %d", len(events))
	}
	event := events[0]
	if event.PermitKey != "ea_waste:EPR/AB1234" {
		t.Errorf("unexpected permit key %q", event.PermitKey)
	}
	if event.PreviousStatus != "Pending" || event.NewStatus != "Approved" {
		t.Errorf("unexpected transition %s -> %s", event.PreviousStatus, event.NewStatus)
	}
	if event.RunID != third.ID {
		t.Errorf("event run id %q does not match run %q", event.RunID, third.ID)
	}
}

func TestPatchThenSyncUsesNewMapping(t *testing.T) {
	app := startApp(t, catalogJSON)
	app.writeFeed(t, "sepa.csv", sepaCSV)
	// Feed with a renamed status column.
	app.writeFeed(t, "ea_waste.json", `[
		{"permit_ref": "EPR/ZZ9999", "operator": "New Operator", "site_address": "Hull", "outcome": "refused", "activity_desc": "Incineration"}
	]`)

	patch := map[string]any{
		"field_map": map[string]any{
			"external_id":   "permit_ref",
			"project_title": "operator",
			"location":      "site_address",
			"status":        "outcome",
		},
	}
	resp := postJSON(t, app.URL+"/sources/ea_waste/patch", patch, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch returned %d", resp.StatusCode)
	}

	var run domain.IngestionRun
	postJSON(t, app.URL+"/sync?source=ea_waste", nil, &run)
	if run.Inserted != 1 {
		t.Fatalf("expected 1 inserted, got %d", run.Inserted)
	}

	permits, err := app.Files.Permits.List(t.Context())
	if err != nil {
		t.Fatalf("failed to list permits: %v", err)
	}
	if len(permits) != 1 {
		t.Fatalf("expected 1 permit, got %d", len(permits))
	}
	if permits[0].Status != "Rejected" {
		t.Errorf("expected Rejected from remapped column, got %q", permits[0].Status)
	}
}

func TestValidateAndHealthEndpoints(t *testing.T) {
	app := startApp(t, catalogJSON)
	app.writeFeed(t, "ea_waste.json", eaFeedV1)
	app.writeFeed(t, "sepa.csv", sepaCSV)

	var report health.ValidationReport
	resp := postJSON(t, fmt.Sprintf("%s/sources/ea_waste/validate?sample_limit=1", app.URL), nil, &report)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate returned %d", resp.StatusCode)
	}
	if report.Verdict != health.VerdictReady {
		t.Fatalf("expected ready verdict, got %s", report.Verdict)
	}

	// Validation is a dry run: nothing persisted yet.
	permits, err := app.Files.Permits.List(t.Context())
	if err != nil {
		t.Fatalf("failed to list permits: %v", err)
	}
	if len(permits) != 0 {
		t.Fatalf("validate persisted %d permits", len(permits))
	}

	postJSON(t, app.URL+"/sync", nil, nil)

	var healthReport health.Report
	getJSON(t, app.URL+"/health/ingestion", &healthReport)
	if len(healthReport.Sources) != 2 {
		t.Fatalf("expected 2 source health entries, got %d", len(healthReport.Sources))
	}
	for _, sh := range healthReport.Sources {
		if sh.Stale {
			t.Errorf("source %s reported stale after fresh sync", sh.SourceKey)
		}
	}
}
