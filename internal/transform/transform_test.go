package transform

import (
	"testing"

	"github.com/rpattn/permitsync/internal/domain"
)

func TestFieldMapSingleAndJoined(t *testing.T) {
	source := domain.SourceDefinition{
		Key: "council",
		FieldMap: map[string]any{
			"external_id":   "CaseRef",
			"project_title": "SiteName",
			"location":      []any{"Address1", "Town"},
		},
	}
	raw := map[string]any{
		"CaseRef":  "PA/2026/118",
		"SiteName": "Former Gasworks",
		"Address1": "4 Canal Street",
		"Town":     "Leeds",
		"status":   "Under review",
	}

	c := FieldMap{}.Transform(raw, source)

	if c.ExternalID != "PA/2026/118" {
		t.Errorf("external_id = %q", c.ExternalID)
	}
	if c.ProjectTitle != "Former Gasworks" {
		t.Errorf("project_title = %q", c.ProjectTitle)
	}
	if c.Location != "4 Canal Street Leeds" {
		t.Errorf("location = %q", c.Location)
	}
	// No mapping for status; same-named raw field wins.
	if c.Status != "Under review" {
		t.Errorf("status = %q", c.Status)
	}
}

func TestFieldMapDefaultsFallback(t *testing.T) {
	source := domain.SourceDefinition{
		Key:      "council",
		Defaults: map[string]string{"country": "United Kingdom", "category": "Planning"},
	}
	c := FieldMap{}.Transform(map[string]any{"project_title": "T"}, source)
	if c.Country != "United Kingdom" {
		t.Errorf("country default = %q", c.Country)
	}
	if c.Category != "Planning" {
		t.Errorf("category default = %q", c.Category)
	}
}

func TestFieldMapUnwrapsNestedValues(t *testing.T) {
	source := domain.SourceDefinition{
		FieldMap: map[string]any{"activity": "activityType"},
	}
	raw := map[string]any{
		"activityType": map[string]any{"label": "Waste Transfer"},
	}
	if c := (FieldMap{}).Transform(raw, source); c.Activity != "Waste Transfer" {
		t.Errorf("activity = %q", c.Activity)
	}
}

func TestForSourceFallsBackToGeneric(t *testing.T) {
	tr := ForSource(domain.SourceDefinition{Key: "plain"})
	if tr.Name() != "field_map" {
		t.Fatalf("expected generic transformer, got %s", tr.Name())
	}
}

func TestForSourceUnknownNameFallsBack(t *testing.T) {
	tr := ForSource(domain.SourceDefinition{Key: "s", Transform: "nope"})
	if tr.Name() != "field_map" {
		t.Fatalf("expected field_map fallback for unknown transform, got %s", tr.Name())
	}
}

func TestForSourceRegisteredName(t *testing.T) {
	tr := ForSource(domain.SourceDefinition{Key: "ea", Transform: "ea_tabular"})
	if tr.Name() != "ea_tabular" {
		t.Fatalf("expected ea_tabular, got %s", tr.Name())
	}
}

func TestLookupUnknownReturnsNil(t *testing.T) {
	if Lookup("does_not_exist") != nil {
		t.Fatal("expected nil for unknown transformer")
	}
}

func TestEATabularInfersStatusFromDecision(t *testing.T) {
	tr := Lookup("ea_tabular")
	if tr == nil {
		t.Fatal("ea_tabular not registered")
	}

	raw := map[string]any{
		"Application Ref": "EPR/AB1234CD",
		"Site Name":       "Greenfield Composting",
		"district":        "South Hams",
		"county":          "Devon",
		"proposal":        "Open windrow composting",
		"decision":        "Permit granted 14 March 2026",
	}
	c := tr.Transform(raw, domain.SourceDefinition{Key: "ea"})

	if c.ExternalID != "EPR/AB1234CD" {
		t.Errorf("external_id = %q", c.ExternalID)
	}
	if c.Location != "South Hams, Devon" {
		t.Errorf("location = %q", c.Location)
	}
	if c.Status != "Approved" {
		t.Errorf("status = %q, want Approved", c.Status)
	}

	// No decision text at all defaults to Pending.
	c = tr.Transform(map[string]any{"Site Name": "X"}, domain.SourceDefinition{})
	if c.Status != "Pending" {
		t.Errorf("empty decision status = %q, want Pending", c.Status)
	}
}

func TestInspireLinkedDataUnwraps(t *testing.T) {
	tr := Lookup("inspire_ld")
	if tr == nil {
		t.Fatal("inspire_ld not registered")
	}

	raw := map[string]any{
		"notation":     map[string]any{"@value": "IE-EPA-5501"},
		"label":        map[string]any{"value": "Ringaskiddy Incinerator"},
		"permitStatus": map[string]any{"label": "In Determination"},
		"countryName":  "Ireland",
	}
	c := tr.Transform(raw, domain.SourceDefinition{Key: "epa_ie"})

	if c.ExternalID != "IE-EPA-5501" {
		t.Errorf("external_id = %q", c.ExternalID)
	}
	if c.ProjectTitle != "Ringaskiddy Incinerator" {
		t.Errorf("project_title = %q", c.ProjectTitle)
	}
	if c.Status != "In Determination" {
		t.Errorf("status = %q", c.Status)
	}
	if c.Country != "Ireland" {
		t.Errorf("country = %q", c.Country)
	}
}
