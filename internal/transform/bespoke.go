package transform

import (
	"github.com/rpattn/permitsync/internal/domain"
)

func init() {
	register(eaTabular{})
	register(inspireLinkedData{})
}

// eaTabular handles the Environment Agency style tabular export, where rows
// come from scraped CSV/XLSX files with inconsistent column labels and no
// explicit status column. The decision text carries the status.
type eaTabular struct{}

func (eaTabular) Name() string { return "ea_tabular" }

func (eaTabular) Transform(raw map[string]any, source domain.SourceDefinition) domain.CandidatePermit {
	decision := pick(raw, "decision", "Decision", "determination", "outcome")
	return domain.CandidatePermit{
		ExternalID:   pick(raw, "application_ref", "Application Ref", "permit_number", "reference"),
		ProjectTitle: pick(raw, "site_name", "Site Name", "operator", "applicant"),
		Location:     joinFields(raw, ", ", "district", "county"),
		Country:      pick(raw, "country"),
		Activity:     pick(raw, "proposal", "activity_description", "regulated_activity"),
		Status:       inferStatus(decision),
		Category:     pick(raw, "permit_type", "application_type"),
		Notes:        decision,
		SourceURL:    pick(raw, "detail_url", "link"),
	}
}

// inspireLinkedData handles INSPIRE-flavoured linked-data feeds where most
// values arrive wrapped in {"value": ...} / {"@value": ...} objects, sometimes
// several levels deep. pick already unwraps, so the mapping stays flat.
type inspireLinkedData struct{}

func (inspireLinkedData) Name() string { return "inspire_ld" }

func (inspireLinkedData) Transform(raw map[string]any, source domain.SourceDefinition) domain.CandidatePermit {
	return domain.CandidatePermit{
		ExternalID:   pick(raw, "notation", "identifier", "@id"),
		ProjectTitle: pick(raw, "label", "prefLabel", "title"),
		Location:     pick(raw, "siteAddress", "locality", "spatial"),
		Country:      pick(raw, "countryName", "country"),
		Activity:     pick(raw, "activityType", "activity", "description"),
		Status:       pick(raw, "permitStatus", "status"),
		Category:     pick(raw, "permitCategory", "type"),
		Notes:        pick(raw, "comment", "remarks"),
		SourceURL:    pick(raw, "@id", "seeAlso"),
	}
}
