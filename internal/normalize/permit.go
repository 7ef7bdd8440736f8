package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/permitsync/internal/domain"
)

const (
	fallbackSourceKey = "unknown_source"
	fallbackTitle     = "Untitled Permit"
	fallbackLocation  = "Unknown Location"
	fallbackCountry   = "Unknown Country"
	fallbackActivity  = "Unknown Activity"
)

// defaultFilterFields are concatenated for keyword filtering when a source
// does not configure its own filter field list.
var defaultFilterFields = []string{"project_title", "activity", "notes", "location"}

// PermitKey derives the stable ingest key for a candidate. When the candidate
// carries an external id the key is source:external_id; otherwise it falls
// back to slugs of title, location and country. The fallback intentionally
// collapses sparse records that tie on all three fields into one logical
// permit.
func PermitKey(sourceKey string, c domain.CandidatePermit) string {
	sourceKey = Text(sourceKey, fallbackSourceKey)
	if external := strings.TrimSpace(c.ExternalID); external != "" {
		return fmt.Sprintf("%s:%s", sourceKey, external)
	}
	return fmt.Sprintf("%s:%s:%s:%s", sourceKey, Slug(c.ProjectTitle), Slug(c.Location), Slug(c.Country))
}

// Permit converts a transformed candidate into a canonical permit record.
// The caller overwrites FirstSeenAt/CreatedAt when the permit was already
// known from an earlier run.
func Permit(c domain.CandidatePermit, source domain.SourceDefinition, now time.Time) domain.Permit {
	sourceKey := Text(source.Key, fallbackSourceKey)
	countryFallback := Text(source.Country, fallbackCountry)

	return domain.Permit{
		IngestKey:    PermitKey(sourceKey, c),
		SourceKey:    sourceKey,
		ExternalID:   strings.TrimSpace(c.ExternalID),
		ProjectTitle: Text(c.ProjectTitle, fallbackTitle),
		Location:     Text(c.Location, fallbackLocation),
		Country:      Text(c.Country, countryFallback),
		Activity:     Text(c.Activity, fallbackActivity),
		Status:       Status(c.Status),
		Category:     strings.TrimSpace(c.Category),
		Notes:        strings.TrimSpace(c.Notes),
		SourceURL:    strings.TrimSpace(c.SourceURL),
		SourceName:   Text(source.Name, sourceKey),
		FirstSeenAt:  now,
		LastSeenAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MissingRequired lists the candidate fields the sync engine refuses to
// ingest without. Country counts as present when the source itself declares
// one, since the normalizer will fall back to it.
func MissingRequired(c domain.CandidatePermit, source domain.SourceDefinition) []string {
	var missing []string
	if strings.TrimSpace(c.ProjectTitle) == "" {
		missing = append(missing, "project_title")
	}
	if strings.TrimSpace(c.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(c.Country) == "" && strings.TrimSpace(source.Country) == "" {
		missing = append(missing, "country")
	}
	return missing
}

// ShouldInclude applies a source's keyword pre-filter to a raw record before
// normalization. Sources without keywords include everything. The filter runs
// on raw field values on purpose: it is a cheap relevance gate ahead of the
// more expensive normalization step.
func ShouldInclude(raw map[string]any, source domain.SourceDefinition) bool {
	if len(source.IncludeKeywords) == 0 {
		return true
	}

	fields := source.FilterFields
	if len(fields) == 0 {
		fields = defaultFilterFields
	}

	var haystack strings.Builder
	for _, field := range fields {
		if value, ok := raw[field]; ok {
			haystack.WriteString(strings.ToLower(Unwrap(value)))
			haystack.WriteString(" ")
			continue
		}
		// Broad feeds rarely use canonical names; check the mapped source
		// field names as well.
		for _, mapped := range source.FieldMapEntry(field) {
			if value, ok := raw[mapped]; ok {
				haystack.WriteString(strings.ToLower(Unwrap(value)))
				haystack.WriteString(" ")
			}
		}
	}

	text := haystack.String()
	for _, keyword := range source.IncludeKeywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" && strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
