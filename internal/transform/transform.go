// Package transform converts raw source records into candidate permits.
//
// Every source resolves to exactly one Transformer at the start of a sync:
// either a bespoke transformer named by the source's transform setting, or the
// generic field-map transformer.
package transform

import (
	"log"
	"strings"

	"github.com/rpattn/permitsync/internal/domain"
	"github.com/rpattn/permitsync/internal/normalize"
)

// Transformer maps one raw external record onto the common candidate shape.
type Transformer interface {
	Name() string
	Transform(raw map[string]any, source domain.SourceDefinition) domain.CandidatePermit
}

// canonicalFields is the candidate field set the generic transformer resolves.
var canonicalFields = []string{
	"external_id", "project_title", "location", "country",
	"activity", "status", "category", "notes", "source_url",
}

// registry holds bespoke transformers keyed by name.
var registry = map[string]Transformer{}

func register(t Transformer) {
	registry[t.Name()] = t
}

// Lookup returns the bespoke transformer registered under name, or nil when
// unknown. Callers must fall back to the generic transformer rather than
// failing silently.
func Lookup(name string) Transformer {
	return registry[strings.TrimSpace(name)]
}

// ForSource resolves the transformer for a source once per sync. An
// unregistered transform name is logged and falls back to the generic
// field-map transformer; it never fails the source.
func ForSource(source domain.SourceDefinition) Transformer {
	if name := strings.TrimSpace(source.Transform); name != "" {
		if t := Lookup(name); t != nil {
			return t
		}
		log.Printf("[SYNC] %s: unknown transform %q, using field_map", source.Key, name)
	}
	return FieldMap{}
}

// FieldMap is the generic transformer driven by a source's field_map
// configuration. For each canonical field it resolves, in order: the mapped
// source field(s), a same-named field on the raw record, then the source's
// configured default.
type FieldMap struct{}

func (FieldMap) Name() string { return "field_map" }

func (FieldMap) Transform(raw map[string]any, source domain.SourceDefinition) domain.CandidatePermit {
	values := make(map[string]string, len(canonicalFields))
	for _, field := range canonicalFields {
		values[field] = resolveField(raw, source, field)
	}
	return domain.CandidatePermit{
		ExternalID:   values["external_id"],
		ProjectTitle: values["project_title"],
		Location:     values["location"],
		Country:      values["country"],
		Activity:     values["activity"],
		Status:       values["status"],
		Category:     values["category"],
		Notes:        values["notes"],
		SourceURL:    values["source_url"],
	}
}

func resolveField(raw map[string]any, source domain.SourceDefinition, field string) string {
	if mapped := source.FieldMapEntry(field); len(mapped) > 0 {
		if len(mapped) == 1 {
			if value := normalize.Unwrap(raw[mapped[0]]); value != "" {
				return value
			}
		} else if value := joinFields(raw, " ", mapped...); value != "" {
			return value
		}
	}

	if value, ok := raw[field]; ok {
		if s := normalize.Unwrap(value); s != "" {
			return s
		}
	}

	return strings.TrimSpace(source.Defaults[field])
}

// pick returns the first non-empty unwrapped value among the named fields.
func pick(raw map[string]any, names ...string) string {
	for _, name := range names {
		if value, ok := raw[name]; ok {
			if s := normalize.Unwrap(value); s != "" {
				return s
			}
		}
	}
	return ""
}

// joinFields joins the non-empty unwrapped values of the named fields.
func joinFields(raw map[string]any, sep string, names ...string) string {
	var parts []string
	for _, name := range names {
		if value, ok := raw[name]; ok {
			if s := normalize.Unwrap(value); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, sep)
}

// inferStatus classifies free decision text onto the canonical vocabulary,
// defaulting to Pending when nothing matches. Used by bespoke transformers for
// feeds without an explicit status field.
func inferStatus(text string) string {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "grant"),
		strings.Contains(lowered, "issue"),
		strings.Contains(lowered, "approv"):
		return normalize.StatusApproved
	case strings.Contains(lowered, "refus"),
		strings.Contains(lowered, "reject"),
		strings.Contains(lowered, "denie"):
		return normalize.StatusRejected
	case strings.Contains(lowered, "withdraw"),
		strings.Contains(lowered, "cancel"):
		return normalize.StatusWithdrawn
	case strings.Contains(lowered, "suspend"):
		return normalize.StatusSuspended
	default:
		return normalize.StatusPending
	}
}
