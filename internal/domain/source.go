package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SourceType identifies how a source's records are fetched.
type SourceType string

const (
	SourceTypeLocalFile       SourceType = "local_file"
	SourceTypeArcGISMapServer SourceType = "arcgis_mapserver"
	SourceTypeJSONURL         SourceType = "json_url"
)

const (
	DefaultPollIntervalHours = 24
	DefaultTimeoutMs         = 15000
	MinTimeoutMs             = 1000
	MaxTimeoutMs             = 120000
)

// ValidSourceType reports whether t is one of the supported source types.
func ValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypeLocalFile, SourceTypeArcGISMapServer, SourceTypeJSONURL:
		return true
	}
	return false
}

// SourceDefinition describes one external permit feed. Definitions are managed
// by operators and read-only to the sync engine within a run.
type SourceDefinition struct {
	Key               string            `json:"key"`
	Name              string            `json:"name"`
	Type              SourceType        `json:"type"`
	Country           string            `json:"country,omitempty"`
	Enabled           *bool             `json:"enabled,omitempty"`
	PollIntervalHours int               `json:"poll_interval_hours,omitempty"`
	URL               string            `json:"url,omitempty"`
	Path              string            `json:"path,omitempty"`
	Query             map[string]string `json:"query,omitempty"`
	RecordsPath       string            `json:"records_path,omitempty"`
	FieldMap          map[string]any    `json:"field_map,omitempty"`
	Defaults          map[string]string `json:"defaults,omitempty"`
	Transform         string            `json:"transform,omitempty"`
	TimeoutMs         int               `json:"timeout_ms,omitempty"`
	IncludeKeywords   []string          `json:"include_keywords,omitempty"`
	FilterFields      []string          `json:"filter_fields,omitempty"`
}

// IsEnabled treats a missing enabled flag as enabled.
func (s SourceDefinition) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// PollInterval returns the configured poll interval, falling back to the
// default when unset or non-positive.
func (s SourceDefinition) PollInterval() time.Duration {
	hours := s.PollIntervalHours
	if hours <= 0 {
		hours = DefaultPollIntervalHours
	}
	return time.Duration(hours) * time.Hour
}

// Timeout returns the per-source request timeout clamped to the accepted range.
func (s SourceDefinition) Timeout() time.Duration {
	ms := s.TimeoutMs
	if ms == 0 {
		ms = DefaultTimeoutMs
	}
	if ms < MinTimeoutMs {
		ms = MinTimeoutMs
	}
	if ms > MaxTimeoutMs {
		ms = MaxTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// FieldMapEntry resolves the mapped source field names for a canonical field.
// A string entry maps to a single source field; a list entry maps to an
// ordered set of source fields whose values are joined.
func (s SourceDefinition) FieldMapEntry(field string) []string {
	raw, ok := s.FieldMap[field]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if name, ok := item.(string); ok && strings.TrimSpace(name) != "" {
				names = append(names, name)
			}
		}
		return names
	}
	return nil
}

// patchable is the closed set of keys ApplyPatch recognizes. Anything else in
// a patch is silently ignored.
var patchable = map[string]struct{}{
	"name": {}, "country": {}, "enabled": {}, "poll_interval_hours": {},
	"type": {}, "path": {}, "url": {}, "records_path": {}, "transform": {},
	"query": {}, "field_map": {}, "defaults": {}, "timeout_ms": {},
}

// ApplyPatch applies a whitelist-based partial update to the source.
// Unrecognized keys are ignored; recognized keys with invalid values fail the
// whole patch without mutating the source.
func (s *SourceDefinition) ApplyPatch(patch map[string]any) error {
	next := *s

	for key, value := range patch {
		if _, ok := patchable[key]; !ok {
			continue
		}
		switch key {
		case "name":
			next.Name = asString(value)
		case "country":
			next.Country = asString(value)
		case "transform":
			next.Transform = asString(value)
		case "path":
			next.Path = asString(value)
		case "url":
			next.URL = asString(value)
		case "records_path":
			next.RecordsPath = asString(value)
		case "enabled":
			enabled := asBool(value)
			next.Enabled = &enabled
		case "type":
			t := SourceType(asString(value))
			if !ValidSourceType(t) {
				return fmt.Errorf("%w: %q", ErrInvalidSourceType, value)
			}
			next.Type = t
		case "poll_interval_hours":
			hours, ok := asInt(value)
			if !ok || hours <= 0 {
				hours = DefaultPollIntervalHours
			}
			next.PollIntervalHours = hours
		case "timeout_ms":
			ms, ok := asInt(value)
			if !ok || ms < MinTimeoutMs || ms > MaxTimeoutMs {
				return fmt.Errorf("%w: got %v", ErrInvalidTimeout, value)
			}
			next.TimeoutMs = ms
		case "query":
			obj, err := asStringMap(key, value)
			if err != nil {
				return err
			}
			next.Query = obj
		case "defaults":
			obj, err := asStringMap(key, value)
			if err != nil {
				return err
			}
			next.Defaults = obj
		case "field_map":
			obj, err := asObjectMap(key, value)
			if err != nil {
				return err
			}
			next.FieldMap = obj
		}
	}

	*s = next
	return nil
}

func asString(value any) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func asBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && parsed
	}
	return false
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if math.Mod(v, 1) != 0 {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func asObjectMap(key string, value any) (map[string]any, error) {
	if value == nil {
		return nil, nil
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidShape, key)
	}
	return obj, nil
}

func asStringMap(key string, value any) (map[string]string, error) {
	obj, err := asObjectMap(key, value)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out, nil
}
