package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	slugMaxLen = 80

	// unwrapMaxDepth bounds recursion over untrusted nested payloads.
	unwrapMaxDepth = 5
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Text returns the trimmed value, or fallback when the value is empty after
// trimming.
func Text(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

// Slug lowercases the value, collapses non-alphanumeric runs to hyphens, and
// truncates to a stable maximum length.
func Slug(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = slugPattern.ReplaceAllString(value, "-")
	value = strings.Trim(value, "-")
	if len(value) > slugMaxLen {
		value = strings.Trim(value[:slugMaxLen], "-")
	}
	return value
}

// TitleCase lowercases the value and capitalizes the first letter of each
// whitespace-delimited token.
func TitleCase(value string) string {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(value)))
	for i, token := range tokens {
		r, size := utf8.DecodeRuneInString(token)
		tokens[i] = string(unicode.ToUpper(r)) + token[size:]
	}
	return strings.Join(tokens, " ")
}

// wrapperKeys are tried in order when unwrapping JSON-LD style value objects.
var wrapperKeys = []string{"value", "@value", "label", "name", "title", "notation", "@id"}

// Unwrap resolves nested wrapper objects commonly found in linked-data feeds
// into a flat string. Arrays join their non-empty unwrapped items with ", ";
// objects without a recognized wrapper key join all member values. Recursion
// is depth-capped because upstream payloads are untrusted.
func Unwrap(value any) string {
	return unwrap(value, 0)
}

func unwrap(value any, depth int) string {
	if value == nil || depth > unwrapMaxDepth {
		return ""
	}

	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		var parts []string
		for _, item := range v {
			if s := unwrap(item, depth+1); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		for _, key := range wrapperKeys {
			if inner, ok := v[key]; ok {
				if s := unwrap(inner, depth+1); s != "" {
					return s
				}
			}
		}
		// No wrapper key; join member values in key order for determinism.
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var parts []string
		for _, key := range keys {
			if s := unwrap(v[key], depth+1); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
