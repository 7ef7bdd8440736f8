package normalize

import (
	"strings"
	"testing"
)

func TestText(t *testing.T) {
	if got := Text("  Quarry Extension  ", "fallback"); got != "Quarry Extension" {
		t.Errorf("Text trimmed = %q", got)
	}
	if got := Text("   ", "fallback"); got != "fallback" {
		t.Errorf("Text blank = %q, want fallback", got)
	}
	if got := Text("", "fallback"); got != "fallback" {
		t.Errorf("Text empty = %q, want fallback", got)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"River Dee Abstraction (Phase 2)": "river-dee-abstraction-phase-2",
		"  --Already--Hyphenated--  ":     "already-hyphenated",
		"ÜBER plan":                       "ber-plan",
		"":                                "",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}

	long := strings.Repeat("waste-transfer-", 20)
	if got := Slug(long); len(got) > 80 {
		t.Errorf("Slug did not truncate: %d chars", len(got))
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("awaiting FURTHER information"); got != "Awaiting Further Information" {
		t.Errorf("TitleCase = %q", got)
	}
	if got := TitleCase(""); got != "" {
		t.Errorf("TitleCase empty = %q", got)
	}
}

func TestTitleCaseMultibyteFirstRune(t *testing.T) {
	if got := TitleCase("éire status"); got != "Éire Status" {
		t.Errorf("TitleCase = %q", got)
	}
	if got := TitleCase("ÉIRE"); got != "Éire" {
		t.Errorf("TitleCase = %q", got)
	}
}

func TestUnwrapWrapperObjects(t *testing.T) {
	value := map[string]any{
		"value": map[string]any{
			"label": "Water Abstraction Licence",
		},
	}
	if got := Unwrap(value); got != "Water Abstraction Licence" {
		t.Errorf("Unwrap nested wrapper = %q", got)
	}
}

func TestUnwrapKeyOrder(t *testing.T) {
	// "value" wins over "label" even when both are present.
	value := map[string]any{
		"label": "second",
		"value": "first",
	}
	if got := Unwrap(value); got != "first" {
		t.Errorf("Unwrap = %q, want first", got)
	}
}

func TestUnwrapArrayJoins(t *testing.T) {
	value := []any{
		map[string]any{"name": "Mining"},
		"",
		map[string]any{"name": "Drainage"},
	}
	if got := Unwrap(value); got != "Mining, Drainage" {
		t.Errorf("Unwrap array = %q", got)
	}
}

func TestUnwrapPlainObjectJoinsMembers(t *testing.T) {
	value := map[string]any{
		"b": "beta",
		"a": "alpha",
	}
	if got := Unwrap(value); got != "alpha, beta" {
		t.Errorf("Unwrap plain object = %q", got)
	}
}

func TestUnwrapScalars(t *testing.T) {
	if got := Unwrap(float64(42)); got != "42" {
		t.Errorf("Unwrap number = %q", got)
	}
	if got := Unwrap(true); got != "true" {
		t.Errorf("Unwrap bool = %q", got)
	}
	if got := Unwrap(nil); got != "" {
		t.Errorf("Unwrap nil = %q", got)
	}
}

func TestUnwrapDepthCapped(t *testing.T) {
	// Build a wrapper chain deeper than the cap; Unwrap must terminate and
	// return empty rather than recurse unboundedly.
	var value any = "bottom"
	for i := 0; i < 50; i++ {
		value = map[string]any{"value": value}
	}
	if got := Unwrap(value); got != "" {
		t.Errorf("Unwrap beyond depth cap = %q, want empty", got)
	}
}
