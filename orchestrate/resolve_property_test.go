package orchestrate

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// Property: resolving input against results never errors, never drops keys,
// and replaces exactly the tokens whose paths exist in the results map.
func TestResolveInputProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		stepID := rapid.StringMatching(`[a-z][a-z0-9_]{0,8}`).Draw(t, "stepID")
		field := rapid.StringMatching(`[a-z][a-z0-9_]{0,8}`).Draw(t, "field")
		value := rapid.String().Draw(t, "value")

		results := map[string]any{
			stepID: map[string]any{field: value},
		}

		token := fmt.Sprintf("{{%s.%s}}", stepID, field)
		prefix := rapid.StringMatching(`[^{}]{0,10}`).Draw(t, "prefix")

		input := map[string]any{
			"whole":    token,
			"embedded": prefix + token,
			"plain":    prefix,
			"number":   rapid.Int().Draw(t, "number"),
		}

		resolved := resolveInput(input, results)

		if len(resolved) != len(input) {
			t.Fatalf("key count changed: %d != %d", len(resolved), len(input))
		}

		// A whole-string token takes the referenced value with type intact.
		if resolved["whole"] != value {
			t.Fatalf("whole token not resolved: %v", resolved["whole"])
		}

		// Embedded tokens are stringified in place.
		embedded, ok := resolved["embedded"].(string)
		if !ok {
			t.Fatalf("embedded result not a string: %T", resolved["embedded"])
		}
		if embedded != prefix+value {
			t.Fatalf("embedded token not resolved: %q", embedded)
		}

		// Token-free strings and non-strings pass through untouched.
		if resolved["plain"] != prefix {
			t.Fatalf("plain string changed: %v", resolved["plain"])
		}
		if resolved["number"] != input["number"] {
			t.Fatalf("non-string changed: %v", resolved["number"])
		}
	})
}

// Property: tokens referencing absent steps stay byte-for-byte literal.
func TestResolveInputUnresolvableStaysLiteral(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		path := rapid.StringMatching(`[a-z][a-z0-9_.]{0,15}`).Draw(t, "path")
		token := "{{" + path + "}}"

		resolved := resolveInput(map[string]any{"ref": token}, map[string]any{})
		if resolved["ref"] != token {
			t.Fatalf("unresolvable token changed: %v", resolved["ref"])
		}
	})
}

func TestResolveInputDeepNesting(t *testing.T) {
	results := map[string]any{"a": map[string]any{"b": map[string]any{"c": "leaf"}}}
	resolved := resolveInput(map[string]any{
		"deep": map[string]any{"x": []any{"{{a.b.c}}"}},
	}, results)

	deep := resolved["deep"].(map[string]any)
	list := deep["x"].([]any)
	if list[0] != "leaf" {
		t.Fatalf("nested token not resolved: %v", list[0])
	}
}
