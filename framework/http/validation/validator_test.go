package validation_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/km-arc/tracker/framework/http/validation"
)

// ── helpers ──────────────────────────────────────────────────────────────────

// pass asserts the validator passes for the given data/rules.
func pass(t *testing.T, label string, data map[string]string, rules validation.Rules) {
	t.Helper()
	t.Run(label, func(t *testing.T) {
		v := validation.Make(data, rules)
		if v.Fails() {
			t.Errorf("expected PASS, got FAIL, errors: %+v", v.Errors().Bag)
		}
	})
}

// fail asserts the validator fails with an error on the given field.
func fail(t *testing.T, label, field string, data map[string]string, rules validation.Rules) {
	t.Helper()
	t.Run(label, func(t *testing.T) {
		v := validation.Make(data, rules)
		if v.Passes() {
			t.Errorf("expected FAIL on field %q, but validator PASSED", field)
		}
		if v.Errors().First(field) == "" {
			t.Errorf("expected error on field %q, but none found. Errors: %+v", field, v.Errors().Bag)
		}
	})
}

// ── required ─────────────────────────────────────────────────────────────────

func TestValidation_Required(t *testing.T) {
	r := validation.Rules{"title": "required"}

	pass(t, "non-empty value", map[string]string{"title": "Dreams"}, r)
	fail(t, "empty string", "title", map[string]string{"title": ""}, r)
	fail(t, "whitespace only", "title", map[string]string{"title": "   "}, r)
	fail(t, "missing key", "title", map[string]string{}, r)
}

func TestValidation_Required_MessageFormat(t *testing.T) {
	v := validation.Make(map[string]string{"title": ""}, validation.Rules{"title": "required"})
	_ = v.Fails()
	if got, want := v.Errors().First("title"), "The title field is required."; got != want {
		t.Errorf("message: got %q want %q", got, want)
	}
}

// ── length ───────────────────────────────────────────────────────────────────

func TestValidation_Length(t *testing.T) {
	pass(t, "min exact", map[string]string{"title": "abc"}, validation.Rules{"title": "min:3"})
	fail(t, "min short", "title", map[string]string{"title": "ab"}, validation.Rules{"title": "min:3"})
	pass(t, "max exact", map[string]string{"title": "hello"}, validation.Rules{"title": "max:5"})
	fail(t, "max long", "title", map[string]string{"title": "toolong"}, validation.Rules{"title": "max:5"})
	pass(t, "between", map[string]string{"pin": "12345"}, validation.Rules{"pin": "between:4,6"})
	fail(t, "between short", "pin", map[string]string{"pin": "123"}, validation.Rules{"pin": "between:4,6"})
	pass(t, "unicode rune count", map[string]string{"title": "日本語"}, validation.Rules{"title": "min:3"})
	fail(t, "unicode too short", "title", map[string]string{"title": "日本"}, validation.Rules{"title": "min:3"})
}

// ── numeric / integer / boolean ───────────────────────────────────────────────

func TestValidation_Numbers(t *testing.T) {
	pass(t, "numeric float", map[string]string{"rating": "8.5"}, validation.Rules{"rating": "numeric"})
	fail(t, "numeric mixed", "rating", map[string]string{"rating": "12abc"}, validation.Rules{"rating": "numeric"})
	pass(t, "integer", map[string]string{"episode": "-3"}, validation.Rules{"episode": "integer"})
	fail(t, "integer float", "episode", map[string]string{"episode": "3.14"}, validation.Rules{"episode": "integer"})
	pass(t, "gte boundary", map[string]string{"episode": "1"}, validation.Rules{"episode": "gte:1"})
	fail(t, "gte below", "episode", map[string]string{"episode": "0"}, validation.Rules{"episode": "gte:1"})
	pass(t, "lte boundary", map[string]string{"score": "10"}, validation.Rules{"score": "lte:10"})
	fail(t, "lte above", "score", map[string]string{"score": "11"}, validation.Rules{"score": "lte:10"})
}

func TestValidation_Boolean(t *testing.T) {
	r := validation.Rules{"watched": "boolean"}

	for _, v := range []string{"true", "false", "1", "0", "yes", "no", "True", "False"} {
		pass(t, "boolean "+v, map[string]string{"watched": v}, r)
	}
	fail(t, "invalid bool", "watched", map[string]string{"watched": "maybe"}, r)
}

// ── in / not_in / formats ─────────────────────────────────────────────────────

func TestValidation_Sets(t *testing.T) {
	pass(t, "in", map[string]string{"status": "watching"}, validation.Rules{"status": "in:watching,completed"})
	fail(t, "not in list", "status", map[string]string{"status": "dropped"}, validation.Rules{"status": "in:watching,completed"})
	pass(t, "not_in", map[string]string{"status": "watching"}, validation.Rules{"status": "not_in:deleted"})
	fail(t, "not_in hit", "status", map[string]string{"status": "deleted"}, validation.Rules{"status": "not_in:deleted"})
}

func TestValidation_Formats(t *testing.T) {
	pass(t, "alpha_dash", map[string]string{"id": "sousou_no-frieren"}, validation.Rules{"id": "alpha_dash"})
	fail(t, "alpha_dash space", "id", map[string]string{"id": "sousou no"}, validation.Rules{"id": "alpha_dash"})
	pass(t, "url https", map[string]string{"link": "https://youtu.be/x"}, validation.Rules{"link": "url"})
	fail(t, "url ftp", "link", map[string]string{"link": "ftp://x"}, validation.Rules{"link": "url"})
	pass(t, "regex", map[string]string{"year": "2023"}, validation.Rules{"year": `regex:^\d{4}$`})
	fail(t, "regex miss", "year", map[string]string{"year": "23"}, validation.Rules{"year": `regex:^\d{4}$`})
}

// ── nullable / sometimes ──────────────────────────────────────────────────────

func TestValidation_Optional(t *testing.T) {
	pass(t, "empty with nullable", map[string]string{"notes": ""}, validation.Rules{"notes": "nullable|min:10"})
	fail(t, "present but short", "notes", map[string]string{"notes": "short"}, validation.Rules{"notes": "nullable|min:10"})
	pass(t, "absent with sometimes", map[string]string{}, validation.Rules{"nickname": "sometimes|min:3"})
}

// ── Errors bag ────────────────────────────────────────────────────────────────

func TestErrors_RepeatedCallsDoNotDuplicate(t *testing.T) {
	v := validation.Make(map[string]string{}, validation.Rules{"title": "required"})
	_ = v.Fails()
	_ = v.Passes()

	if got := v.Errors().Bag["title"]; len(got) != 1 {
		t.Errorf("got %v, want a single message", got)
	}
}

func TestErrors_MessagesAreOrderedByField(t *testing.T) {
	v := validation.Make(map[string]string{}, validation.Rules{
		"title":  "required",
		"artist": "required",
	})

	got := v.Errors().Messages()
	want := []string{"The artist field is required.", "The title field is required."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestErrors_JSONShape(t *testing.T) {
	v := validation.Make(map[string]string{}, validation.Rules{"title": "required"})
	_ = v.Fails()

	raw, err := json.Marshal(v.Errors())
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"errors":{"title":["The title field is required."]}}`; string(raw) != want {
		t.Errorf("got %s, want %s", raw, want)
	}
}

// ── Payload / Check ───────────────────────────────────────────────────────────

type song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Year   int    `json:"year"`
}

func TestPayload(t *testing.T) {
	check := validation.Payload[song](validation.Rules{
		"title":  "required",
		"artist": "required",
		"year":   "integer|gte:1900",
	})

	tests := []struct {
		name string
		in   song
		want []string
	}{
		{"valid", song{Title: "Dreams", Artist: "Fleetwood Mac", Year: 1977}, nil},
		{"missing fields", song{Year: 1977}, []string{"The artist field is required.", "The title field is required."}},
		{"numeric field", song{Title: "a", Artist: "b", Year: 12}, []string{"The year must be greater than or equal to 1900."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := check(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheck_UntypedPayloads(t *testing.T) {
	rules := validation.Rules{"id": "required"}

	if got := validation.Check(map[string]any{"id": "frieren"}, rules); got != nil {
		t.Errorf("map payload: got %v", got)
	}
	if got := validation.Check(nil, rules); len(got) != 1 {
		t.Errorf("nil payload: got %v, want one message", got)
	}
	if got := validation.Check(map[string]any{"id": nil}, rules); len(got) != 1 {
		t.Errorf("null field: got %v, want one message", got)
	}
}
