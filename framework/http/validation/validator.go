package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation messages per field.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

// Add appends msg to field.
func (e *Errors) Add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Messages flattens the bag: fields in sorted order, each field's messages
// in the order they were added.
func (e *Errors) Messages() []string {
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var out []string
	for _, f := range fields {
		out = append(out, e.Bag[f]...)
	}
	return out
}

// ── Validator ────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"title": "required|max:200", "episode": "integer|gte:1"}
type Rules map[string]string

// Validator validates a flat map of input values. Rules run once; later
// calls to Fails, Passes or Errors reuse the result.
type Validator struct {
	data   map[string]string
	rules  Rules
	errors *Errors
	ran    bool
}

// Make creates a new Validator.
func Make(data map[string]string, rules Rules) *Validator {
	return &Validator{
		data:   data,
		rules:  rules,
		errors: &Errors{},
	}
}

// Fails runs validation and returns true if any rule fails.
func (v *Validator) Fails() bool {
	v.validate()
	return v.errors.Has()
}

// Passes runs validation and returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors {
	v.validate()
	return v.errors
}

// ── Core validation loop ─────────────────────────────────────────────────────

func (v *Validator) validate() {
	if v.ran {
		return
	}
	v.ran = true

	fields := make([]string, 0, len(v.rules))
	for f := range v.rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		value := v.data[field]
		for _, rule := range strings.Split(v.rules[field], "|") {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}
			// min:3 → name=min, param=3
			name, param, _ := strings.Cut(rule, ":")

			check, ok := ruleSet[name]
			if !ok {
				continue
			}
			msg, next := check(field, value, param)
			if msg != "" {
				v.errors.Add(field, msg)
			}
			if !next {
				break // bail on the first failure for this field
			}
		}
	}
}

// rule checks one value. It returns a message when the value fails and
// whether later rules for the field should still run.
type rule func(field, value, param string) (msg string, next bool)

func ok() (string, bool) { return "", true }

func failf(format string, args ...any) (string, bool) {
	return fmt.Sprintf(format, args...), false
}

var ruleSet = map[string]rule{
	"required": func(field, value, _ string) (string, bool) {
		if strings.TrimSpace(value) == "" {
			return failf("The %s field is required.", field)
		}
		return ok()
	},
	// Every input is a string already.
	"string": func(string, string, string) (string, bool) { return ok() },
	"nullable": func(_, value, _ string) (string, bool) {
		return "", value != ""
	},
	"sometimes": func(_, value, _ string) (string, bool) {
		return "", value != ""
	},
	"numeric": func(field, value, _ string) (string, bool) {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return failf("The %s must be a number.", field)
		}
		return ok()
	},
	"integer": func(field, value, _ string) (string, bool) {
		if _, err := strconv.Atoi(value); err != nil {
			return failf("The %s must be an integer.", field)
		}
		return ok()
	},
	"boolean": func(field, value, _ string) (string, bool) {
		switch strings.ToLower(value) {
		case "true", "false", "1", "0", "yes", "no":
			return ok()
		}
		return failf("The %s field must be true or false.", field)
	},
	"min": func(field, value, param string) (string, bool) {
		n, _ := strconv.Atoi(param)
		if utf8.RuneCountInString(value) < n {
			return failf("The %s must be at least %d characters.", field, n)
		}
		return ok()
	},
	"max": func(field, value, param string) (string, bool) {
		n, _ := strconv.Atoi(param)
		if utf8.RuneCountInString(value) > n {
			return failf("The %s may not be greater than %d characters.", field, n)
		}
		return ok()
	},
	"between": func(field, value, param string) (string, bool) {
		lo, hi, found := strings.Cut(param, ",")
		if !found {
			return ok()
		}
		min, _ := strconv.Atoi(strings.TrimSpace(lo))
		max, _ := strconv.Atoi(strings.TrimSpace(hi))
		if l := utf8.RuneCountInString(value); l < min || l > max {
			return failf("The %s must be between %d and %d characters.", field, min, max)
		}
		return ok()
	},
	"in": func(field, value, param string) (string, bool) {
		for _, a := range strings.Split(param, ",") {
			if strings.TrimSpace(a) == value {
				return ok()
			}
		}
		return failf("The selected %s is invalid.", field)
	},
	"not_in": func(field, value, param string) (string, bool) {
		for _, d := range strings.Split(param, ",") {
			if strings.TrimSpace(d) == value {
				return failf("The selected %s is invalid.", field)
			}
		}
		return ok()
	},
	"alpha_dash": func(field, value, _ string) (string, bool) {
		if !alphaDash.MatchString(value) {
			return failf("The %s may only contain letters, numbers, dashes and underscores.", field)
		}
		return ok()
	},
	"url": func(field, value, _ string) (string, bool) {
		if !httpURL.MatchString(value) {
			return failf("The %s must be a valid URL.", field)
		}
		return ok()
	},
	"regex": func(field, value, param string) (string, bool) {
		re, err := regexp.Compile(param)
		if err != nil || !re.MatchString(value) {
			return failf("The %s format is invalid.", field)
		}
		return ok()
	},
	"gte": func(field, value, param string) (string, bool) {
		f, _ := strconv.ParseFloat(value, 64)
		t, _ := strconv.ParseFloat(param, 64)
		if f < t {
			return failf("The %s must be greater than or equal to %s.", field, param)
		}
		return ok()
	},
	"lte": func(field, value, param string) (string, bool) {
		f, _ := strconv.ParseFloat(value, 64)
		t, _ := strconv.ParseFloat(param, 64)
		if f > t {
			return failf("The %s must be less than or equal to %s.", field, param)
		}
		return ok()
	},
}

var (
	alphaDash = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	httpURL   = regexp.MustCompile(`^https?://`)
)

// ── Payload validators ───────────────────────────────────────────────────────

// Payload builds a bus validator for payloads of type P. The payload is
// flattened to strings through its JSON form, so rule fields use the json
// tag names.
//
//	bus.Handle(cmds, AddSong, addSong, validation.Payload[AddSongInput](validation.Rules{
//	    "title":  "required|max:200",
//	    "artist": "required",
//	}))
func Payload[P any](rules Rules) func(P) []string {
	return func(p P) []string {
		return Check(p, rules)
	}
}

// Check validates any JSON-encodable value against rules and returns the
// flattened messages, or nil when it passes.
func Check(payload any, rules Rules) []string {
	data, err := flatten(payload)
	if err != nil {
		return []string{fmt.Sprintf("The payload could not be read: %v.", err)}
	}
	v := Make(data, rules)
	if v.Passes() {
		return nil
	}
	return v.Errors().Messages()
}

// flatten maps the top-level fields of payload to strings. Nested values
// keep their JSON text; null becomes "".
func flatten(payload any) (map[string]string, error) {
	if m, isMap := payload.(map[string]string); isMap {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		if string(v) == "null" {
			out[k] = ""
			continue
		}
		out[k] = string(v)
	}
	return out, nil
}
