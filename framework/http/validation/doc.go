// Package validation checks flat string inputs against pipe-separated rule
// strings and adapts the result to command and query validators.
//
// # Basic Usage
//
//	v := validation.Make(map[string]string{
//	    "title":  "Dreams",
//	    "artist": "",
//	}, validation.Rules{
//	    "title":  "required|max:200",
//	    "artist": "required",
//	})
//
//	if v.Fails() {
//	    // v.Errors().Bag: map[string][]string
//	    // JSON: {"errors": {"artist": ["The artist field is required."]}}
//	}
//
// Fields are checked in sorted order and each field stops at its first
// failing rule, so the messages for a given input are always the same.
//
// # Bus validators
//
// Payload turns rules into a typed validator for bus.Handle; Check does the
// same for untyped payloads. Both read fields through the payload's JSON
// form and return the flattened messages.
//
// # Available Rules
//
//   - required          non-empty after trimming
//   - string            always passes
//   - nullable          empty values skip the remaining rules
//   - sometimes         same as nullable, for optional fields
//   - numeric, integer  parseable as float64 / int
//   - boolean           true/false/1/0/yes/no, any case
//   - min:n, max:n      UTF-8 character count bounds
//   - between:lo,hi     character count within [lo, hi]
//   - in:a,b / not_in:a,b
//   - alpha_dash        letters, numbers, dashes, underscores
//   - url               starts with http:// or https://
//   - regex:pattern
//   - gte:n, lte:n      numeric bounds
//
// Unknown rule names are ignored.
package validation
