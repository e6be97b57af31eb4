// Package validate implements the gateway's request validator
// (component H): a descriptor-driven structural check over a method's
// dynamic parameter map, lenient for methods with no registered schema.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/eugener/gatekeeper/internal"
)

// Result is the outcome of a validate call.
type Result struct {
	OK         bool
	Normalised map[string]any
	Details    []string
}

// Error joins Details with "; ", matching spec's dotted-pointer-joined
// error path format.
func (r Result) Error() string {
	return strings.Join(r.Details, "; ")
}

// Validate checks params against desc. A nil descriptor means the method
// has no registered schema: validation passes leniently, forwarding
// params unchanged for forward compatibility.
func Validate(desc *gateway.MethodDescriptor, params map[string]any) Result {
	if desc == nil {
		return Result{OK: true, Normalised: params}
	}

	var details []string

	for _, name := range desc.Required {
		if _, ok := params[name]; !ok {
			details = append(details, fmt.Sprintf("/%s; required field missing", name))
		}
	}

	for field, schema := range desc.Schema {
		v, present := params[field]
		if !present {
			continue
		}
		if errs := checkField("/"+field, v, schema); len(errs) > 0 {
			details = append(details, errs...)
		}
	}

	for _, rule := range desc.CrossField {
		if !satisfiesAnyOf(params, rule.AnyOf) {
			details = append(details, fmt.Sprintf("/; %s", rule.Description))
		}
	}

	if len(details) > 0 {
		return Result{OK: false, Details: details}
	}
	return Result{OK: true, Normalised: params}
}

func satisfiesAnyOf(params map[string]any, groups [][]string) bool {
	if len(groups) == 0 {
		return true
	}
	for _, group := range groups {
		if allPresent(params, group) {
			return true
		}
	}
	return false
}

func allPresent(params map[string]any, fields []string) bool {
	for _, f := range fields {
		if _, ok := params[f]; !ok {
			return false
		}
	}
	return true
}

// checkField validates v against schema. path is the dotted-pointer
// location to report in error details, already prefixed with "/".
func checkField(path string, v any, schema gateway.FieldSchema) []string {
	var errs []string

	switch schema.Type {
	case "string":
		s, ok := v.(string)
		if !ok {
			return []string{path + "; expected string"}
		}
		if len(schema.Enum) > 0 && !inEnum(s, schema.Enum) {
			errs = append(errs, fmt.Sprintf("%s; must be one of %s", path, strings.Join(schema.Enum, ", ")))
		}
		// For strings, Min/Max bound the length in characters.
		errs = append(errs, checkLength(path, utf8.RuneCountInString(s), schema)...)
	case "integer", "number":
		n, ok := asFloat(v)
		if !ok {
			return []string{path + "; expected " + schema.Type}
		}
		if schema.Min != nil && n < *schema.Min {
			errs = append(errs, fmt.Sprintf("%s; must be >= %v", path, *schema.Min))
		}
		if schema.Max != nil && n > *schema.Max {
			errs = append(errs, fmt.Sprintf("%s; must be <= %v", path, *schema.Max))
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			errs = append(errs, path+"; expected boolean")
		}
	case "array":
		arr, ok := v.([]any)
		if !ok {
			return []string{path + "; expected array"}
		}
		// For arrays, Min/Max bound the number of elements.
		errs = append(errs, checkLength(path, len(arr), schema)...)
		if schema.Items != nil {
			for i, item := range arr {
				itemPath := fmt.Sprintf("%s/%d", path, i)
				errs = append(errs, checkField(itemPath, item, *schema.Items)...)
			}
		}
	case "object":
		if _, ok := v.(map[string]any); !ok {
			errs = append(errs, path+"; expected object")
		}
		// Unknown nested fields are preserved, not rejected (passthrough).
	}

	return errs
}

func checkLength(path string, n int, schema gateway.FieldSchema) []string {
	var errs []string
	if schema.Min != nil && float64(n) < *schema.Min {
		errs = append(errs, fmt.Sprintf("%s; length must be >= %v", path, *schema.Min))
	}
	if schema.Max != nil && float64(n) > *schema.Max {
		errs = append(errs, fmt.Sprintf("%s; length must be <= %v", path, *schema.Max))
	}
	return errs
}

func inEnum(s string, enum []string) bool {
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
