package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Validate checks a caller-supplied initial state against the schema
// declared by the named workflow. Required fields (those without the
// optional marker) must be present; present values must match their hint
// when the hint is one of the recognized kinds. Base run-state fields are
// never part of a schema, so their omission never fails validation.
func (r *Registry) Validate(name string, initial map[string]any) error {
	r.mu.Lock()
	def, ok := r.defs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGraph, name)
	}

	var missing []string
	for _, f := range def.Schema {
		if f.Optional() {
			continue
		}
		if _, present := initial[f.Name]; !present {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Graph: name, Missing: missing}
	}

	for _, f := range def.Schema {
		v, present := initial[f.Name]
		if !present || v == nil {
			continue
		}
		expected, enforced := expectedKind(f.Hint)
		if !enforced {
			continue
		}
		if got := jsonKind(v); got != expected {
			return &ValidationError{Graph: name, Field: f.Name, Expected: expected, Got: got}
		}
	}
	return nil
}

// expectedKind maps a schema hint to the JSON kind Validate enforces.
// Unrecognized hints are advisory only.
func expectedKind(hint string) (string, bool) {
	h := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(hint, OptionalMarker, "")))
	switch {
	case strings.HasPrefix(h, "str"):
		return "string", true
	case strings.HasPrefix(h, "float"), strings.HasPrefix(h, "int"):
		return "number", true
	case strings.HasPrefix(h, "list"):
		return "array", true
	case strings.HasPrefix(h, "dict"), strings.HasPrefix(h, "map"):
		return "object", true
	}
	return "", false
}

// jsonKind names the JSON kind of a decoded value. Typed slices and maps
// from in-process callers classify like their decoded equivalents.
func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
