package registry

import (
	"bytes"
	"encoding/json"
	"strings"
)

// OptionalMarker inside a schema hint exempts the field from the required
// check: `"str (optional)"`.
const OptionalMarker = "(optional)"

// SchemaField declares one field of a workflow's initial state. Hint is a
// human-readable type hint; recognized prefixes (str, float, int, list,
// dict, map) are also enforced by Validate.
type SchemaField struct {
	Name string
	Hint string
}

// Optional reports whether the field carries the optional marker.
func (f SchemaField) Optional() bool {
	return strings.Contains(f.Hint, OptionalMarker)
}

// Schema is the ordered initial-state declaration of a workflow. Order is
// meaningful: validation reports missing fields in declaration order, and
// the JSON rendering preserves it.
type Schema []SchemaField

// MarshalJSON renders the schema as a JSON object in declaration order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		hint, err := json.Marshal(f.Hint)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(hint)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a JSON object; field order follows the encoded
// object.
func (s *Schema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return &json.UnmarshalTypeError{Value: "non-object", Type: nil}
	}
	var out Schema
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var hint string
		if err := dec.Decode(&hint); err != nil {
			return err
		}
		out = append(out, SchemaField{Name: key, Hint: hint})
	}
	*s = out
	return nil
}

// FieldNames returns the field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Capabilities declares what a workflow supports, for filtering and for
// clients that adapt their UI to the graph.
type Capabilities struct {
	SupportsInterrupts bool     `json:"supports_interrupts"`
	SupportsParallel   bool     `json:"supports_parallel"`
	RequiresApproval   bool     `json:"requires_approval"`
	SupportsRollback   bool     `json:"supports_rollback"`
	Domain             []string `json:"domain_capabilities,omitempty"`
}

// Descriptor is the immutable metadata of a registered workflow.
type Descriptor struct {
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Industry       string       `json:"industry"`
	Tags           []string     `json:"tags,omitempty"`
	Schema         Schema       `json:"initial_state_schema"`
	EstimatedSteps int          `json:"estimated_steps"`
	Capabilities   Capabilities `json:"capabilities"`
}

// HasTag reports whether the descriptor carries tag.
func (d Descriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
