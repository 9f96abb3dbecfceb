package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hotelRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	def := demoDefinition(t, "hotel_o2c", "hotel")
	def.Schema = Schema{
		{Name: "reservation_id", Hint: "str"},
		{Name: "guest_name", Hint: "str"},
		{Name: "room_number", Hint: "str"},
		{Name: "check_in_date", Hint: "str"},
		{Name: "check_out_date", Hint: "str"},
	}
	r.MustRegister(def)
	return r
}

func TestValidate_MissingFieldsInSchemaOrder(t *testing.T) {
	r := hotelRegistry(t)

	err := r.Validate("hotel_o2c", map[string]any{
		"reservation_id": "RES-001",
		"guest_name":     "John Doe",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"room_number", "check_in_date", "check_out_date"}, verr.Missing)
	assert.Equal(t, "Missing required fields: room_number, check_in_date, check_out_date", verr.Error())
}

func TestValidate_AcceptsCompleteState(t *testing.T) {
	r := hotelRegistry(t)

	err := r.Validate("hotel_o2c", map[string]any{
		"reservation_id": "RES-001",
		"guest_name":     "John Doe",
		"room_number":    "101",
		"check_in_date":  "2025-01-15",
		"check_out_date": "2025-01-16",
	})
	assert.NoError(t, err)
}

func TestValidate_OptionalFieldsMayBeAbsent(t *testing.T) {
	r := New()
	def := demoDefinition(t, "hospital_admissions", "hospital")
	def.Schema = Schema{
		{Name: "patient_name", Hint: "str"},
		{Name: "clinical_protocol", Hint: "str (optional)"},
	}
	r.MustRegister(def)

	assert.NoError(t, r.Validate("hospital_admissions", map[string]any{
		"patient_name": "Jane Roe",
	}))
}

func TestValidate_TypeMismatches(t *testing.T) {
	r := New()
	def := demoDefinition(t, "manufacturing_production", "manufacturing")
	def.Schema = Schema{
		{Name: "item_code", Hint: "str"},
		{Name: "qty_to_produce", Hint: "float"},
		{Name: "order_items", Hint: "list[dict] (optional)"},
		{Name: "options", Hint: "dict (optional)"},
	}
	r.MustRegister(def)

	tests := []struct {
		name     string
		initial  map[string]any
		field    string
		expected string
		got      string
	}{
		{
			name:     "string hint rejects number",
			initial:  map[string]any{"item_code": 7, "qty_to_produce": 1.0},
			field:    "item_code",
			expected: "string",
			got:      "number",
		},
		{
			name:     "float hint rejects string",
			initial:  map[string]any{"item_code": "CHAIR", "qty_to_produce": "ten"},
			field:    "qty_to_produce",
			expected: "number",
			got:      "string",
		},
		{
			name:     "list hint rejects object",
			initial:  map[string]any{"item_code": "CHAIR", "qty_to_produce": 10, "order_items": map[string]any{}},
			field:    "order_items",
			expected: "array",
			got:      "object",
		},
		{
			name:     "dict hint rejects array",
			initial:  map[string]any{"item_code": "CHAIR", "qty_to_produce": 10, "options": []any{}},
			field:    "options",
			expected: "object",
			got:      "array",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate("manufacturing_production", tt.initial)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.expected, verr.Expected)
			assert.Equal(t, tt.got, verr.Got)
		})
	}
}

func TestValidate_IntegersSatisfyFloatHints(t *testing.T) {
	r := New()
	def := demoDefinition(t, "manufacturing_production", "manufacturing")
	def.Schema = Schema{{Name: "qty_to_produce", Hint: "float"}}
	r.MustRegister(def)

	assert.NoError(t, r.Validate("manufacturing_production", map[string]any{"qty_to_produce": 10}))
	assert.NoError(t, r.Validate("manufacturing_production", map[string]any{"qty_to_produce": 10.5}))
}

func TestValidate_TypedSlicesClassifyAsArrays(t *testing.T) {
	r := New()
	def := demoDefinition(t, "retail_fulfillment", "retail")
	def.Schema = Schema{{Name: "order_items", Hint: "list[dict]"}}
	r.MustRegister(def)

	assert.NoError(t, r.Validate("retail_fulfillment", map[string]any{
		"order_items": []map[string]any{{"item_code": "LAPTOP-DELL-I5", "qty": 1}},
	}))
}

func TestValidate_NullValuesPassPresenceAndSkipTypeCheck(t *testing.T) {
	r := hotelRegistry(t)

	err := r.Validate("hotel_o2c", map[string]any{
		"reservation_id": "RES-001",
		"guest_name":     "John Doe",
		"room_number":    nil,
		"check_in_date":  "2025-01-15",
		"check_out_date": "2025-01-16",
	})
	assert.NoError(t, err)
}

func TestValidate_UnknownGraph(t *testing.T) {
	r := New()
	err := r.Validate("ghost", map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownGraph)
}

func TestValidate_UnrecognizedHintsAreAdvisory(t *testing.T) {
	r := New()
	def := demoDefinition(t, "education_admissions", "education")
	def.Schema = Schema{{Name: "transcript", Hint: "document"}}
	r.MustRegister(def)

	assert.NoError(t, r.Validate("education_admissions", map[string]any{"transcript": 42}))
}
