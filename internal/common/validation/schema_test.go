package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"required": ["content", "type"],
	"properties": {
		"content": {"type": "string"},
		"type": {"type": "integer"}
	}
}`

func TestSchema_Validate(t *testing.T) {
	s, err := NewSchema("envelope", testSchema)
	require.NoError(t, err)
	assert.Equal(t, "envelope", s.Name())

	tests := []struct {
		name  string
		data  interface{}
		valid bool
		field string
	}{
		{
			name:  "valid document",
			data:  map[string]interface{}{"content": "where is brussels", "type": 0},
			valid: true,
		},
		{
			name:  "missing type",
			data:  map[string]interface{}{"content": "where is brussels"},
			valid: false,
			field: "(root)",
		},
		{
			name:  "type is a string",
			data:  map[string]interface{}{"content": "hi", "type": "0"},
			valid: false,
			field: "type",
		},
		{
			name:  "not an object",
			data:  []interface{}{"content"},
			valid: false,
			field: "(root)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Validate(tt.data)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.field, result.Errors[0].Field)
				assert.Contains(t, result.Error(), "validation failed")
			}
		})
	}
}

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustSchema("envelope", testSchema)

	assert.True(t, s.ValidateJSON([]byte(`{"content":"hello","type":1}`)).Valid)

	result := s.ValidateJSON([]byte(`not json`))
	assert.False(t, result.Valid)
	assert.Equal(t, "INVALID_DOCUMENT", result.Errors[0].Code)
}

func TestNewSchema_Invalid(t *testing.T) {
	_, err := NewSchema("broken", `{"type":`)
	assert.Error(t, err)

	assert.Panics(t, func() { MustSchema("broken", `{`) })
}
