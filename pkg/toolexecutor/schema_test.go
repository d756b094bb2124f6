package toolexecutor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectSchema_Document(t *testing.T) {
	schema, err := ObjectSchema([]ToolParameter{
		{Name: "city", Type: "string", Description: "City name", Required: true},
		{Name: "units", Type: "string", Enum: []string{"metric", "imperial"}, Default: "metric"},
	})
	require.NoError(t, err)

	doc := schema.JSONSchema()
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, []string{"city"}, doc["required"])

	properties := doc["properties"].(map[string]interface{})
	units := properties["units"].(map[string]interface{})
	assert.Equal(t, "metric", units["default"])
	assert.Equal(t, []interface{}{"metric", "imperial"}, units["enum"])
}

func TestObjectSchema_InvalidParameters(t *testing.T) {
	_, err := ObjectSchema([]ToolParameter{{Name: "", Type: "string"}})
	assert.Error(t, err)

	_, err = ObjectSchema([]ToolParameter{{Name: "x", Type: "date"}})
	assert.Error(t, err)

	_, err = ObjectSchema([]ToolParameter{{Name: "x", Type: "string"}, {Name: "x", Type: "number"}})
	assert.Error(t, err)

	assert.Panics(t, func() { MustObjectSchema([]ToolParameter{{Name: "x", Type: "date"}}) })
}

func TestNewJSONSchema_InvalidDocument(t *testing.T) {
	_, err := NewJSONSchema(map[string]interface{}{"type": 42})
	assert.Error(t, err)
}

func TestValidate_FieldErrors(t *testing.T) {
	schema := MustObjectSchema([]ToolParameter{
		{Name: "amount", Type: "number", Required: true},
		{Name: "toAccount", Type: "string", Required: true},
	})

	result := schema.Validate(map[string]interface{}{"amount": "lots", "extra": true})
	assert.False(t, result.Valid)
	assert.Nil(t, result.Args)

	fields := make([]string, 0, len(result.Errors))
	for _, fe := range result.Errors {
		fields = append(fields, fe.Field)
		assert.NotEmpty(t, fe.Message)
	}
	assert.Contains(t, fields, "amount")
	assert.Contains(t, fields, "toAccount")
}

func TestValidate_DefaultsAndCopy(t *testing.T) {
	schema := MustObjectSchema([]ToolParameter{
		{Name: "city", Type: "string", Required: true},
		{Name: "units", Type: "string", Default: "metric"},
	})

	args := map[string]interface{}{"city": "Oslo"}
	result := schema.Validate(args)
	require.True(t, result.Valid)
	assert.Equal(t, map[string]interface{}{"city": "Oslo", "units": "metric"}, result.Args)

	result.Args["city"] = "Bergen"
	assert.Equal(t, "Oslo", args["city"], "input must not be mutated")
	_, hasUnits := args["units"]
	assert.False(t, hasUnits)
}

func TestValidate_Idempotent(t *testing.T) {
	schema := MustObjectSchema([]ToolParameter{
		{Name: "city", Type: "string", Required: true},
		{Name: "units", Type: "string", Default: "metric"},
	})

	first := schema.Validate(map[string]interface{}{"city": "Lima"})
	require.True(t, first.Valid)

	second := schema.Validate(first.Args)
	require.True(t, second.Valid)
	assert.Equal(t, first.Args, second.Args)
}

func TestValidate_NilArgsTreatedAsEmptyObject(t *testing.T) {
	schema := MustObjectSchema([]ToolParameter{{Name: "verbose", Type: "boolean"}})

	result := schema.Validate(nil)
	require.True(t, result.Valid)
	assert.Empty(t, result.Args)
	assert.NotNil(t, result.Args)
}

func TestAnySchema(t *testing.T) {
	result := anySchema{}.Validate(map[string]interface{}{"anything": []int{1}})
	assert.True(t, result.Valid)
	assert.Equal(t, []int{1}, result.Args["anything"])
}
