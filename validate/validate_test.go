package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareInputSchema = `{
	"type": "object",
	"properties": { "x": { "type": "number" } },
	"required": ["x"],
	"additionalProperties": false
}`

func TestJSONSchemaAcceptsValidValue(t *testing.T) {
	v, err := JSONSchema([]byte(squareInputSchema))
	require.NoError(t, err)

	out, err := v(json.RawMessage(`{"x":5}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":5}`, string(out))
}

func TestJSONSchemaRejectsInvalidValue(t *testing.T) {
	v, err := JSONSchema([]byte(squareInputSchema))
	require.NoError(t, err)

	_, err = v(json.RawMessage(`{"x":"5"}`))
	assert.Error(t, err)
}

func TestLegacyAcceptsValidValue(t *testing.T) {
	v, err := Legacy([]byte(squareInputSchema))
	require.NoError(t, err)

	out, err := v(json.RawMessage(`{"x":5}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":5}`, string(out))
}

func TestLegacyRejectsInvalidValue(t *testing.T) {
	v, err := Legacy([]byte(squareInputSchema))
	require.NoError(t, err)

	_, err = v(json.RawMessage(`{"x":"5"}`))
	assert.Error(t, err)
}

func TestIdentityPassesThrough(t *testing.T) {
	out, err := Identity(json.RawMessage(`{"anything":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"anything":true}`, string(out))
}
