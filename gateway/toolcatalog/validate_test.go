package toolcatalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
)

func TestValidateArguments_NoSchemaAlwaysPasses(t *testing.T) {
	def := Definition{Name: "think"}
	require.NoError(t, validateArguments(def, json.RawMessage(`{"anything":true}`)))
}

func TestValidateArguments_ValidAgainstSchema(t *testing.T) {
	def := Definition{
		Name: "get_weather",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"city": {"type": "string"}},
			"required": ["city"],
			"additionalProperties": false
		}`),
	}
	require.NoError(t, validateArguments(def, json.RawMessage(`{"city":"Paris"}`)))
}

func TestValidateArguments_RejectsMissingRequiredField(t *testing.T) {
	def := Definition{
		Name: "get_weather",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"city": {"type": "string"}},
			"required": ["city"],
			"additionalProperties": false
		}`),
	}
	err := validateArguments(def, json.RawMessage(`{}`))
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, gatewayerrors.ClassInvalidArgs, gwErr.Class)
}

func TestValidateArguments_SchemaMismatchMessageIsARepairPrompt(t *testing.T) {
	def := Definition{
		Name: "get_weather",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"city": {"type": "string"}},
			"required": ["city"],
			"additionalProperties": false
		}`),
	}
	err := validateArguments(def, json.RawMessage(`{}`))
	require.Error(t, err)
	var gwErr *gatewayerrors.Error
	require.ErrorAs(t, err, &gwErr)
	require.Contains(t, gwErr.Message, "Operation: get_weather")
	require.Contains(t, gwErr.Message, "Redo the operation now with valid parameters")
}

func TestValidateArguments_RejectsUnknownProperty(t *testing.T) {
	def := Definition{
		Name: "get_weather",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"city": {"type": "string"}},
			"required": ["city"],
			"additionalProperties": false
		}`),
	}
	err := validateArguments(def, json.RawMessage(`{"city":"Paris","unit":"celsius"}`))
	require.Error(t, err)
}

func TestValidateArguments_RejectsMalformedArgumentsJSON(t *testing.T) {
	def := Definition{
		Name:       "get_weather",
		Parameters: json.RawMessage(`{"type":"object"}`),
	}
	err := validateArguments(def, json.RawMessage(`{not json`))
	require.Error(t, err)
}
