package toolcatalog

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/runtime/mcp/retry"
)

// validateArguments checks argsJSON against a tool's JSON-Schema parameters
// document: compile the schema fresh per call (schemas are tiny and
// per-tool, not worth a shared cache) and validate the decoded payload
// against it. Every executed tool's arguments string must not only parse as
// JSON (checked earlier by the accumulator) but also validate against the
// tool's declared schema.
//
// A definition with no parameters schema (schema == nil/empty) always
// validates; not every native tool declares one for trivially-shaped args.
func validateArguments(def Definition, argsJSON json.RawMessage) error {
	if len(def.Parameters) == 0 {
		return nil
	}

	var schemaDoc any
	if err := json.Unmarshal(def.Parameters, &schemaDoc); err != nil {
		return gatewayerrors.WithCause(gatewayerrors.ClassInvalidArgs,
			fmt.Sprintf("tool %q has an unparseable parameters schema", def.Name), gatewayerrors.From(err))
	}

	var payloadDoc any
	if err := json.Unmarshal(argsJSON, &payloadDoc); err != nil {
		return gatewayerrors.WithCause(gatewayerrors.ClassInvalidArgs,
			fmt.Sprintf("arguments for tool %q did not parse as JSON", def.Name), gatewayerrors.From(err))
	}

	c := jsonschema.NewCompiler()
	resource := def.Name + ".schema.json"
	if err := c.AddResource(resource, schemaDoc); err != nil {
		return gatewayerrors.WithCause(gatewayerrors.ClassInvalidArgs,
			fmt.Sprintf("tool %q parameters schema is invalid", def.Name), gatewayerrors.From(err))
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return gatewayerrors.WithCause(gatewayerrors.ClassInvalidArgs,
			fmt.Sprintf("tool %q parameters schema failed to compile", def.Name), gatewayerrors.From(err))
	}

	if err := schema.Validate(payloadDoc); err != nil {
		prompt := retry.BuildRepairPrompt(def.Name, err.Error(), "", string(def.Parameters))
		return gatewayerrors.WithCause(gatewayerrors.ClassInvalidArgs, prompt, gatewayerrors.From(err))
	}
	return nil
}
