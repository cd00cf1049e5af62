package schema

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	responseSchemaOnce sync.Once
	responseSchema     *jsonschema.Schema
	responseSchemaErr  error
)

// ResponseSchemaJSON renders the JSON Schema a model response must satisfy:
// a single object whose known properties are string, number, or null. Extra
// properties are allowed and ignored downstream; per-field validation is the
// normalizer's job.
func ResponseSchemaJSON() []byte {
	props := make(map[string]any, len(fields))
	for i := range fields {
		props[fields[i].Name] = map[string]any{
			"type": []string{"string", "number", "null"},
		}
	}
	b, _ := json.Marshal(map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	})
	return b
}

func compileResponseSchema() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", strings.NewReader(string(ResponseSchemaJSON()))); err != nil {
		responseSchemaErr = eris.Wrap(err, "schema: add response schema resource")
		return
	}
	responseSchema, responseSchemaErr = compiler.Compile("response.json")
	if responseSchemaErr != nil {
		responseSchemaErr = eris.Wrap(responseSchemaErr, "schema: compile response schema")
	}
}

// ValidateResponse checks that a raw model response is a JSON object with
// only string, number, or null values for known fields.
func ValidateResponse(data []byte) error {
	responseSchemaOnce.Do(compileResponseSchema)
	if responseSchemaErr != nil {
		return responseSchemaErr
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "schema: response is not valid JSON")
	}
	if err := responseSchema.Validate(v); err != nil {
		return eris.Wrap(err, "schema: response does not match field schema")
	}
	return nil
}
