package schema

import (
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Compile turns a client-supplied JSON Schema document into a validator.
// The document itself is validated during compilation, so a malformed
// schema is rejected at registration time rather than per request.
func Compile(definition map[string]any) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	const url = "inline://schema.json"
	if err := compiler.AddResource(url, definition); err != nil {
		return nil, fmt.Errorf("schema: register definition: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema: compile definition: %w", err)
	}
	return compiled, nil
}

// ValidateAgainst checks an analysis result against a compiled schema and
// converts validation failures into field errors.
func ValidateAgainst(compiled *jsonschema.Schema, data map[string]any) error {
	if compiled == nil {
		return ValidateCore(data)
	}
	if err := compiled.Validate(map[string]any(data)); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &ValidationError{Field: instancePath(verr), Message: verr.Error()}
		}
		return &ValidationError{Field: "result", Message: err.Error()}
	}
	return nil
}

func instancePath(verr *jsonschema.ValidationError) string {
	if len(verr.Causes) > 0 {
		return instancePath(verr.Causes[0])
	}
	if len(verr.InstanceLocation) == 0 {
		return "result"
	}
	path := ""
	for _, seg := range verr.InstanceLocation {
		if path != "" {
			path += "."
		}
		path += seg
	}
	return path
}
