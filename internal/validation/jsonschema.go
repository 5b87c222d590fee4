package validation

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/scenario/pkg/schema"
)

// Kind names a family of stored documents with its own schema.
type Kind string

const (
	KindStep    Kind = "step"
	KindProcess Kind = "process"
	KindService Kind = "service"
)

const schemaBase = "https://scenario.dev/schemas/"

// stepSchemaJSON describes one stored scenario step document.
const stepSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["actor", "action", "kwargs"],
  "properties": {
    "actor": { "type": "string", "minLength": 1 },
    "action": { "type": "string", "minLength": 1 },
    "kwargs": { "type": ["object", "string"] },
    "output_name": { "type": "string" },
    "step": { "$ref": "#/$defs/order" },
    "step_number": { "$ref": "#/$defs/order" }
  },
  "$defs": {
    "order": {
      "oneOf": [
        { "type": "integer", "minimum": 0 },
        { "type": "string", "pattern": "^[0-9]+$" }
      ]
    }
  }
}`

// processSchemaJSON accepts either a single step or s1..sN siblings, both
// with a top-level output_key.
const processSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["output_key"],
  "properties": {
    "output_key": { "type": "string", "minLength": 1 }
  },
  "patternProperties": {
    "^s[1-9][0-9]*$": { "$ref": "#/$defs/step" }
  },
  "if": { "required": ["type"] },
  "then": { "$ref": "#/$defs/step" },
  "else": { "required": ["s1"] },
  "$defs": {
    "step": {
      "type": "object",
      "required": ["type", "action", "params"],
      "properties": {
        "type": { "enum": ["numeric", "string", "datetime", "collection"] },
        "action": { "type": "string", "minLength": 1 },
        "params": { "type": "object" },
        "output_key": { "type": "string" }
      }
    }
  }
}`

// serviceSchemaJSON describes a service document holding endpoint templates.
const serviceSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["endpoints"],
  "properties": {
    "endpoints": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": { "$ref": "#/$defs/template" }
    }
  },
  "$defs": {
    "fields": {
      "type": "object",
      "additionalProperties": { "type": "string" }
    },
    "template": {
      "type": "object",
      "required": ["method", "url"],
      "properties": {
        "method": { "enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "get", "post", "put", "patch", "delete"] },
        "url": { "type": "string", "minLength": 1 },
        "headers": { "$ref": "#/$defs/fields" },
        "query_fields": { "$ref": "#/$defs/fields" },
        "body_fields": { "$ref": "#/$defs/fields" },
        "api_key_placeholder": { "type": "string" },
        "provider": { "enum": ["openai", "gemini", "anthropic"] },
        "response_filter": { "type": "string" }
      }
    }
  }
}`

var schemaSources = map[Kind]string{
	KindStep:    stepSchemaJSON,
	KindProcess: processSchemaJSON,
	KindService: serviceSchemaJSON,
}

// DocumentValidator checks stored documents against the built-in schemas.
// Schemas are compiled once, so a validator is safe for concurrent use.
type DocumentValidator struct {
	schemas map[Kind]*jsonschema.Schema
}

// NewDocumentValidator compiles every built-in schema.
func NewDocumentValidator() (*DocumentValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	v := &DocumentValidator{schemas: make(map[Kind]*jsonschema.Schema, len(schemaSources))}
	for kind, src := range schemaSources {
		url := schemaBase + string(kind) + ".json"
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s schema: %w", kind, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", kind, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", kind, err)
		}
		v.schemas[kind] = compiled
	}
	return v, nil
}

// Validate checks doc against the schema for kind. Violations come back as a
// CONFIG_ERROR naming the document.
func (v *DocumentValidator) Validate(kind Kind, name string, doc map[string]any) error {
	compiled, ok := v.schemas[kind]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeValidation, "no schema for %q documents", kind)
	}
	if doc == nil {
		return schema.NewErrorf(schema.ErrCodeConfig, "%s %q: document is empty", kind, name)
	}

	value, err := toJSONValue(doc)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeConfig, "%s %q: document is not JSON-serializable", kind, name).WithCause(err)
	}
	if err := compiled.Validate(value); err != nil {
		return toScenarioError(kind, name, err)
	}
	return nil
}

// toJSONValue round-trips a value through JSON so numbers become json.Number.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

func toScenarioError(kind Kind, name string, err error) *schema.ScenarioError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewErrorf(schema.ErrCodeConfig, "%s %q: %v", kind, name, err)
	}

	violations := collectViolations(verr)
	details := map[string]any{"kind": string(kind), "document": name, "violations": violations}
	switch len(violations) {
	case 0:
		return schema.NewErrorf(schema.ErrCodeConfig, "%s %q: %s", kind, name, verr.Error()).WithDetails(details)
	case 1:
		return schema.NewErrorf(schema.ErrCodeConfig, "%s %q: %s", kind, name, violations[0]).WithDetails(details)
	default:
		return schema.NewErrorf(schema.ErrCodeConfig, "%s %q: %d schema violations: %s",
			kind, name, len(violations), strings.Join(violations, "; ")).WithDetails(details)
	}
}

// collectViolations flattens a ValidationError tree into leaf messages
// prefixed with their instance location.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
