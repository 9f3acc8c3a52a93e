package api

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	schemaOpenSession = "open_session"
	schemaTransform   = "transform_patch"
	schemaCropArea    = "crop_area"
)

const rectSchema = `{
	"type": "object",
	"required": ["x", "y", "width", "height"],
	"additionalProperties": false,
	"properties": {
		"x": {"type": "integer"},
		"y": {"type": "integer"},
		"width": {"type": "integer"},
		"height": {"type": "integer"}
	}
}`

// Numeric ranges are clamped by the editor, so the schemas only check
// shape and types.
var requestSchemas = map[string]string{
	schemaOpenSession: `{
		"type": "object",
		"required": ["media"],
		"additionalProperties": false,
		"properties": {
			"media": {
				"type": "object",
				"additionalProperties": false,
				"properties": {
					"_id": {"type": "string"},
					"url": {"type": "string"},
					"filename": {"type": "string"},
					"mimeType": {"type": "string"},
					"width": {"type": "integer", "minimum": 0},
					"height": {"type": "integer", "minimum": 0}
				}
			},
			"source_width": {"type": "integer", "minimum": 0},
			"source_height": {"type": "integer", "minimum": 0}
		}
	}`,
	schemaTransform: `{
		"type": "object",
		"minProperties": 1,
		"additionalProperties": false,
		"properties": {
			"crop": {
				"type": "object",
				"additionalProperties": false,
				"properties": {"x": {"type": "number"}, "y": {"type": "number"}}
			},
			"zoom": {"type": "number"},
			"rotation": {"type": "number"},
			"rotate_by": {"type": "number"},
			"flip": {
				"type": "object",
				"additionalProperties": false,
				"properties": {"horizontal": {"type": "boolean"}, "vertical": {"type": "boolean"}}
			},
			"brightness": {"type": "integer"},
			"contrast": {"type": "integer"},
			"saturation": {"type": "integer"},
			"aspect_ratio": {"type": ["number", "string"]},
			"filter": {"type": "string"},
			"cropped_area_pixels": ` + rectSchema + `
		}
	}`,
	schemaCropArea: rectSchema,
}

type requestValidator struct {
	schemas map[string]*gojsonschema.Schema
}

func newRequestValidator() (*requestValidator, error) {
	v := &requestValidator{schemas: make(map[string]*gojsonschema.Schema, len(requestSchemas))}
	for name, raw := range requestSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

func (v *requestValidator) validate(name string, body []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("schema not found: %s", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
