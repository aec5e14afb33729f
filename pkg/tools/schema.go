package tools

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// MustSchemaFor derives a normalized JSON-schema map from a parameter struct.
// It panics on failure; parameter structs are compile-time constants, so a
// failure is a programming error.
func MustSchemaFor[T any]() map[string]any {
	schema, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return schema
}

// SchemaFor derives the JSON schema of T from its json/jsonschema struct tags
// and normalizes it with SchemaToMap.
func SchemaFor[T any]() (map[string]any, error) {
	schema, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		return nil, err
	}
	return SchemaToMap(schema)
}

// SchemaToMap converts a schema value to a plain map and normalizes it:
// the root is always an object with a properties map, and every property has
// a type. Some OpenAI-compatible endpoints reject schemas without these.
func SchemaToMap(params any) (map[string]any, error) {
	m := map[string]any{}
	if params != nil {
		buf, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(buf, &m); err != nil {
			return nil, err
		}
	}

	if m["type"] == nil {
		m["type"] = "object"
	}
	if m["properties"] == nil {
		m["properties"] = map[string]any{}
	}
	if m["required"] == nil {
		delete(m, "required")
	}

	ensurePropertyTypes(m)

	return m, nil
}

// ConvertSchema re-encodes a schema value into an SDK-specific schema type by
// round-tripping through JSON. Provider SDKs each declare their own input
// schema structs; this avoids hand-mapping fields for every one of them.
func ConvertSchema(from, to any) error {
	buf, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, to)
}

// ensurePropertyTypes recursively walks a JSON-schema map and ensures every
// property has a "type" set, defaulting to "object" if missing. It descends
// into nested "properties" and array "items".
func ensurePropertyTypes(schema map[string]any) {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}

	for _, v := range props {
		prop, ok := v.(map[string]any)
		if !ok {
			continue
		}

		if prop["type"] == nil {
			prop["type"] = "object"
		}

		ensurePropertyTypes(prop)

		if items, ok := prop["items"].(map[string]any); ok {
			ensurePropertyTypes(items)
		}
	}
}
