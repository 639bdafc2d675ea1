package utils

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ReflectSchema builds the JSON schema of v. Properties are named after the
// yaml tags and nested structs are inlined.
func ReflectSchema(v any) *jsonschema.Schema {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	r.FieldNameTag = "yaml"

	return r.Reflect(v)
}

// GetSchemaFromConfig returns the schema of config as JSON, indented when
// pretty is set.
func GetSchemaFromConfig(config any, pretty bool) (string, error) {
	schema := ReflectSchema(config)

	var (
		raw []byte
		err error
	)

	if pretty {
		raw, err = json.MarshalIndent(schema, "", "  ")
	} else {
		raw, err = json.Marshal(schema)
	}

	if err != nil {
		return "", err
	}

	return string(raw), nil
}
