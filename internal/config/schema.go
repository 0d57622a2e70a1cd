package config

import "github.com/invopop/jsonschema"

// JSONSchema describes the config file.
func JSONSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := r.Reflect(&Config{})
	schema.Title = "chatlog configuration"
	schema.Description = "Settings of the chatlog command line and load test"
	return schema
}
