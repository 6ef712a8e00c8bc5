// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id embedded in the generated config schema.
const SchemaID = "https://xoarena.dev/schemas/config.schema.json"

// The compiled schema is cached after the first validation; reflection and
// compilation only ever produce one result.
var (
	compileOnce    sync.Once
	compiledSchema *jschema.Schema
	compileErr     error
)

// GenerateSchema reflects Config into a JSON Schema document. The gen-schema
// command writes it out for editor integration; ValidateFile compiles it to
// check config files at startup.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "XO Arena Configuration"
	schema.Description = "Schema for xoarena config files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").
			With("operation", "marshal schema").
			Wrap(err)
	}
	return data, nil
}

// ValidateFile checks raw YAML config bytes against the generated schema.
// Unknown keys and mistyped values are rejected with a pointered message. An
// empty file is valid: every key is optional and defaults cover the rest.
func ValidateFile(data []byte) error {
	var yamlData any
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "parse config file").
			Wrap(err)
	}
	if yamlData == nil {
		return nil
	}

	sch, err := loadCompiledSchema()
	if err != nil {
		return err
	}

	// yaml.v3 and encoding/json disagree on scalar types; a JSON round-trip
	// normalizes the tree to what the validator expects.
	raw, err := json.Marshal(yamlData)
	if err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "normalize config file").
			Wrap(err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "normalize config file").
			Wrap(err)
	}

	if err := sch.Validate(instance); err != nil {
		return oops.Code("CONFIG_INVALID").
			With("operation", "schema validation").
			Wrap(err)
	}
	return nil
}

func loadCompiledSchema() (*jschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = compileSchema()
	})
	return compiledSchema, compileErr
}

func compileSchema() (*jschema.Schema, error) {
	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").
			With("operation", "parse schema").
			Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").
			With("operation", "add schema resource").
			Wrap(err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").
			With("operation", "compile schema").
			Wrap(err)
	}
	return sch, nil
}
