package registry

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Schemas holds the compiled registry JSON schemas: apps and categories
// describe the input files, app and apps_index the emitted api documents.
type Schemas struct {
	App         *jsonschema.Schema
	Apps        *jsonschema.Schema
	AppsIndex   *jsonschema.Schema
	Categories  *jsonschema.Schema
	Environment *jsonschema.Schema
	Metadata    *jsonschema.Schema
}

// LoadSchemas compiles the schemas shipped with the binary.
func LoadSchemas() (*Schemas, error) {
	names := []string{"app", "apps", "apps_index", "categories", "environment", "metadata"}

	compiler := jsonschema.NewCompiler()
	for _, name := range names {
		file := name + ".schema.json"
		content, err := schemaFS.ReadFile("schemas/" + file)
		if err != nil {
			return nil, fmt.Errorf("reading embedded schema %s: %w", file, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("unmarshaling schema %s: %w", file, err)
		}
		if err := compiler.AddResource(file, doc); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", file, err)
		}
	}

	compiled := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		schema, err := compiler.Compile(name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", name, err)
		}
		compiled[name] = schema
	}

	return &Schemas{
		App:         compiled["app"],
		Apps:        compiled["apps"],
		AppsIndex:   compiled["apps_index"],
		Categories:  compiled["categories"],
		Environment: compiled["environment"],
		Metadata:    compiled["metadata"],
	}, nil
}

// ValidateDocument validates any Go value against schema by round-tripping
// it through its JSON representation.
func ValidateDocument(schema *jsonschema.Schema, doc any) error {
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("unmarshaling document: %w", err)
	}
	return schema.Validate(instance)
}
