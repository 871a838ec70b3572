package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/invopop/jsonschema"
	sjschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/modarc-dev/modarc/entities"
)

const schemaName = "repository-metadata.schema.json"

// compiledSchema generates the manifest JSON schema from the Go types and
// compiles it, once per process.
var compiledSchema = sync.OnceValues(func() (*sjschema.Schema, error) {
	reflector := new(jsonschema.Reflector)
	reflector.ExpandedStruct = true

	generated, err := json.Marshal(reflector.Reflect(&Document{}))
	if err != nil {
		return nil, fmt.Errorf("marshaling generated manifest schema: %w", err)
	}

	compiler := sjschema.NewCompiler()
	if err := compiler.AddResource(schemaName, strings.NewReader(string(generated))); err != nil {
		return nil, fmt.Errorf("adding manifest schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaName)
	if err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}
	return schema, nil
})

// validate checks manifest bytes against the generated schema. The YAML is
// converted to JSON first so the validator sees plain JSON types.
func validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("manifest schema unavailable: %w", err)
	}

	jsonBytes, err := yaml.YAMLToJSON(data)
	if err != nil {
		return &entities.FormatError{Source: "manifest", Reason: "not valid YAML", Err: err}
	}
	var decoded any
	if err := json.Unmarshal(jsonBytes, &decoded); err != nil {
		return &entities.FormatError{Source: "manifest", Err: err}
	}

	if err := schema.Validate(decoded); err != nil {
		return &entities.FormatError{Source: "manifest", Reason: "schema violation", Err: err}
	}
	return nil
}
