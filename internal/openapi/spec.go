package openapi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"
)

//go:embed spec.yaml
var specYAML []byte

var (
	schemasOnce sync.Once
	schemasJSON map[string]json.RawMessage
	schemasErr  error
)

// JSON returns the OpenAPI document serialized as JSON.
func JSON() ([]byte, error) {
	return yaml.YAMLToJSON(specYAML)
}

// YAML returns the raw OpenAPI YAML document.
func YAML() []byte {
	return specYAML
}

// SchemaNames lists the component schemas in the document.
func SchemaNames() ([]string, error) {
	schemas, err := componentSchemas()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func componentSchemas() (map[string]json.RawMessage, error) {
	schemasOnce.Do(func() {
		raw, err := JSON()
		if err != nil {
			schemasErr = fmt.Errorf("convert openapi document: %w", err)
			return
		}
		// Rewrite component refs so each schema resolves against a
		// draft-4 "definitions" root.
		raw = bytes.ReplaceAll(raw, []byte(`"#/components/schemas/`), []byte(`"#/definitions/`))
		var doc struct {
			Components struct {
				Schemas map[string]json.RawMessage `json:"schemas"`
			} `json:"components"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			schemasErr = fmt.Errorf("decode openapi document: %w", err)
			return
		}
		schemasJSON = doc.Components.Schemas
	})
	return schemasJSON, schemasErr
}

// SchemaValidator checks payloads against one component schema. It
// satisfies apiclient.ResponseValidator.
type SchemaValidator struct {
	name   string
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles the named component schema.
func NewSchemaValidator(name string) (*SchemaValidator, error) {
	schemas, err := componentSchemas()
	if err != nil {
		return nil, err
	}
	if _, ok := schemas[name]; !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	root, err := json.Marshal(map[string]any{
		"definitions": schemas,
		"$ref":        "#/definitions/" + name,
	})
	if err != nil {
		return nil, err
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(root))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &SchemaValidator{name: name, schema: schema}, nil
}

// MustSchemaValidator is NewSchemaValidator for schemas known to exist.
func MustSchemaValidator(name string) *SchemaValidator {
	v, err := NewSchemaValidator(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate reports every schema violation in payload.
func (v *SchemaValidator) Validate(payload json.RawMessage) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("null")
	}
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%s: %s", v.name, strings.Join(problems, "; "))
}
