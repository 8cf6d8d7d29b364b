package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Schema is the JSON Schema every manifest must satisfy: an object whose
// values are arrays of non-empty strings.
const Schema = `{
  "type": "object",
  "additionalProperties": {
    "type": "array",
    "items": {
      "type": "string",
      "minLength": 1
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(Schema)

func validate(root *yaml.Node) error {
	var generic any
	if err := root.Decode(&generic); err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	// Non-string keys decode to map[any]any, which json cannot encode.
	doc, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("%w: category names must be strings", ErrSchema)
	}

	return validateDocument(doc)
}

// validateDocument checks a JSON document against Schema.
func validateDocument(doc []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		msgs = append(msgs, re.String())
	}
	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
}
