// Package manifest loads the category to filename mapping produced by the
// categorisation step. JSON and YAML documents are accepted; category order
// is kept as written.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmpty  = errors.New("manifest is empty")
	ErrSyntax = errors.New("manifest is not well formed")
	ErrSchema = errors.New("manifest does not match schema")
)

// Error is the fatal manifest failure. Nothing is deleted once it occurs.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Format selects the decoder used for a manifest document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks a format from the file extension, JSON unless .yaml/.yml.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Category is one manifest key with its filenames in document order.
type Category struct {
	Name  string
	Files []string
}

type Manifest struct {
	Path       string
	Categories []Category
}

// Load reads and validates the manifest at path. Every failure is returned
// as *Error.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	m, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	m.Path = path
	return m, nil
}

// Parse decodes and validates a manifest document.
func Parse(data []byte, format Format) (*Manifest, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmpty
	}
	if format == FormatJSON {
		return parseJSON(data)
	}

	// The node tree keeps key order and resolves anchors.
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrEmpty
	}
	root := doc.Content[0]

	if err := validate(root); err != nil {
		return nil, err
	}
	return fromNode(root)
}

// parseJSON walks the top-level object token by token to keep category
// order. A repeated category keeps its first position and its last value.
func parseJSON(data []byte) (*Manifest, error) {
	if !json.Valid(data) {
		return nil, ErrSyntax
	}
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: top level must be an object", ErrSchema)
	}

	var names []string
	values := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		if _, seen := values[key]; !seen {
			names = append(names, key)
		}
		values[key] = raw
	}

	m := &Manifest{Categories: make([]Category, 0, len(names))}
	for _, name := range names {
		files := []string{}
		if err := json.Unmarshal(values[name], &files); err != nil {
			return nil, fmt.Errorf("%w: category %q: %v", ErrSchema, name, err)
		}
		m.Categories = append(m.Categories, Category{Name: name, Files: files})
	}
	return m, nil
}

func fromNode(root *yaml.Node) (*Manifest, error) {
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrSchema)
	}
	m := &Manifest{Categories: make([]Category, 0, len(root.Content)/2)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], resolve(root.Content[i+1])
		files := make([]string, 0, len(val.Content))
		for _, item := range val.Content {
			files = append(files, resolve(item).Value)
		}
		m.Categories = append(m.Categories, Category{Name: key.Value, Files: files})
	}
	return m, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// Files flattens all categories in document order. Duplicates are kept.
func (m *Manifest) Files() []string {
	out := make([]string, 0, m.FileCount())
	for _, c := range m.Categories {
		out = append(out, c.Files...)
	}
	return out
}

func (m *Manifest) FileCount() int {
	n := 0
	for _, c := range m.Categories {
		n += len(c.Files)
	}
	return n
}

// CategoryOf returns the first category listing name.
func (m *Manifest) CategoryOf(name string) (string, bool) {
	for _, c := range m.Categories {
		for _, f := range c.Files {
			if f == name {
				return c.Name, true
			}
		}
	}
	return "", false
}
