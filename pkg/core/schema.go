package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field types and comparators as they appear in the settings document.
const (
	TypeText = "text"
	TypeDate = "date"

	ComparatorFrom = "from"
	ComparatorTo   = "to"
)

// FieldKind is the closed set of behaviors a field can have.
type FieldKind int

const (
	KindText FieldKind = iota
	KindDateFrom
	KindDateTo
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDateFrom:
		return "date/from"
	case KindDateTo:
		return "date/to"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// IsDate reports whether values of this kind are calendar dates.
func (k FieldKind) IsDate() bool {
	return k == KindDateFrom || k == KindDateTo
}

// ValueType returns the type tag stored alongside values of this kind.
func (k FieldKind) ValueType() string {
	if k.IsDate() {
		return TypeDate
	}
	return TypeText
}

// FieldDefinition is one entry of the settings document.
type FieldDefinition struct {
	Param      string `json:"param" yaml:"param"`
	Type       string `json:"type" yaml:"type"`
	Comparator string `json:"comparator,omitempty" yaml:"comparator,omitempty"`
}

// Kind resolves the definition into its FieldKind.
func (d FieldDefinition) Kind() (FieldKind, error) {
	switch d.Type {
	case TypeText:
		if d.Comparator != "" {
			return 0, fmt.Errorf("text field %q cannot have comparator %q", d.Param, d.Comparator)
		}
		return KindText, nil
	case TypeDate:
		switch d.Comparator {
		case ComparatorFrom:
			return KindDateFrom, nil
		case ComparatorTo:
			return KindDateTo, nil
		case "":
			return 0, fmt.Errorf("date field %q needs a comparator (%q or %q)", d.Param, ComparatorFrom, ComparatorTo)
		default:
			return 0, fmt.Errorf("date field %q has unknown comparator %q", d.Param, d.Comparator)
		}
	default:
		return 0, fmt.Errorf("field %q has unknown type %q", d.Param, d.Type)
	}
}

// Settings is the settings document consumed at startup.
type Settings struct {
	Parameters []FieldDefinition `json:"parameters" yaml:"parameters"`
}

// Field is a resolved schema entry.
type Field struct {
	Param string
	Kind  FieldKind
}

// Schema is the ordered, immutable set of fields every record carries.
type Schema struct {
	settings Settings
	document json.RawMessage
	fields   []Field
	index    map[string]int
}

// NewSchema validates the settings and builds a Schema from them.
func NewSchema(settings Settings) (*Schema, error) {
	if len(settings.Parameters) == 0 {
		return nil, fmt.Errorf("%w: no parameters defined", ErrInvalidSchema)
	}

	s := &Schema{
		settings: Settings{Parameters: append([]FieldDefinition(nil), settings.Parameters...)},
		fields:   make([]Field, 0, len(settings.Parameters)),
		index:    make(map[string]int, len(settings.Parameters)),
	}

	for _, def := range settings.Parameters {
		if strings.TrimSpace(def.Param) == "" {
			return nil, fmt.Errorf("%w: parameter with empty name", ErrInvalidSchema)
		}
		if _, dup := s.index[def.Param]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidSchema, def.Param)
		}
		kind, err := def.Kind()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		s.index[def.Param] = len(s.fields)
		s.fields = append(s.fields, Field{Param: def.Param, Kind: kind})
	}

	document, err := json.Marshal(s.settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	s.document = document

	return s, nil
}

// ParseSettings decodes a settings document. Format is "json" or "yaml".
// Keys other than the field definitions (labels, titles and the like) are
// kept in the document returned by Document.
func ParseSettings(data []byte, format string) (*Schema, error) {
	var (
		settings Settings
		document bytes.Buffer
	)

	switch format {
	case "json":
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("%w: invalid json: %v", ErrInvalidSchema, err)
		}
		if err := json.Compact(&document, data); err != nil {
			return nil, fmt.Errorf("%w: invalid json: %v", ErrInvalidSchema, err)
		}
	case "yaml", "yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("%w: invalid yaml: %v", ErrInvalidSchema, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: invalid yaml: %v", ErrInvalidSchema, err)
		}
		out, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: settings are not representable as json: %v", ErrInvalidSchema, err)
		}
		document.Write(out)
	default:
		return nil, fmt.Errorf("%w: unsupported settings format %q", ErrInvalidSchema, format)
	}

	schema, err := NewSchema(settings)
	if err != nil {
		return nil, err
	}
	schema.document = document.Bytes()
	return schema, nil
}

// LoadSchema reads the settings document at path. The format follows the
// file extension; anything that is not .yaml/.yml is read as JSON.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	schema, err := ParseSettings(data, format)
	if err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return schema, nil
}

// Fields returns the schema fields in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field looks up a field by parameter name.
func (s *Schema) Field(param string) (Field, bool) {
	i, ok := s.index[param]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Settings returns a copy of the document the schema was built from.
func (s *Schema) Settings() Settings {
	return Settings{Parameters: append([]FieldDefinition(nil), s.settings.Parameters...)}
}

// Document returns the settings document as JSON, including keys the
// schema itself does not interpret.
func (s *Schema) Document() json.RawMessage {
	return append(json.RawMessage(nil), s.document...)
}
