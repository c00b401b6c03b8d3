package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/certvault/pkg/core"
)

// Serializer defines how to read and write a record file.
type Serializer interface {
	// Parse reads from r and returns a Record.
	Parse(r io.Reader) (core.Record, error)
	// Serialize converts the Record to bytes.
	Serialize(rec core.Record) ([]byte, error)
	// Extension is the file suffix, including the dot.
	Extension() string
}

// DefaultSerializers returns the standard set of serializers keyed by format name.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		"json": NewJSONSerializer(),
		"yaml": NewYAMLSerializer(),
	}
}

// --- JSON Serializer ---

// JSONSerializer handles reading and writing JSON record files.
type JSONSerializer struct{}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Parse(r io.Reader) (core.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Record{}, err
	}

	var rec core.Record
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return core.Record{}, fmt.Errorf("invalid json: %w", err)
	}
	return rec, nil
}

func (s *JSONSerializer) Serialize(rec core.Record) ([]byte, error) {
	return json.MarshalIndent(rec, "", "  ")
}

func (s *JSONSerializer) Extension() string {
	return ".json"
}

// --- YAML Serializer ---

// YAMLSerializer handles reading and writing YAML record files.
type YAMLSerializer struct{}

// NewYAMLSerializer creates a new YAML serializer.
func NewYAMLSerializer() *YAMLSerializer {
	return &YAMLSerializer{}
}

func (s *YAMLSerializer) Parse(r io.Reader) (core.Record, error) {
	var rec core.Record
	if err := yaml.NewDecoder(r).Decode(&rec); err != nil {
		return core.Record{}, fmt.Errorf("invalid yaml: %w", err)
	}
	return rec, nil
}

func (s *YAMLSerializer) Serialize(rec core.Record) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(rec); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *YAMLSerializer) Extension() string {
	return ".yaml"
}
