// Record is the central entity of the domain.
package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar date form accepted on input.
const DateLayout = "2006-01-02"

// Record is a stored certificate-like entity identified by its serial number.
// Parameters holds exactly one value per schema field.
type Record struct {
	SerialNumber int              `json:"serialNumber" yaml:"serialNumber"`
	Parameters   map[string]Value `json:"parameters" yaml:"parameters"`
}

// Clone returns a copy that shares no state with r.
func (r Record) Clone() Record {
	return Record{
		SerialNumber: r.SerialNumber,
		Parameters:   maps.Clone(r.Parameters),
	}
}

// Equal reports whether both records hold the same serial and values.
func (r Record) Equal(other Record) bool {
	if r.SerialNumber != other.SerialNumber || len(r.Parameters) != len(other.Parameters) {
		return false
	}
	for k, v := range r.Parameters {
		ov, ok := other.Parameters[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Value is a typed field value: either text or a calendar date.
type Value struct {
	Type string
	Text string
	Date time.Time
}

// TextValue builds a text value.
func TextValue(s string) Value {
	return Value{Type: TypeText, Text: s}
}

// DateValue builds a date value normalized to UTC.
func DateValue(t time.Time) Value {
	return Value{Type: TypeDate, Date: t.UTC()}
}

// IsDate reports whether v holds a date.
func (v Value) IsDate() bool {
	return v.Type == TypeDate
}

func (v Value) String() string {
	if v.IsDate() {
		return FormatDate(v.Date)
	}
	return v.Text
}

// Equal compares type and content; dates compare by instant.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	if v.IsDate() {
		return v.Date.Equal(other.Date)
	}
	return v.Text == other.Text
}

type valueWire struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueWire{Type: v.Type, Value: v.String()})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	// Older files may hold non-string text values (e.g. numbers).
	var raw string
	if err := json.Unmarshal(wire.Value, &raw); err != nil {
		raw = strings.TrimSpace(string(wire.Value))
	}
	return v.decode(wire.Type, raw)
}

func (v Value) MarshalYAML() (interface{}, error) {
	return valueWire{Type: v.Type, Value: v.String()}, nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var wire valueWire
	if err := node.Decode(&wire); err != nil {
		return err
	}
	return v.decode(wire.Type, wire.Value)
}

func (v *Value) decode(typ, raw string) error {
	switch typ {
	case TypeText:
		*v = TextValue(raw)
	case TypeDate:
		t, err := ParseDate(raw)
		if err != nil {
			return err
		}
		*v = DateValue(t)
	default:
		return fmt.Errorf("unknown value type %q", typ)
	}
	return nil
}

// ParseDate parses a calendar date (2006-01-02) or an RFC 3339 timestamp.
// The result is in UTC. A calendar date is midnight; a timestamp keeps its
// time of day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD or RFC 3339)", ErrInvalidDate, s)
}

// FormatDate renders a stored date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// EventType represents the type of change in the records directory.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change observed on persisted records.
type Event struct {
	Type      EventType
	Serial    int
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	return fmt.Sprintf("%s record %d", e.Type, e.Serial)
}

type contextKey string

// ChangeReasonKey is the context key for passing the change reason (commit
// message) down to the repository.
const ChangeReasonKey contextKey = "change_reason"
