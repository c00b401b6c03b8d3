package core

import (
	"encoding/json"
	"strconv"
	"time"
)

// Input is raw key-value data submitted for a record (decoded JSON or form).
type Input map[string]any

// Build constructs a record from input. Every schema field must be present
// and non-empty; dates are range checked as they are parsed. The serial is
// only assigned when the whole input is accepted.
func Build(schema *Schema, input Input, serial int) (Record, error) {
	rec := Record{
		SerialNumber: serial,
		Parameters:   make(map[string]Value, schema.Len()),
	}

	var tracker rangeTracker
	for _, f := range schema.fields {
		raw, present, err := inputString(input, f.Param)
		if err != nil {
			return Record{}, err
		}
		if !present {
			return Record{}, &ValidationError{Field: f.Param, Err: ErrMissingField}
		}

		v, err := parseValue(f, raw)
		if err != nil {
			return Record{}, err
		}
		if err := tracker.observe(f, v); err != nil {
			return Record{}, err
		}
		rec.Parameters[f.Param] = v
	}

	return rec, nil
}

// Merge applies the fields present in input on top of current and returns
// the result. Absent or empty fields keep their previous value. The range
// check runs over the merged values, so untouched dates still count.
// current is never modified.
func Merge(schema *Schema, current Record, input Input) (Record, error) {
	merged := current.Clone()
	if merged.Parameters == nil {
		merged.Parameters = make(map[string]Value, schema.Len())
	}

	for _, f := range schema.fields {
		raw, present, err := inputString(input, f.Param)
		if err != nil {
			return Record{}, err
		}
		if !present {
			continue
		}
		v, err := parseValue(f, raw)
		if err != nil {
			return Record{}, err
		}
		merged.Parameters[f.Param] = v
	}

	var tracker rangeTracker
	for _, f := range schema.fields {
		v, ok := merged.Parameters[f.Param]
		if !ok {
			continue
		}
		if err := tracker.observe(f, v); err != nil {
			return Record{}, err
		}
	}

	return merged, nil
}

func parseValue(f Field, raw string) (Value, error) {
	if !f.Kind.IsDate() {
		return TextValue(raw), nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return Value{}, &ValidationError{Field: f.Param, Err: err}
	}
	return DateValue(t), nil
}

// inputString extracts the textual form of input[param]. A nil or empty
// value counts as absent.
func inputString(input Input, param string) (string, bool, error) {
	raw, ok := input[param]
	if !ok || raw == nil {
		return "", false, nil
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []string:
		// url.Values style input; first value wins.
		if len(v) == 0 {
			return "", false, nil
		}
		s = v[0]
	case json.Number:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return "", false, &ValidationError{Field: param, Err: ErrInvalidValue}
	}

	if s == "" {
		return "", false, nil
	}
	return s, true, nil
}

// rangeTracker remembers the latest from and to dates seen in one pass and
// fails as soon as they are out of order.
type rangeTracker struct {
	from, to *time.Time
}

func (t *rangeTracker) observe(f Field, v Value) error {
	if !v.IsDate() {
		return nil
	}
	d := v.Date
	switch f.Kind {
	case KindDateFrom:
		t.from = &d
	case KindDateTo:
		t.to = &d
	default:
		return nil
	}

	if t.from != nil && t.to != nil && t.to.Before(*t.from) {
		return &ValidationError{Field: f.Param, Err: ErrInvalidRange}
	}
	return nil
}
