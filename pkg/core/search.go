package core

import (
	"strings"
	"time"
)

// Query maps field params to the values to match against.
type Query map[string]string

type predicate struct {
	field Field
	text  string
	date  time.Time
}

func (p predicate) match(rec Record) bool {
	v, ok := rec.Parameters[p.field.Param]
	if !ok {
		return false
	}

	switch p.field.Kind {
	case KindText:
		return strings.Contains(strings.ToLower(v.Text), p.text)
	case KindDateFrom:
		return v.IsDate() && !v.Date.After(p.date)
	case KindDateTo:
		return v.IsDate() && !v.Date.Before(p.date)
	default:
		return false
	}
}

// compile turns query into predicates in schema order. Keys that are not
// schema fields are ignored.
func compile(schema *Schema, query Query) ([]predicate, error) {
	var preds []predicate
	for _, f := range schema.fields {
		q, ok := query[f.Param]
		if !ok {
			continue
		}
		p := predicate{field: f}
		if f.Kind.IsDate() {
			t, err := ParseDate(q)
			if err != nil {
				return nil, &ValidationError{Field: f.Param, Err: err}
			}
			p.date = t
		} else {
			p.text = strings.ToLower(q)
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Search returns the records matching every query field, in input order.
//
// Text fields match by case-insensitive substring. A "from" date matches
// when the stored date is on or before the query date; a "to" date matches
// when the stored date is on or after it. A query that names no schema field
// constrains nothing and matches nothing.
func Search(schema *Schema, records []Record, query Query) ([]Record, error) {
	preds, err := compile(schema, query)
	if err != nil {
		return nil, err
	}

	result := []Record{}
	if len(preds) == 0 {
		return result, nil
	}

next:
	for _, rec := range records {
		for _, p := range preds {
			if !p.match(rec) {
				continue next
			}
		}
		result = append(result, rec)
	}
	return result, nil
}
