package core_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/certvault/pkg/core"
)

func ciscoInput() core.Input {
	return core.Input{
		"issuedTo":  "Cisco",
		"issuedBy":  "Google",
		"validFrom": "2016-12-01",
		"validTo":   "2017-12-01",
	}
}

func date(s string) time.Time {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBuild(t *testing.T) {
	schema := testSchema(t)

	rec, err := core.Build(schema, ciscoInput(), 7)
	require.NoError(t, err)

	assert.Equal(t, 7, rec.SerialNumber)
	assert.Len(t, rec.Parameters, 4)
	assert.Equal(t, core.TextValue("Cisco"), rec.Parameters["issuedTo"])
	assert.Equal(t, core.TypeText, rec.Parameters["issuedBy"].Type)
	assert.Equal(t, core.TypeDate, rec.Parameters["validFrom"].Type)
	assert.True(t, rec.Parameters["validFrom"].Date.Equal(date("2016-12-01")))
	assert.True(t, rec.Parameters["validTo"].Date.Equal(date("2017-12-01")))
}

func TestBuild_IgnoresExtraFields(t *testing.T) {
	input := ciscoInput()
	input["comment"] = "not in schema"

	rec, err := core.Build(testSchema(t), input, 0)
	require.NoError(t, err)
	assert.NotContains(t, rec.Parameters, "comment")
}

func TestBuild_MissingField(t *testing.T) {
	schema := testSchema(t)

	for _, f := range schema.Fields() {
		for name, replace := range map[string]any{"absent": nil, "null": nil, "empty": ""} {
			t.Run(f.Param+"/"+name, func(t *testing.T) {
				input := ciscoInput()
				if name == "absent" {
					delete(input, f.Param)
				} else {
					input[f.Param] = replace
				}

				_, err := core.Build(schema, input, 0)
				require.Error(t, err)
				assert.True(t, errors.Is(err, core.ErrMissingField), "got %v", err)

				var ve *core.ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, f.Param, ve.Field)
			})
		}
	}

	_, err := core.Build(schema, core.Input{}, 0)
	assert.ErrorIs(t, err, core.ErrMissingField)
}

func TestBuild_Range(t *testing.T) {
	schema := testSchema(t)

	input := ciscoInput()
	input["validFrom"] = "2017-12-01"
	input["validTo"] = "2016-12-01"
	_, err := core.Build(schema, input, 0)
	assert.ErrorIs(t, err, core.ErrInvalidRange)

	// Same day is a valid range.
	input["validTo"] = "2017-12-01"
	_, err = core.Build(schema, input, 0)
	assert.NoError(t, err)
}

func TestBuild_RangeWhenToComesFirst(t *testing.T) {
	schema, err := core.NewSchema(core.Settings{Parameters: []core.FieldDefinition{
		{Param: "end", Type: core.TypeDate, Comparator: core.ComparatorTo},
		{Param: "start", Type: core.TypeDate, Comparator: core.ComparatorFrom},
	}})
	require.NoError(t, err)

	_, err = core.Build(schema, core.Input{"end": "2000-01-01", "start": "2001-01-01"}, 0)
	assert.ErrorIs(t, err, core.ErrInvalidRange)

	_, err = core.Build(schema, core.Input{"end": "2001-01-01", "start": "2000-01-01"}, 0)
	assert.NoError(t, err)
}

func TestBuild_InvalidDate(t *testing.T) {
	input := ciscoInput()
	input["validFrom"] = "12/1/2016"

	_, err := core.Build(testSchema(t), input, 0)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
	assert.True(t, core.IsValidation(err))
}

func TestBuild_NonStringValues(t *testing.T) {
	schema := testSchema(t)

	input := ciscoInput()
	input["issuedTo"] = json.Number("42")
	input["issuedBy"] = true
	rec, err := core.Build(schema, input, 0)
	require.NoError(t, err)
	assert.Equal(t, "42", rec.Parameters["issuedTo"].Text)
	assert.Equal(t, "true", rec.Parameters["issuedBy"].Text)

	input["issuedTo"] = map[string]any{"nested": "value"}
	_, err = core.Build(schema, input, 0)
	assert.ErrorIs(t, err, core.ErrInvalidValue)
}

func TestMerge(t *testing.T) {
	schema := testSchema(t)
	current, err := core.Build(schema, ciscoInput(), 3)
	require.NoError(t, err)

	t.Run("Partial", func(t *testing.T) {
		merged, err := core.Merge(schema, current, core.Input{"issuedTo": "Infosys", "issuedBy": ""})
		require.NoError(t, err)
		assert.Equal(t, 3, merged.SerialNumber)
		assert.Equal(t, "Infosys", merged.Parameters["issuedTo"].Text)
		assert.Equal(t, "Google", merged.Parameters["issuedBy"].Text)
		assert.True(t, merged.Parameters["validTo"].Equal(current.Parameters["validTo"]))

		// current is untouched
		assert.Equal(t, "Cisco", current.Parameters["issuedTo"].Text)
	})

	t.Run("Range Uses Existing Values", func(t *testing.T) {
		// validTo stays 2017-12-01, so moving validFrom past it must fail.
		_, err := core.Merge(schema, current, core.Input{"validFrom": "2018-01-01"})
		assert.ErrorIs(t, err, core.ErrInvalidRange)
	})

	t.Run("Both Dates Reversed", func(t *testing.T) {
		_, err := core.Merge(schema, current, core.Input{"validFrom": "2017-11-05", "validTo": "2015-04-06"})
		assert.ErrorIs(t, err, core.ErrInvalidRange)
	})

	t.Run("Empty Input", func(t *testing.T) {
		merged, err := core.Merge(schema, current, nil)
		require.NoError(t, err)
		assert.True(t, merged.Equal(current))
	})
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2016-12-01", "2016-12-01T00:00:00Z", "2016-12-01T00:00:00.000Z", " 2016-12-01 "} {
		got, err := core.ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(date("2016-12-01")), in)
	}

	got, err := core.ParseDate("2016-12-01T02:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(date("2016-12-01")))

	// Time of day is kept, so it takes part in range checks and search.
	got, err = core.ParseDate("2016-12-01T15:30:00Z")
	require.NoError(t, err)
	assert.True(t, got.After(date("2016-12-01")))
	assert.Equal(t, "2016-12-01T15:30:00Z", core.FormatDate(got))

	for _, in := range []string{"", "12/1/2016", "2016-13-01", "yesterday"} {
		_, err := core.ParseDate(in)
		assert.ErrorIs(t, err, core.ErrInvalidDate, in)
	}
}

func TestValue_Encoding(t *testing.T) {
	rec := core.Record{
		SerialNumber: 1,
		Parameters: map[string]core.Value{
			"issuedTo":  core.TextValue("Cisco"),
			"validFrom": core.DateValue(date("2016-12-01")),
		},
	}

	t.Run("JSON", func(t *testing.T) {
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"serialNumber": 1,
			"parameters": {
				"issuedTo": {"type": "text", "value": "Cisco"},
				"validFrom": {"type": "date", "value": "2016-12-01T00:00:00Z"}
			}
		}`, string(data))

		var back core.Record
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, back.Equal(rec))
	})

	t.Run("YAML", func(t *testing.T) {
		data, err := yaml.Marshal(rec)
		require.NoError(t, err)
		assert.Contains(t, string(data), "serialNumber: 1")

		var back core.Record
		require.NoError(t, yaml.Unmarshal(data, &back))
		assert.True(t, back.Equal(rec))
	})

	t.Run("Legacy Timestamps", func(t *testing.T) {
		var v core.Value
		require.NoError(t, json.Unmarshal([]byte(`{"type":"date","value":"2016-12-01T00:00:00.000Z"}`), &v))
		assert.True(t, v.Date.Equal(date("2016-12-01")))

		require.NoError(t, json.Unmarshal([]byte(`{"type":"text","value":42}`), &v))
		assert.Equal(t, "42", v.Text)

		assert.Error(t, json.Unmarshal([]byte(`{"type":"blob","value":"x"}`), &v))
	})
}
