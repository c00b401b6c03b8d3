package fs

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/certvault/pkg/core"
)

func sampleRecord() core.Record {
	return core.Record{
		SerialNumber: 3,
		Parameters: map[string]core.Value{
			"issuedTo":  core.TextValue("Cisco"),
			"validFrom": core.DateValue(time.Date(2016, 12, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
}

func TestSerializers(t *testing.T) {
	rec := sampleRecord()

	for format, s := range DefaultSerializers() {
		t.Run(format, func(t *testing.T) {
			data, err := s.Serialize(rec)
			require.NoError(t, err)

			parsed, err := s.Parse(bytes.NewReader(data))
			require.NoError(t, err)
			assert.True(t, parsed.Equal(rec), "round trip changed the record:\n%s", data)
			assert.True(t, strings.HasPrefix(s.Extension(), "."))
		})
	}
}

func TestJSONSerializer_LegacyFile(t *testing.T) {
	// Files written by earlier deployments: compact, millisecond timestamps.
	legacy := `{"serialNumber":0,"parameters":{"issuedTo":{"type":"text","value":"Cisco"},` +
		`"validFrom":{"type":"date","value":"2016-12-01T00:00:00.000Z"}}}`

	rec, err := NewJSONSerializer().Parse(strings.NewReader(legacy))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.SerialNumber)
	assert.Equal(t, "Cisco", rec.Parameters["issuedTo"].Text)
	assert.True(t, rec.Parameters["validFrom"].Date.Equal(time.Date(2016, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSerializers_Invalid(t *testing.T) {
	_, err := NewJSONSerializer().Parse(strings.NewReader("{not json"))
	assert.ErrorContains(t, err, "invalid json")

	_, err = NewYAMLSerializer().Parse(strings.NewReader("serialNumber: [1"))
	assert.ErrorContains(t, err, "invalid yaml")

	_, err = NewJSONSerializer().Parse(strings.NewReader(`{"serialNumber":1,"parameters":{"x":{"type":"date","value":"soon"}}}`))
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestYAMLSerializer_Readable(t *testing.T) {
	data, err := NewYAMLSerializer().Serialize(sampleRecord())
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "serialNumber: 3")
	assert.Contains(t, out, "type: text")
	assert.Contains(t, out, "value: Cisco")
}
