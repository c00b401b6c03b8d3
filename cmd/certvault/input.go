package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/certvault/pkg/core"
)

// parseAssignments turns ["field=value", ...] into a map. A later
// assignment to the same field wins.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		out[key] = value
	}
	return out, nil
}

func toInput(fields map[string]string) core.Input {
	input := make(core.Input, len(fields))
	for k, v := range fields {
		input[k] = v
	}
	return input
}

func parseSerial(arg string) (int, error) {
	serial, err := strconv.Atoi(arg)
	if err != nil || serial < 0 {
		return 0, fmt.Errorf("invalid serial number %q", arg)
	}
	return serial, nil
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// printRecord writes one line per record: the serial followed by the fields
// in schema order.
func printRecord(w io.Writer, schema *core.Schema, rec core.Record) {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", rec.SerialNumber)
	for _, f := range schema.Fields() {
		v, ok := rec.Parameters[f.Param]
		if !ok {
			continue
		}
		text := v.String()
		if v.IsDate() {
			text = v.Date.Format(core.DateLayout)
		}
		fmt.Fprintf(&b, "\t%s=%s", f.Param, text)
	}
	fmt.Fprintln(w, b.String())
}
