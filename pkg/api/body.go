package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/aretw0/certvault/pkg/core"
)

const maxBodyBytes = 1 << 20

// decodeInput reads a field map from a JSON or urlencoded form body.
// An empty body is an empty input.
func decodeInput(w http.ResponseWriter, r *http.Request) (core.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		input := make(core.Input, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) > 0 {
				input[k] = v[0]
			}
		}
		return input, nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var input core.Input
	if err := dec.Decode(&input); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Input{}, nil
		}
		return nil, fmt.Errorf("invalid json body: %w", err)
	}
	if input == nil {
		input = core.Input{}
	}
	return input, nil
}
