// Package metadata loads the auxiliary JSON input that accompanies an image.
// The value is decoded as-is; no schema is imposed on it.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"vesselmask/internal/models"
)

// ErrMalformedMetadata is returned when the metadata file is missing,
// unreadable or not valid JSON
var ErrMalformedMetadata = errors.New("malformed metadata")

// Load reads the whole file at path and decodes it as a single JSON value
func Load(path string) (models.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	return Decode(data)
}

// Decode parses data as exactly one JSON value. Numbers are kept as
// json.Number so integer values such as ages survive unchanged.
func Decode(data []byte) (models.Metadata, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedMetadata)
	}
	return value, nil
}
