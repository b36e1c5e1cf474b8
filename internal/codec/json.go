package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"nodegraph/internal/apperr"
	"nodegraph/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return FormatJSON
}

// ContentType returns the HTTP media type
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Decode reads a snapshot from JSON
func (c *JSONCodec) Decode(r io.Reader) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, apperr.NewValidation(fmt.Sprintf("failed to parse JSON: %v", err)).WithCause(err)
	}
	if err := checkVersion(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Encode writes a snapshot as indented JSON
func (c *JSONCodec) Encode(snap *domain.Snapshot, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
