// Package codec reads and writes node graph snapshots.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"nodegraph/internal/apperr"
	"nodegraph/internal/domain"
)

// Codec converts snapshots to and from one file format
type Codec interface {
	Decode(r io.Reader) (*domain.Snapshot, error)
	Encode(snap *domain.Snapshot, w io.Writer) error
	Format() string
	ContentType() string
}

// Format identifiers
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ForFormat returns the codec for a format name. An empty name means JSON.
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return NewJSONCodec(), nil
	case FormatYAML, "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, apperr.NewValidation(fmt.Sprintf("unsupported format %q", format)).
			WithDetails(map[string]any{"supported": []string{FormatJSON, FormatYAML}})
	}
}

// ForPath picks a codec from a file extension
func ForPath(path string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, apperr.NewValidation(fmt.Sprintf("cannot infer format of %s", path))
	}
	return ForFormat(ext)
}

// checkVersion rejects snapshots written by a newer format. A missing
// version is read as the current one.
func checkVersion(snap *domain.Snapshot) error {
	if snap.Version > domain.SnapshotVersion {
		return apperr.NewValidation(fmt.Sprintf(
			"snapshot version %d is newer than supported version %d",
			snap.Version, domain.SnapshotVersion,
		))
	}
	if snap.Version == 0 {
		snap.Version = domain.SnapshotVersion
	}
	return nil
}
