package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"nodegraph/internal/apperr"
	"nodegraph/internal/domain"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return FormatYAML
}

// ContentType returns the HTTP media type
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

// yamlSnapshot represents the YAML structure for a snapshot
type yamlSnapshot struct {
	Version int        `yaml:"version"`
	Nodes   []yamlNode `yaml:"nodes"`
}

// yamlNode mirrors domain.SnapshotNode. Coordinates hold arbitrary JSON, so
// they travel as a plain YAML value.
type yamlNode struct {
	ID          *string           `yaml:"id,omitempty"`
	Title       string            `yaml:"title"`
	Description *string           `yaml:"description,omitempty"`
	Images      *domain.MediaList `yaml:"images,omitempty"`
	AudioFiles  *domain.MediaList `yaml:"audio_files,omitempty"`
	Documents   *domain.MediaList `yaml:"documents,omitempty"`
	VideoLinks  *domain.MediaList `yaml:"video_links,omitempty"`
	Coordinates any               `yaml:"coordinates,omitempty"`
	Type        *string           `yaml:"type,omitempty"`
	ParentID    *string           `yaml:"parent_id,omitempty"`
	Position    *domain.Position  `yaml:"position,omitempty"`
	SuperNodeID *string           `yaml:"super_node_id,omitempty"`
	Connections []string          `yaml:"connections,omitempty"`
	GraphID     *string           `yaml:"graph_id,omitempty"`
	Graphs      []string          `yaml:"graphs,omitempty"`
}

// Decode reads a snapshot from YAML
func (c *YAMLCodec) Decode(r io.Reader) (*domain.Snapshot, error) {
	var ys yamlSnapshot
	if err := yaml.NewDecoder(r).Decode(&ys); err != nil && err != io.EOF {
		return nil, apperr.NewValidation(fmt.Sprintf("failed to parse YAML: %v", err)).WithCause(err)
	}

	snap := &domain.Snapshot{
		Version: ys.Version,
		Nodes:   make([]domain.SnapshotNode, 0, len(ys.Nodes)),
	}

	for i, yn := range ys.Nodes {
		coords, err := coordinatesToJSON(yn.Coordinates)
		if err != nil {
			return nil, apperr.NewValidation(fmt.Sprintf("node %d: coordinates: %v", i, err)).WithCause(err)
		}

		in := domain.NodeInput{
			ID:          yn.ID,
			Title:       yn.Title,
			Description: yn.Description,
			Images:      yn.Images,
			AudioFiles:  yn.AudioFiles,
			Documents:   yn.Documents,
			VideoLinks:  yn.VideoLinks,
			Coordinates: coords,
			Type:        yn.Type,
			ParentID:    yn.ParentID,
			Position:    yn.Position,
			SuperNodeID: yn.SuperNodeID,
			GraphID:     yn.GraphID,
		}
		for _, target := range yn.Connections {
			target := target
			in.Connections = append(in.Connections, &target)
		}

		snap.Nodes = append(snap.Nodes, domain.SnapshotNode{NodeInput: in, Graphs: yn.Graphs})
	}

	if err := checkVersion(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Encode writes a snapshot as YAML
func (c *YAMLCodec) Encode(snap *domain.Snapshot, w io.Writer) error {
	ys := yamlSnapshot{
		Version: snap.Version,
		Nodes:   make([]yamlNode, 0, len(snap.Nodes)),
	}

	for _, sn := range snap.Nodes {
		coords, err := coordinatesFromJSON(sn.Coordinates)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}

		yn := yamlNode{
			ID:          sn.ID,
			Title:       sn.Title,
			Description: sn.Description,
			Images:      sn.Images,
			AudioFiles:  sn.AudioFiles,
			Documents:   sn.Documents,
			VideoLinks:  sn.VideoLinks,
			Coordinates: coords,
			Type:        sn.Type,
			ParentID:    sn.ParentID,
			Position:    sn.Position,
			SuperNodeID: sn.SuperNodeID,
			Connections: domain.FilterConnections(sn.Connections),
			GraphID:     sn.GraphID,
			Graphs:      sn.Graphs,
		}
		ys.Nodes = append(ys.Nodes, yn)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(ys); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

func coordinatesToJSON(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func coordinatesFromJSON(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
