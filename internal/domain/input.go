package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"nodegraph/internal/apperr"
)

// IDStrategy controls how Save resolves a node's key
type IDStrategy string

const (
	// IDGenerated assigns a fresh id when the caller omits one and otherwise
	// uses the supplied id verbatim
	IDGenerated IDStrategy = "generated"
	// IDCallerSupplied requires every save to carry its own id
	IDCallerSupplied IDStrategy = "caller-supplied"
)

// ParseIDStrategy validates a configured strategy name
func ParseIDStrategy(s string) (IDStrategy, error) {
	switch IDStrategy(s) {
	case IDGenerated, IDCallerSupplied:
		return IDStrategy(s), nil
	case "":
		return IDGenerated, nil
	default:
		return "", fmt.Errorf("unknown id strategy %q (want %q or %q)", s, IDGenerated, IDCallerSupplied)
	}
}

// NodeInput is the save payload. Pointer and raw fields keep "absent" apart
// from "present but empty": a nil Images means the field was not sent, a
// pointer to an empty slice means the caller sent [].
type NodeInput struct {
	ID          *string         `json:"id,omitempty"`
	Title       string          `json:"title" validate:"required"`
	Description *string         `json:"description,omitempty"`
	Images      *MediaList      `json:"images,omitempty"`
	AudioFiles  *MediaList      `json:"audioFiles,omitempty"`
	Documents   *MediaList      `json:"documents,omitempty"`
	VideoLinks  *MediaList      `json:"videoLinks,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Type        *string         `json:"type,omitempty"`
	ParentID    *string         `json:"parent_id,omitempty"`
	Position    *Position       `json:"position,omitempty"`
	SuperNodeID *string         `json:"superNodeId,omitempty"`
	Connections []*string       `json:"connections,omitempty"`
	GraphID     *string         `json:"graph_id,omitempty"`
}

// NormalizedNode is a NodeInput with the id resolved and every default
// substituted, ready to be written.
type NormalizedNode struct {
	ID          string
	Title       string
	Description *string
	Images      []string
	AudioFiles  []string
	Documents   []string
	VideoLinks  []string
	Coordinates json.RawMessage
	Type        string
	ParentID    *string
	Position    Position
	SuperNodeID *string
	Connections []string
	GraphID     *string
}

// Normalize validates the payload and substitutes defaults for absent fields.
// newID is only called under IDGenerated when no id was supplied.
func (in NodeInput) Normalize(strategy IDStrategy, newID func() string) (*NormalizedNode, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.NewValidation("title is required")
	}

	// supplied ids are stored verbatim; whitespace only counts as absent
	id := ""
	if in.ID != nil && strings.TrimSpace(*in.ID) != "" {
		id = *in.ID
	}
	if id == "" {
		if strategy == IDCallerSupplied {
			return nil, apperr.NewValidation("id is required")
		}
		id = newID()
	}

	coords, err := normalizeCoordinates(in.Coordinates)
	if err != nil {
		return nil, err
	}

	n := &NormalizedNode{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Images:      listOrEmpty(in.Images),
		AudioFiles:  listOrEmpty(in.AudioFiles),
		Documents:   listOrEmpty(in.Documents),
		VideoLinks:  listOrEmpty(in.VideoLinks),
		Coordinates: coords,
		Type:        DefaultNodeType,
		ParentID:    nonEmpty(in.ParentID),
		SuperNodeID: nonEmpty(in.SuperNodeID),
		Connections: FilterConnections(in.Connections),
		GraphID:     nonEmpty(in.GraphID),
	}
	if in.Type != nil {
		n.Type = *in.Type
	}
	if in.Position != nil {
		n.Position = *in.Position
	}

	return n, nil
}

// FilterConnections drops nil and blank targets and collapses duplicates,
// keeping first-seen order. Kept targets are not trimmed.
func FilterConnections(targets []*string) []string {
	out := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if t == nil {
			continue
		}
		target := *t
		if strings.TrimSpace(target) == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

func listOrEmpty(list *MediaList) []string {
	if list == nil || *list == nil {
		return []string{}
	}
	out := make([]string, len(*list))
	copy(out, *list)
	return out
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// normalizeCoordinates compacts a coordinates value; JSON null counts as absent
func normalizeCoordinates(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, apperr.NewValidation("coordinates must be valid JSON").WithCause(err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
