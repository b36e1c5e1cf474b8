package domain

import "encoding/json"

// DefaultNodeType is stored when a saved node carries no type
const DefaultNodeType = "normal"

// Node is a persisted graph element as returned by reads. Connections and
// Graphs are derived from the connections and node_graphs tables and are
// never stored on the node row itself.
type Node struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Images      []string        `json:"images"`
	AudioFiles  []string        `json:"audioFiles"`
	Documents   []string        `json:"documents"`
	VideoLinks  []string        `json:"videoLinks"`
	Coordinates json.RawMessage `json:"coordinates"`
	Type        string          `json:"type"`
	ParentID    *string         `json:"parent_id"`
	Position    Position        `json:"position"`
	SuperNodeID *string         `json:"superNodeId"`

	Connections []string `json:"connections"`
	Graphs      []string `json:"graphs"`
}

// NewNode creates a node with every optional field at its default
func NewNode(id, title string) *Node {
	return &Node{
		ID:          id,
		Title:       title,
		Images:      []string{},
		AudioFiles:  []string{},
		Documents:   []string{},
		VideoLinks:  []string{},
		Type:        DefaultNodeType,
		Position:    Position{},
		Connections: []string{},
		Graphs:      []string{},
	}
}

// ToInput converts a read node back into a save payload. Every field is
// present, so saving the result reproduces the node exactly.
func (n *Node) ToInput() NodeInput {
	id := n.ID
	typ := n.Type
	pos := n.Position

	in := NodeInput{
		ID:          &id,
		Title:       n.Title,
		Description: cloneStringPtr(n.Description),
		Images:      cloneList(n.Images),
		AudioFiles:  cloneList(n.AudioFiles),
		Documents:   cloneList(n.Documents),
		VideoLinks:  cloneList(n.VideoLinks),
		Type:        &typ,
		ParentID:    cloneStringPtr(n.ParentID),
		Position:    &pos,
		SuperNodeID: cloneStringPtr(n.SuperNodeID),
	}
	if len(n.Coordinates) > 0 {
		in.Coordinates = append(json.RawMessage(nil), n.Coordinates...)
	}
	in.Connections = make([]*string, 0, len(n.Connections))
	for _, target := range n.Connections {
		target := target
		in.Connections = append(in.Connections, &target)
	}
	return in
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneList(list []string) *MediaList {
	out := make(MediaList, len(list))
	copy(out, list)
	return &out
}
