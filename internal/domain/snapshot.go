package domain

// SnapshotVersion is written into every exported snapshot
const SnapshotVersion = 1

// Snapshot is a portable dump of the node graph for import/export
type Snapshot struct {
	Version int            `json:"version"`
	Nodes   []SnapshotNode `json:"nodes"`
}

// SnapshotNode is a save payload plus every graph the node belongs to
type SnapshotNode struct {
	NodeInput
	Graphs []string `json:"graphs,omitempty"`
}

// NewSnapshot builds a snapshot from loaded nodes
func NewSnapshot(nodes []Node) *Snapshot {
	s := &Snapshot{
		Version: SnapshotVersion,
		Nodes:   make([]SnapshotNode, 0, len(nodes)),
	}
	for i := range nodes {
		s.AddNode(&nodes[i])
	}
	return s
}

// AddNode appends a loaded node to the snapshot
func (s *Snapshot) AddNode(n *Node) {
	graphs := make([]string, len(n.Graphs))
	copy(graphs, n.Graphs)
	s.Nodes = append(s.Nodes, SnapshotNode{
		NodeInput: n.ToInput(),
		Graphs:    graphs,
	})
}
