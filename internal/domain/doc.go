// Package domain defines the node graph types shared by every layer.
//
// Node is the read model: a tree-structured element (ParentID) with an
// optional grouping pointer (SuperNodeID), media references, a canvas
// position and two derived lists, its outgoing Connections and the Graphs it
// belongs to.
//
// NodeInput is the write model. Its pointer fields separate a field that was
// not sent from one sent empty, and Normalize substitutes defaults only for
// the former:
//
//   - images, audioFiles, documents, videoLinks default to []
//   - type defaults to "normal"
//   - position defaults to {dx:0, dy:0}
//   - description, coordinates, parent_id and superNodeId stay null
//
// Snapshot is the portable import/export form.
//
// This package has no database or transport dependencies.
package domain
