package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"nodegraph/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToStringPtr converts sql.NullString to *string (nil when NULL)
func nullToStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// stringPtrToNull converts *string to sql.NullString (NULL when nil)
func stringPtrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// ============================================================================
// JSON Column Codecs
// ============================================================================
//
// Each structured node field has a serialize/deserialize pair. Defaults are
// substituted on read only when the column is NULL or empty, never when it
// holds an empty value such as "[]".

// marshalList serializes a reference list; nil is written as "[]"
func marshalList(list []string) (string, error) {
	if list == nil {
		return "[]", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalList deserializes a reference list, defaulting to []
func unmarshalList(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(ns.String), &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// marshalPosition serializes a position
func marshalPosition(p domain.Position) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalPosition deserializes a position, defaulting to {0,0}
func unmarshalPosition(ns sql.NullString) (domain.Position, error) {
	var p domain.Position
	if !ns.Valid || ns.String == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(ns.String), &p); err != nil {
		return domain.Position{}, err
	}
	return p, nil
}

// rawToNull stores an opaque JSON value; nil becomes NULL
func rawToNull(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

// nullToRaw reads an opaque JSON value; NULL stays nil
func nullToRaw(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

// unmarshalIDSet reads a json_group_array result. LEFT JOIN misses
// aggregate as null entries, which are dropped.
func unmarshalIDSet(ns sql.NullString) ([]string, error) {
	out := []string{}
	if !ns.Valid || ns.String == "" {
		return out, nil
	}
	var raw []*string
	if err := json.Unmarshal([]byte(ns.String), &raw); err != nil {
		return nil, err
	}
	for _, id := range raw {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out, nil
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a new column to the nodes table:
// 1. Add the column to createNodesTable in schema.go
// 2. Add field to nodeRow struct (below)
// 3. Update scanArgs() - APPEND to end of the node columns, before the
//    aggregate columns
// 4. Update nodeColumns constant in the same position
// 5. Update toDomain() and nodeUpsertArgs()
// 6. Update upsertNode in nodes.go
// 7. Update relevant tests
//
// CRITICAL: Column order must match between:
// - nodeColumns constant
// - scanArgs() return slice
// - nodeUpsertArgs() and the upsertNode column list

// ============================================================================
// Node Row Scanner
// ============================================================================

// nodeRow holds all columns from a node query for scanning
type nodeRow struct {
	ID              string
	Title           string
	Description     sql.NullString
	ImagesJSON      sql.NullString
	AudioFilesJSON  sql.NullString
	DocumentsJSON   sql.NullString
	VideoLinksJSON  sql.NullString
	CoordinatesJSON sql.NullString
	Type            sql.NullString
	ParentID        sql.NullString
	PositionJSON    sql.NullString
	SuperNodeID     sql.NullString
	ConnectionsJSON sql.NullString
	GraphsJSON      sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match nodeColumns order exactly:
// id, title, description, images, audio_files, documents, video_links,
// coordinates, type, parent_id, position, super_node_id, connections, graphs
func (r *nodeRow) scanArgs() []any {
	return []any{
		&r.ID,              // 1
		&r.Title,           // 2
		&r.Description,     // 3
		&r.ImagesJSON,      // 4
		&r.AudioFilesJSON,  // 5
		&r.DocumentsJSON,   // 6
		&r.VideoLinksJSON,  // 7
		&r.CoordinatesJSON, // 8
		&r.Type,            // 9
		&r.ParentID,        // 10
		&r.PositionJSON,    // 11
		&r.SuperNodeID,     // 12
		&r.ConnectionsJSON, // 13
		&r.GraphsJSON,      // 14
	}
}

// toDomain converts the scanned row to a domain.Node
func (r *nodeRow) toDomain() (*domain.Node, error) {
	node := domain.NewNode(r.ID, r.Title)
	node.Description = nullToStringPtr(r.Description)
	node.Coordinates = nullToRaw(r.CoordinatesJSON)
	node.ParentID = nullToStringPtr(r.ParentID)
	node.SuperNodeID = nullToStringPtr(r.SuperNodeID)
	if r.Type.Valid {
		node.Type = r.Type.String
	}

	var err error
	if node.Images, err = unmarshalList(r.ImagesJSON); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}
	if node.AudioFiles, err = unmarshalList(r.AudioFilesJSON); err != nil {
		return nil, fmt.Errorf("unmarshal audio files: %w", err)
	}
	if node.Documents, err = unmarshalList(r.DocumentsJSON); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if node.VideoLinks, err = unmarshalList(r.VideoLinksJSON); err != nil {
		return nil, fmt.Errorf("unmarshal video links: %w", err)
	}
	if node.Position, err = unmarshalPosition(r.PositionJSON); err != nil {
		return nil, fmt.Errorf("unmarshal position: %w", err)
	}
	if node.Connections, err = unmarshalIDSet(r.ConnectionsJSON); err != nil {
		return nil, fmt.Errorf("unmarshal connections: %w", err)
	}
	if node.Graphs, err = unmarshalIDSet(r.GraphsJSON); err != nil {
		return nil, fmt.Errorf("unmarshal graphs: %w", err)
	}

	return node, nil
}

// nodeColumns is the SELECT list for node queries. The last two columns are
// aggregates over the connections and node_graphs joins.
const nodeColumns = `n.id, n.title, n.description, n.images, n.audio_files,
	n.documents, n.video_links, n.coordinates, n.type, n.parent_id,
	n.position, n.super_node_id,
	json_group_array(DISTINCT c.target_id),
	json_group_array(DISTINCT g.graph_id)`

// ============================================================================
// Node Write Helpers
// ============================================================================

// nodeUpsertArgs prepares arguments for the node UPSERT
// Returns: id, title, description, images, audio_files, documents,
//
//	video_links, coordinates, type, parent_id, position, super_node_id
func nodeUpsertArgs(n *domain.NormalizedNode) ([]any, error) {
	images, err := marshalList(n.Images)
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	audio, err := marshalList(n.AudioFiles)
	if err != nil {
		return nil, fmt.Errorf("marshal audio files: %w", err)
	}
	docs, err := marshalList(n.Documents)
	if err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}
	videos, err := marshalList(n.VideoLinks)
	if err != nil {
		return nil, fmt.Errorf("marshal video links: %w", err)
	}
	position, err := marshalPosition(n.Position)
	if err != nil {
		return nil, fmt.Errorf("marshal position: %w", err)
	}

	return []any{
		n.ID,
		n.Title,
		stringPtrToNull(n.Description),
		images,
		audio,
		docs,
		videos,
		rawToNull(n.Coordinates),
		n.Type,
		stringPtrToNull(n.ParentID),
		position,
		stringPtrToNull(n.SuperNodeID),
	}, nil
}
