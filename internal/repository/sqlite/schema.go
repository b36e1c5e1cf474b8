package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nodegraph/internal/apperr"
)

const createNodesTable = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	images TEXT NOT NULL DEFAULT '[]',
	audio_files TEXT NOT NULL DEFAULT '[]',
	documents TEXT NOT NULL DEFAULT '[]',
	video_links TEXT NOT NULL DEFAULT '[]',
	coordinates TEXT,
	type TEXT NOT NULL DEFAULT 'normal',
	parent_id TEXT REFERENCES nodes(id) ON DELETE SET NULL,
	position TEXT NOT NULL DEFAULT '{"dx":0,"dy":0}',
	super_node_id TEXT REFERENCES nodes(id) ON DELETE SET NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const createConnectionsTable = `
CREATE TABLE IF NOT EXISTS connections (
	source_id TEXT NOT NULL REFERENCES nodes(id),
	target_id TEXT NOT NULL REFERENCES nodes(id),
	PRIMARY KEY (source_id, target_id)
)`

const createNodeGraphsTable = `
CREATE TABLE IF NOT EXISTS node_graphs (
	node_id TEXT NOT NULL REFERENCES nodes(id),
	graph_id TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (node_id, graph_id)
)`

type schemaStep struct {
	name string
	sql  string
}

// createSteps run in dependency order: nodes before the tables that
// reference it
var createSteps = []schemaStep{
	{"create table nodes", createNodesTable},
	{"create index nodes parent", `CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id)`},
	{"create table connections", createConnectionsTable},
	{"create index connections target", `CREATE INDEX IF NOT EXISTS idx_connections_target ON connections(target_id)`},
	{"create table node_graphs", createNodeGraphsTable},
	{"create index node_graphs graph", `CREATE INDEX IF NOT EXISTS idx_node_graphs_graph ON node_graphs(graph_id)`},
}

// dropSteps remove dependents before the table they reference
var dropSteps = []schemaStep{
	{"drop table connections", `DROP TABLE IF EXISTS connections`},
	{"drop table node_graphs", `DROP TABLE IF EXISTS node_graphs`},
	{"drop table nodes", `DROP TABLE IF EXISTS nodes`},
}

// Initialize creates the nodes, connections and node_graphs tables if they
// are missing. It stops at the first failing step, so a dependent table is
// never created without its parent.
func (s *Store) Initialize(ctx context.Context) error {
	return s.runSchema(ctx, "initialize", createSteps)
}

// DropAll drops connections, node_graphs and nodes in that order
func (s *Store) DropAll(ctx context.Context) error {
	return s.runSchema(ctx, "drop_all", dropSteps)
}

func (s *Store) runSchema(ctx context.Context, op string, steps []schemaStep) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		for i, step := range steps {
			if _, err := s.db.ExecContext(ctx, step.sql); err != nil {
				return apperr.NewSchema(
					fmt.Sprintf("step %d (%s)", i+1, step.name),
					err.Error(),
				).WithCause(err)
			}
		}
		s.logger.Info("schema operation complete", zap.String("operation", op), zap.Int("steps", len(steps)))
		return nil
	})
}
