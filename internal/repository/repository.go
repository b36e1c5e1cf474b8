package repository

import (
	"context"
	"database/sql"

	"nodegraph/internal/domain"
)

// Executor runs parameterized statements. *sql.DB and *sql.Tx both satisfy
// it, so repository code is written once and runs inside or outside a
// transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SchemaManager creates and tears down the nodes, connections and
// node_graphs tables
type SchemaManager interface {
	// Initialize creates nodes, then connections, then node_graphs.
	// Safe to call when the tables already exist.
	Initialize(ctx context.Context) error
	// DropAll drops connections, then node_graphs, then nodes
	DropAll(ctx context.Context) error
}

// NodeRepository persists nodes with their outgoing connections and graph
// memberships
type NodeRepository interface {
	// Save upserts the node, replaces its outgoing connections and, when a
	// graph id is given, upserts its membership. Returns the resolved id.
	Save(ctx context.Context, in domain.NodeInput) (string, error)
	LoadAll(ctx context.Context) ([]domain.Node, error)
	LoadByGraph(ctx context.Context, graphID string) ([]domain.Node, error)
	LoadOne(ctx context.Context, id string) (*domain.Node, error)
	// Delete removes connections where the node is source or target, then
	// its memberships, then the node row
	Delete(ctx context.Context, id string) error
	// Import saves every snapshot node in one unit
	Import(ctx context.Context, snap *domain.Snapshot) (int, error)
}

// Store is the full persistence surface used by the service layer
type Store interface {
	SchemaManager
	NodeRepository
	Ping(ctx context.Context) error
	Close() error
}
