package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"nodegraph/internal/apperr"
	"nodegraph/internal/domain"
	"nodegraph/internal/repository"
)

const upsertNode = `
INSERT INTO nodes (id, title, description, images, audio_files, documents,
	video_links, coordinates, type, parent_id, position, super_node_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	images = excluded.images,
	audio_files = excluded.audio_files,
	documents = excluded.documents,
	video_links = excluded.video_links,
	coordinates = excluded.coordinates,
	type = excluded.type,
	parent_id = excluded.parent_id,
	position = excluded.position,
	super_node_id = excluded.super_node_id,
	updated_at = CURRENT_TIMESTAMP`

const upsertMembership = `
INSERT INTO node_graphs (node_id, graph_id) VALUES (?, ?)
ON CONFLICT(node_id, graph_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`

// selectNodes is the aggregate read. %s takes an optional WHERE clause.
const selectNodes = `
SELECT ` + nodeColumns + `
FROM nodes n
LEFT JOIN connections c ON c.source_id = n.id
LEFT JOIN node_graphs g ON g.node_id = n.id
%s
GROUP BY n.id
ORDER BY n.rowid`

// Save upserts a node, replaces its outgoing connections and upserts its
// graph membership when a graph id is given. Validation runs before any
// statement is issued.
func (s *Store) Save(ctx context.Context, in domain.NodeInput) (string, error) {
	node, err := in.Normalize(s.idStrategy, s.newID)
	if err != nil {
		return "", err
	}

	err = s.run(ctx, "save", func(ctx context.Context) error {
		return s.withTx(ctx, func(ex repository.Executor) error {
			return saveNode(ctx, ex, node, nil)
		})
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("node saved",
		zap.String("id", node.ID),
		zap.Int("connections", len(node.Connections)),
	)
	return node.ID, nil
}

// saveNode writes one normalized node. extraGraphs are upserted alongside
// node.GraphID.
func saveNode(ctx context.Context, ex repository.Executor, node *domain.NormalizedNode, extraGraphs []string) error {
	args, err := nodeUpsertArgs(node)
	if err != nil {
		return apperr.NewValidation(err.Error()).WithCause(err)
	}

	if _, err := ex.ExecContext(ctx, upsertNode, args...); err != nil {
		return classify("upsert node", err)
	}

	if err := replaceConnections(ctx, ex, node.ID, node.Connections); err != nil {
		return err
	}

	if node.GraphID != nil {
		if _, err := ex.ExecContext(ctx, upsertMembership, node.ID, *node.GraphID); err != nil {
			return classify("upsert graph membership", err)
		}
	}
	for _, graphID := range extraGraphs {
		if graphID == "" {
			continue
		}
		if _, err := ex.ExecContext(ctx, upsertMembership, node.ID, graphID); err != nil {
			return classify("upsert graph membership", err)
		}
	}

	return nil
}

// replaceConnections deletes every outgoing connection of sourceID and
// inserts one row per target
func replaceConnections(ctx context.Context, ex repository.Executor, sourceID string, targets []string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM connections WHERE source_id = ?`, sourceID); err != nil {
		return classify("delete connections", err)
	}

	for _, target := range targets {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO connections (source_id, target_id) VALUES (?, ?)`,
			sourceID, target,
		); err != nil {
			return classify(fmt.Sprintf("insert connection %s -> %s", sourceID, target), err)
		}
	}

	return nil
}

// LoadAll returns every node with its connections and graphs
func (s *Store) LoadAll(ctx context.Context) ([]domain.Node, error) {
	var nodes []domain.Node
	err := s.run(ctx, "load_all", func(ctx context.Context) error {
		var err error
		nodes, err = queryNodes(ctx, s.db, "")
		return err
	})
	return nodes, err
}

// LoadByGraph returns the nodes that belong to graphID
func (s *Store) LoadByGraph(ctx context.Context, graphID string) ([]domain.Node, error) {
	var nodes []domain.Node
	err := s.run(ctx, "load_by_graph", func(ctx context.Context) error {
		var err error
		nodes, err = queryNodes(ctx, s.db,
			`WHERE EXISTS (SELECT 1 FROM node_graphs m WHERE m.node_id = n.id AND m.graph_id = ?)`,
			graphID,
		)
		return err
	})
	return nodes, err
}

// LoadOne returns a single node or a NOT_FOUND error
func (s *Store) LoadOne(ctx context.Context, id string) (*domain.Node, error) {
	var node *domain.Node
	err := s.run(ctx, "load_one", func(ctx context.Context) error {
		nodes, err := queryNodes(ctx, s.db, `WHERE n.id = ?`, id)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return apperr.NewNotFound("node", id)
		}
		node = &nodes[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func queryNodes(ctx context.Context, ex repository.Executor, where string, args ...any) ([]domain.Node, error) {
	rows, err := ex.QueryContext(ctx, fmt.Sprintf(selectNodes, where), args...)
	if err != nil {
		return nil, classify("query nodes", err)
	}
	defer rows.Close()

	nodes := []domain.Node{}
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, classify("scan node", err)
		}
		node, err := row.toDomain()
		if err != nil {
			return nil, apperr.NewInternal(fmt.Sprintf("decode node %s", row.ID)).WithCause(err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate nodes", err)
	}

	return nodes, nil
}

// Delete removes a node together with every connection that touches it and
// its graph memberships. A missing id is a NOT_FOUND error.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.run(ctx, "delete", func(ctx context.Context) error {
		return s.withTx(ctx, func(ex repository.Executor) error {
			var exists int
			err := ex.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NewNotFound("node", id)
			}
			if err != nil {
				return classify("lookup node", err)
			}

			if _, err := ex.ExecContext(ctx,
				`DELETE FROM connections WHERE source_id = ? OR target_id = ?`, id, id,
			); err != nil {
				return classify("delete connections", err)
			}
			if _, err := ex.ExecContext(ctx, `DELETE FROM node_graphs WHERE node_id = ?`, id); err != nil {
				return classify("delete graph memberships", err)
			}
			if _, err := ex.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
				return classify("delete node", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.logger.Debug("node deleted", zap.String("id", id))
	return nil
}

// Import saves every node of a snapshot in one transaction. Foreign keys
// are checked at commit, so nodes may reference nodes later in the
// snapshot. Any invalid node aborts the whole import before it starts.
func (s *Store) Import(ctx context.Context, snap *domain.Snapshot) (int, error) {
	if snap == nil || len(snap.Nodes) == 0 {
		return 0, nil
	}

	nodes := make([]*domain.NormalizedNode, len(snap.Nodes))
	for i, sn := range snap.Nodes {
		node, err := sn.Normalize(s.idStrategy, s.newID)
		if err != nil {
			if appErr, ok := apperr.As(err); ok {
				return 0, apperr.NewValidation(fmt.Sprintf("node %d: %s", i, appErr.Message)).WithCause(err)
			}
			return 0, err
		}
		nodes[i] = node
	}

	err := s.run(ctx, "import", func(ctx context.Context) error {
		return s.withTx(ctx, func(ex repository.Executor) error {
			if _, err := ex.ExecContext(ctx, `PRAGMA defer_foreign_keys = ON`); err != nil {
				return classify("defer foreign keys", err)
			}
			for i, node := range nodes {
				if err := saveNode(ctx, ex, node, snap.Nodes[i].Graphs); err != nil {
					return err
				}
			}
			// A deferred violation fails COMMIT but leaves the transaction
			// open, so check first and take the rollback path instead
			return foreignKeyCheck(ctx, ex)
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("snapshot imported", zap.Int("nodes", len(nodes)))
	return len(nodes), nil
}

// foreignKeyCheck reports the first dangling reference, if any
func foreignKeyCheck(ctx context.Context, ex repository.Executor) error {
	rows, err := ex.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return classify("foreign key check", err)
	}
	defer rows.Close()

	if rows.Next() {
		var (
			table  string
			rowid  sql.NullInt64
			parent string
			fkid   int
		)
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return classify("foreign key check", err)
		}
		return apperr.NewConstraint(fmt.Sprintf("import: %s row references missing %s", table, parent)).
			WithDetails(map[string]any{"table": table, "parent": parent})
	}
	return classify("foreign key check", rows.Err())
}
