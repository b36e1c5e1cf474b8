package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"nodegraph/internal/apperr"
	"nodegraph/internal/codec"
	"nodegraph/internal/domain"
	"nodegraph/internal/metrics"
	"nodegraph/internal/repository"
)

// NodeService provides business logic for node graph operations
type NodeService struct {
	store   repository.Store
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewNodeService creates a new node service. metrics may be nil.
func NewNodeService(store repository.Store, m *metrics.Collector, logger *zap.Logger) *NodeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeService{
		store:   store,
		metrics: m,
		logger:  logger.Named("service"),
	}
}

// InitDB creates the schema
func (s *NodeService) InitDB(ctx context.Context) error {
	if err := s.store.Initialize(ctx); err != nil {
		s.logger.Error("schema initialization failed", zap.Error(err))
		return err
	}
	s.logger.Info("schema initialized")
	return nil
}

// DropTables removes the schema together with all data
func (s *NodeService) DropTables(ctx context.Context) error {
	if err := s.store.DropAll(ctx); err != nil {
		s.logger.Error("dropping tables failed", zap.Error(err))
		return err
	}
	s.logger.Warn("all tables dropped")
	return nil
}

// SaveNode validates and persists a node, returning its id
func (s *NodeService) SaveNode(ctx context.Context, in domain.NodeInput) (string, error) {
	if err := validateStruct(in); err != nil {
		s.logger.Debug("save rejected", zap.Error(err))
		return "", err
	}

	id, err := s.store.Save(ctx, in)
	if err != nil {
		s.logFailure("save", in.ID, err)
		return "", err
	}

	s.metrics.NodeSaved()
	s.logger.Info("node saved", zap.String("id", id))
	return id, nil
}

// LoadNodes returns every node, or only the members of graphID when given
func (s *NodeService) LoadNodes(ctx context.Context, graphID string) ([]domain.Node, error) {
	if graphID != "" {
		return s.store.LoadByGraph(ctx, graphID)
	}
	return s.store.LoadAll(ctx)
}

// GetNode retrieves a single node by ID
func (s *NodeService) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	return s.store.LoadOne(ctx, id)
}

// DeleteNode removes a node and everything that references it
func (s *NodeService) DeleteNode(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.logFailure("delete", &id, err)
		return err
	}

	s.metrics.NodeDeleted()
	s.logger.Info("node deleted", zap.String("id", id))
	return nil
}

// Export builds a snapshot of the whole graph
func (s *NodeService) Export(ctx context.Context) (*domain.Snapshot, error) {
	nodes, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewSnapshot(nodes), nil
}

// ExportTo writes a snapshot in the given format
func (s *NodeService) ExportTo(ctx context.Context, w io.Writer, format string) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}

	snap, err := s.Export(ctx)
	if err != nil {
		return err
	}

	return c.Encode(snap, w)
}

// Import validates and saves every snapshot node as one unit
func (s *NodeService) Import(ctx context.Context, snap *domain.Snapshot) (int, error) {
	for i := range snap.Nodes {
		if err := validateStruct(snap.Nodes[i].NodeInput); err != nil {
			appErr, _ := apperr.As(err)
			return 0, apperr.NewValidation(fmt.Sprintf("node %d: %s", i, appErr.Message)).
				WithDetails(appErr.Details).
				WithCause(err)
		}
	}

	start := time.Now()
	count, err := s.store.Import(ctx, snap)
	if err != nil {
		s.logger.Error("import failed", zap.Error(err))
		return 0, err
	}

	for i := 0; i < count; i++ {
		s.metrics.NodeSaved()
	}
	s.logger.Info("snapshot imported",
		zap.Int("nodes", count),
		zap.Duration("duration", time.Since(start)),
	)
	return count, nil
}

// ImportFrom decodes a snapshot in the given format and imports it
func (s *NodeService) ImportFrom(ctx context.Context, r io.Reader, format string) (int, error) {
	c, err := codec.ForFormat(format)
	if err != nil {
		return 0, err
	}

	snap, err := c.Decode(r)
	if err != nil {
		return 0, err
	}

	return s.Import(ctx, snap)
}

// Ready reports whether the store answers queries
func (s *NodeService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// logFailure logs store failures once; caller mistakes stay at debug
func (s *NodeService) logFailure(op string, id *string, err error) {
	switch apperr.TypeOf(err) {
	case apperr.TypeValidation, apperr.TypeNotFound:
		s.logger.Debug(op+" rejected", zap.Stringp("id", id), zap.Error(err))
	default:
		s.logger.Error(op+" failed", zap.Stringp("id", id), zap.Error(err))
	}
}
