package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodegraph/internal/apperr"
	"nodegraph/internal/domain"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestStore creates an initialized in-memory store for testing
func newTestStore(t *testing.T, configure ...func(*Options)) *Store {
	t.Helper()
	opts := DefaultOptions()
	for _, fn := range configure {
		fn(&opts)
	}

	store, err := Open(":memory:", opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	require.NoError(t, store.Initialize(context.Background()))
	return store
}

func ptr[T any](v T) *T { return &v }

func targets(ids ...string) []*string {
	out := make([]*string, len(ids))
	for i := range ids {
		out[i] = &ids[i]
	}
	return out
}

// saveNode saves a node and fails the test on error
func mustSave(t *testing.T, s *Store, in domain.NodeInput) string {
	t.Helper()
	id, err := s.Save(context.Background(), in)
	require.NoError(t, err)
	return id
}

func countRows(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(query, args...).Scan(&n))
	return n
}

// ============================================================================
// Schema Manager Tests
// ============================================================================

func TestInitializeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "Root"})
	require.NoError(t, s.Initialize(ctx))

	for _, table := range []string{"nodes", "connections", "node_graphs"} {
		assert.Equal(t, 1, countRows(t, s,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table), table)
	}

	// existing data survives a second initialize
	_, err := s.LoadOne(ctx, "n1")
	assert.NoError(t, err)
}

func TestDropAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A"})
	mustSave(t, s, domain.NodeInput{ID: ptr("b"), Title: "B", Connections: targets("a"), GraphID: ptr("g1")})

	require.NoError(t, s.DropAll(ctx))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`))

	// dropping again is a no-op
	require.NoError(t, s.DropAll(ctx))

	_, err := s.LoadAll(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsSchema(err), "got %v", err)

	require.NoError(t, s.Initialize(ctx))
	nodes, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestOperationsBeforeInitialize(t *testing.T) {
	store, err := Open(":memory:", DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.LoadOne(context.Background(), "n1")
	require.Error(t, err)
	assert.True(t, apperr.IsSchema(err), "got %v", err)
}

func TestSchemaErrorOnClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.db.Close())

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsSchema(err), "got %v", err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Details["step"], "create table nodes")
}

// ============================================================================
// Save / Load Round-Trip Tests
// ============================================================================

func TestSaveMinimalNodeDefaults(t *testing.T) {
	s := newTestStore(t)

	id := mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "Root"})
	assert.Equal(t, "n1", id)

	node, err := s.LoadOne(context.Background(), "n1")
	require.NoError(t, err)

	assert.Equal(t, "n1", node.ID)
	assert.Equal(t, "Root", node.Title)
	assert.Nil(t, node.Description)
	assert.Equal(t, []string{}, node.Images)
	assert.Equal(t, []string{}, node.AudioFiles)
	assert.Equal(t, []string{}, node.Documents)
	assert.Equal(t, []string{}, node.VideoLinks)
	assert.Nil(t, node.Coordinates)
	assert.Equal(t, "normal", node.Type)
	assert.Nil(t, node.ParentID)
	assert.Equal(t, domain.Position{DX: 0, DY: 0}, node.Position)
	assert.Nil(t, node.SuperNodeID)
	assert.Equal(t, []string{}, node.Connections)
	assert.Equal(t, []string{}, node.Graphs)
}

func TestSaveRoundTripsEveryField(t *testing.T) {
	s := newTestStore(t)

	mustSave(t, s, domain.NodeInput{ID: ptr("parent"), Title: "Parent"})
	mustSave(t, s, domain.NodeInput{ID: ptr("group"), Title: "Group"})
	mustSave(t, s, domain.NodeInput{ID: ptr("other"), Title: "Other"})

	in := domain.NodeInput{
		ID:          ptr("n1"),
		Title:       "Full",
		Description: ptr("described"),
		Images:      &domain.MediaList{"https://img/1.png", "https://img/2.png"},
		AudioFiles:  &domain.MediaList{"a.mp3"},
		Documents:   &domain.MediaList{"d.pdf"},
		VideoLinks:  &domain.MediaList{"https://video/1"},
		Coordinates: json.RawMessage(`{"lat": 52.5, "lng": 13.4}`),
		Type:        ptr("super"),
		ParentID:    ptr("parent"),
		Position:    &domain.Position{DX: 12.5, DY: -4},
		SuperNodeID: ptr("group"),
		Connections: targets("other", "parent"),
		GraphID:     ptr("g1"),
	}
	mustSave(t, s, in)

	node, err := s.LoadOne(context.Background(), "n1")
	require.NoError(t, err)

	assert.Equal(t, "Full", node.Title)
	assert.Equal(t, "described", *node.Description)
	assert.Equal(t, []string{"https://img/1.png", "https://img/2.png"}, node.Images)
	assert.Equal(t, []string{"a.mp3"}, node.AudioFiles)
	assert.Equal(t, []string{"d.pdf"}, node.Documents)
	assert.Equal(t, []string{"https://video/1"}, node.VideoLinks)
	assert.JSONEq(t, `{"lat":52.5,"lng":13.4}`, string(node.Coordinates))
	assert.Equal(t, "super", node.Type)
	assert.Equal(t, "parent", *node.ParentID)
	assert.Equal(t, domain.Position{DX: 12.5, DY: -4}, node.Position)
	assert.Equal(t, "group", *node.SuperNodeID)
	assert.ElementsMatch(t, []string{"other", "parent"}, node.Connections)
	assert.Equal(t, []string{"g1"}, node.Graphs)
}

func TestSaveEmptyVersusAbsentLists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("absent"), Title: "Absent"})
	mustSave(t, s, domain.NodeInput{ID: ptr("empty"), Title: "Empty", Images: &domain.MediaList{}})

	for _, id := range []string{"absent", "empty"} {
		node, err := s.LoadOne(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, node.Images, id)
		assert.Empty(t, node.Images, id)
	}
}

func TestSaveExplicitPositionIsNotDefaulted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "Root", Position: &domain.Position{DX: 5, DY: 5}})

	node, err := s.LoadOne(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, domain.Position{DX: 5, DY: 5}, node.Position)

	// an explicit origin is also kept as sent
	mustSave(t, s, domain.NodeInput{ID: ptr("n2"), Title: "Origin", Position: &domain.Position{}})
	node, err = s.LoadOne(ctx, "n2")
	require.NoError(t, err)
	assert.Equal(t, domain.Position{}, node.Position)
}

func TestSaveOverwritesAllFields(t *testing.T) {
	s := newTestStore(t)

	mustSave(t, s, domain.NodeInput{
		ID:          ptr("n1"),
		Title:       "First",
		Description: ptr("old"),
		Images:      &domain.MediaList{"x.png"},
		Position:    &domain.Position{DX: 9, DY: 9},
	})
	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "Second"})

	node, err := s.LoadOne(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "Second", node.Title)
	assert.Nil(t, node.Description)
	assert.Equal(t, []string{}, node.Images)
	assert.Equal(t, domain.Position{}, node.Position)
	assert.Equal(t, 1, countRows(t, s, `SELECT COUNT(*) FROM nodes`))
}

func TestSaveKeepsPaddedIDsVerbatim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr(" n2"), Title: "Target"})
	id := mustSave(t, s, domain.NodeInput{ID: ptr(" n1 "), Title: "Source", Connections: targets(" n2")})
	assert.Equal(t, " n1 ", id)

	node, err := s.LoadOne(ctx, " n1 ")
	require.NoError(t, err)
	assert.Equal(t, " n1 ", node.ID)
	assert.Equal(t, []string{" n2"}, node.Connections)

	_, err = s.LoadOne(ctx, "n1")
	assert.True(t, apperr.IsNotFound(err))
}

func TestSaveDropsNullMediaEntries(t *testing.T) {
	s := newTestStore(t)

	var in domain.NodeInput
	require.NoError(t, json.Unmarshal([]byte(`{"id":"n1","title":"Root","images":["a",null]}`), &in))
	mustSave(t, s, in)

	node, err := s.LoadOne(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, node.Images)
}

func TestSaveGeneratesID(t *testing.T) {
	s := newTestStore(t, func(o *Options) {
		o.NewID = func() string { return "gen-1" }
	})

	id := mustSave(t, s, domain.NodeInput{Title: "No id"})
	assert.Equal(t, "gen-1", id)

	node, err := s.LoadOne(context.Background(), "gen-1")
	require.NoError(t, err)
	assert.Equal(t, "No id", node.Title)
}

func TestSaveGeneratesUUIDByDefault(t *testing.T) {
	s := newTestStore(t)

	a := mustSave(t, s, domain.NodeInput{Title: "A"})
	b := mustSave(t, s, domain.NodeInput{Title: "B"})

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestSaveCallerSuppliedStrategy(t *testing.T) {
	s := newTestStore(t, func(o *Options) {
		o.IDStrategy = domain.IDCallerSupplied
	})
	ctx := context.Background()

	_, err := s.Save(ctx, domain.NodeInput{Title: "No id"})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM nodes`))

	id, err := s.Save(ctx, domain.NodeInput{ID: ptr("Custom-Key"), Title: "Keyed"})
	require.NoError(t, err)
	assert.Equal(t, "Custom-Key", id)
}

func TestSaveMissingTitleWritesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("existing"), Title: "Existing"})
	before, err := s.LoadAll(ctx)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   domain.NodeInput
	}{
		{"missing title", domain.NodeInput{ID: ptr("n1"), Connections: targets("existing"), GraphID: ptr("g1")}},
		{"blank title", domain.NodeInput{ID: ptr("n1"), Title: "  "}},
		{"overwrite existing", domain.NodeInput{ID: ptr("existing"), Description: ptr("changed")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
		})
	}

	after, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM connections`))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM node_graphs`))
}

// ============================================================================
// Connection Tests
// ============================================================================

func TestSaveReplacesConnections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("n2"), Title: "Two"})
	mustSave(t, s, domain.NodeInput{ID: ptr("n3"), Title: "Three"})

	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "One", Connections: targets("n2", "n3")})
	node, err := s.LoadOne(ctx, "n1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"n2", "n3"}, node.Connections)

	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "One", Connections: targets("n2")})
	node, err = s.LoadOne(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"n2"}, node.Connections)
	assert.Equal(t, 1, countRows(t, s, `SELECT COUNT(*) FROM connections WHERE source_id = 'n1'`))

	// no connections field clears the set
	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "One"})
	node, err = s.LoadOne(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, node.Connections)
}

func TestSaveFiltersConnectionList(t *testing.T) {
	s := newTestStore(t)

	mustSave(t, s, domain.NodeInput{ID: ptr("n2"), Title: "Two"})
	mustSave(t, s, domain.NodeInput{
		ID:          ptr("n1"),
		Title:       "One",
		Connections: []*string{nil, ptr(""), ptr("n2"), ptr("n2")},
	})

	node, err := s.LoadOne(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"n2"}, node.Connections)
}

func TestSaveOnlyTouchesOwnOutgoingConnections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A"})
	mustSave(t, s, domain.NodeInput{ID: ptr("b"), Title: "B", Connections: targets("a")})
	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A", Connections: targets("b")})

	b, err := s.LoadOne(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, b.Connections)
}

func TestSaveUnknownTargetRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, domain.NodeInput{ID: ptr("n1"), Title: "One", Connections: targets("ghost")})
	require.Error(t, err)
	assert.True(t, apperr.IsConstraint(err), "got %v", err)

	_, err = s.LoadOne(ctx, "n1")
	assert.True(t, apperr.IsNotFound(err))
}

func TestSaveUnknownTargetKeepsPreviousState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("n2"), Title: "Two"})
	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "One", Connections: targets("n2")})

	_, err := s.Save(ctx, domain.NodeInput{ID: ptr("n1"), Title: "Changed", Connections: targets("ghost")})
	require.Error(t, err)

	node, err := s.LoadOne(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "One", node.Title)
	assert.Equal(t, []string{"n2"}, node.Connections)
}

func TestSaveUnknownParentIsConstraint(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(context.Background(), domain.NodeInput{ID: ptr("n1"), Title: "Orphan", ParentID: ptr("missing")})
	require.Error(t, err)
	assert.True(t, apperr.IsConstraint(err), "got %v", err)
}

// ============================================================================
// Graph Membership Tests
// ============================================================================

func TestSaveGraphMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "One", GraphID: ptr("g1")})
	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "One", GraphID: ptr("g1")})
	assert.Equal(t, 1, countRows(t, s, `SELECT COUNT(*) FROM node_graphs WHERE node_id = 'n1'`))

	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "One", GraphID: ptr("g2")})
	node, err := s.LoadOne(ctx, "n1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1", "g2"}, node.Graphs)

	// omitting graph_id leaves memberships untouched
	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "One"})
	node, err = s.LoadOne(ctx, "n1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1", "g2"}, node.Graphs)
}

func TestLoadAllDeduplicatesJoinRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("b"), Title: "B"})
	mustSave(t, s, domain.NodeInput{ID: ptr("c"), Title: "C"})
	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A", Connections: targets("b", "c"), GraphID: ptr("g1")})
	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A", Connections: targets("b", "c"), GraphID: ptr("g2")})
	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A", Connections: targets("b", "c"), GraphID: ptr("g3")})

	nodes, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	byID := make(map[string]domain.Node)
	for _, n := range nodes {
		byID[n.ID] = n
	}
	assert.ElementsMatch(t, []string{"b", "c"}, byID["a"].Connections)
	assert.ElementsMatch(t, []string{"g1", "g2", "g3"}, byID["a"].Graphs)
	assert.Equal(t, []string{}, byID["b"].Connections)
	assert.Equal(t, []string{}, byID["c"].Graphs)
}

func TestLoadAllEmpty(t *testing.T) {
	s := newTestStore(t)

	nodes, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestLoadByGraph(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A", GraphID: ptr("g1")})
	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A", GraphID: ptr("g2")})
	mustSave(t, s, domain.NodeInput{ID: ptr("b"), Title: "B", GraphID: ptr("g2")})
	mustSave(t, s, domain.NodeInput{ID: ptr("c"), Title: "C"})

	nodes, err := s.LoadByGraph(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "a", nodes[0].ID)
	assert.ElementsMatch(t, []string{"g1", "g2"}, nodes[0].Graphs)

	nodes, err = s.LoadByGraph(ctx, "g2")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	nodes, err = s.LoadByGraph(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestLoadOneNotFound(t *testing.T) {
	s := newTestStore(t)

	node, err := s.LoadOne(context.Background(), "nope")
	require.Error(t, err)
	assert.Nil(t, node)
	assert.True(t, apperr.IsNotFound(err))
	assert.False(t, apperr.IsStoreUnavailable(err))
}

// ============================================================================
// Delete Tests
// ============================================================================

func TestDeleteRemovesAllReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A"})
	mustSave(t, s, domain.NodeInput{ID: ptr("b"), Title: "B", Connections: targets("a"), GraphID: ptr("g1")})
	mustSave(t, s, domain.NodeInput{ID: ptr("b"), Title: "B", Connections: targets("a"), GraphID: ptr("g2")})
	mustSave(t, s, domain.NodeInput{ID: ptr("a"), Title: "A", Connections: targets("b")})
	mustSave(t, s, domain.NodeInput{ID: ptr("c"), Title: "C", Connections: targets("a", "b")})

	require.NoError(t, s.Delete(ctx, "b"))

	_, err := s.LoadOne(ctx, "b")
	assert.True(t, apperr.IsNotFound(err))

	nodes, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.NotContains(t, n.Connections, "b", n.ID)
	}

	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM connections WHERE source_id = 'b' OR target_id = 'b'`))
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM node_graphs WHERE node_id = 'b'`))
	assert.Equal(t, 1, countRows(t, s, `SELECT COUNT(*) FROM connections`))
}

func TestDeleteNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteParentDetachesChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustSave(t, s, domain.NodeInput{ID: ptr("root"), Title: "Root"})
	mustSave(t, s, domain.NodeInput{ID: ptr("child"), Title: "Child", ParentID: ptr("root"), SuperNodeID: ptr("root")})

	require.NoError(t, s.Delete(ctx, "root"))

	child, err := s.LoadOne(ctx, "child")
	require.NoError(t, err)
	assert.Nil(t, child.ParentID)
	assert.Nil(t, child.SuperNodeID)
}

// ============================================================================
// Import Tests
// ============================================================================

func snapshotNode(in domain.NodeInput, graphs ...string) domain.SnapshotNode {
	return domain.SnapshotNode{NodeInput: in, Graphs: graphs}
}

func TestImportResolvesForwardReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &domain.Snapshot{
		Version: domain.SnapshotVersion,
		Nodes: []domain.SnapshotNode{
			snapshotNode(domain.NodeInput{ID: ptr("child"), Title: "Child", ParentID: ptr("root"), Connections: targets("root")}, "g1"),
			snapshotNode(domain.NodeInput{ID: ptr("root"), Title: "Root"}, "g1", "g2"),
		},
	}

	n, err := s.Import(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	child, err := s.LoadOne(ctx, "child")
	require.NoError(t, err)
	assert.Equal(t, "root", *child.ParentID)
	assert.Equal(t, []string{"root"}, child.Connections)

	root, err := s.LoadOne(ctx, "root")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1", "g2"}, root.Graphs)
}

func TestImportDanglingReferenceRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &domain.Snapshot{Nodes: []domain.SnapshotNode{
		snapshotNode(domain.NodeInput{ID: ptr("a"), Title: "A"}),
		snapshotNode(domain.NodeInput{ID: ptr("b"), Title: "B", Connections: targets("ghost")}),
	}}

	_, err := s.Import(ctx, snap)
	require.Error(t, err)
	assert.True(t, apperr.IsConstraint(err), "got %v", err)
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM nodes`))

	// the connection is usable after the rolled back import
	mustSave(t, s, domain.NodeInput{ID: ptr("after"), Title: "After"})
}

func TestImportInvalidNodeWritesNothing(t *testing.T) {
	s := newTestStore(t)

	snap := &domain.Snapshot{Nodes: []domain.SnapshotNode{
		snapshotNode(domain.NodeInput{ID: ptr("a"), Title: "A"}),
		snapshotNode(domain.NodeInput{ID: ptr("b")}),
	}}

	_, err := s.Import(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "node 1")
	assert.Equal(t, 0, countRows(t, s, `SELECT COUNT(*) FROM nodes`))
}

func TestImportExportRoundTrip(t *testing.T) {
	src := newTestStore(t)
	ctx := context.Background()

	mustSave(t, src, domain.NodeInput{ID: ptr("p"), Title: "P", GraphID: ptr("g1")})
	mustSave(t, src, domain.NodeInput{
		ID:          ptr("c"),
		Title:       "C",
		ParentID:    ptr("p"),
		Images:      &domain.MediaList{"i.png"},
		Coordinates: json.RawMessage(`[1,2]`),
		Position:    &domain.Position{DX: 3, DY: 4},
		Connections: targets("p"),
		GraphID:     ptr("g2"),
	})

	nodes, err := src.LoadAll(ctx)
	require.NoError(t, err)

	dst := newTestStore(t)
	_, err = dst.Import(ctx, domain.NewSnapshot(nodes))
	require.NoError(t, err)

	copied, err := dst.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, nodes, copied)
}

// ============================================================================
// Breaker and Concurrency Tests
// ============================================================================

func TestBreakerOpensAfterUnavailableFailures(t *testing.T) {
	s := newTestStore(t, func(o *Options) {
		o.Breaker.FailureThreshold = 2
	})
	ctx := context.Background()
	require.NoError(t, s.db.Close())

	for i := 0; i < 2; i++ {
		_, err := s.LoadAll(ctx)
		require.Error(t, err)
		assert.True(t, apperr.IsStoreUnavailable(err), "attempt %d: %v", i, err)
	}

	_, err := s.LoadAll(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsStoreUnavailable(err))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	s := newTestStore(t, func(o *Options) {
		o.Breaker.FailureThreshold = 1
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.LoadOne(ctx, "missing")
		assert.True(t, apperr.IsNotFound(err))
	}

	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "Still works"})
}

func TestCanceledRequestsDoNotTripBreaker(t *testing.T) {
	s := newTestStore(t)
	mustSave(t, s, domain.NodeInput{ID: ptr("n1"), Title: "Still works"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		_, err := s.LoadOne(ctx, "n1")
		require.Error(t, err)
		assert.False(t, apperr.IsStoreUnavailable(err), "attempt %d: %v", i, err)
		assert.ErrorIs(t, err, context.Canceled)
	}

	node, err := s.LoadOne(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "Still works", node.Title)
}

func TestConcurrentSaves(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Save(ctx, domain.NodeInput{ID: ptr(fmt.Sprintf("n%d", i)), Title: "Concurrent"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 20, countRows(t, s, `SELECT COUNT(*) FROM nodes`))
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, s.db.Close())
	err := s.Ping(context.Background())
	assert.True(t, apperr.IsStoreUnavailable(err), "got %v", err)
}
