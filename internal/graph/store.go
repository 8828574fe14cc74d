package graph

import (
	"context"
	"sort"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Store Interface (swap implementations later)
// -----------------------------------------------------------------------------

// Store defines the persistence interface for entity graphs.
// Implementations are internally thread-safe; cross-call atomicity (read
// counts, then insert) is the Service's job via per-graph locking.
type Store interface {
	// Graphs
	CreateGraph(ctx context.Context, g *Graph) error
	GetGraph(ctx context.Context, id string) (*Graph, error) // includes nodes and edges
	UpdateGraph(ctx context.Context, g *Graph) error         // attributes and metadata only
	ListGraphs(ctx context.Context, q ListQuery) ([]*Graph, error)
	DeleteGraph(ctx context.Context, id string) error
	Counts(ctx context.Context, graphID string) (nodes int, edges int, err error)

	// Nodes
	AddNode(ctx context.Context, graphID string, n *Node) error
	GetNode(ctx context.Context, graphID, nodeID string) (*Node, error)
	UpdateNode(ctx context.Context, graphID string, n *Node) error
	ListNodes(ctx context.Context, graphID string) ([]*Node, error)
	DeleteNode(ctx context.Context, graphID, nodeID string) error // cascades edges touching the node

	// Edges
	AddEdge(ctx context.Context, graphID string, e *Edge) error
	GetEdge(ctx context.Context, graphID, edgeID string) (*Edge, error)
	ListEdges(ctx context.Context, graphID string) ([]*Edge, error)
}

// -----------------------------------------------------------------------------
// In-Memory Store
// -----------------------------------------------------------------------------

// MemoryStore is a thread-safe in-memory implementation
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]*graphEntry // graph id -> entry
}

type graphEntry struct {
	meta  *Graph // Nodes/Edges nil, counts kept current
	nodes map[string]*Node
	edges map[string]*Edge
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graphs: make(map[string]*graphEntry),
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// -----------------------------------------------------------------------------
// Graph Operations
// -----------------------------------------------------------------------------

func (m *MemoryStore) CreateGraph(ctx context.Context, g *Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.graphs[g.ID]; exists {
		return ErrGraphExists
	}

	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.LastUpdatedAt = now
	g.NodeCount = 0
	g.EdgeCount = 0

	meta := *g
	meta.Nodes = nil
	meta.Edges = nil
	m.graphs[g.ID] = &graphEntry{
		meta:  &meta,
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
	}

	return nil
}

func (m *MemoryStore) GetGraph(ctx context.Context, id string) (*Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.graphs[id]
	if !exists {
		return nil, ErrGraphNotFound
	}

	g := *entry.meta
	g.Nodes = make([]*Node, 0, len(entry.nodes))
	for _, n := range entry.nodes {
		g.Nodes = append(g.Nodes, copyNode(n))
	}
	g.Edges = make([]*Edge, 0, len(entry.edges))
	for _, e := range entry.edges {
		g.Edges = append(g.Edges, copyEdge(e))
	}
	sortNodes(g.Nodes)
	sortEdges(g.Edges)
	g.NodeCount = len(g.Nodes)
	g.EdgeCount = len(g.Edges)

	return &g, nil
}

func (m *MemoryStore) UpdateGraph(ctx context.Context, g *Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.graphs[g.ID]
	if !exists {
		return ErrGraphNotFound
	}

	entry.meta.Name = g.Name
	entry.meta.Description = g.Description
	entry.meta.Status = g.Status
	entry.meta.Metadata = g.Metadata
	entry.meta.LastUpdatedAt = time.Now().UTC()

	return nil
}

func (m *MemoryStore) ListGraphs(ctx context.Context, q ListQuery) ([]*Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if q.Limit <= 0 {
		q.Limit = 100
	}

	var results []*Graph
	for _, entry := range m.graphs {
		if q.Status != "" && entry.meta.Status != q.Status {
			continue
		}
		if q.After != nil && !olderThan(entry.meta, q.After) {
			continue
		}
		g := *entry.meta
		g.NodeCount = len(entry.nodes)
		g.EdgeCount = len(entry.edges)
		results = append(results, &g)
	}

	// Newest first, id as tie-break so pages are stable
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func (m *MemoryStore) DeleteGraph(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.graphs[id]; !exists {
		return ErrGraphNotFound
	}
	delete(m.graphs, id)
	return nil
}

func (m *MemoryStore) Counts(ctx context.Context, graphID string) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.graphs[graphID]
	if !exists {
		return 0, 0, ErrGraphNotFound
	}
	return len(entry.nodes), len(entry.edges), nil
}

// -----------------------------------------------------------------------------
// Node Operations
// -----------------------------------------------------------------------------

func (m *MemoryStore) AddNode(ctx context.Context, graphID string, n *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.graphs[graphID]
	if !exists {
		return ErrGraphNotFound
	}
	if _, dup := entry.nodes[n.ID]; dup {
		return ErrNodeExists
	}

	now := time.Now().UTC()
	n.CreatedAt = now
	n.LastActivityAt = now

	entry.nodes[n.ID] = copyNode(n)
	entry.meta.NodeCount = len(entry.nodes)
	entry.meta.LastUpdatedAt = now

	return nil
}

func (m *MemoryStore) GetNode(ctx context.Context, graphID, nodeID string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.graphs[graphID]
	if !exists {
		return nil, ErrGraphNotFound
	}
	n, ok := entry.nodes[nodeID]
	if !ok {
		return nil, ErrNodeNotFound
	}

	return copyNode(n), nil
}

func (m *MemoryStore) UpdateNode(ctx context.Context, graphID string, n *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.graphs[graphID]
	if !exists {
		return ErrGraphNotFound
	}
	existing, ok := entry.nodes[n.ID]
	if !ok {
		return ErrNodeNotFound
	}

	now := time.Now().UTC()
	n.CreatedAt = existing.CreatedAt
	n.LastActivityAt = now

	entry.nodes[n.ID] = copyNode(n)
	entry.meta.LastUpdatedAt = now

	return nil
}

func (m *MemoryStore) ListNodes(ctx context.Context, graphID string) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.graphs[graphID]
	if !exists {
		return nil, ErrGraphNotFound
	}

	nodes := make([]*Node, 0, len(entry.nodes))
	for _, n := range entry.nodes {
		nodes = append(nodes, copyNode(n))
	}
	sortNodes(nodes)
	return nodes, nil
}

func (m *MemoryStore) DeleteNode(ctx context.Context, graphID, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.graphs[graphID]
	if !exists {
		return ErrGraphNotFound
	}
	if _, ok := entry.nodes[nodeID]; !ok {
		return ErrNodeNotFound
	}

	delete(entry.nodes, nodeID)

	// Cascade: drop every edge referencing the node as source or target
	for id, e := range entry.edges {
		if e.SourceNodeID == nodeID || e.TargetNodeID == nodeID {
			delete(entry.edges, id)
		}
	}

	entry.meta.NodeCount = len(entry.nodes)
	entry.meta.EdgeCount = len(entry.edges)
	entry.meta.LastUpdatedAt = time.Now().UTC()

	return nil
}

// -----------------------------------------------------------------------------
// Edge Operations
// -----------------------------------------------------------------------------

// AddEdge stores an edge without validating its endpoints. Dangling
// references are tolerated throughout and skipped by analysis.
func (m *MemoryStore) AddEdge(ctx context.Context, graphID string, e *Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.graphs[graphID]
	if !exists {
		return ErrGraphNotFound
	}
	if _, dup := entry.edges[e.ID]; dup {
		return ErrEdgeExists
	}

	now := time.Now().UTC()
	e.CreatedAt = now

	entry.edges[e.ID] = copyEdge(e)
	entry.meta.EdgeCount = len(entry.edges)
	entry.meta.LastUpdatedAt = now

	return nil
}

func (m *MemoryStore) GetEdge(ctx context.Context, graphID, edgeID string) (*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.graphs[graphID]
	if !exists {
		return nil, ErrGraphNotFound
	}
	e, ok := entry.edges[edgeID]
	if !ok {
		return nil, ErrEdgeNotFound
	}

	return copyEdge(e), nil
}

func (m *MemoryStore) ListEdges(ctx context.Context, graphID string) ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.graphs[graphID]
	if !exists {
		return nil, ErrGraphNotFound
	}

	edges := make([]*Edge, 0, len(entry.edges))
	for _, e := range entry.edges {
		edges = append(edges, copyEdge(e))
	}
	sortEdges(edges)
	return edges, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// copyNode clones a node including its property bag, so callers mutating
// the copy's properties never write through into stored state. Nested
// values inside the bag are still shared.
func copyNode(n *Node) *Node {
	cp := *n
	cp.Properties = copyProperties(n.Properties)
	return &cp
}

func copyEdge(e *Edge) *Edge {
	cp := *e
	cp.Properties = copyProperties(e.Properties)
	return &cp
}

func copyProperties(props map[string]interface{}) map[string]interface{} {
	if props == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return cp
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
}

func sortEdges(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].ID < edges[j].ID
		}
		return edges[i].CreatedAt.Before(edges[j].CreatedAt)
	})
}

// olderThan reports whether g comes after pos in the newest-first ordering.
func olderThan(g *Graph, pos *Pos) bool {
	if g.CreatedAt.Equal(pos.CreatedAt) {
		return g.ID < pos.ID
	}
	return g.CreatedAt.Before(pos.CreatedAt)
}
