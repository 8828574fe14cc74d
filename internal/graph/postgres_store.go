package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// Migrate creates the graph tables if they don't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS graphs (
			id               VARCHAR(64) PRIMARY KEY,
			name             TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			status           VARCHAR(16) NOT NULL DEFAULT 'active',
			domain           VARCHAR(64) NOT NULL DEFAULT 'Banking',
			risk_level       VARCHAR(16) NOT NULL DEFAULT 'low',
			last_analysis_at TIMESTAMPTZ,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS graph_nodes (
			graph_id         VARCHAR(64) NOT NULL REFERENCES graphs(id) ON DELETE CASCADE,
			id               VARCHAR(64) NOT NULL,
			type             VARCHAR(32) NOT NULL,
			risk_score       DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (risk_score >= 0 AND risk_score <= 1),
			properties       JSONB NOT NULL DEFAULT '{}',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (graph_id, id)
		);

		-- Endpoints are weak references: no FK to graph_nodes on purpose
		CREATE TABLE IF NOT EXISTS graph_edges (
			graph_id       VARCHAR(64) NOT NULL REFERENCES graphs(id) ON DELETE CASCADE,
			id             VARCHAR(64) NOT NULL,
			source_node_id VARCHAR(64) NOT NULL,
			target_node_id VARCHAR(64) NOT NULL,
			type           VARCHAR(32) NOT NULL,
			weight         DOUBLE PRECISION NOT NULL DEFAULT 1,
			properties     JSONB NOT NULL DEFAULT '{}',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (graph_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_graphs_created
			ON graphs (created_at DESC, id DESC);

		CREATE INDEX IF NOT EXISTS idx_graph_nodes_order
			ON graph_nodes (graph_id, created_at, id);

		CREATE INDEX IF NOT EXISTS idx_graph_edges_order
			ON graph_edges (graph_id, created_at, id);

		CREATE INDEX IF NOT EXISTS idx_graph_edges_endpoints
			ON graph_edges (graph_id, source_node_id, target_node_id);
	`)
	return err
}

// -----------------------------------------------------------------------------
// Graph Operations
// -----------------------------------------------------------------------------

func (p *PostgresStore) CreateGraph(ctx context.Context, g *Graph) error {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.LastUpdatedAt = now

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO graphs (id, name, description, status, domain, risk_level, last_analysis_at, created_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, g.ID, g.Name, g.Description, string(g.Status), g.Metadata.Domain, string(g.Metadata.RiskLevel),
		g.Metadata.LastAnalysisAt, g.CreatedAt, g.LastUpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrGraphExists
		}
		return fmt.Errorf("failed to create graph: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetGraph(ctx context.Context, id string) (*Graph, error) {
	g, err := p.getGraphRow(ctx, id)
	if err != nil {
		return nil, err
	}

	nodes, err := p.ListNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	edges, err := p.ListEdges(ctx, id)
	if err != nil {
		return nil, err
	}

	g.Nodes = nodes
	g.Edges = edges
	g.NodeCount = len(nodes)
	g.EdgeCount = len(edges)
	return g, nil
}

func (p *PostgresStore) UpdateGraph(ctx context.Context, g *Graph) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE graphs
		SET name = $1, description = $2, status = $3, domain = $4, risk_level = $5,
		    last_analysis_at = $6, last_updated_at = NOW()
		WHERE id = $7
	`, g.Name, g.Description, string(g.Status), g.Metadata.Domain, string(g.Metadata.RiskLevel),
		g.Metadata.LastAnalysisAt, g.ID)

	if err != nil {
		return fmt.Errorf("failed to update graph: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrGraphNotFound
	}
	return nil
}

func (p *PostgresStore) ListGraphs(ctx context.Context, q ListQuery) ([]*Graph, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}

	query := `
		SELECT g.id, g.name, g.description, g.status, g.domain, g.risk_level, g.last_analysis_at,
		       g.created_at, g.last_updated_at,
		       (SELECT COUNT(*) FROM graph_nodes n WHERE n.graph_id = g.id),
		       (SELECT COUNT(*) FROM graph_edges e WHERE e.graph_id = g.id)
		FROM graphs g`
	var args []interface{}
	var conditions []string

	if q.Status != "" {
		args = append(args, string(q.Status))
		conditions = append(conditions, fmt.Sprintf("g.status = $%d", len(args)))
	}
	if q.After != nil {
		args = append(args, q.After.CreatedAt, q.After.ID)
		conditions = append(conditions, fmt.Sprintf("(g.created_at, g.id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, q.Limit)
	query += fmt.Sprintf(" ORDER BY g.created_at DESC, g.id DESC LIMIT $%d", len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var graphs []*Graph
	for rows.Next() {
		g, err := scanGraphRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan graph: %w", err)
		}
		graphs = append(graphs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate graphs: %w", err)
	}
	return graphs, nil
}

func (p *PostgresStore) DeleteGraph(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM graphs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrGraphNotFound
	}
	return nil
}

func (p *PostgresStore) Counts(ctx context.Context, graphID string) (int, int, error) {
	var nodes, edges int
	err := p.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM graph_nodes WHERE graph_id = $1),
		       (SELECT COUNT(*) FROM graph_edges WHERE graph_id = $1)
		FROM graphs WHERE id = $1
	`, graphID).Scan(&nodes, &edges)

	if err == sql.ErrNoRows {
		return 0, 0, ErrGraphNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count graph elements: %w", err)
	}
	return nodes, edges, nil
}

// -----------------------------------------------------------------------------
// Node Operations
// -----------------------------------------------------------------------------

func (p *PostgresStore) AddNode(ctx context.Context, graphID string, n *Node) error {
	properties, err := json.Marshal(orEmpty(n.Properties))
	if err != nil {
		return fmt.Errorf("failed to marshal node properties: %w", err)
	}

	now := time.Now().UTC()
	n.CreatedAt = now
	n.LastActivityAt = now

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO graph_nodes (graph_id, id, type, risk_score, properties, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, graphID, n.ID, string(n.Type), n.RiskScore, properties, n.CreatedAt, n.LastActivityAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrNodeExists
		}
		if strings.Contains(err.Error(), "foreign key") {
			return ErrGraphNotFound
		}
		return fmt.Errorf("failed to add node: %w", err)
	}

	p.touchGraph(ctx, graphID)
	return nil
}

func (p *PostgresStore) GetNode(ctx context.Context, graphID, nodeID string) (*Node, error) {
	var n Node
	var properties []byte

	err := p.db.QueryRowContext(ctx, `
		SELECT id, type, risk_score, properties, created_at, last_activity_at
		FROM graph_nodes WHERE graph_id = $1 AND id = $2
	`, graphID, nodeID).Scan(&n.ID, &n.Type, &n.RiskScore, &properties, &n.CreatedAt, &n.LastActivityAt)

	if err == sql.ErrNoRows {
		if exists, checkErr := p.graphExists(ctx, graphID); checkErr == nil && !exists {
			return nil, ErrGraphNotFound
		}
		return nil, ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	unmarshalProperties(properties, &n.Properties, "node", n.ID)
	return &n, nil
}

func (p *PostgresStore) UpdateNode(ctx context.Context, graphID string, n *Node) error {
	properties, err := json.Marshal(orEmpty(n.Properties))
	if err != nil {
		return fmt.Errorf("failed to marshal node properties: %w", err)
	}

	now := time.Now().UTC()
	n.LastActivityAt = now

	result, err := p.db.ExecContext(ctx, `
		UPDATE graph_nodes
		SET type = $1, risk_score = $2, properties = $3, last_activity_at = $4
		WHERE graph_id = $5 AND id = $6
	`, string(n.Type), n.RiskScore, properties, n.LastActivityAt, graphID, n.ID)

	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		if exists, checkErr := p.graphExists(ctx, graphID); checkErr == nil && !exists {
			return ErrGraphNotFound
		}
		return ErrNodeNotFound
	}

	p.touchGraph(ctx, graphID)
	return nil
}

func (p *PostgresStore) ListNodes(ctx context.Context, graphID string) ([]*Node, error) {
	exists, err := p.graphExists(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrGraphNotFound
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, risk_score, properties, created_at, last_activity_at
		FROM graph_nodes WHERE graph_id = $1
		ORDER BY created_at, id
	`, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	nodes := make([]*Node, 0)
	for rows.Next() {
		var n Node
		var properties []byte
		if err := rows.Scan(&n.ID, &n.Type, &n.RiskScore, &properties, &n.CreatedAt, &n.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		unmarshalProperties(properties, &n.Properties, "node", n.ID)
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func (p *PostgresStore) DeleteNode(ctx context.Context, graphID, nodeID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete node: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, `
		DELETE FROM graph_nodes WHERE graph_id = $1 AND id = $2
	`, graphID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		if exists, checkErr := p.graphExists(ctx, graphID); checkErr == nil && !exists {
			return ErrGraphNotFound
		}
		return ErrNodeNotFound
	}

	// Cascade: edges touching the node go with it
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM graph_edges
		WHERE graph_id = $1 AND (source_node_id = $2 OR target_node_id = $2)
	`, graphID, nodeID); err != nil {
		return fmt.Errorf("failed to cascade edges: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE graphs SET last_updated_at = NOW() WHERE id = $1
	`, graphID); err != nil {
		return fmt.Errorf("failed to touch graph: %w", err)
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------
// Edge Operations
// -----------------------------------------------------------------------------

func (p *PostgresStore) AddEdge(ctx context.Context, graphID string, e *Edge) error {
	properties, err := json.Marshal(orEmpty(e.Properties))
	if err != nil {
		return fmt.Errorf("failed to marshal edge properties: %w", err)
	}

	e.CreatedAt = time.Now().UTC()

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO graph_edges (graph_id, id, source_node_id, target_node_id, type, weight, properties, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, graphID, e.ID, e.SourceNodeID, e.TargetNodeID, string(e.Type), e.Weight, properties, e.CreatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrEdgeExists
		}
		if strings.Contains(err.Error(), "foreign key") {
			return ErrGraphNotFound
		}
		return fmt.Errorf("failed to add edge: %w", err)
	}

	p.touchGraph(ctx, graphID)
	return nil
}

func (p *PostgresStore) GetEdge(ctx context.Context, graphID, edgeID string) (*Edge, error) {
	var e Edge
	var properties []byte

	err := p.db.QueryRowContext(ctx, `
		SELECT id, source_node_id, target_node_id, type, weight, properties, created_at
		FROM graph_edges WHERE graph_id = $1 AND id = $2
	`, graphID, edgeID).Scan(&e.ID, &e.SourceNodeID, &e.TargetNodeID, &e.Type, &e.Weight, &properties, &e.CreatedAt)

	if err == sql.ErrNoRows {
		if exists, checkErr := p.graphExists(ctx, graphID); checkErr == nil && !exists {
			return nil, ErrGraphNotFound
		}
		return nil, ErrEdgeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	unmarshalProperties(properties, &e.Properties, "edge", e.ID)
	return &e, nil
}

func (p *PostgresStore) ListEdges(ctx context.Context, graphID string) ([]*Edge, error) {
	exists, err := p.graphExists(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrGraphNotFound
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, source_node_id, target_node_id, type, weight, properties, created_at
		FROM graph_edges WHERE graph_id = $1
		ORDER BY created_at, id
	`, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	edges := make([]*Edge, 0)
	for rows.Next() {
		var e Edge
		var properties []byte
		if err := rows.Scan(&e.ID, &e.SourceNodeID, &e.TargetNodeID, &e.Type, &e.Weight, &properties, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		unmarshalProperties(properties, &e.Properties, "edge", e.ID)
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (p *PostgresStore) getGraphRow(ctx context.Context, id string) (*Graph, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, description, status, domain, risk_level, last_analysis_at,
		       created_at, last_updated_at, 0, 0
		FROM graphs WHERE id = $1
	`, id)

	g, err := scanGraphRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrGraphNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	return g, nil
}

func (p *PostgresStore) graphExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := p.db.QueryRowContext(ctx, `SELECT 1 FROM graphs WHERE id = $1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check graph: %w", err)
	}
	return true, nil
}

// touchGraph bumps last_updated_at. Best effort: the element write already
// succeeded, so a failed touch is only logged.
func (p *PostgresStore) touchGraph(ctx context.Context, graphID string) {
	if _, err := p.db.ExecContext(ctx, `
		UPDATE graphs SET last_updated_at = NOW() WHERE id = $1
	`, graphID); err != nil {
		slog.Warn("failed to touch graph", "graph_id", graphID, "error", err)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGraphRow(row rowScanner) (*Graph, error) {
	var g Graph
	var status, riskLevel string
	var lastAnalysisAt sql.NullTime

	err := row.Scan(&g.ID, &g.Name, &g.Description, &status, &g.Metadata.Domain, &riskLevel,
		&lastAnalysisAt, &g.CreatedAt, &g.LastUpdatedAt, &g.NodeCount, &g.EdgeCount)
	if err != nil {
		return nil, err
	}

	g.Status = Status(status)
	g.Metadata.RiskLevel = RiskLevel(riskLevel)
	if lastAnalysisAt.Valid {
		t := lastAnalysisAt.Time
		g.Metadata.LastAnalysisAt = &t
	}
	return &g, nil
}

func orEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func unmarshalProperties(raw []byte, dst *map[string]interface{}, kind, id string) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("failed to unmarshal properties", "kind", kind, "id", id, "error", err)
	}
}
