package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore implements Store using PostgreSQL. The nested result
// structures are stored as JSONB; results are immutable once written, so
// nothing ever queries inside them.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed result store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// Migrate creates the analysis results table if it doesn't exist.
// No foreign key to graphs: results are an audit trail and survive graph
// deletion, matching the in-memory store.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_results (
			id                 VARCHAR(64) PRIMARY KEY,
			graph_id           VARCHAR(64) NOT NULL,
			analysis_type      VARCHAR(32) NOT NULL,
			statistics         JSONB NOT NULL,
			fraud_rings        JSONB NOT NULL,
			communities        JSONB NOT NULL,
			risk_assessment    JSONB NOT NULL,
			recommendations    JSONB NOT NULL,
			analysis_timestamp TIMESTAMPTZ NOT NULL,
			processing_time_ms BIGINT NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_analysis_results_graph
			ON analysis_results (graph_id, analysis_timestamp DESC, id DESC);

		CREATE INDEX IF NOT EXISTS idx_analysis_results_timestamp
			ON analysis_results (analysis_timestamp);
	`)
	return err
}

func (p *PostgresStore) SaveResult(ctx context.Context, res *Result) error {
	statistics, err := json.Marshal(res.Statistics)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}
	rings, err := json.Marshal(res.FraudRings)
	if err != nil {
		return fmt.Errorf("failed to marshal rings: %w", err)
	}
	communities, err := json.Marshal(res.Communities)
	if err != nil {
		return fmt.Errorf("failed to marshal communities: %w", err)
	}
	assessment, err := json.Marshal(res.RiskAssessment)
	if err != nil {
		return fmt.Errorf("failed to marshal risk assessment: %w", err)
	}
	recommendations, err := json.Marshal(res.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO analysis_results
			(id, graph_id, analysis_type, statistics, fraud_rings, communities,
			 risk_assessment, recommendations, analysis_timestamp, processing_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, res.ID, res.GraphID, res.AnalysisType, statistics, rings, communities,
		assessment, recommendations, res.AnalysisTimestamp, res.ProcessingTimeMS)

	if err != nil {
		return fmt.Errorf("failed to save analysis result: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetResult(ctx context.Context, id string) (*Result, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, graph_id, analysis_type, statistics, fraud_rings, communities,
		       risk_assessment, recommendations, analysis_timestamp, processing_time_ms
		FROM analysis_results WHERE id = $1
	`, id)

	res, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis result: %w", err)
	}
	return res, nil
}

func (p *PostgresStore) ListResults(ctx context.Context, graphID string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, graph_id, analysis_type, statistics, fraud_rings, communities,
		       risk_assessment, recommendations, analysis_timestamp, processing_time_ms
		FROM analysis_results
		WHERE graph_id = $1
		ORDER BY analysis_timestamp DESC, id DESC
		LIMIT $2
	`, graphID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]*Result, 0)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis results: %w", err)
	}
	return results, nil
}

func (p *PostgresStore) Prune(ctx context.Context, cutoff time.Time, keepPerGraph int) (int, error) {
	result, err := p.db.ExecContext(ctx, `
		DELETE FROM analysis_results WHERE analysis_timestamp < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired results: %w", err)
	}
	expired, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	var evicted int64
	if keepPerGraph > 0 {
		result, err := p.db.ExecContext(ctx, `
			DELETE FROM analysis_results WHERE id IN (
				SELECT id FROM (
					SELECT id, ROW_NUMBER() OVER (
						PARTITION BY graph_id
						ORDER BY analysis_timestamp DESC, id DESC
					) AS rn
					FROM analysis_results
				) ranked
				WHERE rn > $1
			)
		`, keepPerGraph)
		if err != nil {
			return int(expired), fmt.Errorf("failed to evict excess results: %w", err)
		}
		evicted, err = result.RowsAffected()
		if err != nil {
			return int(expired), fmt.Errorf("rows affected: %w", err)
		}
	}

	return int(expired + evicted), nil
}

func scanResult(row rowScanner) (*Result, error) {
	var res Result
	var statistics, rings, communities, assessment, recommendations []byte

	err := row.Scan(&res.ID, &res.GraphID, &res.AnalysisType, &statistics, &rings,
		&communities, &assessment, &recommendations, &res.AnalysisTimestamp, &res.ProcessingTimeMS)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(statistics, &res.Statistics); err != nil {
		return nil, fmt.Errorf("unmarshal statistics: %w", err)
	}
	if err := json.Unmarshal(rings, &res.FraudRings); err != nil {
		return nil, fmt.Errorf("unmarshal rings: %w", err)
	}
	if err := json.Unmarshal(communities, &res.Communities); err != nil {
		return nil, fmt.Errorf("unmarshal communities: %w", err)
	}
	if err := json.Unmarshal(assessment, &res.RiskAssessment); err != nil {
		return nil, fmt.Errorf("unmarshal risk assessment: %w", err)
	}
	if err := json.Unmarshal(recommendations, &res.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	return &res, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
