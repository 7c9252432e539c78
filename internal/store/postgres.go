package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surakshanet/surakshanet/internal/models"
)

const createAnalysesTable = `
CREATE TABLE IF NOT EXISTS threat_analyses (
	analysis_id   TEXT PRIMARY KEY,
	threat_score  DOUBLE PRECISION NOT NULL,
	category      TEXT NOT NULL,
	threat_type   TEXT NOT NULL,
	summary       TEXT NOT NULL,
	assessment    JSONB NOT NULL,
	actions_taken TEXT[] NOT NULL,
	duration_ms   BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists analyses in PostgreSQL via a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createAnalysesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating threat_analyses table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// SaveAnalysis implements AnalysisStore.
func (s *PostgresStore) SaveAnalysis(ctx context.Context, result *models.AnalysisResult) error {
	assessment, err := json.Marshal(result.ThreatAssessment)
	if err != nil {
		return fmt.Errorf("encoding assessment: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO threat_analyses
			(analysis_id, threat_score, category, threat_type, summary,
			 assessment, actions_taken, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (analysis_id) DO NOTHING`,
		result.AnalysisID, result.ThreatScore, string(result.ThreatCategory),
		result.ThreatType, result.Summary, assessment, result.ActionsTaken,
		result.AnalysisDurationMS, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting analysis %s: %w", result.AnalysisID, err)
	}
	return nil
}

// GetAnalysis implements AnalysisStore.
func (s *PostgresStore) GetAnalysis(ctx context.Context, analysisID string) (*models.AnalysisResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT analysis_id, threat_score, category, threat_type, summary,
		       assessment, actions_taken, duration_ms, created_at
		FROM threat_analyses WHERE analysis_id = $1`, analysisID)
	result, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("loading analysis %s: %w", analysisID, err)
	}
	return result, nil
}

// RecentAnalyses implements AnalysisStore, newest first.
func (s *PostgresStore) RecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT analysis_id, threat_score, category, threat_type, summary,
		       assessment, actions_taken, duration_ms, created_at
		FROM threat_analyses ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	var out []models.AnalysisResult
	for rows.Next() {
		result, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis row: %w", err)
		}
		out = append(out, *result)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func scanAnalysis(row pgx.Row) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	var category string
	var assessment []byte
	if err := row.Scan(&result.AnalysisID, &result.ThreatScore, &category,
		&result.ThreatType, &result.Summary, &assessment,
		&result.ActionsTaken, &result.AnalysisDurationMS, &result.CreatedAt); err != nil {
		return nil, err
	}
	result.ThreatCategory = models.ThreatCategory(category)
	if err := json.Unmarshal(assessment, &result.ThreatAssessment); err != nil {
		return nil, fmt.Errorf("decoding assessment: %w", err)
	}
	return &result, nil
}
