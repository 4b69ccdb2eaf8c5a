package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentflow/agentflow/internal/models"
)

// ErrNotFound is returned when no prediction exists for a task signature
var ErrNotFound = errors.New("prediction not found")

// Store is the SQLite-backed persistence layer: capability rows, append-only
// agent metrics, and the durable prediction record.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and initializes the
// schema. Use ":memory:" for an ephemeral store.
func Open(dbPath string) (*Store, error) {
	if strings.HasPrefix(dbPath, "~/") {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, dbPath[2:])
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_capabilities (
		agent_name TEXT PRIMARY KEY,
		avg_execution_time_ms REAL NOT NULL DEFAULT 5000,
		avg_quality_score REAL NOT NULL DEFAULT 0.7,
		success_rate REAL NOT NULL DEFAULT 0.8,
		skill_keywords TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS prediction_cache (
		task_signature TEXT PRIMARY KEY,
		predicted_agents TEXT NOT NULL,
		predicted_duration_ms INTEGER NOT NULL,
		predicted_tokens INTEGER NOT NULL,
		confidence_score REAL NOT NULL,
		actual_outcome TEXT,
		prediction_accuracy REAL,
		hit_count INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		last_accessed DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_name TEXT NOT NULL,
		execution_time_ms INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		quality_score REAL NOT NULL,
		project_path TEXT NOT NULL DEFAULT '',
		task_type TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_metrics_agent ON agent_metrics(agent_name);
	CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON agent_metrics(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SeedCapabilities inserts bootstrap capability rows, leaving existing rows
// untouched so learned statistics survive restarts.
func (s *Store) SeedCapabilities(ctx context.Context, caps []models.AgentCapability) error {
	query := `
		INSERT OR IGNORE INTO agent_capabilities
		(agent_name, avg_execution_time_ms, avg_quality_score, success_rate, skill_keywords)
		VALUES (?, ?, ?, ?, ?)
	`

	for _, capability := range caps {
		keywords, err := json.Marshal(capability.SkillKeywords)
		if err != nil {
			return fmt.Errorf("failed to marshal keywords for %s: %w", capability.Name, err)
		}
		_, err = s.db.ExecContext(ctx, query,
			capability.Name,
			capability.AvgExecutionMs,
			capability.AvgQualityScore,
			capability.SuccessRate,
			string(keywords),
		)
		if err != nil {
			return fmt.Errorf("failed to seed capability %s: %w", capability.Name, err)
		}
	}
	return nil
}

// Snapshot loads all capability rows
func (s *Store) Snapshot(ctx context.Context) ([]models.AgentCapability, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_name, avg_execution_time_ms, avg_quality_score, success_rate, skill_keywords
		FROM agent_capabilities
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load capabilities: %w", err)
	}
	defer rows.Close()

	var caps []models.AgentCapability
	for rows.Next() {
		var capability models.AgentCapability
		var keywords string
		if err := rows.Scan(
			&capability.Name,
			&capability.AvgExecutionMs,
			&capability.AvgQualityScore,
			&capability.SuccessRate,
			&keywords,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keywords), &capability.SkillKeywords); err != nil {
			capability.SkillKeywords = nil
		}
		caps = append(caps, capability)
	}
	return caps, rows.Err()
}

// GetCapability returns one capability row, or sql.ErrNoRows
func (s *Store) GetCapability(ctx context.Context, agentName string) (*models.AgentCapability, error) {
	var capability models.AgentCapability
	var keywords string

	err := s.db.QueryRowContext(ctx, `
		SELECT agent_name, avg_execution_time_ms, avg_quality_score, success_rate, skill_keywords
		FROM agent_capabilities WHERE agent_name = ?
	`, agentName).Scan(
		&capability.Name,
		&capability.AvgExecutionMs,
		&capability.AvgQualityScore,
		&capability.SuccessRate,
		&keywords,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(keywords), &capability.SkillKeywords); err != nil {
		capability.SkillKeywords = nil
	}
	return &capability, nil
}

// AppendSample appends one raw performance sample to an agent's history
func (s *Store) AppendSample(ctx context.Context, sample models.PerformanceSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_metrics
		(agent_name, execution_time_ms, success, quality_score, project_path, task_type, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		sample.AgentName,
		sample.ExecutionTimeMs,
		sample.Success,
		sample.QualityScore,
		sample.ProjectPath,
		sample.TaskType,
		sample.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append sample for %s: %w", sample.AgentName, err)
	}
	return nil
}

// UpdateCapability folds a sample into the agent's rolling statistics with an
// exponential moving average. The row is created lazily on first outcome. A
// single upsert statement keeps the update atomic; bounds are enforced in SQL.
func (s *Store) UpdateCapability(ctx context.Context, sample models.PerformanceSample, alpha float64) error {
	successValue := 0.0
	if sample.Success {
		successValue = 1.0
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_capabilities
		(agent_name, avg_execution_time_ms, avg_quality_score, success_rate, skill_keywords)
		VALUES (?, ?, ?, ?, '[]')
		ON CONFLICT(agent_name) DO UPDATE SET
			avg_execution_time_ms = MAX(0.0, (1.0 - ?) * avg_execution_time_ms + ? * excluded.avg_execution_time_ms),
			avg_quality_score = MIN(1.0, MAX(0.0, (1.0 - ?) * avg_quality_score + ? * excluded.avg_quality_score)),
			success_rate = MIN(1.0, MAX(0.0, (1.0 - ?) * success_rate + ? * excluded.success_rate))
	`,
		sample.AgentName,
		float64(sample.ExecutionTimeMs),
		models.Clamp01(sample.QualityScore),
		successValue,
		alpha, alpha,
		alpha, alpha,
		alpha, alpha,
	)
	if err != nil {
		return fmt.Errorf("failed to update capability for %s: %w", sample.AgentName, err)
	}
	return nil
}

// SavePrediction upserts the durable prediction record; repeat signatures
// increment the hit count and refresh last_accessed.
func (s *Store) SavePrediction(ctx context.Context, prediction *models.TaskPrediction) error {
	agents, err := json.Marshal(prediction.AgentNames())
	if err != nil {
		return fmt.Errorf("failed to marshal predicted agents: %w", err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prediction_cache
		(task_signature, predicted_agents, predicted_duration_ms, predicted_tokens,
		 confidence_score, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_signature) DO UPDATE SET
			predicted_agents = excluded.predicted_agents,
			predicted_duration_ms = excluded.predicted_duration_ms,
			predicted_tokens = excluded.predicted_tokens,
			confidence_score = excluded.confidence_score,
			hit_count = hit_count + 1,
			last_accessed = excluded.last_accessed
	`,
		prediction.TaskID,
		string(agents),
		prediction.EstimatedTotalMs,
		prediction.TotalTokens(),
		prediction.ConfidenceScore,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction %s: %w", prediction.TaskID, err)
	}
	return nil
}

// PredictedAgents returns the agent names recorded for a task signature,
// or ErrNotFound.
func (s *Store) PredictedAgents(ctx context.Context, taskID string) ([]string, error) {
	var agents string
	err := s.db.QueryRowContext(ctx,
		`SELECT predicted_agents FROM prediction_cache WHERE task_signature = ?`, taskID,
	).Scan(&agents)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prediction %s: %w", taskID, err)
	}

	var names []string
	if err := json.Unmarshal([]byte(agents), &names); err != nil {
		return nil, fmt.Errorf("failed to decode predicted agents: %w", err)
	}
	return names, nil
}

// AttachOutcome records the actual outcome and the binary accuracy verdict
// against the matching prediction row.
func (s *Store) AttachOutcome(ctx context.Context, taskID string, outcome models.OutcomeRecord, accuracy float64) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE prediction_cache
		SET actual_outcome = ?, prediction_accuracy = ?
		WHERE task_signature = ?
	`, string(payload), accuracy, taskID)
	if err != nil {
		return fmt.Errorf("failed to attach outcome to %s: %w", taskID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PredictionAccuracy returns the stored accuracy for a task signature
func (s *Store) PredictionAccuracy(ctx context.Context, taskID string) (float64, error) {
	var accuracy sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT prediction_accuracy FROM prediction_cache WHERE task_signature = ?`, taskID,
	).Scan(&accuracy)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if !accuracy.Valid {
		return 0, ErrNotFound
	}
	return accuracy.Float64, nil
}

// PredictionStats summarizes predictions that have received outcomes
type PredictionStats struct {
	TotalPredictions int
	AvgAccuracy      float64
	AvgConfidence    float64
}

// GetPredictionStats aggregates accuracy over scored predictions
func (s *Store) GetPredictionStats(ctx context.Context) (*PredictionStats, error) {
	var stats PredictionStats
	var avgAccuracy, avgConfidence sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(prediction_accuracy), AVG(confidence_score)
		FROM prediction_cache
		WHERE actual_outcome IS NOT NULL
	`).Scan(&stats.TotalPredictions, &avgAccuracy, &avgConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to read prediction stats: %w", err)
	}

	if avgAccuracy.Valid {
		stats.AvgAccuracy = avgAccuracy.Float64
	}
	if avgConfidence.Valid {
		stats.AvgConfidence = avgConfidence.Float64
	}
	return &stats, nil
}

// ActivityStats summarizes recent agent executions
type ActivityStats struct {
	TaskCount     int
	AvgResponseMs float64
	SuccessRate   float64
}

// GetRecentActivity aggregates agent metrics since the given time
func (s *Store) GetRecentActivity(ctx context.Context, since time.Time) (*ActivityStats, error) {
	var stats ActivityStats
	var avgMs, successRate sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       AVG(execution_time_ms),
		       AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END)
		FROM agent_metrics
		WHERE timestamp >= ?
	`, since).Scan(&stats.TaskCount, &avgMs, &successRate)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent activity: %w", err)
	}

	if avgMs.Valid {
		stats.AvgResponseMs = avgMs.Float64
	}
	if successRate.Valid {
		stats.SuccessRate = successRate.Float64
	}
	return &stats, nil
}

// TopAgents returns capability rows ordered by success rate
func (s *Store) TopAgents(ctx context.Context, limit int) ([]models.AgentCapability, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_name, avg_execution_time_ms, avg_quality_score, success_rate, skill_keywords
		FROM agent_capabilities
		ORDER BY success_rate DESC, agent_name ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read top agents: %w", err)
	}
	defer rows.Close()

	var caps []models.AgentCapability
	for rows.Next() {
		var capability models.AgentCapability
		var keywords string
		if err := rows.Scan(
			&capability.Name,
			&capability.AvgExecutionMs,
			&capability.AvgQualityScore,
			&capability.SuccessRate,
			&keywords,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keywords), &capability.SkillKeywords); err != nil {
			capability.SkillKeywords = nil
		}
		caps = append(caps, capability)
	}
	return caps, rows.Err()
}

// SuccessfulSamples returns all successful raw samples since the given time,
// newest constraint only; grouping happens in the pattern miner.
func (s *Store) SuccessfulSamples(ctx context.Context, since time.Time) ([]models.PerformanceSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_name, execution_time_ms, success, quality_score, project_path, task_type, timestamp
		FROM agent_metrics
		WHERE success = 1 AND timestamp >= ?
		ORDER BY timestamp ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read successful samples: %w", err)
	}
	defer rows.Close()

	var samples []models.PerformanceSample
	for rows.Next() {
		var sample models.PerformanceSample
		if err := rows.Scan(
			&sample.AgentName,
			&sample.ExecutionTimeMs,
			&sample.Success,
			&sample.QualityScore,
			&sample.ProjectPath,
			&sample.TaskType,
			&sample.Timestamp,
		); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// SampleCount returns how many raw samples exist for an agent
func (s *Store) SampleCount(ctx context.Context, agentName string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agent_metrics WHERE agent_name = ?`, agentName,
	).Scan(&count)
	return count, err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
