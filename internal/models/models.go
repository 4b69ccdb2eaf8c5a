package models

import "time"

// CoordinationStrategy describes how selected agents are expected to run
type CoordinationStrategy string

const (
	CoordinationParallel   CoordinationStrategy = "parallel"
	CoordinationSequential CoordinationStrategy = "sequential"
)

// AgentRole classifies an agent for complexity-based scoring adjustments
type AgentRole string

const (
	RoleCoordinator AgentRole = "coordinator" // high-level planning and coordination
	RoleExecutor    AgentRole = "executor"    // quick fixes and direct execution
	RoleSpecialist  AgentRole = "specialist"  // everything else
)

// AgentCapability holds rolling performance statistics for one named agent
type AgentCapability struct {
	Name            string   `json:"name"`
	AvgExecutionMs  float64  `json:"avg_execution_time_ms"`
	AvgQualityScore float64  `json:"avg_quality_score"` // [0,1]
	SuccessRate     float64  `json:"success_rate"`      // [0,1]
	SkillKeywords   []string `json:"skill_keywords"`
}

// AgentRecommendation is one ranked entry in a TaskPrediction
type AgentRecommendation struct {
	AgentName           string  `json:"agent_name"`
	SuitabilityScore    float64 `json:"suitability_score"`
	EstimatedDurationMs int     `json:"estimated_duration_ms"`
	EstimatedTokens     int     `json:"estimated_tokens"`
	Confidence          float64 `json:"confidence"`
	Reasoning           string  `json:"reasoning"`
}

// TaskPrediction is the ranked recommendation set returned to callers
type TaskPrediction struct {
	TaskID               string                `json:"task_id"`
	Recommendations      []AgentRecommendation `json:"recommendations"` // sorted by suitability, best first
	PredictedSuccessRate float64               `json:"predicted_success_rate"`
	EstimatedTotalMs     int                   `json:"estimated_total_time_ms"`
	Strategy             CoordinationStrategy  `json:"coordination_strategy"`
	ConfidenceScore      float64               `json:"confidence_score"`
}

// TotalTokens sums the estimated token budget across recommendations
func (p *TaskPrediction) TotalTokens() int {
	total := 0
	for _, rec := range p.Recommendations {
		total += rec.EstimatedTokens
	}
	return total
}

// AgentNames returns the predicted agent names in rank order
func (p *TaskPrediction) AgentNames() []string {
	names := make([]string, len(p.Recommendations))
	for i, rec := range p.Recommendations {
		names[i] = rec.AgentName
	}
	return names
}

// OutcomeRecord is the ground truth reported after a task actually ran
type OutcomeRecord struct {
	TaskID       string   `json:"task_id"`
	Agents       []string `json:"agents"`
	DurationMs   int      `json:"duration_ms"`
	Success      bool     `json:"success"`
	QualityScore float64  `json:"quality_score"`

	// Optional grouping context used by pattern mining
	ProjectPath string `json:"project_path,omitempty"`
	TaskType    string `json:"task_type,omitempty"`
}

// PerformanceSample is one append-only row in an agent's history
type PerformanceSample struct {
	AgentName       string    `json:"agent_name"`
	ExecutionTimeMs int       `json:"execution_time_ms"`
	Success         bool      `json:"success"`
	QualityScore    float64   `json:"quality_score"`
	ProjectPath     string    `json:"project_path"`
	TaskType        string    `json:"task_type"`
	Timestamp       time.Time `json:"timestamp"`
}

// Insight is a mined recommendation of historically effective agent combinations
type Insight struct {
	ProjectPath   string    `json:"project_path"`
	TaskType      string    `json:"task_type"`
	OptimalAgents []string  `json:"optimal_agents"`
	QualityScore  float64   `json:"quality_score"`
	SampleSize    int       `json:"sample_size"`
	LastValidated time.Time `json:"last_validated"`
}

// Clamp01 bounds a score to [0,1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
