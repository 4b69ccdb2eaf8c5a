package predictor

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/agentflow/agentflow/internal/analyzer"
	"github.com/agentflow/agentflow/internal/models"
)

// Input validation errors, rejected before any I/O
var (
	ErrEmptyTask        = errors.New("task description must not be empty")
	ErrInvalidMaxAgents = errors.New("max agents must be at least 1")
)

// Suitability weighting per scoring term
const (
	weightSuccessRate = 0.4
	weightKeywords    = 0.3
	weightQuality     = 0.2
	weightSpeed       = 0.1

	// Agents scoring at or below this total are not viable for the task
	viabilityThreshold = 0.3

	// Agents slower than this score zero on the speed term
	speedCeilingMs = 10000
)

// CapabilitySource supplies the current capability snapshot, typically the
// persistence layer.
type CapabilitySource interface {
	Snapshot(ctx context.Context) ([]models.AgentCapability, error)
}

// SharedCache is an optional cross-process prediction cache tier
type SharedCache interface {
	Get(ctx context.Context, signature string) (*models.TaskPrediction, bool, error)
	Set(ctx context.Context, signature string, prediction *models.TaskPrediction) error
}

// PredictionSink persists freshly computed predictions
type PredictionSink interface {
	SavePrediction(ctx context.Context, prediction *models.TaskPrediction) error
}

// Request describes one prediction call
type Request struct {
	Description         string
	TaskType            string // defaults to "general"
	MaxAgents           int    // defaults to 3
	RequireCoordination bool
}

// Predictor ranks catalog agents for a task by combining capability
// statistics with keyword and complexity analysis. Scoring is CPU-only; the
// capability snapshot is loaded up front and refreshed explicitly.
type Predictor struct {
	catalog Catalog
	cache   *PredictionCache
	shared  SharedCache
	sink    PredictionSink
	source  CapabilitySource

	mu       sync.RWMutex
	snapshot []models.AgentCapability
}

// New creates a predictor. shared and sink may be nil.
func New(catalog Catalog, cache *PredictionCache, source CapabilitySource, shared SharedCache, sink PredictionSink) *Predictor {
	return &Predictor{
		catalog: catalog,
		cache:   cache,
		shared:  shared,
		sink:    sink,
		source:  source,
	}
}

// Refresh reloads the capability snapshot from the source. A failed refresh
// keeps the previous snapshot so predictions degrade instead of aborting;
// the error is only fatal when no data was ever loaded.
func (p *Predictor) Refresh(ctx context.Context) error {
	caps, err := p.source.Snapshot(ctx)
	if err != nil {
		p.mu.RLock()
		loaded := len(p.snapshot)
		p.mu.RUnlock()
		if loaded > 0 {
			log.Printf("capability refresh failed, keeping %d stale entries: %v", loaded, err)
			return nil
		}
		return fmt.Errorf("failed to load capability snapshot: %w", err)
	}

	// Deterministic scoring order
	sort.Slice(caps, func(i, j int) bool { return caps[i].Name < caps[j].Name })

	p.mu.Lock()
	p.snapshot = caps
	p.mu.Unlock()
	return nil
}

// SnapshotSize returns the number of agents currently loaded
func (p *Predictor) SnapshotSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.snapshot)
}

// CacheSize returns the local prediction cache entry count
func (p *Predictor) CacheSize() int {
	return p.cache.Len()
}

// TaskSignature computes the deterministic digest identifying a
// (description, type, max-agents) tuple for caching and persistence.
func TaskSignature(description, taskType string, maxAgents int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%d", description, taskType, maxAgents)))
	return fmt.Sprintf("%x", sum)
}

// Predict ranks agents for the task and returns a cached result when a fresh
// one exists. An empty recommendation list with zero predicted success is a
// valid outcome, not an error.
func (p *Predictor) Predict(ctx context.Context, req *Request) (*models.TaskPrediction, error) {
	if req == nil || strings.TrimSpace(req.Description) == "" {
		return nil, ErrEmptyTask
	}
	taskType := req.TaskType
	if taskType == "" {
		taskType = "general"
	}
	maxAgents := req.MaxAgents
	if maxAgents == 0 {
		maxAgents = 3
	}
	if maxAgents < 1 {
		return nil, ErrInvalidMaxAgents
	}

	signature := TaskSignature(req.Description, taskType, maxAgents)

	if prediction, ok := p.cache.Get(signature); ok {
		return prediction, nil
	}
	if p.shared != nil {
		prediction, ok, err := p.shared.Get(ctx, signature)
		if err != nil {
			log.Printf("shared cache read failed for %s: %v", signature, err)
		} else if ok {
			p.cache.Set(signature, prediction)
			return prediction, nil
		}
	}

	keywords := analyzer.ExtractKeywords(req.Description)
	complexity := analyzer.EstimateComplexity(req.Description)

	p.mu.RLock()
	snapshot := p.snapshot
	p.mu.RUnlock()

	recommendations := p.scoreAgents(snapshot, keywords, complexity)

	sort.SliceStable(recommendations, func(i, j int) bool {
		if recommendations[i].SuitabilityScore != recommendations[j].SuitabilityScore {
			return recommendations[i].SuitabilityScore > recommendations[j].SuitabilityScore
		}
		return recommendations[i].AgentName < recommendations[j].AgentName
	})
	if len(recommendations) > maxAgents {
		recommendations = recommendations[:maxAgents]
	}

	strategy := models.CoordinationParallel
	if req.RequireCoordination || complexity > 8 {
		strategy = models.CoordinationSequential
	}

	confidence := 0.0
	predictedSuccess := 0.0
	if len(recommendations) > 0 {
		for _, rec := range recommendations {
			confidence += rec.Confidence
		}
		confidence /= float64(len(recommendations))
		predictedSuccess = math.Min(0.95, confidence+0.1)
	}

	prediction := &models.TaskPrediction{
		TaskID:               signature,
		Recommendations:      recommendations,
		PredictedSuccessRate: predictedSuccess,
		EstimatedTotalMs:     totalDuration(recommendations, strategy),
		Strategy:             strategy,
		ConfidenceScore:      confidence,
	}

	p.cache.Set(signature, prediction)
	if p.shared != nil {
		if err := p.shared.Set(ctx, signature, prediction); err != nil {
			log.Printf("shared cache write failed for %s: %v", signature, err)
		}
	}
	if p.sink != nil {
		if err := p.sink.SavePrediction(ctx, prediction); err != nil {
			log.Printf("failed to persist prediction %s: %v", signature, err)
		}
	}

	return prediction, nil
}

// scoreAgents computes suitability for every agent in the snapshot and keeps
// the viable ones.
func (p *Predictor) scoreAgents(snapshot []models.AgentCapability, keywords []string, complexity int) []models.AgentRecommendation {
	recommendations := make([]models.AgentRecommendation, 0, len(snapshot))

	for _, capability := range snapshot {
		profile := p.catalog[capability.Name]

		keywordScore := keywordMatchScore(profile.Keywords, keywords) * weightKeywords
		qualityScore := capability.AvgQualityScore * weightQuality

		suitability := capability.SuccessRate*weightSuccessRate +
			keywordScore +
			qualityScore +
			timeScore(capability.AvgExecutionMs)*weightSpeed

		// Complex tasks favor coordination roles, trivial ones direct executors
		if complexity > 6 && profile.Role == models.RoleCoordinator {
			suitability += 0.15
		} else if complexity < 3 && profile.Role == models.RoleExecutor {
			suitability += 0.1
		}

		if suitability <= viabilityThreshold {
			continue
		}
		suitability = models.Clamp01(suitability)

		recommendations = append(recommendations, models.AgentRecommendation{
			AgentName:           capability.Name,
			SuitabilityScore:    suitability,
			EstimatedDurationMs: int(capability.AvgExecutionMs * float64(complexity) * 0.8),
			EstimatedTokens:     int(800 * float64(complexity) * suitability),
			Confidence:          capability.SuccessRate,
			Reasoning:           fmt.Sprintf("Keyword match: %.2f, Quality: %.2f", keywordScore, qualityScore),
		})
	}

	return recommendations
}

// keywordMatchScore measures task keyword overlap with an agent's declared
// keywords. Substring overlap in either direction counts as a match.
func keywordMatchScore(agentKeywords, taskKeywords []string) float64 {
	if len(agentKeywords) == 0 {
		return 0.2
	}
	if len(taskKeywords) == 0 {
		return 0.3
	}

	matches := 0
	for _, keyword := range taskKeywords {
		for _, agentKeyword := range agentKeywords {
			if strings.Contains(keyword, agentKeyword) || strings.Contains(agentKeyword, keyword) {
				matches++
				break
			}
		}
	}

	return math.Min(1.0, float64(matches)/float64(len(taskKeywords))+0.2)
}

// timeScore rewards fast agents; anything at or beyond the ceiling scores zero
func timeScore(avgExecutionMs float64) float64 {
	return math.Max(0, (speedCeilingMs-avgExecutionMs)/speedCeilingMs)
}

// totalDuration aggregates per-agent estimates according to the strategy:
// max for parallel execution, sum for sequential.
func totalDuration(recommendations []models.AgentRecommendation, strategy models.CoordinationStrategy) int {
	if len(recommendations) == 0 {
		return 0
	}

	if strategy == models.CoordinationParallel {
		longest := 0
		for _, rec := range recommendations {
			if rec.EstimatedDurationMs > longest {
				longest = rec.EstimatedDurationMs
			}
		}
		return longest
	}

	total := 0
	for _, rec := range recommendations {
		total += rec.EstimatedDurationMs
	}
	return total
}
