package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentflow/agentflow/internal/config"
	"github.com/agentflow/agentflow/internal/models"
	"github.com/agentflow/agentflow/internal/optimizer"
	"github.com/agentflow/agentflow/internal/predictor"
	"github.com/agentflow/agentflow/internal/recorder"
	"github.com/agentflow/agentflow/internal/store"
)

// PredictResult is the structured outcome of a predict call. A successful
// result with zero recommendations means no agent qualified, which callers
// must handle explicitly.
type PredictResult struct {
	Success              bool                         `json:"success"`
	Error                string                       `json:"error,omitempty"`
	TaskID               string                       `json:"task_id,omitempty"`
	Recommendations      []models.AgentRecommendation `json:"recommendations"`
	PredictedSuccessRate float64                      `json:"predicted_success_rate"`
	CoordinationStrategy models.CoordinationStrategy  `json:"coordination_strategy,omitempty"`
	ConfidenceScore      float64                      `json:"confidence_score"`
	EstimatedTotalMs     int                          `json:"estimated_total_time_ms"`
}

// RecordResult is the structured outcome of an outcome-recording call
type RecordResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Metrics summarizes engine-wide performance
type Metrics struct {
	PredictionAccuracy float64                  `json:"prediction_accuracy"`
	ConfidenceScore    float64                  `json:"confidence_score"`
	TotalPredictions   int                      `json:"total_predictions"`
	RecentSuccessRate  float64                  `json:"recent_success_rate"`
	AvgResponseTimeMs  float64                  `json:"avg_response_time_ms"`
	RecentTaskCount    int                      `json:"recent_task_count"`
	TopAgents          []models.AgentCapability `json:"top_agents"`
	CacheSize          int                      `json:"cache_size"`
}

// MetricsResult wraps metrics retrieval
type MetricsResult struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Metrics *Metrics `json:"metrics,omitempty"`
}

// OptimizeResult wraps pattern mining
type OptimizeResult struct {
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
	Insights []*models.Insight `json:"insights"`
}

// Engine is the library façade over the prediction core. All public
// operations return structured results rather than raising errors across
// the boundary, so the dispatching orchestrator can fall back gracefully.
type Engine struct {
	config *config.Config

	store     *store.Store
	cache     *predictor.PredictionCache
	shared    *predictor.RedisPredictionCache
	predictor *predictor.Predictor
	recorder  *recorder.Recorder
	optimizer *optimizer.Optimizer
	insights  optimizer.InsightStore
	limiter   *rate.Limiter

	mu          sync.Mutex
	initialized bool
}

// New creates an engine with the given configuration (nil uses defaults)
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{config: cfg}
}

// Initialize establishes persistence connectivity, seeds the capability
// catalog, and loads the capability snapshot. Safe to call more than once.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	s, err := store.Open(e.config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open capability store: %w", err)
	}

	catalog := predictor.DefaultCatalog()
	if err := s.SeedCapabilities(ctx, catalog.SeedCapabilities()); err != nil {
		s.Close()
		return fmt.Errorf("failed to seed capabilities: %w", err)
	}

	insights, err := e.openInsightStore()
	if err != nil {
		s.Close()
		return err
	}

	var shared *predictor.RedisPredictionCache
	if e.config.RedisEnabled {
		shared, err = predictor.NewRedisPredictionCache(
			e.config.RedisAddr, e.config.RedisPassword, e.config.RedisDB, e.config.CacheTTL)
		if err != nil {
			insights.Close()
			s.Close()
			return fmt.Errorf("failed to open shared cache: %w", err)
		}
	}

	cache := predictor.NewPredictionCache(e.config.CacheTTL)
	var sharedTier predictor.SharedCache
	if shared != nil {
		sharedTier = shared
	}
	p := predictor.New(catalog, cache, s, sharedTier, s)
	if err := p.Refresh(ctx); err != nil {
		cache.Stop()
		if shared != nil {
			shared.Close()
		}
		insights.Close()
		s.Close()
		return fmt.Errorf("failed to load capability snapshot: %w", err)
	}

	e.store = s
	e.cache = cache
	e.shared = shared
	e.predictor = p
	e.recorder = recorder.New(s, e.config.SmoothingAlpha)
	e.optimizer = optimizer.New(s, insights)
	e.insights = insights
	e.limiter = rate.NewLimiter(rate.Limit(e.config.PredictRatePerSec), e.config.PredictBurst)
	e.initialized = true
	return nil
}

func (e *Engine) openInsightStore() (optimizer.InsightStore, error) {
	switch e.config.InsightBackend {
	case "dgraph":
		insights, err := optimizer.NewDgraphInsightStore(e.config.DgraphAlphaURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open Dgraph insight store: %w", err)
		}
		return insights, nil
	default:
		insights, err := optimizer.NewBadgerInsightStore(e.config.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open Badger insight store: %w", err)
		}
		return insights, nil
	}
}

// ensureInitialized lazily initializes the engine on first use
func (e *Engine) ensureInitialized(ctx context.Context) error {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()

	if initialized {
		return nil
	}
	return e.Initialize(ctx)
}

// PredictAgents ranks agents for a task description
func (e *Engine) PredictAgents(ctx context.Context, description, taskType string, maxAgents int, requireCoordination bool) *PredictResult {
	if err := e.ensureInitialized(ctx); err != nil {
		return &PredictResult{Error: err.Error()}
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return &PredictResult{Error: fmt.Sprintf("rate limit wait aborted: %v", err)}
	}

	prediction, err := e.predictor.Predict(ctx, &predictor.Request{
		Description:         description,
		TaskType:            taskType,
		MaxAgents:           maxAgents,
		RequireCoordination: requireCoordination,
	})
	if err != nil {
		return &PredictResult{Error: err.Error()}
	}

	return &PredictResult{
		Success:              true,
		TaskID:               prediction.TaskID,
		Recommendations:      prediction.Recommendations,
		PredictedSuccessRate: prediction.PredictedSuccessRate,
		CoordinationStrategy: prediction.Strategy,
		ConfidenceScore:      prediction.ConfidenceScore,
		EstimatedTotalMs:     prediction.EstimatedTotalMs,
	}
}

// RecordOutcome feeds ground truth back into the capability store and
// refreshes the predictor's snapshot so new statistics take effect.
func (e *Engine) RecordOutcome(ctx context.Context, outcome models.OutcomeRecord) *RecordResult {
	if err := e.ensureInitialized(ctx); err != nil {
		return &RecordResult{Error: err.Error()}
	}

	if err := e.recorder.Record(ctx, outcome); err != nil {
		return &RecordResult{Error: err.Error()}
	}
	if err := e.predictor.Refresh(ctx); err != nil {
		return &RecordResult{Error: err.Error()}
	}
	return &RecordResult{Success: true}
}

// GetMetrics assembles engine-wide performance metrics
func (e *Engine) GetMetrics(ctx context.Context) *MetricsResult {
	if err := e.ensureInitialized(ctx); err != nil {
		return &MetricsResult{Error: err.Error()}
	}

	predictionStats, err := e.store.GetPredictionStats(ctx)
	if err != nil {
		return &MetricsResult{Error: err.Error()}
	}
	activity, err := e.store.GetRecentActivity(ctx, time.Now().Add(-e.config.MetricsWindow))
	if err != nil {
		return &MetricsResult{Error: err.Error()}
	}
	topAgents, err := e.store.TopAgents(ctx, 10)
	if err != nil {
		return &MetricsResult{Error: err.Error()}
	}

	return &MetricsResult{
		Success: true,
		Metrics: &Metrics{
			PredictionAccuracy: predictionStats.AvgAccuracy,
			ConfidenceScore:    predictionStats.AvgConfidence,
			TotalPredictions:   predictionStats.TotalPredictions,
			RecentSuccessRate:  activity.SuccessRate,
			AvgResponseTimeMs:  activity.AvgResponseMs,
			RecentTaskCount:    activity.TaskCount,
			TopAgents:          topAgents,
			CacheSize:          e.predictor.CacheSize(),
		},
	}
}

// OptimizePatterns mines recent outcomes for reusable agent combinations
func (e *Engine) OptimizePatterns(ctx context.Context) *OptimizeResult {
	if err := e.ensureInitialized(ctx); err != nil {
		return &OptimizeResult{Error: err.Error()}
	}

	insights, err := e.optimizer.MinePatterns(ctx, e.config.MiningLookback)
	if err != nil {
		return &OptimizeResult{Error: err.Error()}
	}
	return &OptimizeResult{Success: true, Insights: insights}
}

// Close shuts down all stores and background workers
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil
	}
	e.initialized = false

	var errs []error
	e.cache.Stop()
	if e.shared != nil {
		if err := e.shared.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.insights.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %v", errs)
	}
	return nil
}
