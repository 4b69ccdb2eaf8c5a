package optimizer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/agentflow/agentflow/internal/models"
)

// minimum successful samples a (project, task type) group needs before an
// insight is worth emitting
const defaultMinSamples = 3

// maximum agents named in one insight
const maxOptimalAgents = 3

// MetricsSource supplies the successful raw samples mined for patterns
type MetricsSource interface {
	SuccessfulSamples(ctx context.Context, since time.Time) ([]models.PerformanceSample, error)
}

// InsightStore durably persists mined insights keyed by (project, task type)
type InsightStore interface {
	Upsert(ctx context.Context, insight *models.Insight) error
	Get(ctx context.Context, projectPath, taskType string) (*models.Insight, error)
	List(ctx context.Context) ([]*models.Insight, error)
	Close() error
}

// Optimizer mines historical outcomes for recurring high-quality agent
// combinations and stores them as reusable insights.
type Optimizer struct {
	source     MetricsSource
	insights   InsightStore
	minSamples int
}

// New creates an optimizer over the given metrics source and insight store
func New(source MetricsSource, insights InsightStore) *Optimizer {
	return &Optimizer{
		source:     source,
		insights:   insights,
		minSamples: defaultMinSamples,
	}
}

type groupKey struct {
	projectPath string
	taskType    string
}

type agentStats struct {
	name    string
	total   float64
	samples int
}

// MinePatterns groups successful outcomes from the lookback window by
// (project, task type), ranks agents within qualifying groups by average
// quality, and upserts one insight per group. Deterministic for fixed input;
// a failed upsert is logged and does not abort other groups.
func (o *Optimizer) MinePatterns(ctx context.Context, lookback time.Duration) ([]*models.Insight, error) {
	since := time.Now().Add(-lookback)
	samples, err := o.source.SuccessfulSamples(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples for mining: %w", err)
	}

	groups := make(map[groupKey][]models.PerformanceSample)
	for _, sample := range samples {
		key := groupKey{projectPath: sample.ProjectPath, taskType: sample.TaskType}
		groups[key] = append(groups[key], sample)
	}

	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].projectPath != keys[j].projectPath {
			return keys[i].projectPath < keys[j].projectPath
		}
		return keys[i].taskType < keys[j].taskType
	})

	var insights []*models.Insight
	for _, key := range keys {
		group := groups[key]
		if len(group) < o.minSamples {
			continue
		}

		insight := buildInsight(key, group)
		if err := o.insights.Upsert(ctx, insight); err != nil {
			log.Printf("failed to store insight for (%s, %s): %v", key.projectPath, key.taskType, err)
		}
		insights = append(insights, insight)
	}

	return insights, nil
}

// buildInsight ranks the group's agents by average quality and assembles the
// insight record.
func buildInsight(key groupKey, group []models.PerformanceSample) *models.Insight {
	byAgent := make(map[string]*agentStats)
	groupTotal := 0.0
	for _, sample := range group {
		stats, ok := byAgent[sample.AgentName]
		if !ok {
			stats = &agentStats{name: sample.AgentName}
			byAgent[sample.AgentName] = stats
		}
		stats.total += sample.QualityScore
		stats.samples++
		groupTotal += sample.QualityScore
	}

	ranked := make([]*agentStats, 0, len(byAgent))
	for _, stats := range byAgent {
		ranked = append(ranked, stats)
	}
	sort.Slice(ranked, func(i, j int) bool {
		avgI := ranked[i].total / float64(ranked[i].samples)
		avgJ := ranked[j].total / float64(ranked[j].samples)
		if avgI != avgJ {
			return avgI > avgJ
		}
		return ranked[i].name < ranked[j].name
	})

	limit := maxOptimalAgents
	if len(ranked) < limit {
		limit = len(ranked)
	}
	optimal := make([]string, limit)
	for i := 0; i < limit; i++ {
		optimal[i] = ranked[i].name
	}

	return &models.Insight{
		ProjectPath:   key.projectPath,
		TaskType:      key.taskType,
		OptimalAgents: optimal,
		QualityScore:  groupTotal / float64(len(group)),
		SampleSize:    len(group),
		LastValidated: time.Now(),
	}
}
