package optimizer

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/agentflow/agentflow/internal/models"
)

type staticMetrics struct {
	samples []models.PerformanceSample
}

func (s *staticMetrics) SuccessfulSamples(ctx context.Context, since time.Time) ([]models.PerformanceSample, error) {
	var out []models.PerformanceSample
	for _, sample := range s.samples {
		if !sample.Timestamp.Before(since) {
			out = append(out, sample)
		}
	}
	return out, nil
}

func newTestInsightStore(t *testing.T) *BadgerInsightStore {
	t.Helper()

	store, err := NewBadgerInsightStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open insight store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sample(agent, project, taskType string, quality float64) models.PerformanceSample {
	return models.PerformanceSample{
		AgentName:       agent,
		ExecutionTimeMs: 1000,
		Success:         true,
		QualityScore:    quality,
		ProjectPath:     project,
		TaskType:        taskType,
		Timestamp:       time.Now(),
	}
}

func TestMinePatternsSampleThreshold(t *testing.T) {
	insights := newTestInsightStore(t)
	source := &staticMetrics{samples: []models.PerformanceSample{
		sample("SECURITY", "P", "T", 0.9),
		sample("DATABASE", "P", "T", 0.8),
	}}
	optimizer := New(source, insights)
	ctx := context.Background()

	mined, err := optimizer.MinePatterns(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("MinePatterns failed: %v", err)
	}
	if len(mined) != 0 {
		t.Errorf("Expected no insights below the sample threshold, got %d", len(mined))
	}

	// A third successful sample pushes the group over the threshold
	source.samples = append(source.samples, sample("SECURITY", "P", "T", 0.95))

	mined, err = optimizer.MinePatterns(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("MinePatterns failed: %v", err)
	}
	if len(mined) != 1 {
		t.Fatalf("Expected exactly one insight, got %d", len(mined))
	}
	if mined[0].ProjectPath != "P" || mined[0].TaskType != "T" {
		t.Errorf("Unexpected insight key: (%s, %s)", mined[0].ProjectPath, mined[0].TaskType)
	}
	if mined[0].SampleSize != 3 {
		t.Errorf("Expected sample size 3, got %d", mined[0].SampleSize)
	}
}

func TestMinePatternsRanksAgentsByQuality(t *testing.T) {
	insights := newTestInsightStore(t)
	source := &staticMetrics{samples: []models.PerformanceSample{
		sample("DEBUGGER", "proj", "fix", 0.6),
		sample("SECURITY", "proj", "fix", 0.95),
		sample("DATABASE", "proj", "fix", 0.8),
		sample("MONITOR", "proj", "fix", 0.7),
	}}
	optimizer := New(source, insights)

	mined, err := optimizer.MinePatterns(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("MinePatterns failed: %v", err)
	}
	if len(mined) != 1 {
		t.Fatalf("Expected one insight, got %d", len(mined))
	}

	want := []string{"SECURITY", "DATABASE", "MONITOR"}
	if !reflect.DeepEqual(mined[0].OptimalAgents, want) {
		t.Errorf("Expected top agents %v, got %v", want, mined[0].OptimalAgents)
	}
}

func TestMinePatternsDeterministic(t *testing.T) {
	source := &staticMetrics{samples: []models.PerformanceSample{
		sample("A", "p1", "t1", 0.9),
		sample("B", "p1", "t1", 0.8),
		sample("C", "p1", "t1", 0.7),
		sample("A", "p2", "t2", 0.6),
		sample("B", "p2", "t2", 0.6),
		sample("C", "p2", "t2", 0.6),
	}}

	first, err := New(source, newTestInsightStore(t)).MinePatterns(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("MinePatterns failed: %v", err)
	}
	second, err := New(source, newTestInsightStore(t)).MinePatterns(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("MinePatterns failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("Insight counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ProjectPath != second[i].ProjectPath ||
			first[i].TaskType != second[i].TaskType ||
			first[i].SampleSize != second[i].SampleSize ||
			!reflect.DeepEqual(first[i].OptimalAgents, second[i].OptimalAgents) {
			t.Errorf("Insight %d differs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestMinePatternsUpsertsLastWriterWins(t *testing.T) {
	insights := newTestInsightStore(t)
	source := &staticMetrics{samples: []models.PerformanceSample{
		sample("A", "p", "t", 0.9),
		sample("A", "p", "t", 0.9),
		sample("A", "p", "t", 0.9),
	}}
	optimizer := New(source, insights)
	ctx := context.Background()

	if _, err := optimizer.MinePatterns(ctx, time.Hour); err != nil {
		t.Fatalf("MinePatterns failed: %v", err)
	}

	// Second run over grown data overwrites the stored insight
	source.samples = append(source.samples, sample("B", "p", "t", 0.95))
	if _, err := optimizer.MinePatterns(ctx, time.Hour); err != nil {
		t.Fatalf("MinePatterns failed: %v", err)
	}

	stored, err := insights.Get(ctx, "p", "t")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Expected stored insight")
	}
	if stored.SampleSize != 4 {
		t.Errorf("Expected overwritten sample size 4, got %d", stored.SampleSize)
	}
	if stored.OptimalAgents[0] != "B" {
		t.Errorf("Expected B ranked first after overwrite, got %v", stored.OptimalAgents)
	}
}

func TestBadgerInsightStoreRoundTrip(t *testing.T) {
	store := newTestInsightStore(t)
	ctx := context.Background()

	insight := &models.Insight{
		ProjectPath:   "proj-x",
		TaskType:      "deploy",
		OptimalAgents: []string{"MLOPS", "MONITOR"},
		QualityScore:  0.88,
		SampleSize:    5,
		LastValidated: time.Now(),
	}
	if err := store.Upsert(ctx, insight); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "proj-x", "deploy")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected stored insight")
	}
	if !reflect.DeepEqual(got.OptimalAgents, insight.OptimalAgents) {
		t.Errorf("Agents mismatch: %v vs %v", got.OptimalAgents, insight.OptimalAgents)
	}

	missing, err := store.Get(ctx, "proj-x", "unknown")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for unknown key")
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected one stored insight, got %d", len(all))
	}
}

func TestDgraphInsightStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	store, err := NewDgraphInsightStore("localhost:9080")
	if err != nil {
		t.Skipf("Skipping test - Dgraph not available: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	insight := &models.Insight{
		ProjectPath:   "proj-dgraph",
		TaskType:      "audit",
		OptimalAgents: []string{"SECURITY"},
		QualityScore:  0.9,
		SampleSize:    3,
	}
	if err := store.Upsert(ctx, insight); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "proj-dgraph", "audit")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || len(got.OptimalAgents) != 1 {
		t.Errorf("Unexpected insight: %+v", got)
	}
}
