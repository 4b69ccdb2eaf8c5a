package recorder

import (
	"context"
	"testing"

	"github.com/agentflow/agentflow/internal/models"
	"github.com/agentflow/agentflow/internal/store"
)

func newTestRecorder(t *testing.T) (*Recorder, *store.Store) {
	t.Helper()

	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return New(s, 0.2), s
}

func savePrediction(t *testing.T, s *store.Store, taskID string, agents ...string) {
	t.Helper()

	recs := make([]models.AgentRecommendation, len(agents))
	for i, name := range agents {
		recs[i] = models.AgentRecommendation{AgentName: name, EstimatedDurationMs: 1000}
	}
	prediction := &models.TaskPrediction{
		TaskID:           taskID,
		Recommendations:  recs,
		EstimatedTotalMs: 1000,
		Strategy:         models.CoordinationParallel,
	}
	if err := s.SavePrediction(context.Background(), prediction); err != nil {
		t.Fatalf("SavePrediction failed: %v", err)
	}
}

func TestRecordUnknownTaskAppendsHistoryOnly(t *testing.T) {
	r, s := newTestRecorder(t)
	ctx := context.Background()

	outcome := models.OutcomeRecord{
		TaskID:       "nonexistent",
		Agents:       []string{"DEBUGGER"},
		DurationMs:   1200,
		Success:      true,
		QualityScore: 0.8,
	}
	if err := r.Record(ctx, outcome); err != nil {
		t.Fatalf("Expected unknown task to be non-fatal, got %v", err)
	}

	count, err := s.SampleCount(ctx, "DEBUGGER")
	if err != nil {
		t.Fatalf("SampleCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected one raw sample for DEBUGGER, got %d", count)
	}

	// No accuracy record is created for an unknown task
	if _, err := s.PredictionAccuracy(ctx, "nonexistent"); err == nil {
		t.Error("Expected no accuracy record for unknown task")
	}

	// Capability row is created lazily from the first outcome
	capability, err := s.GetCapability(ctx, "DEBUGGER")
	if err != nil {
		t.Fatalf("Expected capability row created: %v", err)
	}
	if capability.SuccessRate != 1.0 {
		t.Errorf("Expected success rate 1.0 after single success, got %.2f", capability.SuccessRate)
	}
}

func TestRecordAccuracyHit(t *testing.T) {
	r, s := newTestRecorder(t)
	ctx := context.Background()

	savePrediction(t, s, "task-hit", "SECURITY", "DATABASE")

	outcome := models.OutcomeRecord{
		TaskID:       "task-hit",
		Agents:       []string{"DATABASE", "TESTBED"},
		DurationMs:   2000,
		Success:      true,
		QualityScore: 0.9,
	}
	if err := r.Record(ctx, outcome); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	accuracy, err := s.PredictionAccuracy(ctx, "task-hit")
	if err != nil {
		t.Fatalf("PredictionAccuracy failed: %v", err)
	}
	if accuracy != 1.0 {
		t.Errorf("Expected accuracy 1.0 for intersecting agent sets, got %.1f", accuracy)
	}
}

func TestRecordAccuracyMiss(t *testing.T) {
	r, s := newTestRecorder(t)
	ctx := context.Background()

	savePrediction(t, s, "task-miss", "SECURITY")

	outcome := models.OutcomeRecord{
		TaskID:       "task-miss",
		Agents:       []string{"MONITOR"},
		DurationMs:   2000,
		Success:      false,
		QualityScore: 0.3,
	}
	if err := r.Record(ctx, outcome); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	accuracy, err := s.PredictionAccuracy(ctx, "task-miss")
	if err != nil {
		t.Fatalf("PredictionAccuracy failed: %v", err)
	}
	if accuracy != 0.0 {
		t.Errorf("Expected accuracy 0.0 for disjoint agent sets, got %.1f", accuracy)
	}
}

func TestRecordIdempotentAccuracy(t *testing.T) {
	r, s := newTestRecorder(t)
	ctx := context.Background()

	savePrediction(t, s, "task-repeat", "SECURITY")

	outcome := models.OutcomeRecord{
		TaskID:       "task-repeat",
		Agents:       []string{"SECURITY"},
		DurationMs:   1500,
		Success:      true,
		QualityScore: 0.85,
	}
	if err := r.Record(ctx, outcome); err != nil {
		t.Fatalf("First record failed: %v", err)
	}
	if err := r.Record(ctx, outcome); err != nil {
		t.Fatalf("Second record failed: %v", err)
	}

	accuracy, err := s.PredictionAccuracy(ctx, "task-repeat")
	if err != nil {
		t.Fatalf("PredictionAccuracy failed: %v", err)
	}
	if accuracy != 1.0 {
		t.Errorf("Expected accuracy to remain 1.0 after re-recording, got %.1f", accuracy)
	}
}

func TestRecordRejectsEmptyAgentList(t *testing.T) {
	r, _ := newTestRecorder(t)

	outcome := models.OutcomeRecord{TaskID: "task-x", Agents: nil, Success: true}
	if err := r.Record(context.Background(), outcome); err == nil {
		t.Error("Expected error for outcome with no agents")
	}
}

func TestRecordUpdatesEveryAgent(t *testing.T) {
	r, s := newTestRecorder(t)
	ctx := context.Background()

	savePrediction(t, s, "task-multi", "SECURITY", "DATABASE")

	outcome := models.OutcomeRecord{
		TaskID:       "task-multi",
		Agents:       []string{"SECURITY", "DATABASE"},
		DurationMs:   3000,
		Success:      true,
		QualityScore: 0.9,
		ProjectPath:  "proj-a",
		TaskType:     "auth",
	}
	if err := r.Record(ctx, outcome); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	for _, name := range outcome.Agents {
		count, err := s.SampleCount(ctx, name)
		if err != nil {
			t.Fatalf("SampleCount failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected one sample for %s, got %d", name, count)
		}
	}
}
