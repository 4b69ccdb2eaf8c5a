package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/agentflow/agentflow/internal/models"
	"github.com/agentflow/agentflow/internal/store"
)

// OutcomeStore is the slice of the persistence layer the recorder writes to
type OutcomeStore interface {
	PredictedAgents(ctx context.Context, taskID string) ([]string, error)
	AttachOutcome(ctx context.Context, taskID string, outcome models.OutcomeRecord, accuracy float64) error
	AppendSample(ctx context.Context, sample models.PerformanceSample) error
	UpdateCapability(ctx context.Context, sample models.PerformanceSample, alpha float64) error
}

// Recorder folds ground-truth task outcomes back into the capability store
// and scores the matching prediction. Capability scalars are updated
// synchronously with an exponential moving average.
type Recorder struct {
	store OutcomeStore
	alpha float64
}

// New creates a recorder; alpha is the EMA smoothing factor in (0,1]
func New(outcomeStore OutcomeStore, alpha float64) *Recorder {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	return &Recorder{store: outcomeStore, alpha: alpha}
}

// Record processes one completed task. A missing prediction for the task ID
// is logged and skipped; the capability history append still happens.
func (r *Recorder) Record(ctx context.Context, outcome models.OutcomeRecord) error {
	if len(outcome.Agents) == 0 {
		return fmt.Errorf("outcome for %s names no agents", outcome.TaskID)
	}

	predicted, err := r.store.PredictedAgents(ctx, outcome.TaskID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Printf("no prediction found for task %s, recording capability history only", outcome.TaskID)
	case err != nil:
		return fmt.Errorf("failed to look up prediction %s: %w", outcome.TaskID, err)
	default:
		accuracy := 0.0
		if intersects(predicted, outcome.Agents) {
			accuracy = 1.0
		}
		if err := r.store.AttachOutcome(ctx, outcome.TaskID, outcome, accuracy); err != nil {
			return fmt.Errorf("failed to attach outcome to %s: %w", outcome.TaskID, err)
		}
	}

	now := time.Now()
	for _, agent := range outcome.Agents {
		sample := models.PerformanceSample{
			AgentName:       agent,
			ExecutionTimeMs: outcome.DurationMs,
			Success:         outcome.Success,
			QualityScore:    models.Clamp01(outcome.QualityScore),
			ProjectPath:     outcome.ProjectPath,
			TaskType:        outcome.TaskType,
			Timestamp:       now,
		}
		if err := r.store.AppendSample(ctx, sample); err != nil {
			return err
		}
		if err := r.store.UpdateCapability(ctx, sample, r.alpha); err != nil {
			return err
		}
	}

	return nil
}

// intersects reports whether the two agent name sets share any member
func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, name := range a {
		set[name] = struct{}{}
	}
	for _, name := range b {
		if _, ok := set[name]; ok {
			return true
		}
	}
	return false
}
