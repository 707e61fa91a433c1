package registry

import (
	"log/slog"
	"time"

	"ibt_platform/train/loop"

	"github.com/google/uuid"
)

// PhaseRecorder implements the loop's observer interface, persisting each
// completed phase as a registry record.
type PhaseRecorder struct {
	Registry *Registry
	RunId    uuid.UUID
}

func (p *PhaseRecorder) PhaseStarted(round int, phase loop.Phase, direction loop.Direction) {}

func (p *PhaseRecorder) PhaseCompleted(round int, phase loop.Phase, direction loop.Direction, rows int, elapsed time.Duration, stats *loop.TrainStats) {
	record := PhaseRecord{
		RunId:      p.RunId,
		Round:      round,
		Phase:      string(phase),
		Direction:  string(direction),
		Rows:       rows,
		DurationMs: elapsed.Milliseconds(),
	}
	if stats != nil {
		record.Epochs = stats.Epochs
		record.EvalLoss = stats.EvalLoss
		record.EvalScore = stats.EvalScore
	}

	if err := p.Registry.RecordPhase(record); err != nil {
		slog.Error("error recording phase", "run_id", p.RunId, "round", round, "phase", phase, "error", err)
	}
}
