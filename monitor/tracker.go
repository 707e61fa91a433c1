package monitor

import (
	"sync"
	"time"

	"ibt_platform/train/loop"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	trainPhaseMetric    = promauto.NewSummary(prometheus.SummaryOpts{Name: "ibt_train_phase_seconds", Help: "Duration of training phases"})
	generatePhaseMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "ibt_generate_phase_seconds", Help: "Duration of generation phases"})

	syntheticRowsMetric  = promauto.NewCounter(prometheus.CounterOpts{Name: "ibt_synthetic_rows_total", Help: "Synthetic rows produced"})
	phaseCompletedMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "ibt_phases_completed_total", Help: "Completed loop phases"})
	skippedRowsMetric    = promauto.NewCounter(prometheus.CounterOpts{Name: "ibt_skipped_rows_total", Help: "Rows skipped during corpus loading"})
)

func RecordSkippedRows(n int) {
	skippedRowsMetric.Add(float64(n))
}

type Status struct {
	RunId     string    `json:"run_id"`
	State     string    `json:"state"`
	Round     int       `json:"round"`
	Phase     string    `json:"phase"`
	Direction string    `json:"direction"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker holds the live run snapshot served by the status endpoint. It is an
// observer of the training loop, the snapshot is guarded by a mutex since the
// monitor server reads it from another goroutine.
type Tracker struct {
	mu       sync.Mutex
	snapshot Status
}

func NewTracker(runId uuid.UUID) *Tracker {
	now := time.Now().UTC()
	return &Tracker{snapshot: Status{
		RunId:     runId.String(),
		State:     "not_started",
		StartedAt: now,
		UpdatedAt: now,
	}}
}

func (t *Tracker) SetState(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.State = state
	t.snapshot.UpdatedAt = time.Now().UTC()
}

func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

func (t *Tracker) PhaseStarted(round int, phase loop.Phase, direction loop.Direction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.State = "in_progress"
	t.snapshot.Round = round
	t.snapshot.Phase = string(phase)
	t.snapshot.Direction = string(direction)
	t.snapshot.UpdatedAt = time.Now().UTC()
}

func (t *Tracker) PhaseCompleted(round int, phase loop.Phase, direction loop.Direction, rows int, elapsed time.Duration, stats *loop.TrainStats) {
	phaseCompletedMetric.Inc()
	switch phase {
	case loop.TrainPhase:
		trainPhaseMetric.Observe(elapsed.Seconds())
	case loop.GeneratePhase:
		generatePhaseMetric.Observe(elapsed.Seconds())
		syntheticRowsMetric.Add(float64(rows))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.UpdatedAt = time.Now().UTC()
}
