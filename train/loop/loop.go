package loop

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"ibt_platform/train/corpus"
	"ibt_platform/train/synth"
	"ibt_platform/train/tokenize"
	"ibt_platform/utils/logging"
)

type Direction string

const (
	SourceToTarget Direction = "source_to_target"
	TargetToSource Direction = "target_to_source"
)

func (d Direction) Opposite() Direction {
	if d == SourceToTarget {
		return TargetToSource
	}
	return SourceToTarget
}

type Phase string

const (
	TrainPhase    Phase = "train"
	GeneratePhase Phase = "generate"
)

type TrainStats struct {
	Epochs    int     `json:"epochs"`
	EvalLoss  float64 `json:"eval_loss"`
	EvalScore float64 `json:"eval_score"`
}

// Model is the contract for one directional translation model of the external
// training backend.
type Model interface {
	Train(ctx context.Context, train, eval *corpus.Encoded, epochs int) (TrainStats, error)

	Generate(ctx context.Context, data *corpus.Encoded, maxLength int) ([][]int64, error)
}

// Inspector writes a qualitative sample block for a synthetic corpus before
// it is merged into the training data.
type Inspector interface {
	Log(data *corpus.Encoded, round int, direction string) error
}

// Observer receives phase transitions. Round 0 is the warm-up phase.
type Observer interface {
	PhaseStarted(round int, phase Phase, direction Direction)

	PhaseCompleted(round int, phase Phase, direction Direction, rows int, elapsed time.Duration, stats *TrainStats)
}

type Params struct {
	Iterations       int
	WarmupEpochs     int
	RoundEpochs      int
	GenerationLength int
	EvalFraction     float64
}

const (
	DefaultWarmupEpochs     = 10
	DefaultRoundEpochs      = 1
	DefaultGenerationLength = 40
	DefaultEvalFraction     = 0.1
)

func (p *Params) Validate() error {
	if p.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", p.Iterations)
	}
	if p.WarmupEpochs == 0 {
		p.WarmupEpochs = DefaultWarmupEpochs
	}
	if p.RoundEpochs == 0 {
		p.RoundEpochs = DefaultRoundEpochs
	}
	if p.GenerationLength == 0 {
		p.GenerationLength = DefaultGenerationLength
	}
	if p.EvalFraction == 0 {
		p.EvalFraction = DefaultEvalFraction
	}
	if p.EvalFraction < 0 || p.EvalFraction >= 1 {
		return fmt.Errorf("eval fraction must be in (0, 1), got %v", p.EvalFraction)
	}
	return nil
}

// Runner executes iterative back translation: a warm-up of the target-to-source
// model on authentic parallel data, then per round it generates synthetic data
// with one model and retrains the other on authentic plus synthetic, in both
// directions. Every generation step uses the model opposite to the direction
// retrained next, so no model ever trains on its own synthetic output, and the
// synthetic corpus is rebuilt from scratch each round.
type Runner struct {
	Params Params

	SourceToTargetModel Model
	TargetToSourceModel Model

	Adapter *tokenize.Adapter

	Parallel   *corpus.Corpus
	MonoSource *corpus.Corpus
	MonoTarget *corpus.Corpus

	Inspector Inspector
	Observers []Observer

	Rng *rand.Rand
}

type state struct {
	sourceToTargetData *corpus.Encoded
	targetToSourceData *corpus.Encoded
	monoSourceData     *corpus.Encoded
	monoTargetData     *corpus.Encoded
}

func (r *Runner) validate() error {
	if err := r.Params.Validate(); err != nil {
		return err
	}
	if r.SourceToTargetModel == nil || r.TargetToSourceModel == nil {
		return fmt.Errorf("both directional models must be provided")
	}
	if r.Adapter == nil {
		return fmt.Errorf("tokenization adapter must be provided")
	}
	if r.Parallel == nil || r.Parallel.Len() == 0 {
		return fmt.Errorf("parallel corpus must be non-empty")
	}
	if r.MonoSource == nil || r.MonoTarget == nil {
		return fmt.Errorf("both monolingual corpora must be provided")
	}
	if r.Rng == nil {
		return fmt.Errorf("rng must be provided")
	}
	return nil
}

func (r *Runner) notifyStarted(round int, phase Phase, direction Direction) {
	slog.Info("phase started", "round", round, "phase", phase, "direction", direction, "code", logging.RUN_STATE)
	for _, obs := range r.Observers {
		obs.PhaseStarted(round, phase, direction)
	}
}

func (r *Runner) notifyCompleted(round int, phase Phase, direction Direction, rows int, elapsed time.Duration, stats *TrainStats) {
	slog.Info("phase completed", "round", round, "phase", phase, "direction", direction, "rows", rows, "duration", elapsed.String(), "code", logging.RUN_STATE)
	for _, obs := range r.Observers {
		obs.PhaseCompleted(round, phase, direction, rows, elapsed, stats)
	}
}

// Run executes the full loop and leaves both models in their final trained
// state on the backend. For k iterations there are exactly 1+2k training
// phases and 2k generation phases; with k=0 only the warm-up direction is
// trained and the source-to-target model is returned untouched.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return fmt.Errorf("invalid runner configuration: %w", err)
	}

	st, err := r.init()
	if err != nil {
		return err
	}

	if err := r.train(ctx, 0, TargetToSource, st.targetToSourceData, r.Params.WarmupEpochs); err != nil {
		return fmt.Errorf("warm-up training failed: %w", err)
	}

	for round := 1; round <= r.Params.Iterations; round++ {
		synthetic, err := r.generate(ctx, round, TargetToSource, st.monoTargetData)
		if err != nil {
			return fmt.Errorf("round %d: generating synthetic source data failed: %w", round, err)
		}
		merged, err := r.merge(st.sourceToTargetData, synthetic)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		if err := r.train(ctx, round, SourceToTarget, merged, r.Params.RoundEpochs); err != nil {
			return fmt.Errorf("round %d: training source-to-target failed: %w", round, err)
		}

		synthetic, err = r.generate(ctx, round, SourceToTarget, st.monoSourceData)
		if err != nil {
			return fmt.Errorf("round %d: generating synthetic target data failed: %w", round, err)
		}
		merged, err = r.merge(st.targetToSourceData, synthetic)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		if err := r.train(ctx, round, TargetToSource, merged, r.Params.RoundEpochs); err != nil {
			return fmt.Errorf("round %d: training target-to-source failed: %w", round, err)
		}
	}

	slog.Info("iterative back translation complete", "iterations", r.Params.Iterations, "code", logging.RUN_STATE)

	return nil
}

func (r *Runner) init() (*state, error) {
	st := &state{}
	var err error

	if st.sourceToTargetData, err = r.Adapter.SourceToTarget(r.Parallel); err != nil {
		return nil, fmt.Errorf("error tokenizing source-to-target parallel data: %w", err)
	}
	if st.targetToSourceData, err = r.Adapter.TargetToSource(r.Parallel); err != nil {
		return nil, fmt.Errorf("error tokenizing target-to-source parallel data: %w", err)
	}
	if st.monoSourceData, err = r.Adapter.SourceOnly(r.MonoSource); err != nil {
		return nil, fmt.Errorf("error tokenizing monolingual source data: %w", err)
	}
	if st.monoTargetData, err = r.Adapter.TargetOnly(r.MonoTarget); err != nil {
		return nil, fmt.Errorf("error tokenizing monolingual target data: %w", err)
	}

	return st, nil
}

func (r *Runner) model(direction Direction) Model {
	if direction == SourceToTarget {
		return r.SourceToTargetModel
	}
	return r.TargetToSourceModel
}

func (r *Runner) train(ctx context.Context, round int, direction Direction, data *corpus.Encoded, epochs int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	split, err := data.Split(r.Rng, r.Params.EvalFraction)
	if err != nil {
		return fmt.Errorf("error splitting training data: %w", err)
	}

	r.notifyStarted(round, TrainPhase, direction)
	start := time.Now()

	stats, err := r.model(direction).Train(ctx, split.Train, split.Eval, epochs)
	if err != nil {
		slog.Error("training failed", "round", round, "direction", direction, "error", err, "code", logging.MODEL_TRAIN)
		return err
	}

	r.notifyCompleted(round, TrainPhase, direction, data.Len(), time.Since(start), &stats)
	return nil
}

// generate runs the model for the given direction over the monolingual corpus
// of that direction's input language and builds the synthetic corpus for the
// opposite direction.
func (r *Runner) generate(ctx context.Context, round int, direction Direction, mono *corpus.Encoded) (*corpus.Encoded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.notifyStarted(round, GeneratePhase, direction)
	start := time.Now()

	sequences, err := r.model(direction).Generate(ctx, mono, r.Params.GenerationLength)
	if err != nil {
		slog.Error("generation failed", "round", round, "direction", direction, "error", err, "code", logging.MODEL_GENERATE)
		return nil, err
	}

	synthetic, err := synth.Build(mono, sequences, r.Adapter.Tokenizer().PadId())
	if err != nil {
		return nil, err
	}

	if r.Inspector != nil {
		if err := r.Inspector.Log(synthetic, round, string(direction.Opposite())); err != nil {
			return nil, fmt.Errorf("error logging synthetic samples: %w", err)
		}
	}

	r.notifyCompleted(round, GeneratePhase, direction, synthetic.Len(), time.Since(start), nil)
	return synthetic, nil
}

func (r *Runner) merge(authentic, synthetic *corpus.Encoded) (*corpus.Encoded, error) {
	merged, err := corpus.Concat(authentic, synthetic)
	if err != nil {
		return nil, fmt.Errorf("error merging authentic and synthetic data: %w", err)
	}
	slog.Info("merged corpora", "authentic_rows", authentic.Len(), "synthetic_rows", synthetic.Len(), "code", logging.DATA_MERGE)
	return merged, nil
}
