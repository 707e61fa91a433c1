package registry_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibt_platform/train/corpus"
	"ibt_platform/train/loop"
	"ibt_platform/train/registry"
)

func openTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	return reg
}

func TestRunLifecycle(t *testing.T) {
	reg := openTestRegistry(t)

	run, err := reg.CreateRun("aave-sae", "aave", "sae", 3, 42)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusNotStarted, run.Status)
	assert.Equal(t, int64(42), run.Seed)

	require.NoError(t, reg.UpdateRunStatus(run.Id, registry.StatusInProgress))

	loaded, err := reg.GetRun(run.Id)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusInProgress, loaded.Status)
	assert.Nil(t, loaded.CompletedAt)

	require.NoError(t, reg.UpdateRunStatus(run.Id, registry.StatusComplete))

	loaded, err = reg.GetRun(run.Id)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusComplete, loaded.Status)
	assert.NotNil(t, loaded.CompletedAt)
}

func TestUpdateMissingRun(t *testing.T) {
	reg := openTestRegistry(t)
	assert.Error(t, reg.UpdateRunStatus(uuid.New(), registry.StatusFailed))
}

func TestGetMissingRun(t *testing.T) {
	reg := openTestRegistry(t)
	_, err := reg.GetRun(uuid.New())
	assert.Error(t, err)
}

func TestPhaseRecords(t *testing.T) {
	reg := openTestRegistry(t)

	run, err := reg.CreateRun("aave-sae", "aave", "sae", 1, 7)
	require.NoError(t, err)

	require.NoError(t, reg.RecordPhase(registry.PhaseRecord{
		RunId: run.Id, Round: 0, Phase: "train", Direction: "target_to_source",
		Rows: 100, DurationMs: 1500, Epochs: 10, EvalLoss: 0.5,
	}))
	require.NoError(t, reg.RecordPhase(registry.PhaseRecord{
		RunId: run.Id, Round: 1, Phase: "generate", Direction: "target_to_source",
		Rows: 50, DurationMs: 800,
	}))

	phases, err := reg.ListPhases(run.Id)
	require.NoError(t, err)
	require.Len(t, phases, 2)
	assert.Equal(t, "train", phases[0].Phase)
	assert.Equal(t, 10, phases[0].Epochs)
	assert.Equal(t, "generate", phases[1].Phase)
	assert.Equal(t, 50, phases[1].Rows)

	other, err := reg.ListPhases(uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPhaseRecorderObserver(t *testing.T) {
	reg := openTestRegistry(t)

	run, err := reg.CreateRun("aave-sae", "aave", "sae", 1, 7)
	require.NoError(t, err)

	recorder := &registry.PhaseRecorder{Registry: reg, RunId: run.Id}

	recorder.PhaseStarted(0, loop.TrainPhase, loop.TargetToSource)
	recorder.PhaseCompleted(0, loop.TrainPhase, loop.TargetToSource, 90, 2*time.Second, &loop.TrainStats{Epochs: 10, EvalLoss: 0.4})
	recorder.PhaseCompleted(1, loop.GeneratePhase, loop.TargetToSource, 50, time.Second, nil)

	phases, err := reg.ListPhases(run.Id)
	require.NoError(t, err)
	require.Len(t, phases, 2)

	assert.Equal(t, int64(2000), phases[0].DurationMs)
	assert.Equal(t, 0.4, phases[0].EvalLoss)
	assert.Equal(t, 0, phases[1].Epochs)
}

func TestCorpusFileAndSkips(t *testing.T) {
	reg := openTestRegistry(t)

	run, err := reg.CreateRun("aave-sae", "aave", "sae", 1, 7)
	require.NoError(t, err)

	data := corpus.NewCorpus()
	row, err := corpus.NewParallelExample("he goin", "he is going")
	require.NoError(t, err)
	data.Append(row)

	result := corpus.LoadResult{
		Corpus: data,
		Skipped: []corpus.SkipNotice{
			{File: "parallel.csv", Line: 3, Reason: "empty source text"},
			{File: "parallel.csv", Line: 9, Reason: "wrong number of columns"},
		},
		Sha256: "a1b2c3",
	}

	require.NoError(t, reg.RecordCorpusFile(run.Id, "parallel.csv", "parallel", result))

	skips, err := reg.ListSkips(run.Id)
	require.NoError(t, err)
	require.Len(t, skips, 2)
	assert.Equal(t, 3, skips[0].Line)
	assert.Equal(t, "wrong number of columns", skips[1].Reason)
}

func TestRecordSkipsEmpty(t *testing.T) {
	reg := openTestRegistry(t)
	require.NoError(t, reg.RecordSkips(uuid.New(), nil))
}

func TestSampleBlocks(t *testing.T) {
	reg := openTestRegistry(t)

	run, err := reg.CreateRun("aave-sae", "aave", "sae", 1, 7)
	require.NoError(t, err)

	require.NoError(t, reg.RecordSampleBlock(run.Id, 1, "source_to_target", "samples/round_1.log", 10))
}
