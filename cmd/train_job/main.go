package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ibt_platform/backend"
	"ibt_platform/monitor"
	"ibt_platform/train/auth"
	"ibt_platform/train/config"
	"ibt_platform/train/corpus"
	"ibt_platform/train/inspect"
	"ibt_platform/train/loop"
	"ibt_platform/train/registry"
	"ibt_platform/train/storage"
	"ibt_platform/train/tokenize"
	"ibt_platform/utils/logging"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type trainJobEnv struct {
	ConfigPath string `env:"CONFIG_PATH,required"`
	JwtSecret  string `env:"JWT_SECRET,required"`
}

/**
 * ==========================================================================
 * ==== All variables used by the train job must be loaded here. This is ====
 * ==== to make the data flow clear so that a user can see what          ====
 * ==== variables are exposed, and how the values are propagated through ====
 * ==== the system.                                                      ====
 * ==========================================================================
 */
func loadEnv() (*trainJobEnv, error) {
	cfg := &trainJobEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

// loadCorpora loads and fingerprints the three corpus sources, recording each
// file and its skip notices in the registry. The monolingual cap is the mono
// ratio times the parallel corpus size.
func loadCorpora(loader *corpus.Loader, reg *registry.Registry, run registry.TrainingRun, cfg *config.TrainConfig) (parallel, monoSource, monoTarget *corpus.Corpus, err error) {
	var parallelResult corpus.LoadResult
	if cfg.Data.ParallelCsv != "" {
		parallelResult, err = loader.LoadParallelCSV(cfg.Data.ParallelCsv, cfg.SourceLang, cfg.TargetLang, *cfg.Data.HasHeader)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("error loading parallel csv: %w", err)
		}
		if err := reg.RecordCorpusFile(run.Id, cfg.Data.ParallelCsv, "parallel_csv", parallelResult); err != nil {
			return nil, nil, nil, err
		}
	} else {
		parallelResult, err = loader.LoadParallelLines(cfg.Data.ParallelSourceLines, cfg.Data.ParallelTargetLines)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("error loading aligned parallel files: %w", err)
		}
		if err := reg.RecordCorpusFile(run.Id, cfg.Data.ParallelSourceLines, "parallel_lines", parallelResult); err != nil {
			return nil, nil, nil, err
		}
	}
	monitor.RecordSkippedRows(len(parallelResult.Skipped))

	if parallelResult.Corpus.Len() == 0 {
		return nil, nil, nil, fmt.Errorf("parallel corpus is empty after loading")
	}

	monoCap := int(cfg.MonoRatio * float64(parallelResult.Corpus.Len()))

	monoSourceResult, err := loader.LoadMono(cfg.Data.MonoSource, corpus.SourceSide, monoCap)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error loading monolingual source file: %w", err)
	}
	if err := reg.RecordCorpusFile(run.Id, cfg.Data.MonoSource, "mono_source", monoSourceResult); err != nil {
		return nil, nil, nil, err
	}
	monitor.RecordSkippedRows(len(monoSourceResult.Skipped))

	monoTargetResult, err := loader.LoadMono(cfg.Data.MonoTarget, corpus.TargetSide, monoCap)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error loading monolingual target file: %w", err)
	}
	if err := reg.RecordCorpusFile(run.Id, cfg.Data.MonoTarget, "mono_target", monoTargetResult); err != nil {
		return nil, nil, nil, err
	}
	monitor.RecordSkippedRows(len(monoTargetResult.Skipped))

	return parallelResult.Corpus, monoSourceResult.Corpus, monoTargetResult.Corpus, nil
}

// The reason we have a separate runApp function is because the defer calls don't
// run if we exit with log.Fatalf, so instead we return an err here and fail outside
func runApp() error {
	port := flag.Int("port", 8000, "Port to run the monitor server on")
	envFile := flag.String("env_file", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}

	jobEnv, err := loadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg, err := config.LoadTrainConfig(jobEnv.ConfigPath)
	if err != nil {
		return fmt.Errorf("could not read train config: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(cfg.LogDir, "logs/"), 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "logs/train_job.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	logging.InitLogging(logFile,
		slog.String("service_type", "train_job"),
		slog.String("run_name", cfg.RunName),
	)

	store := storage.NewSharedDisk(cfg.LogDir)
	if err := storage.EnsureFreeSpace(store); err != nil {
		return err
	}

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	rng := rand.New(rand.NewSource(seed))
	slog.Info("using random seed", "seed", seed, "explicit", cfg.Seed != nil, "code", logging.SYSTEM)

	reg, err := registry.Open(cfg.DatabaseUri)
	if err != nil {
		return err
	}

	run, err := reg.CreateRun(cfg.RunName, cfg.SourceLang, cfg.TargetLang, cfg.Iterations, seed)
	if err != nil {
		return err
	}

	jwtManager := auth.NewJwtManager([]byte(jobEnv.JwtSecret))
	controlToken, err := jwtManager.CreateRunJwt(run.Id, 30*24*time.Hour)
	if err != nil {
		return err
	}
	if err := store.Write("control.token", strings.NewReader(controlToken)); err != nil {
		return fmt.Errorf("error writing control token: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	/* The stop endpoint and SIGTERM both cancel the run context; the loop
	finishes the current backend call and aborts. There is no checkpoint or
	resume, a stopped run must be restarted from the beginning. */
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	tracker := monitor.NewTracker(run.Id)

	monitorServer := &monitor.Server{
		Tracker:  tracker,
		Registry: reg,
		Jwt:      jwtManager,
		StopRun:  cancel,
	}
	go func() {
		if err := monitorServer.Serve(ctx, fmt.Sprintf(":%d", *port)); err != nil {
			slog.Error("monitor server error", "error", err)
		}
	}()

	loader := corpus.NewLoader(store)
	parallel, monoSource, monoTarget, err := loadCorpora(loader, reg, run, cfg)
	if err != nil {
		markFailed(reg, tracker, run)
		return err
	}

	client := backend.New(cfg.BackendEndpoint, cfg.JobAuthToken)
	tokenizer, err := client.Tokenizer()
	if err != nil {
		markFailed(reg, tracker, run)
		return err
	}

	adapter := tokenize.NewAdapter(tokenizer, cfg.MaxInputLength)
	inspector := inspect.NewInspector(store, tokenizer, cfg.SampleCount, rng)

	runner := &loop.Runner{
		Params: loop.Params{
			Iterations:       cfg.Iterations,
			WarmupEpochs:     cfg.WarmupEpochs,
			RoundEpochs:      cfg.NumEpochs,
			GenerationLength: cfg.GenerationLength,
			EvalFraction:     cfg.EvalFraction,
		},
		SourceToTargetModel: client.Model(loop.SourceToTarget),
		TargetToSourceModel: client.Model(loop.TargetToSource),
		Adapter:             adapter,
		Parallel:            parallel,
		MonoSource:          monoSource,
		MonoTarget:          monoTarget,
		Inspector:           &sampleRecorder{inspector: inspector, registry: reg, runId: run.Id, pairs: cfg.SampleCount},
		Observers: []loop.Observer{
			tracker,
			&registry.PhaseRecorder{Registry: reg, RunId: run.Id},
		},
		Rng: rng,
	}

	if err := reg.UpdateRunStatus(run.Id, registry.StatusInProgress); err != nil {
		return err
	}
	tracker.SetState(registry.StatusInProgress)

	if err := runner.Run(ctx); err != nil {
		if ctx.Err() != nil {
			tracker.SetState(registry.StatusStopped)
			if updateErr := reg.UpdateRunStatus(run.Id, registry.StatusStopped); updateErr != nil {
				slog.Error("error updating run status", "error", updateErr)
			}
			return fmt.Errorf("run stopped: %w", err)
		}
		markFailed(reg, tracker, run)
		return fmt.Errorf("training run failed: %w", err)
	}

	tracker.SetState(registry.StatusComplete)
	if err := reg.UpdateRunStatus(run.Id, registry.StatusComplete); err != nil {
		return err
	}

	slog.Info("training run complete", "run_id", run.Id, "code", logging.RUN_STATE)

	return nil
}

func markFailed(reg *registry.Registry, tracker *monitor.Tracker, run registry.TrainingRun) {
	tracker.SetState(registry.StatusFailed)
	if err := reg.UpdateRunStatus(run.Id, registry.StatusFailed); err != nil {
		slog.Error("error updating run status", "error", err)
	}
}

func main() {
	if err := runApp(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}
