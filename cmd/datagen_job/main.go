package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ibt_platform/datagen"
	"ibt_platform/train/config"
	"ibt_platform/train/storage"
	"ibt_platform/utils/logging"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type datagenJobEnv struct {
	ConfigPath string `env:"CONFIG_PATH,required"`
	GenAiKey   string `env:"GENAI_KEY,required"`
}

func loadEnv() (*datagenJobEnv, error) {
	cfg := &datagenJobEnv{}
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

func runApp() error {
	envFile := flag.String("env_file", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}

	jobEnv, err := loadEnv()
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg, err := config.LoadDatagenConfig(jobEnv.ConfigPath)
	if err != nil {
		return fmt.Errorf("could not read datagen config: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(cfg.LogDir, "logs/"), 0777); err != nil {
		return fmt.Errorf("error creating log dir: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "logs/datagen_job.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer logFile.Close()

	logging.InitLogging(logFile, slog.String("service_type", "datagen_job"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	generator := &datagen.Generator{
		Store:      storage.NewSharedDisk(cfg.LogDir),
		Llm:        datagen.NewOpenAILLM(jobEnv.GenAiKey, cfg.ModelName),
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
		MaxRows:    cfg.MaxRows,
	}

	report, err := generator.Run(ctx, cfg.InputFile, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("seed pair generation failed: %w", err)
	}

	slog.Info("datagen job complete", "rows", report.Rows, "skipped", len(report.Skipped), "code", logging.DATAGEN)

	return nil
}

func main() {
	if err := runApp(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}
