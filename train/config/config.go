package config

import (
	"fmt"
	"os"
	"path/filepath"

	"encoding/json"

	"gopkg.in/yaml.v3"
)

// DataSources names the corpus files for a training run. Either a parallel
// csv or a pair of aligned line files must be provided, plus both monolingual
// files.
type DataSources struct {
	ParallelCsv string `json:"parallel_csv" yaml:"parallel_csv"`

	ParallelSourceLines string `json:"parallel_source_lines" yaml:"parallel_source_lines"`
	ParallelTargetLines string `json:"parallel_target_lines" yaml:"parallel_target_lines"`

	MonoSource string `json:"mono_source" yaml:"mono_source"`
	MonoTarget string `json:"mono_target" yaml:"mono_target"`

	HasHeader *bool `json:"has_header" yaml:"has_header"`
}

func (d *DataSources) Validate() error {
	usesCsv := d.ParallelCsv != ""
	usesLines := d.ParallelSourceLines != "" || d.ParallelTargetLines != ""

	if usesCsv && usesLines {
		return fmt.Errorf("specify either parallel_csv or aligned line files, not both")
	}
	if !usesCsv && !usesLines {
		return fmt.Errorf("a parallel data source must be specified")
	}
	if usesLines && (d.ParallelSourceLines == "" || d.ParallelTargetLines == "") {
		return fmt.Errorf("aligned line files require both parallel_source_lines and parallel_target_lines")
	}

	if d.MonoSource == "" || d.MonoTarget == "" {
		return fmt.Errorf("both mono_source and mono_target must be specified")
	}

	if d.HasHeader == nil {
		trueArg := true
		d.HasHeader = &trueArg
	}

	return nil
}

type TrainConfig struct {
	RunName string `json:"run_name" yaml:"run_name"`

	SourceLang string `json:"source_lang" yaml:"source_lang"`
	TargetLang string `json:"target_lang" yaml:"target_lang"`

	Iterations int `json:"iterations" yaml:"iterations"`

	NumEpochs    int `json:"num_epochs" yaml:"num_epochs"`
	WarmupEpochs int `json:"warmup_epochs" yaml:"warmup_epochs"`

	MaxInputLength   int `json:"max_input_length" yaml:"max_input_length"`
	GenerationLength int `json:"generation_length" yaml:"generation_length"`

	SampleCount  int     `json:"sample_count" yaml:"sample_count"`
	EvalFraction float64 `json:"eval_fraction" yaml:"eval_fraction"`
	MonoRatio    float64 `json:"mono_ratio" yaml:"mono_ratio"`

	// Seed drives the held-out splits and the sample selection. When unset
	// the job derives one from the clock and records it in the run registry.
	Seed *int64 `json:"seed" yaml:"seed"`

	Data DataSources `json:"data" yaml:"data"`

	LogDir string `json:"log_dir" yaml:"log_dir"`

	BackendEndpoint string `json:"backend_endpoint" yaml:"backend_endpoint"`
	JobAuthToken    string `json:"job_auth_token" yaml:"job_auth_token"`

	DatabaseUri string `json:"database_uri" yaml:"database_uri"`
}

func (c *TrainConfig) Validate() error {
	if c.RunName == "" {
		return fmt.Errorf("run_name must be specified")
	}
	if c.SourceLang == "" || c.TargetLang == "" {
		return fmt.Errorf("source_lang and target_lang must be specified")
	}
	if c.SourceLang == c.TargetLang {
		return fmt.Errorf("source_lang and target_lang must differ")
	}
	if c.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative")
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir must be specified")
	}
	if c.BackendEndpoint == "" {
		return fmt.Errorf("backend_endpoint must be specified")
	}

	if c.NumEpochs == 0 {
		c.NumEpochs = 1
	}
	if c.WarmupEpochs == 0 {
		c.WarmupEpochs = 10
	}
	if c.MaxInputLength == 0 {
		c.MaxInputLength = 200
	}
	if c.GenerationLength == 0 {
		c.GenerationLength = 40
	}
	if c.SampleCount == 0 {
		c.SampleCount = 10
	}
	if c.EvalFraction == 0 {
		c.EvalFraction = 0.1
	}
	if c.EvalFraction < 0 || c.EvalFraction >= 1 {
		return fmt.Errorf("eval_fraction must be in (0, 1)")
	}
	if c.MonoRatio == 0 {
		c.MonoRatio = 1.0
	}
	if c.MonoRatio < 0 {
		return fmt.Errorf("mono_ratio must be positive")
	}

	if c.DatabaseUri == "" {
		c.DatabaseUri = filepath.Join(c.LogDir, "registry.db")
	}

	return c.Data.Validate()
}

func LoadTrainConfig(configPath string) (*TrainConfig, error) {
	var config TrainConfig
	if err := loadConfigFile(configPath, &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid train config: %w", err)
	}

	return &config, nil
}

type DatagenConfig struct {
	SourceLang string `json:"source_lang" yaml:"source_lang"`
	TargetLang string `json:"target_lang" yaml:"target_lang"`

	InputFile  string `json:"input_file" yaml:"input_file"`
	OutputFile string `json:"output_file" yaml:"output_file"`

	MaxRows int `json:"max_rows" yaml:"max_rows"`

	ModelName string `json:"model_name" yaml:"model_name"`

	LogDir string `json:"log_dir" yaml:"log_dir"`
}

func (c *DatagenConfig) Validate() error {
	if c.SourceLang == "" || c.TargetLang == "" {
		return fmt.Errorf("source_lang and target_lang must be specified")
	}
	if c.InputFile == "" || c.OutputFile == "" {
		return fmt.Errorf("input_file and output_file must be specified")
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir must be specified")
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must be non-negative")
	}
	if c.ModelName == "" {
		c.ModelName = "gpt-4o-mini"
	}
	return nil
}

func LoadDatagenConfig(configPath string) (*DatagenConfig, error) {
	var config DatagenConfig
	if err := loadConfigFile(configPath, &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid datagen config: %w", err)
	}

	return &config, nil
}

func loadConfigFile(configPath string, dest interface{}) error {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	switch filepath.Ext(configPath) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(configData, dest)
	default:
		err = json.Unmarshal(configData, dest)
	}
	if err != nil {
		return fmt.Errorf("error decoding config file: %w", err)
	}

	return nil
}
