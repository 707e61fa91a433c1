package registry

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"ibt_platform/train/corpus"
	"ibt_platform/utils/logging"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Registry records training runs, their phase transitions, and their corpus
// provenance in a relational store. Postgres uris are dialed as postgres,
// anything else is treated as a sqlite path.
type Registry struct {
	db *gorm.DB
}

func Open(uri string) (*Registry, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://") {
		dialector = postgres.Open(postgresDsn(uri))
	} else {
		dialector = sqlite.Open(uri)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		slog.Error("error opening registry database", "error", err, "code", logging.SYSTEM)
		return nil, fmt.Errorf("error opening registry database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &Registry{db: db}, nil
}

func postgresDsn(uri string) string {
	parts, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0_initial_schema",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(
					&TrainingRun{}, &PhaseRecord{}, &SkipRecord{},
					&CorpusFile{}, &SampleBlock{},
				)
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable(
					&SampleBlock{}, &CorpusFile{}, &SkipRecord{},
					&PhaseRecord{}, &TrainingRun{},
				)
			},
		},
	})

	if err := m.Migrate(); err != nil {
		slog.Error("error migrating registry schema", "error", err, "code", logging.SYSTEM)
		return fmt.Errorf("error migrating registry schema: %w", err)
	}

	return nil
}

func (r *Registry) CreateRun(name, sourceLang, targetLang string, iterations int, seed int64) (TrainingRun, error) {
	run := TrainingRun{
		Id:         uuid.New(),
		Name:       name,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Iterations: iterations,
		Seed:       seed,
		Status:     StatusNotStarted,
		StartedAt:  time.Now().UTC(),
	}

	if err := r.db.Create(&run).Error; err != nil {
		return TrainingRun{}, fmt.Errorf("error creating training run: %w", err)
	}

	slog.Info("created training run", "run_id", run.Id, "name", name, "code", logging.RUN_STATE)

	return run, nil
}

func (r *Registry) UpdateRunStatus(runId uuid.UUID, status string) error {
	updates := map[string]interface{}{"status": status}
	if status == StatusComplete || status == StatusFailed || status == StatusStopped {
		now := time.Now().UTC()
		updates["completed_at"] = &now
	}

	result := r.db.Model(&TrainingRun{}).Where("id = ?", runId).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("error updating run status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run %v not found", runId)
	}

	slog.Info("updated run status", "run_id", runId, "status", status, "code", logging.RUN_STATE)

	return nil
}

func (r *Registry) GetRun(runId uuid.UUID) (TrainingRun, error) {
	var run TrainingRun
	if err := r.db.First(&run, "id = ?", runId).Error; err != nil {
		return TrainingRun{}, fmt.Errorf("error loading run %v: %w", runId, err)
	}
	return run, nil
}

func (r *Registry) RecordPhase(record PhaseRecord) error {
	record.Id = uuid.New()
	if err := r.db.Create(&record).Error; err != nil {
		return fmt.Errorf("error recording phase: %w", err)
	}
	return nil
}

func (r *Registry) ListPhases(runId uuid.UUID) ([]PhaseRecord, error) {
	var phases []PhaseRecord
	if err := r.db.Where("run_id = ?", runId).Order("created_at").Find(&phases).Error; err != nil {
		return nil, fmt.Errorf("error listing phases for run %v: %w", runId, err)
	}
	return phases, nil
}

func (r *Registry) RecordSkips(runId uuid.UUID, notices []corpus.SkipNotice) error {
	if len(notices) == 0 {
		return nil
	}

	records := make([]SkipRecord, len(notices))
	for i, notice := range notices {
		records[i] = SkipRecord{
			Id:     uuid.New(),
			RunId:  runId,
			File:   notice.File,
			Line:   notice.Line,
			Reason: notice.Reason,
		}
	}

	if err := r.db.Create(&records).Error; err != nil {
		return fmt.Errorf("error recording skip notices: %w", err)
	}
	return nil
}

func (r *Registry) ListSkips(runId uuid.UUID) ([]SkipRecord, error) {
	var skips []SkipRecord
	if err := r.db.Where("run_id = ?", runId).Find(&skips).Error; err != nil {
		return nil, fmt.Errorf("error listing skips for run %v: %w", runId, err)
	}
	return skips, nil
}

func (r *Registry) RecordCorpusFile(runId uuid.UUID, path, kind string, result corpus.LoadResult) error {
	record := CorpusFile{
		Id:      uuid.New(),
		RunId:   runId,
		Path:    path,
		Kind:    kind,
		Sha256:  result.Sha256,
		Rows:    result.Corpus.Len(),
		Skipped: len(result.Skipped),
	}

	if err := r.db.Create(&record).Error; err != nil {
		return fmt.Errorf("error recording corpus file: %w", err)
	}

	return r.RecordSkips(runId, result.Skipped)
}

func (r *Registry) RecordSampleBlock(runId uuid.UUID, round int, direction, path string, pairs int) error {
	record := SampleBlock{
		Id:        uuid.New(),
		RunId:     runId,
		Round:     round,
		Direction: direction,
		Path:      path,
		Pairs:     pairs,
	}

	if err := r.db.Create(&record).Error; err != nil {
		return fmt.Errorf("error recording sample block: %w", err)
	}
	return nil
}
