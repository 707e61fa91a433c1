package registry

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
	StatusStopped    = "stopped"
)

type TrainingRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string `gorm:"size:100;not null"`

	SourceLang string `gorm:"size:100;not null"`
	TargetLang string `gorm:"size:100;not null"`

	Iterations int   `gorm:"not null"`
	Seed       int64 `gorm:"not null"`

	Status string `gorm:"size:100;not null;default:'not_started'"`

	StartedAt   time.Time
	CompletedAt *time.Time

	Phases       []PhaseRecord `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
	Skips        []SkipRecord  `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
	CorpusFiles  []CorpusFile  `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
	SampleBlocks []SampleBlock `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type PhaseRecord struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId uuid.UUID `gorm:"type:uuid;index;not null"`

	Round     int    `gorm:"not null"`
	Phase     string `gorm:"size:50;not null"`
	Direction string `gorm:"size:50;not null"`

	Rows       int
	DurationMs int64

	Epochs    int
	EvalLoss  float64
	EvalScore float64

	CreatedAt time.Time
}

type SkipRecord struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId uuid.UUID `gorm:"type:uuid;index;not null"`

	File   string `gorm:"size:500;not null"`
	Line   int    `gorm:"not null"`
	Reason string
}

type CorpusFile struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId uuid.UUID `gorm:"type:uuid;index;not null"`

	Path   string `gorm:"size:500;not null"`
	Kind   string `gorm:"size:50;not null"`
	Sha256 string `gorm:"size:64;not null"`

	Rows    int
	Skipped int
}

type SampleBlock struct {
	Id    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId uuid.UUID `gorm:"type:uuid;index;not null"`

	Round     int    `gorm:"not null"`
	Direction string `gorm:"size:50;not null"`
	Path      string `gorm:"size:500;not null"`
	Pairs     int
}
