package main

import (
	"log/slog"

	"ibt_platform/train/corpus"
	"ibt_platform/train/inspect"
	"ibt_platform/train/registry"

	"github.com/google/uuid"
)

// sampleRecorder writes the sample block through the inspector and notes it
// in the registry.
type sampleRecorder struct {
	inspector *inspect.Inspector
	registry  *registry.Registry
	runId     uuid.UUID
	pairs     int
}

func (s *sampleRecorder) Log(data *corpus.Encoded, round int, direction string) error {
	if err := s.inspector.Log(data, round, direction); err != nil {
		return err
	}

	err := s.registry.RecordSampleBlock(s.runId, round, direction, inspect.BlockPath(round), s.pairs)
	if err != nil {
		slog.Error("error recording sample block", "round", round, "direction", direction, "error", err)
	}
	return nil
}
