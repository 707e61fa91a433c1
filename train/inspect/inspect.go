package inspect

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"ibt_platform/train/corpus"
	"ibt_platform/train/storage"
	"ibt_platform/train/tokenize"
	"ibt_platform/utils/logging"
)

var ErrSampleOutOfRange = errors.New("sample count exceeds corpus size")

const DefaultSampleCount = 10

// Inspector samples decoded (input, label) pairs from an encoded corpus each
// round for qualitative monitoring, printing the block and appending it to a
// per-round log file. It never mutates the corpus it samples.
type Inspector struct {
	store       storage.Storage
	tok         tokenize.Tokenizer
	sampleCount int
	rng         *rand.Rand
}

func NewInspector(store storage.Storage, tok tokenize.Tokenizer, sampleCount int, rng *rand.Rand) *Inspector {
	if sampleCount <= 0 {
		sampleCount = DefaultSampleCount
	}
	return &Inspector{store: store, tok: tok, sampleCount: sampleCount, rng: rng}
}

func BlockPath(round int) string {
	return fmt.Sprintf("samples/round_%d.log", round)
}

// Log samples sampleCount rows uniformly without replacement, decodes their
// inputs and labels with the ignore sentinel filtered out, and appends the
// formatted block to the round's sample log.
func (ins *Inspector) Log(data *corpus.Encoded, round int, direction string) error {
	if ins.sampleCount > data.Len() {
		err := fmt.Errorf("%w: requested %d samples from %d rows", ErrSampleOutOfRange, ins.sampleCount, data.Len())
		slog.Error("cannot sample corpus", "round", round, "direction", direction, "error", err, "code", logging.SAMPLE_LOG)
		return err
	}

	indices := ins.rng.Perm(data.Len())[:ins.sampleCount]

	var block strings.Builder
	fmt.Fprintf(&block, "==== round %d | direction %s | %d samples ====\n", round, direction, ins.sampleCount)

	for n, idx := range indices {
		row := data.CloneRow(idx)

		input, err := ins.decode(tokenize.WidenIds(row.InputIds))
		if err != nil {
			return fmt.Errorf("error decoding input of row %d: %w", idx, err)
		}

		label := ""
		if row.Labels != nil {
			label, err = ins.decode(row.Labels)
			if err != nil {
				return fmt.Errorf("error decoding labels of row %d: %w", idx, err)
			}
		}

		fmt.Fprintf(&block, "pair %d (row %d):\n", n+1, idx)
		fmt.Fprintf(&block, "  input: %s\n", input)
		fmt.Fprintf(&block, "  label: %s\n", label)
		block.WriteString(strings.Repeat("-", 50) + "\n")
	}

	path := BlockPath(round)
	if err := ins.store.Append(path, strings.NewReader(block.String())); err != nil {
		return fmt.Errorf("error appending sample block to %v: %w", path, err)
	}

	fmt.Print(block.String())
	slog.Info("wrote sample block", "round", round, "direction", direction, "path", path, "pairs", ins.sampleCount, "code", logging.SAMPLE_LOG)

	return nil
}

func (ins *Inspector) decode(ids []int64) (string, error) {
	narrowed, err := tokenize.NarrowIds(tokenize.FilterIgnored(ids))
	if err != nil {
		return "", err
	}
	return ins.tok.Decode(narrowed, true)
}
