package synth

import (
	"errors"
	"fmt"
	"log/slog"

	"ibt_platform/train/corpus"
	"ibt_platform/train/tokenize"
	"ibt_platform/utils/logging"
)

var ErrLengthMismatch = errors.New("generated sequence count does not match corpus row count")

// Build converts a monolingual encoded corpus plus the opposite model's
// generated sequences into a synthetic parallel corpus for the other training
// direction. The monolingual input ids become the labels, each generated
// sequence becomes the new input after stripping the pad and ignore sentinels,
// and the attention mask is rebuilt as all ones over the kept tokens.
func Build(mono *corpus.Encoded, generated [][]int64, padId int32) (*corpus.Encoded, error) {
	if mono.Len() != len(generated) {
		err := fmt.Errorf("%w: %d rows, %d sequences", ErrLengthMismatch, mono.Len(), len(generated))
		slog.Error("cannot build synthetic corpus", "error", err, "code", logging.SYNTH_BUILD)
		return nil, err
	}
	if mono.HasLabels() {
		return nil, fmt.Errorf("monolingual corpus must not carry labels")
	}

	synthetic := corpus.NewEncoded(true)

	for i := 0; i < mono.Len(); i++ {
		inputIds, err := stripSentinels(generated[i], padId)
		if err != nil {
			slog.Error("invalid generated sequence", "row", i, "error", err, "code", logging.SYNTH_BUILD)
			return nil, fmt.Errorf("invalid generated sequence for row %d: %w", i, err)
		}

		row := corpus.EncodedExample{
			InputIds:      inputIds,
			AttentionMask: allOnes(len(inputIds)),
			Labels:        tokenize.WidenIds(mono.Row(i).InputIds),
		}
		if err := synthetic.Append(row); err != nil {
			return nil, fmt.Errorf("error appending synthetic row %d: %w", i, err)
		}
	}

	slog.Info("built synthetic corpus", "rows", synthetic.Len(), "code", logging.SYNTH_BUILD)

	return synthetic, nil
}

func stripSentinels(ids []int64, padId int32) ([]int32, error) {
	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == tokenize.IgnoreLabelId || id == int64(padId) {
			continue
		}
		kept = append(kept, id)
	}
	return tokenize.NarrowIds(kept)
}

func allOnes(n int) []int8 {
	mask := make([]int8, n)
	for i := range mask {
		mask[i] = 1
	}
	return mask
}
