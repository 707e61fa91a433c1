package synth_test

import (
	"errors"
	"math"
	"testing"

	"ibt_platform/train/corpus"
	"ibt_platform/train/synth"
	"ibt_platform/train/tokenize"
)

const padId int32 = 0

func monoCorpus(t *testing.T, rows ...[]int32) *corpus.Encoded {
	t.Helper()
	data := corpus.NewEncoded(false)
	for _, ids := range rows {
		mask := make([]int8, len(ids))
		for i := range mask {
			mask[i] = 1
		}
		if err := data.Append(corpus.EncodedExample{InputIds: ids, AttentionMask: mask}); err != nil {
			t.Fatal(err)
		}
	}
	return data
}

func TestBuildSyntheticCorpus(t *testing.T) {
	mono := monoCorpus(t, []int32{10, 11, 12}, []int32{20, 21})
	generated := [][]int64{
		{5, 6, 0, 0, tokenize.IgnoreLabelId},
		{7, 0, 8},
	}

	synthetic, err := synth.Build(mono, generated, padId)
	if err != nil {
		t.Fatal(err)
	}

	if synthetic.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", synthetic.Len())
	}
	if !synthetic.HasLabels() {
		t.Fatal("synthetic corpus must carry labels")
	}

	first := synthetic.Row(0)
	if len(first.InputIds) != 2 || first.InputIds[0] != 5 || first.InputIds[1] != 6 {
		t.Fatalf("sentinels not stripped from input ids: %v", first.InputIds)
	}
	if len(first.Labels) != 3 || first.Labels[0] != 10 {
		t.Fatalf("labels should be the widened monolingual input ids: %v", first.Labels)
	}

	second := synthetic.Row(1)
	if len(second.InputIds) != 2 || second.InputIds[0] != 7 || second.InputIds[1] != 8 {
		t.Fatalf("pad sentinel not stripped: %v", second.InputIds)
	}
}

func TestBuildMaskRepair(t *testing.T) {
	mono := monoCorpus(t, []int32{10}, []int32{20}, []int32{30})
	generated := [][]int64{
		{1, 2, 3, 0},
		{0, 0, 0},
		{4, tokenize.IgnoreLabelId, 5},
	}

	synthetic, err := synth.Build(mono, generated, padId)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < synthetic.Len(); i++ {
		row := synthetic.Row(i)
		if len(row.AttentionMask) != len(row.InputIds) {
			t.Fatalf("row %d: mask length %d != input length %d", i, len(row.AttentionMask), len(row.InputIds))
		}
		for _, m := range row.AttentionMask {
			if m != 1 {
				t.Fatalf("row %d: expected all-ones mask, got %v", i, row.AttentionMask)
			}
		}
		for _, id := range row.InputIds {
			if id == padId || int64(id) == tokenize.IgnoreLabelId {
				t.Fatalf("row %d: sentinel survived in input ids: %v", i, row.InputIds)
			}
		}
	}
}

func TestBuildLengthMismatchIsFatal(t *testing.T) {
	mono := monoCorpus(t, []int32{10}, []int32{20})
	generated := [][]int64{{1, 2}}

	_, err := synth.Build(mono, generated, padId)
	if !errors.Is(err, synth.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestBuildRejectsOutOfRangeIds(t *testing.T) {
	mono := monoCorpus(t, []int32{10})
	generated := [][]int64{{math.MaxInt32 + 1}}

	_, err := synth.Build(mono, generated, padId)
	if !errors.Is(err, tokenize.ErrIdOutOfRange) {
		t.Fatalf("expected ErrIdOutOfRange, got %v", err)
	}
}

func TestBuildRejectsLabeledMono(t *testing.T) {
	labeled := corpus.NewEncoded(true)
	err := labeled.Append(corpus.EncodedExample{
		InputIds:      []int32{1},
		AttentionMask: []int8{1},
		Labels:        []int64{2},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := synth.Build(labeled, [][]int64{{1}}, padId); err == nil {
		t.Fatal("expected an error for a labeled monolingual corpus")
	}
}

func TestBuildDoesNotMutateMono(t *testing.T) {
	mono := monoCorpus(t, []int32{10, 11})
	generated := [][]int64{{5}}

	if _, err := synth.Build(mono, generated, padId); err != nil {
		t.Fatal(err)
	}

	if mono.HasLabels() {
		t.Fatal("monolingual corpus gained labels")
	}
	row := mono.Row(0)
	if len(row.InputIds) != 2 || row.InputIds[0] != 10 {
		t.Fatalf("monolingual corpus was mutated: %v", row.InputIds)
	}
}
