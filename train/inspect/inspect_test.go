package inspect_test

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"

	"ibt_platform/train/corpus"
	"ibt_platform/train/inspect"
	"ibt_platform/train/storage"
	"ibt_platform/train/tokenize"
)

type fixedVocabTokenizer struct {
	words []string
}

func newFixedVocabTokenizer() *fixedVocabTokenizer {
	return &fixedVocabTokenizer{words: []string{"<pad>", "</s>", "hello", "world", "good", "morning", "evening"}}
}

func (f *fixedVocabTokenizer) Encode(text string, maxLength int) ([]int32, error) {
	var ids []int32
	for _, word := range strings.Fields(text) {
		for i, known := range f.words {
			if word == known {
				ids = append(ids, int32(i))
			}
		}
	}
	return ids, nil
}

func (f *fixedVocabTokenizer) Decode(ids []int32, skipSpecial bool) (string, error) {
	var words []string
	for _, id := range ids {
		if int(id) >= len(f.words) {
			return "", fmt.Errorf("unknown token id %d", id)
		}
		if skipSpecial && id < 2 {
			continue
		}
		words = append(words, f.words[id])
	}
	return strings.Join(words, " "), nil
}

func (f *fixedVocabTokenizer) PadId() int32 {
	return 0
}

func testData(t *testing.T, rows int) *corpus.Encoded {
	t.Helper()

	data := corpus.NewEncoded(true)
	for i := 0; i < rows; i++ {
		err := data.Append(corpus.EncodedExample{
			InputIds:      []int32{2, 3},
			AttentionMask: []int8{1, 1},
			Labels:        []int64{4, 5, tokenize.IgnoreLabelId, tokenize.IgnoreLabelId},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return data
}

func readBlock(t *testing.T, store storage.Storage, round int) string {
	t.Helper()

	file, err := store.Read(inspect.BlockPath(round))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}

func TestSampleCountExceedsCorpus(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())
	inspector := inspect.NewInspector(store, newFixedVocabTokenizer(), 5, rand.New(rand.NewSource(3)))

	err := inspector.Log(testData(t, 3), 1, "source_to_target")
	if !errors.Is(err, inspect.ErrSampleOutOfRange) {
		t.Fatalf("expected ErrSampleOutOfRange, got %v", err)
	}
}

func TestLogWritesBlock(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())
	inspector := inspect.NewInspector(store, newFixedVocabTokenizer(), 3, rand.New(rand.NewSource(3)))

	if err := inspector.Log(testData(t, 8), 2, "target_to_source"); err != nil {
		t.Fatal(err)
	}

	block := readBlock(t, store, 2)

	if !strings.Contains(block, "round 2 | direction target_to_source | 3 samples") {
		t.Fatalf("missing block header:\n%s", block)
	}
	if got := strings.Count(block, "pair "); got != 3 {
		t.Fatalf("expected 3 pairs, got %d:\n%s", got, block)
	}
	if !strings.Contains(block, "input: hello world") {
		t.Fatalf("missing decoded input:\n%s", block)
	}
	if !strings.Contains(block, "label: good morning") {
		t.Fatalf("missing decoded label:\n%s", block)
	}
	if strings.Contains(block, "<pad>") || strings.Contains(block, "-100") {
		t.Fatalf("sentinel values leaked into the sample block:\n%s", block)
	}
}

func TestLogAppendsToExistingBlock(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())
	inspector := inspect.NewInspector(store, newFixedVocabTokenizer(), 2, rand.New(rand.NewSource(3)))

	data := testData(t, 4)
	if err := inspector.Log(data, 1, "source_to_target"); err != nil {
		t.Fatal(err)
	}
	if err := inspector.Log(data, 1, "target_to_source"); err != nil {
		t.Fatal(err)
	}

	block := readBlock(t, store, 1)
	if got := strings.Count(block, "===="); got != 4 {
		t.Fatalf("expected two block headers, got:\n%s", block)
	}
}

func TestLogDoesNotMutateCorpus(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())
	inspector := inspect.NewInspector(store, newFixedVocabTokenizer(), 2, rand.New(rand.NewSource(3)))

	data := testData(t, 4)
	if err := inspector.Log(data, 1, "source_to_target"); err != nil {
		t.Fatal(err)
	}

	for i, row := range data.Rows() {
		if len(row.InputIds) != 2 || row.InputIds[0] != 2 || row.InputIds[1] != 3 {
			t.Fatalf("row %d input ids mutated: %v", i, row.InputIds)
		}
		if len(row.Labels) != 4 {
			t.Fatalf("row %d labels mutated: %v", i, row.Labels)
		}
	}
}

func TestDefaultSampleCount(t *testing.T) {
	store := storage.NewSharedDisk(t.TempDir())
	inspector := inspect.NewInspector(store, newFixedVocabTokenizer(), 0, rand.New(rand.NewSource(3)))

	if err := inspector.Log(testData(t, 20), 1, "source_to_target"); err != nil {
		t.Fatal(err)
	}

	block := readBlock(t, store, 1)
	if got := strings.Count(block, "pair "); got != inspect.DefaultSampleCount {
		t.Fatalf("expected %d pairs, got %d", inspect.DefaultSampleCount, got)
	}
}
