package tokenize_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"ibt_platform/train/corpus"
	"ibt_platform/train/tokenize"
)

// mockTokenizer assigns each distinct word a stable id. Ids 0 and 1 are
// reserved for pad and eos, matching the backend's conventions.
type mockTokenizer struct {
	vocab map[string]int32
	words []string
}

func newMockTokenizer() *mockTokenizer {
	return &mockTokenizer{vocab: map[string]int32{}, words: []string{"<pad>", "</s>"}}
}

func (m *mockTokenizer) Encode(text string, maxLength int) ([]int32, error) {
	var ids []int32
	for _, word := range strings.Fields(text) {
		id, ok := m.vocab[word]
		if !ok {
			id = int32(len(m.words))
			m.vocab[word] = id
			m.words = append(m.words, word)
		}
		ids = append(ids, id)
		if len(ids) >= maxLength {
			break
		}
	}
	return ids, nil
}

func (m *mockTokenizer) Decode(ids []int32, skipSpecial bool) (string, error) {
	var words []string
	for _, id := range ids {
		if skipSpecial && id < 2 {
			continue
		}
		if int(id) >= len(m.words) {
			return "", errors.New("unknown token id")
		}
		words = append(words, m.words[id])
	}
	return strings.Join(words, " "), nil
}

func (m *mockTokenizer) PadId() int32 {
	return 0
}

func parallelCorpus(t *testing.T, pairs ...[2]string) *corpus.Corpus {
	t.Helper()
	data := corpus.NewCorpus()
	for _, pair := range pairs {
		row, err := corpus.NewParallelExample(pair[0], pair[1])
		if err != nil {
			t.Fatal(err)
		}
		data.Append(row)
	}
	return data
}

func TestSourceToTargetMode(t *testing.T) {
	tok := newMockTokenizer()
	adapter := tokenize.NewAdapter(tok, 200)

	data := parallelCorpus(t, [2]string{"he goin home", "he is going home"})

	encoded, err := adapter.SourceToTarget(data)
	if err != nil {
		t.Fatal(err)
	}

	if !encoded.HasLabels() {
		t.Fatal("parallel encoding must carry labels")
	}

	row := encoded.Row(0)
	if len(row.InputIds) != 3 {
		t.Fatalf("expected 3 input tokens, got %d", len(row.InputIds))
	}
	if len(row.Labels) != 4 {
		t.Fatalf("expected 4 label tokens, got %d", len(row.Labels))
	}
	if len(row.AttentionMask) != len(row.InputIds) {
		t.Fatal("attention mask length must match input length")
	}
	for _, m := range row.AttentionMask {
		if m != 1 {
			t.Fatal("expected all-ones attention mask")
		}
	}
}

func TestTargetToSourceMirrorsInputs(t *testing.T) {
	tok := newMockTokenizer()
	adapter := tokenize.NewAdapter(tok, 200)

	data := parallelCorpus(t, [2]string{"he goin home", "he is going home"})

	forward, err := adapter.SourceToTarget(data)
	if err != nil {
		t.Fatal(err)
	}
	backward, err := adapter.TargetToSource(data)
	if err != nil {
		t.Fatal(err)
	}

	if len(backward.Row(0).InputIds) != len(forward.Row(0).Labels) {
		t.Fatal("mirrored mode should encode the target text as input")
	}
	if len(backward.Row(0).Labels) != len(forward.Row(0).InputIds) {
		t.Fatal("mirrored mode should encode the source text as labels")
	}
}

func TestMonoModes(t *testing.T) {
	tok := newMockTokenizer()
	adapter := tokenize.NewAdapter(tok, 200)

	srcRow, err := corpus.NewMonoSourceExample("she been working")
	if err != nil {
		t.Fatal(err)
	}
	src := corpus.NewCorpus(srcRow)

	encoded, err := adapter.SourceOnly(src)
	if err != nil {
		t.Fatal(err)
	}
	if encoded.HasLabels() {
		t.Fatal("monolingual encoding must not carry labels")
	}
	if len(encoded.Row(0).InputIds) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(encoded.Row(0).InputIds))
	}

	tgtRow, err := corpus.NewMonoTargetExample("formal academic writing")
	if err != nil {
		t.Fatal(err)
	}
	tgt := corpus.NewCorpus(tgtRow)

	encoded, err = adapter.TargetOnly(tgt)
	if err != nil {
		t.Fatal(err)
	}
	if encoded.Len() != 1 || encoded.HasLabels() {
		t.Fatal("unexpected target-only encoding")
	}
}

func TestTruncation(t *testing.T) {
	tok := newMockTokenizer()
	adapter := tokenize.NewAdapter(tok, 2)

	data := parallelCorpus(t, [2]string{"one two three four", "a b c d e"})

	encoded, err := adapter.SourceToTarget(data)
	if err != nil {
		t.Fatal(err)
	}

	row := encoded.Row(0)
	if len(row.InputIds) != 2 || len(row.Labels) != 2 {
		t.Fatalf("expected truncation to 2 tokens, got %d/%d", len(row.InputIds), len(row.Labels))
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tok := newMockTokenizer()

	text := "he goin home right now"
	ids, err := tok.Encode(text, 200)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := tok.Decode(ids, true)
	if err != nil {
		t.Fatal(err)
	}
	if decoded != text {
		t.Fatalf("round trip mismatch: %q != %q", decoded, text)
	}

	again, err := tok.Encode(decoded, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(ids) {
		t.Fatal("re-encoding changed the sequence length")
	}
	for i := range ids {
		if again[i] != ids[i] {
			t.Fatal("re-encoding changed the token ids")
		}
	}
}

func TestNarrowIds(t *testing.T) {
	narrowed, err := tokenize.NarrowIds([]int64{0, 5, math.MaxInt32})
	if err != nil {
		t.Fatal(err)
	}
	if len(narrowed) != 3 || narrowed[2] != math.MaxInt32 {
		t.Fatalf("unexpected narrowing result: %v", narrowed)
	}

	if _, err := tokenize.NarrowIds([]int64{math.MaxInt32 + 1}); !errors.Is(err, tokenize.ErrIdOutOfRange) {
		t.Fatalf("expected ErrIdOutOfRange, got %v", err)
	}
	if _, err := tokenize.NarrowIds([]int64{math.MinInt32 - 1}); !errors.Is(err, tokenize.ErrIdOutOfRange) {
		t.Fatalf("expected ErrIdOutOfRange, got %v", err)
	}
}

func TestWidenThenNarrowIsLossless(t *testing.T) {
	ids := []int32{0, 1, 2, 30000, -5}

	narrowed, err := tokenize.NarrowIds(tokenize.WidenIds(ids))
	if err != nil {
		t.Fatal(err)
	}
	for i := range ids {
		if narrowed[i] != ids[i] {
			t.Fatal("widen then narrow changed ids")
		}
	}
}

func TestFilterIgnored(t *testing.T) {
	filtered := tokenize.FilterIgnored([]int64{5, tokenize.IgnoreLabelId, 7, tokenize.IgnoreLabelId})
	if len(filtered) != 2 || filtered[0] != 5 || filtered[1] != 7 {
		t.Fatalf("unexpected filter result: %v", filtered)
	}
}
