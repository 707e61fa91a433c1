package tokenize

import (
	"fmt"
	"log/slog"

	"ibt_platform/train/corpus"
	"ibt_platform/utils/logging"
)

const DefaultMaxInputLength = 200

// Adapter converts text corpora into encoded corpora in four modes: both
// parallel directions and the two monolingual-only encodings. It is a pure
// batched transform with no cross-row state.
type Adapter struct {
	tok       Tokenizer
	maxLength int
}

func NewAdapter(tok Tokenizer, maxLength int) *Adapter {
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}
	return &Adapter{tok: tok, maxLength: maxLength}
}

func (a *Adapter) Tokenizer() Tokenizer {
	return a.tok
}

func allOnes(n int) []int8 {
	mask := make([]int8, n)
	for i := range mask {
		mask[i] = 1
	}
	return mask
}

func (a *Adapter) encodeRow(input, label string) (corpus.EncodedExample, error) {
	inputIds, err := a.tok.Encode(input, a.maxLength)
	if err != nil {
		return corpus.EncodedExample{}, fmt.Errorf("error encoding input text: %w", err)
	}

	row := corpus.EncodedExample{
		InputIds:      inputIds,
		AttentionMask: allOnes(len(inputIds)),
	}

	if label != "" {
		labelIds, err := a.tok.Encode(label, a.maxLength)
		if err != nil {
			return corpus.EncodedExample{}, fmt.Errorf("error encoding label text: %w", err)
		}
		row.Labels = WidenIds(labelIds)
	}

	return row, nil
}

func (a *Adapter) encode(data *corpus.Corpus, pick func(corpus.Example) (string, string), hasLabels bool) (*corpus.Encoded, error) {
	encoded := corpus.NewEncoded(hasLabels)

	for i, example := range data.Rows() {
		input, label := pick(example)
		row, err := a.encodeRow(input, label)
		if err != nil {
			slog.Error("error encoding row", "row", i, "error", err, "code", logging.TOKENIZE)
			return nil, fmt.Errorf("error encoding row %d: %w", i, err)
		}
		if err := encoded.Append(row); err != nil {
			return nil, fmt.Errorf("error appending encoded row %d: %w", i, err)
		}
	}

	return encoded, nil
}

// SourceToTarget encodes source text as input and target text as labels.
func (a *Adapter) SourceToTarget(data *corpus.Corpus) (*corpus.Encoded, error) {
	return a.encode(data, func(e corpus.Example) (string, string) {
		return e.Source(), e.Target()
	}, true)
}

// TargetToSource encodes target text as input and source text as labels.
func (a *Adapter) TargetToSource(data *corpus.Corpus) (*corpus.Encoded, error) {
	return a.encode(data, func(e corpus.Example) (string, string) {
		return e.Target(), e.Source()
	}, true)
}

// SourceOnly encodes a monolingual source corpus without labels.
func (a *Adapter) SourceOnly(data *corpus.Corpus) (*corpus.Encoded, error) {
	return a.encode(data, func(e corpus.Example) (string, string) {
		return e.Source(), ""
	}, false)
}

// TargetOnly encodes a monolingual target corpus without labels.
func (a *Adapter) TargetOnly(data *corpus.Corpus) (*corpus.Encoded, error) {
	return a.encode(data, func(e corpus.Example) (string, string) {
		return e.Target(), ""
	}, false)
}
