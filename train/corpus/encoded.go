package corpus

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrSchemaMismatch = errors.New("corpus schemas do not match")
	ErrRowWidth       = errors.New("attention mask length does not match input ids length")
)

// EncodedExample is one tokenized row. InputIds are 32 bit and Labels are
// 64 bit, the fixed width contract expected by the training backend. The
// attention mask always has the same length as the input ids. Labels may
// contain the ignore sentinel (-100) for positions excluded from the loss.
type EncodedExample struct {
	InputIds      []int32 `json:"input_ids"`
	AttentionMask []int8  `json:"attention_mask"`
	Labels        []int64 `json:"labels,omitempty"`
}

func (e EncodedExample) clone() EncodedExample {
	row := EncodedExample{
		InputIds:      append([]int32(nil), e.InputIds...),
		AttentionMask: append([]int8(nil), e.AttentionMask...),
	}
	if e.Labels != nil {
		row.Labels = append([]int64(nil), e.Labels...)
	}
	return row
}

// Encoded is an ordered collection of encoded rows with a fixed schema: every
// row either carries labels or none do.
type Encoded struct {
	rows      []EncodedExample
	hasLabels bool
}

func NewEncoded(hasLabels bool) *Encoded {
	return &Encoded{hasLabels: hasLabels}
}

func (c *Encoded) HasLabels() bool {
	return c.hasLabels
}

func (c *Encoded) Len() int {
	return len(c.rows)
}

func (c *Encoded) Rows() []EncodedExample {
	return c.rows
}

func (c *Encoded) Row(i int) EncodedExample {
	return c.rows[i]
}

// CloneRow returns a deep copy of the row so that callers can inspect or
// transform it without mutating the corpus.
func (c *Encoded) CloneRow(i int) EncodedExample {
	return c.rows[i].clone()
}

func (c *Encoded) Append(row EncodedExample) error {
	if len(row.AttentionMask) != len(row.InputIds) {
		return fmt.Errorf("%w: mask length %d, input length %d", ErrRowWidth, len(row.AttentionMask), len(row.InputIds))
	}
	if c.hasLabels && row.Labels == nil {
		return fmt.Errorf("%w: row is missing labels", ErrSchemaMismatch)
	}
	if !c.hasLabels && row.Labels != nil {
		return fmt.Errorf("%w: row has unexpected labels", ErrSchemaMismatch)
	}
	c.rows = append(c.rows, row)
	return nil
}

// Concat joins two corpora with identical schemas. Row order is the first
// corpus followed by the second, neither input is modified.
func Concat(a, b *Encoded) (*Encoded, error) {
	if a.hasLabels != b.hasLabels {
		return nil, fmt.Errorf("%w: labels present in one corpus but not the other", ErrSchemaMismatch)
	}

	merged := NewEncoded(a.hasLabels)
	merged.rows = make([]EncodedExample, 0, len(a.rows)+len(b.rows))
	merged.rows = append(merged.rows, a.rows...)
	merged.rows = append(merged.rows, b.rows...)
	return merged, nil
}

type SplitResult struct {
	Train *Encoded
	Eval  *Encoded
}

// Split shuffles the corpus with the given rng and reserves evalFraction of
// the rows as an evaluation partition. For corpora with at least two rows both
// partitions are non-empty.
func (c *Encoded) Split(rng *rand.Rand, evalFraction float64) (SplitResult, error) {
	if evalFraction <= 0 || evalFraction >= 1 {
		return SplitResult{}, fmt.Errorf("invalid eval fraction %v, must be in (0, 1)", evalFraction)
	}
	if len(c.rows) == 0 {
		return SplitResult{}, fmt.Errorf("cannot split an empty corpus")
	}

	evalRows := int(float64(len(c.rows)) * evalFraction)
	if len(c.rows) >= 2 {
		if evalRows < 1 {
			evalRows = 1
		}
		if evalRows >= len(c.rows) {
			evalRows = len(c.rows) - 1
		}
	}

	order := rng.Perm(len(c.rows))

	eval := NewEncoded(c.hasLabels)
	train := NewEncoded(c.hasLabels)
	for i, idx := range order {
		if i < evalRows {
			eval.rows = append(eval.rows, c.rows[idx])
		} else {
			train.rows = append(train.rows, c.rows[idx])
		}
	}

	return SplitResult{Train: train, Eval: eval}, nil
}
