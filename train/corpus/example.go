package corpus

import (
	"fmt"
	"strings"
)

// Example is a single translation unit. A parallel example carries both sides,
// a monolingual example carries exactly one. Examples are validated at
// construction and immutable afterwards.
type Example struct {
	source string
	target string
}

func NewParallelExample(source, target string) (Example, error) {
	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)
	if source == "" || target == "" {
		return Example{}, fmt.Errorf("parallel example requires both source and target text")
	}
	return Example{source: source, target: target}, nil
}

func NewMonoSourceExample(text string) (Example, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Example{}, fmt.Errorf("monolingual example requires non-empty text")
	}
	return Example{source: text}, nil
}

func NewMonoTargetExample(text string) (Example, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Example{}, fmt.Errorf("monolingual example requires non-empty text")
	}
	return Example{target: text}, nil
}

func (e Example) Source() string {
	return e.source
}

func (e Example) Target() string {
	return e.target
}

func (e Example) HasSource() bool {
	return e.source != ""
}

func (e Example) HasTarget() bool {
	return e.target != ""
}

// Corpus is an ordered collection of text examples.
type Corpus struct {
	rows []Example
}

func NewCorpus(rows ...Example) *Corpus {
	return &Corpus{rows: rows}
}

func (c *Corpus) Append(row Example) {
	c.rows = append(c.rows, row)
}

func (c *Corpus) Len() int {
	return len(c.rows)
}

func (c *Corpus) Rows() []Example {
	return c.rows
}
