package tokenize

import (
	"errors"
	"fmt"
	"math"
)

// IgnoreLabelId marks label positions excluded from loss computation. It is
// never a real token id and must never be decoded.
const IgnoreLabelId int64 = -100

// Tokenizer is the contract for the external tokenizer service. Encode
// truncates to maxLength tokens, Decode with skipSpecial drops pad/eos and
// other reserved tokens.
type Tokenizer interface {
	Encode(text string, maxLength int) ([]int32, error)

	Decode(ids []int32, skipSpecial bool) (string, error)

	PadId() int32
}

var ErrIdOutOfRange = errors.New("token id out of int32 range")

// NarrowIds converts 64 bit token ids from the generation backend into the
// 32 bit input id width. Out of range values are an error, never a silent
// truncation.
func NarrowIds(ids []int64) ([]int32, error) {
	narrowed := make([]int32, len(ids))
	for i, id := range ids {
		if id < math.MinInt32 || id > math.MaxInt32 {
			return nil, fmt.Errorf("%w: id %d at position %d", ErrIdOutOfRange, id, i)
		}
		narrowed[i] = int32(id)
	}
	return narrowed, nil
}

// WidenIds converts 32 bit input ids into the 64 bit label width. This
// direction is lossless.
func WidenIds(ids []int32) []int64 {
	widened := make([]int64, len(ids))
	for i, id := range ids {
		widened[i] = int64(id)
	}
	return widened
}

// FilterIgnored removes the ignore sentinel from a label sequence so that the
// remainder can be decoded.
func FilterIgnored(ids []int64) []int64 {
	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != IgnoreLabelId {
			kept = append(kept, id)
		}
	}
	return kept
}
