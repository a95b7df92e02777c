// Package allocator implements the QACountPolicy: how many Q/A pairs to
// request per chunk from the chunk's token count and its position within
// its document. Grounded on the struct-of-tunables config pattern used by
// the completions config's sizing knobs, generalized into a small
// DatasetDefaults value instead of a monolithic config struct.
package allocator

import "github.com/nakashima2toshio/qagen/internal/pipeline"

// DatasetDefaults carries the per-dataset base count `b` used by the
// piecewise allocation rule.
type DatasetDefaults struct {
	Base int
}

// Policy chooses a Q/A count for a chunk.
type Policy struct{}

// New constructs a Policy. It holds no state; the rule is pure.
func New() Policy { return Policy{} }

// Choose applies the piecewise rule below, returning a value clamped to the
// closed range [1, 8].
func (Policy) Choose(chunk pipeline.Chunk, defaults DatasetDefaults) int {
	t := chunk.TokenCount
	b := defaults.Base

	var n int
	switch {
	case t < 50:
		n = 2
	case t < 100:
		n = 3
	case t < 200:
		n = b + 1
	case t < 300:
		n = b + 2
	default:
		n = b + 3
	}

	if chunk.ChunkIndex >= 5 {
		n++
	}

	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}
