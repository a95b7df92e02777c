package persist

import (
	"fmt"
	"hash/fnv"
)

// PointID derives a deterministic vector-store point id from
// hash(domain, source, row_index): 64-bit unsigned with the upper bit
// cleared so it always fits in Qdrant's signed/unsigned numeric id space.
func PointID(domain, source string, rowIndex int) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%d", domain, source, rowIndex)
	id := h.Sum64()
	return id &^ (1 << 63)
}
