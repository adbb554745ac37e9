package coupon

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// minIndexCapacity keeps the filter useful while the code set is small.
const minIndexCapacity = 10_000

// CodeIndex is a probabilistic set of the codes added to it. A negative
// answer is definite only for those codes, so it serves as a hint that spares
// lookups during bulk imports, never as proof that a code does not exist.
type CodeIndex struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeIndex builds an index over codes with the given false positive rate.
func NewCodeIndex(codes []string, fpr float64) *CodeIndex {
	n := uint(len(codes)) * 2
	if n < minIndexCapacity {
		n = minIndexCapacity
	}
	idx := &CodeIndex{filter: bloom.NewWithEstimates(n, fpr)}
	for _, c := range codes {
		idx.filter.AddString(NormalizeCode(c))
	}
	return idx
}

// Add records a newly issued code.
func (i *CodeIndex) Add(code string) {
	i.mu.Lock()
	i.filter.AddString(NormalizeCode(code))
	i.mu.Unlock()
}

// MayContain reports whether code might have been issued.
func (i *CodeIndex) MayContain(code string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.filter.TestString(NormalizeCode(code))
}
