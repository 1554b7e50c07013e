package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-filter/internal/filter/repos/lists"
)

// factory implements lists.BloomFactory.
type factory struct {
	sizer lists.BloomSizer
}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() lists.BloomFactory { return factory{sizer: NewSizer()} }

// New constructs an empty filter sized for capacity keys.
func (f factory) New(capacity uint64, fpRate float64) lists.BloomFilter {
	m, k := f.sizer.Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
