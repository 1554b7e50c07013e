package bloom

import (
	"math"

	"github.com/haukened/rr-filter/internal/filter/repos/lists"
)

// defaultFPRate applies when the requested rate is not in (0, 1).
const defaultFPRate = 0.01

// sizer implements lists.BloomSizer using the standard formulas:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// Results are clamped to at least 1.
type sizer struct{}

// NewSizer returns a BloomSizer implementation.
func NewSizer() lists.BloomSizer { return sizer{} }

func (sizer) Size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = defaultFPRate
	}
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	k := math.Max(1, math.Round(float64(m)/float64(n)*math.Ln2))
	return m, uint8(math.Min(k, math.MaxUint8))
}
