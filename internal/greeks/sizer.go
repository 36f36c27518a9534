package greeks

import (
	"errors"
	"fmt"
	"math"

	"hedge-systemv1/internal/model"
)

// ErrDegenerateDelta is returned when the put delta is too small to size
// a hedge (deep out-of-the-money or degenerate inputs).
var ErrDegenerateDelta = errors.New("greeks: put delta too small to size hedge")

// putDeltaFloor guards the division in HedgeQty against underflowed deltas.
const putDeltaFloor = 1e-12

// PutSizer converts a spot quantity to protect into an integer number of
// put contracts using the per-contract put delta. It always rounds up, so
// the hedge covers at least the exact fractional quantity.
type PutSizer struct {
	Calc    Calc
	SpotQty float64
}

// PutDelta returns |delta| of the put at the sizer's inputs.
func (p PutSizer) PutDelta() (float64, error) {
	d, err := p.Calc.Delta(model.OptionPut)
	if err != nil {
		return 0, err
	}
	return math.Abs(d), nil
}

// HedgeQty returns ceil(spotQty / |put delta|).
func (p PutSizer) HedgeQty() (int, error) {
	d, err := p.PutDelta()
	if err != nil {
		return 0, err
	}
	if d < putDeltaFloor {
		return 0, fmt.Errorf("%w: delta=%g strike=%g", ErrDegenerateDelta, d, p.Calc.K)
	}
	return int(math.Ceil(p.SpotQty / d)), nil
}
