// Package distributor implements the binary-weighted decimal encoding used for
// fractional stream splits. At resolution d every decimal place i = 1..d gets
// the weights 1, 2, 4 and 8 times 10^-i; a target's share of the distributor
// outflow is the sum of its active weights. A zero-weight sentinel leads the
// table.
package distributor

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// DefaultResolution gives 0.1% steps.
const DefaultResolution = 3

// MaxResolution bounds d; the variable count grows with d times the number of
// targets.
const MaxResolution = 6

var multipliers = [...]int64{1, 2, 4, 8}

// Weight is one candidate digit. Level 0 is the sentinel.
type Weight struct {
	Index      int
	Level      int
	Multiplier int64
	Value      decimal.Decimal
}

// Float returns the weight as float64.
func (w Weight) Float() float64 {
	f, _ := w.Value.Float64()
	return f
}

// Sentinel reports whether w is the zero-weight sentinel.
func (w Weight) Sentinel() bool { return w.Level == 0 }

// Encoder holds the weight table of one resolution.
type Encoder struct {
	resolution int
	weights    []Weight
	scale      int64
}

// NewEncoder builds the weight table for resolution d.
func NewEncoder(d int) (*Encoder, error) {
	if d < 1 || d > MaxResolution {
		return nil, errors.InvalidParam("distributor resolution out of range").
			WithDetailf("resolution=%d allowed=1..%d", d, MaxResolution)
	}
	e := &Encoder{resolution: d, scale: pow10(d)}
	e.weights = append(e.weights, Weight{Index: 0, Level: 0, Multiplier: 0, Value: decimal.Zero})
	for i := 1; i <= d; i++ {
		for _, m := range multipliers {
			e.weights = append(e.weights, Weight{
				Index:      len(e.weights),
				Level:      i,
				Multiplier: m,
				Value:      decimal.New(m, int32(-i)),
			})
		}
	}
	return e, nil
}

// Resolution returns d.
func (e *Encoder) Resolution() int { return e.resolution }

// Step returns 10^-d, the smallest addressable fraction.
func (e *Encoder) Step() decimal.Decimal { return decimal.New(1, int32(-e.resolution)) }

// Weights returns the table, sentinel first.
func (e *Encoder) Weights() []Weight { return append([]Weight(nil), e.weights...) }

// Digits returns the weights a compiled model needs: the table without the
// sentinel.
func (e *Encoder) Digits() []Weight { return append([]Weight(nil), e.weights[1:]...) }

// Encode returns the indices of the active weights representing fraction.
// fraction must lie in [0,1] on the 10^-d lattice.
func (e *Encoder) Encode(fraction float64) ([]int, error) {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return nil, errors.InvalidParam("split fraction outside [0,1]").WithDetailf("fraction=%g", fraction)
	}
	f := decimal.NewFromFloat(fraction)
	scaled := f.Shift(int32(e.resolution))
	k := scaled.Round(0)
	if !scaled.Sub(k).Abs().LessThan(decimal.New(1, -6)) {
		return nil, errors.InvalidParam("fraction not addressable at this resolution").
			WithDetailf("fraction=%g resolution=%d", fraction, e.resolution)
	}
	return e.EncodeUnits(k.IntPart())
}

// EncodeUnits encodes k steps of 10^-d, 0 <= k <= 10^d.
func (e *Encoder) EncodeUnits(k int64) ([]int, error) {
	if k < 0 || k > e.scale {
		return nil, errors.InvalidParam("step count out of range").WithDetailf("k=%d max=%d", k, e.scale)
	}
	var active []int
	rest := k
	for i := 1; i <= e.resolution; i++ {
		place := pow10(e.resolution - i)
		digit := rest / place
		rest -= digit * place
		for b, m := range multipliers {
			if digit&m != 0 {
				active = append(active, e.index(i, b))
			}
		}
	}
	return active, nil
}

// Decode sums the weights at the given indices. The sentinel contributes
// nothing.
func (e *Encoder) Decode(active []int) (decimal.Decimal, error) {
	sum := decimal.Zero
	seen := make(map[int]bool, len(active))
	for _, idx := range active {
		if idx < 0 || idx >= len(e.weights) {
			return decimal.Zero, errors.InvalidParam("unknown weight index").WithDetailf("index=%d", idx)
		}
		if seen[idx] {
			return decimal.Zero, errors.InvalidParam("weight selected twice").WithDetailf("index=%d", idx)
		}
		seen[idx] = true
		sum = sum.Add(e.weights[idx].Value)
	}
	return sum, nil
}

// DecodeFloat is Decode returning float64.
func (e *Encoder) DecodeFloat(active []int) (float64, error) {
	d, err := e.Decode(active)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// Representable enumerates every fraction in [0,1] a target can be assigned,
// ascending. It walks all digit combinations rather than assuming the lattice.
func (e *Encoder) Representable() []decimal.Decimal {
	found := make(map[int64]struct{})
	var walk func(level int, acc int64)
	walk = func(level int, acc int64) {
		if acc > e.scale {
			return
		}
		if level > e.resolution {
			found[acc] = struct{}{}
			return
		}
		place := pow10(e.resolution - level)
		for digit := int64(0); digit < 16; digit++ {
			walk(level+1, acc+digit*place)
		}
	}
	walk(1, 0)

	ks := make([]int64, 0, len(found))
	for k := range found {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	out := make([]decimal.Decimal, len(ks))
	for i, k := range ks {
		out[i] = decimal.New(k, int32(-e.resolution))
	}
	return out
}

// Snap rounds fraction to the nearest addressable value.
func (e *Encoder) Snap(fraction float64) float64 {
	f := decimal.NewFromFloat(fraction).Round(int32(e.resolution))
	v, _ := f.Float64()
	return v
}

func (e *Encoder) index(level, bit int) int {
	return 1 + (level-1)*len(multipliers) + bit
}

func (e *Encoder) String() string {
	return fmt.Sprintf("distributor.Encoder(d=%d, weights=%d)", e.resolution, len(e.weights))
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
