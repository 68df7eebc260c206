package bnb

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

const (
	pivotTol    = 1e-9
	feasTol     = 1e-7
	ratioTol    = 1e-12
	stallPivots = 50
	checkEvery  = 64
)

var errInterrupted = errors.New(errors.ErrCodeSolverFailure, "relaxation interrupted")

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

// tableau is a dense two-phase simplex tableau. Rows 0..m-1 are constraints
// with the right-hand side in column n; row m holds reduced costs and -z.
// Columns are structural, then slacks, then artificials from artStart on.
type tableau struct {
	m, n     int
	artStart int
	t        *mat.Dense
	basis    []int
	blocked  []bool
	stop     func() bool
	maxIter  int
}

// solveStandard minimizes cᵀy subject to rows over y >= 0. Rows with a
// negative right-hand side are negated; LE rows start on their slack, GE and
// EQ rows on an artificial. Phase 1 drives the artificials out, redundant rows
// keep a blocked artificial at zero, and phase 2 optimizes c. Pricing is
// Dantzig's rule until the basis stalls, then Bland's rule for good.
func solveStandard(c []float64, rows []row, stop func() bool) (lpStatus, []float64, error) {
	kept := len(c)
	m := len(rows)
	nSlack, nArt := 0, 0
	for i := range rows {
		r := &rows[i]
		if r.rhs < 0 {
			neg := make([]entry, len(r.terms))
			for k, e := range r.terms {
				neg[k] = entry{e.col, -e.val}
			}
			r.terms, r.rhs = neg, -r.rhs
			switch r.rel {
			case milp.LE:
				r.rel = milp.GE
			case milp.GE:
				r.rel = milp.LE
			}
		}
		if r.rel != milp.EQ {
			nSlack++
		}
		if r.rel != milp.LE {
			nArt++
		}
	}

	tb := &tableau{m: m, artStart: kept + nSlack, stop: stop, basis: make([]int, m)}
	tb.n = tb.artStart + nArt
	tb.t = mat.NewDense(m+1, tb.n+1, nil)
	tb.blocked = make([]bool, tb.n)
	tb.maxIter = 50*(m+tb.n) + 1000

	slack, art := kept, tb.artStart
	bmax := 1.0
	for i, r := range rows {
		line := tb.t.RawRowView(i)
		for _, e := range r.terms {
			line[e.col] += e.val
		}
		line[tb.n] = r.rhs
		bmax = math.Max(bmax, r.rhs)
		switch r.rel {
		case milp.LE:
			line[slack] = 1
			tb.basis[i] = slack
			slack++
		case milp.GE:
			line[slack] = -1
			slack++
			line[art] = 1
			tb.basis[i] = art
			art++
		default:
			line[art] = 1
			tb.basis[i] = art
			art++
		}
	}

	// phase 1: minimize the sum of artificials
	cost := tb.t.RawRowView(m)
	for j := tb.artStart; j < tb.n; j++ {
		cost[j] = 1
	}
	for i := 0; i < m; i++ {
		if tb.basis[i] >= tb.artStart {
			floats(cost).sub(tb.t.RawRowView(i), 1)
		}
	}
	if _, err := tb.iterate(); err != nil {
		return 0, nil, err
	}
	if -cost[tb.n] > feasTol*bmax {
		return lpInfeasible, nil, nil
	}
	tb.evictArtificials()
	for j := tb.artStart; j < tb.n; j++ {
		tb.blocked[j] = true
	}

	// phase 2
	for j := range cost {
		cost[j] = 0
	}
	copy(cost, c)
	for i := 0; i < m; i++ {
		if k := tb.basis[i]; k < kept && c[k] != 0 {
			floats(cost).sub(tb.t.RawRowView(i), c[k])
		}
	}
	unbounded, err := tb.iterate()
	if err != nil {
		return 0, nil, err
	}
	if unbounded {
		return lpUnbounded, nil, nil
	}

	y := make([]float64, kept)
	for i := 0; i < m; i++ {
		if k := tb.basis[i]; k < kept {
			y[k] = math.Max(0, tb.t.At(i, tb.n))
		}
	}
	return lpOptimal, y, nil
}

// iterate pivots until no column prices out. It reports an unbounded ray.
func (tb *tableau) iterate() (unbounded bool, err error) {
	bland := false
	stalled := 0
	cost := tb.t.RawRowView(tb.m)
	for it := 0; ; it++ {
		if it%checkEvery == 0 && tb.stop != nil && tb.stop() {
			return false, errInterrupted
		}
		if it > tb.maxIter {
			return false, errors.Newf(errors.ErrCodeSolverFailure, "simplex exceeded %d pivots", tb.maxIter)
		}

		enter, best := -1, -pivotTol
		for j := 0; j < tb.n; j++ {
			if tb.blocked[j] || cost[j] >= best {
				continue
			}
			enter, best = j, cost[j]
			if bland {
				break
			}
		}
		if enter < 0 {
			return false, nil
		}

		leave, ratio := -1, math.Inf(1)
		for i := 0; i < tb.m; i++ {
			a := tb.t.At(i, enter)
			if a <= pivotTol {
				continue
			}
			r := tb.t.At(i, tb.n) / a
			switch {
			case leave < 0 || r < ratio-ratioTol:
				leave, ratio = i, r
			case r <= ratio+ratioTol:
				if (bland && tb.basis[i] < tb.basis[leave]) || (!bland && a > tb.t.At(leave, enter)) {
					leave, ratio = i, r
				}
			}
		}
		if leave < 0 {
			return true, nil
		}
		if ratio <= ratioTol {
			stalled++
			if stalled > stallPivots {
				bland = true
			}
		} else {
			stalled = 0
		}
		tb.pivot(leave, enter)
	}
}

// evictArtificials swaps artificials still basic at zero for any structural
// or slack column with a nonzero entry in their row.
func (tb *tableau) evictArtificials() {
	for i := 0; i < tb.m; i++ {
		if tb.basis[i] < tb.artStart {
			continue
		}
		line := tb.t.RawRowView(i)
		pick, size := -1, pivotTol
		for j := 0; j < tb.artStart; j++ {
			if a := math.Abs(line[j]); a > size {
				pick, size = j, a
			}
		}
		if pick >= 0 {
			tb.pivot(i, pick)
		}
	}
}

func (tb *tableau) pivot(r, s int) {
	line := tb.t.RawRowView(r)
	p := line[s]
	for j := range line {
		line[j] /= p
	}
	line[s] = 1
	for i := 0; i <= tb.m; i++ {
		if i == r {
			continue
		}
		other := tb.t.RawRowView(i)
		f := other[s]
		if f == 0 {
			continue
		}
		floats(other).sub(line, f)
		other[s] = 0
		if i < tb.m && other[tb.n] < 0 && other[tb.n] > -feasTol {
			other[tb.n] = 0
		}
	}
	tb.basis[r] = s
}

type floats []float64

// sub sets v -= f*w.
func (v floats) sub(w []float64, f float64) {
	for j, x := range w {
		if x != 0 {
			v[j] -= f * x
		}
	}
}
