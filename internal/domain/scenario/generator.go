package scenario

import (
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// Method selects how scenarios are generated.
type Method string

const (
	MethodFactorial  Method = "factorial"
	MethodMatrix     Method = "matrix"
	MethodMonteCarlo Method = "montecarlo"
)

// Distribution is sampled by inverse transform. distuv.Uniform and
// distuv.Normal satisfy it.
type Distribution interface {
	Quantile(p float64) float64
}

// Parameter is one uncertain parameter. Levels and Probabilities drive the
// factorial grid, Distribution drives Monte Carlo sampling.
type Parameter struct {
	Key           superstructure.ParamKey
	Levels        []float64
	Probabilities []float64
	Distribution  Distribution
}

// Factorial crosses every level of every parameter. A scenario's probability
// is the product of its level probabilities; levels are equiprobable unless
// given. The last parameter varies fastest.
func Factorial(params []Parameter) (*Set, error) {
	if len(params) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidUncertainty, "factorial design needs at least one parameter")
	}
	rows := 1
	weights := make([][]float64, len(params))
	keys := make([]superstructure.ParamKey, len(params))
	for j, p := range params {
		keys[j] = p.Key
		if len(p.Levels) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidUncertainty, "parameter has no levels").WithDetail(p.Key.String())
		}
		w := p.Probabilities
		if len(w) == 0 {
			w = make([]float64, len(p.Levels))
			for i := range w {
				w[i] = 1 / float64(len(p.Levels))
			}
		}
		if len(w) != len(p.Levels) {
			return nil, errors.Newf(errors.ErrCodeInvalidUncertainty, "%s: %d probabilities for %d levels", p.Key, len(w), len(p.Levels))
		}
		weights[j] = w
		rows *= len(p.Levels)
	}

	dev := mat.NewDense(rows, len(params), nil)
	probs := make([]float64, rows)
	idx := make([]int, len(params))
	for r := 0; r < rows; r++ {
		prob := 1.0
		for j, p := range params {
			dev.Set(r, j, p.Levels[idx[j]])
			prob *= weights[j][idx[j]]
		}
		probs[r] = prob
		for j := len(idx) - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < len(params[j].Levels) {
				break
			}
			idx[j] = 0
		}
	}
	return NewSet(keys, dev, probs)
}

// MonteCarlo draws n equiprobable scenarios. Draws are reproducible for a
// given seed.
func MonteCarlo(params []Parameter, n int, seed uint64) (*Set, error) {
	if len(params) == 0 || n <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidUncertainty, "Monte Carlo needs parameters and a positive sample count, got %d and %d", len(params), n)
	}
	keys := make([]superstructure.ParamKey, len(params))
	for j, p := range params {
		if p.Distribution == nil {
			return nil, errors.New(errors.ErrCodeInvalidUncertainty, "parameter has no distribution").WithDetail(p.Key.String())
		}
		keys[j] = p.Key
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	dev := mat.NewDense(n, len(params), nil)
	for r := 0; r < n; r++ {
		for j, p := range params {
			// keep u inside (0,1) so Normal quantiles stay finite
			u := (float64(rng.Uint64()>>11) + 0.5) / (1 << 53)
			dev.Set(r, j, p.Distribution.Quantile(u))
		}
	}
	return NewSet(keys, dev, nil)
}

// FromRecord builds a scenario set from a case's uncertainty block.
func FromRecord(rec *process.UncertaintyRecord) (*Set, error) {
	if rec == nil {
		return nil, errors.New(errors.ErrCodeInvalidUncertainty, "case declares no uncertainty")
	}
	params := make([]Parameter, len(rec.Parameters))
	for j, pr := range rec.Parameters {
		key, err := superstructure.ParseParamKey(pr.Key)
		if err != nil {
			return nil, err
		}
		params[j] = Parameter{Key: key, Levels: pr.Levels, Probabilities: pr.Probabilities}
		if pr.Distribution != "" {
			d, err := distribution(pr)
			if err != nil {
				return nil, err
			}
			params[j].Distribution = d
		}
	}

	switch Method(strings.ToLower(rec.Method)) {
	case "", MethodFactorial:
		return Factorial(params)
	case MethodMonteCarlo:
		return MonteCarlo(params, rec.Samples, rec.Seed)
	case MethodMatrix:
		if len(rec.Matrix) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidUncertainty, "matrix method without a matrix")
		}
		keys := make([]superstructure.ParamKey, len(params))
		for j, p := range params {
			keys[j] = p.Key
		}
		dev := mat.NewDense(len(rec.Matrix), len(keys), nil)
		for i, row := range rec.Matrix {
			if len(row) != len(keys) {
				return nil, errors.Newf(errors.ErrCodeInvalidUncertainty, "matrix row %d has %d entries for %d parameters", i, len(row), len(keys))
			}
			dev.SetRow(i, row)
		}
		return NewSet(keys, dev, rec.Probabilities)
	default:
		return nil, errors.New(errors.ErrCodeInvalidUncertainty, "unknown scenario method").WithDetail(rec.Method)
	}
}

func distribution(pr process.UncertainParameterRecord) (Distribution, error) {
	switch strings.ToLower(pr.Distribution) {
	case "uniform":
		if !(pr.High > pr.Low) {
			return nil, errors.Newf(errors.ErrCodeInvalidUncertainty, "%s: uniform needs low < high", pr.Key)
		}
		return distuv.Uniform{Min: pr.Low, Max: pr.High}, nil
	case "normal":
		if pr.StdDev <= 0 || math.IsNaN(pr.StdDev) {
			return nil, errors.Newf(errors.ErrCodeInvalidUncertainty, "%s: normal needs a positive std_dev", pr.Key)
		}
		return distuv.Normal{Mu: pr.Mean, Sigma: pr.StdDev}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidUncertainty, "unknown distribution").WithDetail(pr.Distribution)
	}
}
