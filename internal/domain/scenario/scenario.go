// Package scenario generates perturbed parameter scenarios and evaluates a
// superstructure under them: wait-and-see, expected value, the expected
// result of the mean-value design and the recourse problem, from which VSS
// and EVPI follow.
package scenario

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

// probabilityTolerance bounds |Σp - 1|.
const probabilityTolerance = 1e-6

// Scenario is one realization of the uncertain parameters.
type Scenario struct {
	// ID doubles as the namespace of the scenario in the extensive form.
	ID          string
	Index       int
	Probability float64
	// Deviations are relative, one per Set parameter.
	Deviations []float64
	// Patch is filled by Set.Materialize.
	Patch superstructure.Overrides
}

// Set is a generated batch of scenarios over common parameters.
type Set struct {
	Parameters []superstructure.ParamKey
	Scenarios  []Scenario
}

// NewSet builds scenarios from a deviation matrix with one row per scenario
// and one column per parameter. A nil probs means equiprobable.
func NewSet(keys []superstructure.ParamKey, dev mat.Matrix, probs []float64) (*Set, error) {
	if len(keys) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidUncertainty, "no uncertain parameters")
	}
	rows, cols := dev.Dims()
	if cols != len(keys) {
		return nil, errors.Newf(errors.ErrCodeInvalidUncertainty, "deviation matrix has %d columns for %d parameters", cols, len(keys))
	}
	if rows == 0 {
		return nil, errors.New(errors.ErrCodeInvalidUncertainty, "no scenarios")
	}
	if len(probs) == 0 {
		probs = make([]float64, rows)
		for i := range probs {
			probs[i] = 1 / float64(rows)
		}
	}
	if len(probs) != rows {
		return nil, errors.Newf(errors.ErrCodeInvalidUncertainty, "%d probabilities for %d scenarios", len(probs), rows)
	}
	sum := 0.0
	for _, p := range probs {
		if p < 0 || math.IsNaN(p) {
			return nil, errors.Newf(errors.ErrCodeInvalidScenario, "negative probability %g", p)
		}
		sum += p
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return nil, errors.Newf(errors.ErrCodeInvalidScenario, "probabilities sum to %g", sum)
	}

	set := &Set{Parameters: append([]superstructure.ParamKey(nil), keys...)}
	for i := 0; i < rows; i++ {
		d := make([]float64, cols)
		mat.Row(d, i, dev)
		set.Scenarios = append(set.Scenarios, Scenario{
			ID:          fmt.Sprintf("s%d", i+1),
			Index:       i,
			Probability: probs[i],
			Deviations:  d,
		})
	}
	return set, nil
}

// Len returns the number of scenarios.
func (s *Set) Len() int { return len(s.Scenarios) }

// Deviations returns the scenarios × parameters matrix.
func (s *Set) Deviations() *mat.Dense {
	m := mat.NewDense(len(s.Scenarios), len(s.Parameters), nil)
	for i, sc := range s.Scenarios {
		m.SetRow(i, sc.Deviations)
	}
	return m
}

// Probabilities returns the scenario weights in order.
func (s *Set) Probabilities() []float64 {
	out := make([]float64, len(s.Scenarios))
	for i, sc := range s.Scenarios {
		out[i] = sc.Probability
	}
	return out
}

// MeanDeviations returns the probability-weighted deviation per parameter.
func (s *Set) MeanDeviations() []float64 {
	p := mat.NewVecDense(len(s.Scenarios), s.Probabilities())
	var mean mat.VecDense
	mean.MulVec(s.Deviations().T(), p)
	out := make([]float64, len(s.Parameters))
	for j := range out {
		out[j] = mean.AtVec(j)
	}
	return out
}

// Materialize turns every scenario's deviations into a parameter patch over
// v. Deviations are applied in parameter order, each on top of the previous.
func (s *Set) Materialize(v superstructure.View) error {
	for i := range s.Scenarios {
		patch, err := patchFor(v, s.Parameters, s.Scenarios[i].Deviations)
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeInvalidScenario, "scenario %s", s.Scenarios[i].ID)
		}
		s.Scenarios[i].Patch = patch
	}
	return nil
}

func patchFor(v superstructure.View, keys []superstructure.ParamKey, dev []float64) (superstructure.Overrides, error) {
	patch := superstructure.Overrides{}
	cur := v
	for j, key := range keys {
		if _, err := cur.Value(key); err != nil {
			return nil, err
		}
		if dev[j] == 0 {
			continue
		}
		p, err := cur.Perturb(key, dev[j])
		if err != nil {
			return nil, err
		}
		patch = patch.Merge(p)
		cur = cur.With(p)
	}
	return patch, nil
}
