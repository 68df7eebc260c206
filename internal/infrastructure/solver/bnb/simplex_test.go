package bnb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

func TestSolveStandard_StopInterruptsPivoting(t *testing.T) {
	rows := []row{{terms: []entry{{0, 1}, {1, 1}}, rel: milp.EQ, rhs: 1}}
	_, _, err := solveStandard([]float64{1, 2}, rows, func() bool { return true })
	assert.Equal(t, errInterrupted, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSolverFailure))
}

func TestSolveStandard_RankDeficientEqualities(t *testing.T) {
	// the second and third rows repeat the first
	rows := []row{
		{terms: []entry{{0, 1}, {1, 1}}, rel: milp.EQ, rhs: 3},
		{terms: []entry{{0, 1}, {1, 1}}, rel: milp.EQ, rhs: 3},
		{terms: []entry{{0, -2}, {1, -2}}, rel: milp.EQ, rhs: -6},
		{terms: []entry{{0, 1}}, rel: milp.GE, rhs: 1},
	}
	status, y, err := solveStandard([]float64{2, 1}, rows, nil)
	require.NoError(t, err)
	require.Equal(t, lpOptimal, status)
	assert.InDelta(t, 1, y[0], 1e-9)
	assert.InDelta(t, 2, y[1], 1e-9)
}

func TestSolveStandard_StatusKinds(t *testing.T) {
	infeasible := []row{
		{terms: []entry{{0, 1}}, rel: milp.LE, rhs: 1},
		{terms: []entry{{0, 1}}, rel: milp.GE, rhs: 2},
	}
	status, _, err := solveStandard([]float64{1}, infeasible, nil)
	require.NoError(t, err)
	assert.Equal(t, lpInfeasible, status)

	unbounded := []row{{terms: []entry{{0, 1}, {1, -1}}, rel: milp.LE, rhs: 1}}
	status, _, err = solveStandard([]float64{0, -1}, unbounded, nil)
	require.NoError(t, err)
	assert.Equal(t, lpUnbounded, status)
}

func TestSolveStandard_PollsStop(t *testing.T) {
	rows := []row{{terms: []entry{{0, 1}}, rel: milp.GE, rhs: 1}}
	calls := 0
	status, y, err := solveStandard([]float64{1}, rows, func() bool { calls++; return false })
	require.NoError(t, err)
	assert.Equal(t, lpOptimal, status)
	assert.InDelta(t, 1, y[0], 1e-12)
	assert.Positive(t, calls)
}
