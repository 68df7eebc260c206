package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// New / Wrap
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal", errors.CodeInternal, "unexpected failure"},
		{"stoichiometry", errors.ErrCodeStoichiometry, "reaction r1 does not balance"},
		{"unknown unit", errors.ErrCodeUnknownUnit, "unit 7 not found"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ae := errors.New(tc.code, tc.message)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
		})
	}
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeInvalidUnit, "bad lifetime").WithDetail("unit=3")
	assert.Equal(t, "[SUP_001] bad lifetime: unit=3", ae.Error())

	plain := errors.New(errors.CodeInternal, "boom")
	assert.Equal(t, "[COMMON_001] boom", plain.Error())
}

func TestWrap_NilReturnsNilInterface(t *testing.T) {
	t.Parallel()

	err := errors.Wrap(nil, errors.CodeInternal, "ignored")
	assert.Nil(t, err)
	assert.True(t, err == nil)
}

func TestWrap_PreservesCodeWhenUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeStoichiometry, "r1")
	outer := errors.Wrap(inner, errors.CodeUnknown, "building catalog")
	assert.Equal(t, errors.ErrCodeStoichiometry, errors.GetCode(outer))
	assert.True(t, errors.IsStoichiometryError(outer))
}

func TestWrap_ChainTraversal(t *testing.T) {
	t.Parallel()

	root := stderrors.New("socket closed")
	mid := errors.Wrap(root, errors.ErrCodeSolverFailure, "relaxation failed")
	top := fmt.Errorf("solving case: %w", mid)

	assert.True(t, errors.Is(top, root))
	assert.True(t, errors.IsCode(top, errors.ErrCodeSolverFailure))
	assert.False(t, errors.IsCode(top, errors.CodeInternal))
}

func TestIsCode_FindsInnerCode(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeUnknownUnit, "unit 9")
	outer := errors.Wrap(inner, errors.ErrCodeInconsistentSets, "connections")
	assert.True(t, errors.IsCode(outer, errors.ErrCodeUnknownUnit))
	assert.True(t, errors.IsCode(outer, errors.ErrCodeInconsistentSets))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(errors.NotFound("run")))
}

func TestWithDetail_NilSafe(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("y")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain taxonomy
// ─────────────────────────────────────────────────────────────────────────────

func TestConstructionAndCompilationPredicates(t *testing.T) {
	t.Parallel()

	cons := errors.NewConstructionError(errors.ErrCodeInvalidUnit, 4, "lifetime must be positive, got %d", 0)
	assert.True(t, errors.IsConstructionError(cons))
	assert.False(t, errors.IsCompilationError(cons))
	assert.Contains(t, cons.Error(), "unit=4")

	stoich := errors.NewStoichiometryError(2, "r1", 0.25)
	assert.True(t, errors.IsConstructionError(stoich))
	assert.True(t, errors.IsStoichiometryError(stoich))
	assert.Contains(t, stoich.Error(), `"r1"`)

	comp := errors.NewCompilationError(errors.ErrCodeUnknownUnit, "connection %d->%d", 1, 9)
	assert.True(t, errors.IsCompilationError(comp))
	assert.False(t, errors.IsConstructionError(comp))

	assert.False(t, errors.IsConstructionError(nil))
}

func TestModuleForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SUP", errors.ModuleForCode(errors.ErrCodeStoichiometry))
	assert.Equal(t, "CMP", errors.ModuleForCode(errors.ErrCodeUnknownUnit))
	assert.Equal(t, "COMMON", errors.ModuleForCode(errors.CodeInternal))
	assert.Equal(t, "UNKNOWN", errors.ModuleForCode("garbage"))
	assert.Equal(t, "stoichiometry does not balance", errors.DefaultMessageForCode(errors.ErrCodeStoichiometry))
	assert.Equal(t, "unknown error", errors.DefaultMessageForCode("X_1"))
}
