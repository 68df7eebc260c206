package errors

import "fmt"

// NewConstructionError reports a bad unit parameter bundle. The unit identifier
// is always placed in the detail so the user can find the offending record.
func NewConstructionError(code ErrorCode, unitID int, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Detail:  fmt.Sprintf("unit=%d", unitID),
		Stack:   captureStack(1),
	}
}

// NewStoichiometryError reports a reaction whose coefficients do not sum to
// zero.
func NewStoichiometryError(unitID int, reaction string, sum float64) *AppError {
	return &AppError{
		Code:    ErrCodeStoichiometry,
		Message: fmt.Sprintf("reaction %q: stoichiometric coefficients sum to %g, want 0", reaction, sum),
		Detail:  fmt.Sprintf("unit=%d", unitID),
		Stack:   captureStack(1),
	}
}

// NewCompilationError reports inconsistent set membership found while emitting
// the model.
func NewCompilationError(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// IsConstructionError reports whether err carries a SUP_ code.
func IsConstructionError(err error) bool {
	return err != nil && ModuleForCode(GetCode(err)) == "SUP"
}

// IsCompilationError reports whether err carries a CMP_ code.
func IsCompilationError(err error) bool {
	return err != nil && ModuleForCode(GetCode(err)) == "CMP"
}

// IsStoichiometryError reports whether err carries ErrCodeStoichiometry.
func IsStoichiometryError(err error) bool {
	return IsCode(err, ErrCodeStoichiometry)
}
