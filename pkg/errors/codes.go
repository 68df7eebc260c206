package errors

import "strings"

// ErrorCode is a string representation of a specific error condition. Codes
// are grouped by module prefix: "<MODULE>_<nnn>".
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal        ErrorCode = "COMMON_001"
	ErrCodeBadRequest      ErrorCode = "COMMON_002"
	ErrCodeNotFound        ErrorCode = "COMMON_005"
	ErrCodeConflict        ErrorCode = "COMMON_006"
	ErrCodeTimeout         ErrorCode = "COMMON_009"
	ErrCodeValidation      ErrorCode = "COMMON_010"
	ErrCodeSerialization   ErrorCode = "COMMON_011"
	ErrCodeDatabaseError   ErrorCode = "COMMON_012"
	ErrCodeCacheError      ErrorCode = "COMMON_013"
	ErrCodeExternalService ErrorCode = "COMMON_014"
	ErrCodeNotImplemented  ErrorCode = "COMMON_016"
)

// Short aliases.
const (
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
)

// Superstructure construction codes. Every SUP_ code is a construction error:
// fatal at assembly time and never recovered automatically.
const (
	ErrCodeInvalidUnit         ErrorCode = "SUP_001"
	ErrCodeStoichiometry       ErrorCode = "SUP_002"
	ErrCodeMissingMainProduct  ErrorCode = "SUP_003"
	ErrCodeUnknownProcessClass ErrorCode = "SUP_004"
	ErrCodeDuplicateUnit       ErrorCode = "SUP_005"
	ErrCodeInvalidEconomics    ErrorCode = "SUP_006"
	ErrCodeInvalidHeatPump     ErrorCode = "SUP_007"
)

// Model compilation codes. Every CMP_ code is a compilation error.
const (
	ErrCodeUnknownUnit        ErrorCode = "CMP_001"
	ErrCodeInconsistentSets   ErrorCode = "CMP_002"
	ErrCodeDuplicateSymbol    ErrorCode = "CMP_003"
	ErrCodeUnknownParameter   ErrorCode = "CMP_004"
	ErrCodeUnpreparedTopology ErrorCode = "CMP_005"
)

// Solver adapter codes. Infeasibility and time limits are statuses, not
// errors; these codes cover faults of the solver machinery itself.
const (
	ErrCodeSolverFailure     ErrorCode = "SLV_001"
	ErrCodeSolverUnavailable ErrorCode = "SLV_002"
	ErrCodeSolutionParse     ErrorCode = "SLV_003"
	ErrCodeModelExport       ErrorCode = "SLV_004"
)

// Scenario engine codes.
const (
	ErrCodeAllScenariosFailed ErrorCode = "SCN_001"
	ErrCodeInvalidScenario    ErrorCode = "SCN_002"
	ErrCodeInvalidUncertainty ErrorCode = "SCN_003"
)

// Infrastructure adapter codes.
const (
	ErrCodeCacheMiss       ErrorCode = "CACHE_001"
	ErrCodeCacheUnavail    ErrorCode = "CACHE_002"
	ErrCodeRunNotFound     ErrorCode = "STORE_001"
	ErrCodeObjectStorage   ErrorCode = "STORE_002"
	ErrCodeMessagePublish  ErrorCode = "MQ_001"
	ErrCodeMessageConsume  ErrorCode = "MQ_002"
	ErrCodeMessageTooLarge ErrorCode = "MQ_003"
)

var codeMessages = map[ErrorCode]string{
	ErrCodeInternal:            "internal error",
	ErrCodeBadRequest:          "invalid parameter",
	ErrCodeNotFound:            "not found",
	ErrCodeTimeout:             "operation timed out",
	ErrCodeValidation:          "validation failed",
	ErrCodeInvalidUnit:         "invalid unit parameters",
	ErrCodeStoichiometry:       "stoichiometry does not balance",
	ErrCodeMissingMainProduct:  "main product required",
	ErrCodeUnknownProcessClass: "unknown process class",
	ErrCodeDuplicateUnit:       "duplicate unit identifier",
	ErrCodeUnknownUnit:         "unknown unit referenced",
	ErrCodeInconsistentSets:    "inconsistent set membership",
	ErrCodeDuplicateSymbol:     "duplicate model symbol",
	ErrCodeSolverFailure:       "solver failure",
	ErrCodeAllScenariosFailed:  "no feasible scenario",
}

// DefaultMessageForCode returns a generic message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of code ("SUP", "CMP", ...).
func ModuleForCode(code ErrorCode) string {
	s := string(code)
	if i := strings.Index(s, "_"); i > 0 {
		return s[:i]
	}
	return "UNKNOWN"
}
