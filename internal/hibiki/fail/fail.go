// Package fail defines the coded failure type returned by every public
// pipeline entry point.
//
// Pipeline operations (discover, match, assess, execute, batch) never leak
// raw transport or parsing errors to callers: they fold them into a Failure
// carrying a stable code, a human-readable message, and suggested next steps.
// Callers branch on the code; the solutions are surfaced verbatim in CLI
// output.
package fail

import (
	stderrors "errors"
	"fmt"
)

// Code identifies a failure class across the dispatch pipeline.
type Code string

const (
	CodeUnknown                  Code = "UNKNOWN"
	CodeInvalidInput             Code = "INVALID_INPUT"
	CodeDiscoveryNoResponse      Code = "DISCOVERY_NO_RESPONSE"
	CodeDiscoveryEmptyData       Code = "DISCOVERY_EMPTY_DATA"
	CodeDiscoveryParseFailure    Code = "DISCOVERY_PARSE_FAILURE"
	CodeDiscoveryTimeout         Code = "DISCOVERY_TIMEOUT"
	CodeMatchNoHandler           Code = "MATCH_NO_HANDLER"
	CodeParameterMissing         Code = "PARAMETER_MISSING"
	CodeParameterTypeMismatch    Code = "PARAMETER_TYPE_MISMATCH"
	CodeParameterPatternMismatch Code = "PARAMETER_PATTERN_MISMATCH"
	CodeExecutionFailed          Code = "EXECUTION_FAILED"
	CodeBatchItemFailed          Code = "BATCH_ITEM_FAILED"
	CodeRollbackFailed           Code = "ROLLBACK_FAILED"
)

// defaultSolutions maps each code to the remediation hints shown to users
// when a failure of that class is surfaced. Kept as data so new codes can be
// registered without touching control flow.
var defaultSolutions = map[Code][]string{
	CodeInvalidInput: {
		"Check that a process identity and a request were supplied.",
	},
	CodeDiscoveryNoResponse: {
		"Verify the process identity is correct.",
		"Check that the process is deployed and reachable through the gateway.",
	},
	CodeDiscoveryEmptyData: {
		"The process responded without a payload; it may not implement an Info handler.",
	},
	CodeDiscoveryParseFailure: {
		"The process documentation could not be interpreted.",
		"Ask the process maintainer to publish a registry-compliant handler document.",
	},
	CodeDiscoveryTimeout: {
		"Retry the request; the process may be slow to schedule.",
		"Increase the discovery timeout if the process is known to be slow.",
	},
	CodeMatchNoHandler: {
		"Rephrase the request using the handler names shown by `hibiki describe`.",
		"Supply parameters explicitly with --param if matching keeps failing.",
	},
	CodeParameterMissing: {
		"Include the missing value in the request text (e.g. \"... 100 tokens to alice\").",
		"Pass the value explicitly with --param name=value.",
	},
	CodeParameterTypeMismatch: {
		"Check the parameter value against the type declared by the handler.",
	},
	CodeParameterPatternMismatch: {
		"Check the parameter value against the validation rule declared by the handler.",
	},
	CodeExecutionFailed: {
		"Inspect the process reply for handler-level errors.",
		"Retry once transient transport issues clear.",
	},
	CodeBatchItemFailed: {
		"Inspect the per-item results to find the failing request.",
	},
	CodeRollbackFailed: {
		"Manually verify the state of operations completed before the failure.",
	},
}

// Failure is the structured error carried inside pipeline results.
type Failure struct {
	Code      Code     `json:"code"`
	Message   string   `json:"message"`
	Solutions []string `json:"solutions,omitempty"`

	cause error
}

// New creates a Failure with the default solutions registered for code.
func New(code Code, message string) *Failure {
	return &Failure{
		Code:      code,
		Message:   message,
		Solutions: defaultSolutions[code],
	}
}

// Newf creates a Failure with a formatted message.
func Newf(code Code, format string, args ...any) *Failure {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a Failure that records cause for errors.Is/errors.As chains.
func Wrap(code Code, cause error, message string) *Failure {
	f := New(code, message)
	f.cause = cause
	return f
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	if f.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", f.Code, f.Message, f.cause)
	}
	return fmt.Sprintf("[%s] %s", f.Code, f.Message)
}

// Unwrap exposes the cause to errors.Is/errors.As.
func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.cause
}

// Is matches two Failures by code so callers can use errors.Is with a bare
// New(code, "") sentinel.
func (f *Failure) Is(target error) bool {
	if f == nil || target == nil {
		return false
	}
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return f.Code == t.Code
}

// As extracts a *Failure from an error chain. When err is not a Failure, a
// CodeUnknown Failure wrapping it is returned so callers always get a value
// they can embed in a structured result.
func As(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if stderrors.As(err, &f) {
		return f
	}
	return Wrap(CodeUnknown, err, err.Error())
}

// CodeOf returns the failure code of err, or CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	var f *Failure
	if stderrors.As(err, &f) {
		return f.Code
	}
	return CodeUnknown
}
