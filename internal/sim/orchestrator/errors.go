// File: internal/sim/orchestrator/errors.go
package orchestrator

// ErrorCode is a string type used for structured failure reporting in a
// simulation result. Using a custom type ensures that only predefined
// constants can be used where an ErrorCode is expected.
type ErrorCode string

const (
	ErrCodeInvalidPersona ErrorCode = "INVALID_PERSONA"
	ErrCodeNoAgents       ErrorCode = "NO_AGENTS"
	ErrCodeSetupFailure   ErrorCode = "SETUP_FAILURE"
	ErrCodeRunFailure     ErrorCode = "RUN_FAILURE"
)
