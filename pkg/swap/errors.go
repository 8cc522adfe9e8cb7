package swap

import (
	"errors"
	"fmt"
)

var (
	// ErrQuoteExpired is returned when a quote is used at or after its expiry.
	ErrQuoteExpired = errors.New("quote expired")
	// ErrUnknownStage is returned when the engine reports a stage this client
	// does not understand.
	ErrUnknownStage = errors.New("unknown swap stage")
	// ErrPreconditionNotMet marks out-of-order intents. The orchestrator drops
	// them silently; it is never surfaced to the user.
	ErrPreconditionNotMet = errors.New("precondition not met")
)

// EngineError is a failure reported by (or while talking to) the swap engine.
// Message is passed through to the user unchanged.
type EngineError struct {
	Op      string
	Message string
	Err     error
}

// NewEngineError wraps err as an engine failure for the given operation.
func NewEngineError(op string, err error) *EngineError {
	return &EngineError{Op: op, Message: err.Error(), Err: err}
}

func (e *EngineError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
