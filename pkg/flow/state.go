package flow

import (
	"fmt"

	"swapflow/pkg/swap"
)

// Step is the user-visible position in the swap flow.
type Step int

const (
	StepSelectCoin Step = iota
	StepEnterAmount
	StepQuote
	StepConfirm
	StepProgress
	StepReceipt
)

var stepNames = [...]string{"SelectCoin", "EnterAmount", "Quote", "Confirm", "Progress", "Receipt"}

func (s Step) String() string {
	if int(s) >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Step) UnmarshalText(text []byte) error {
	for i, name := range stepNames {
		if name == string(text) {
			*s = Step(i)
			return nil
		}
	}
	return fmt.Errorf("unknown step %q", text)
}

// ErrorKind classifies the error carried by a State.
type ErrorKind string

const (
	ErrorNone         ErrorKind = ""
	ErrorEngine       ErrorKind = "engine"
	ErrorQuoteExpired ErrorKind = "quote_expired"
	ErrorUnknownStage ErrorKind = "unknown_stage"
	ErrorPollFailure  ErrorKind = "poll_failure"
)

// State is an immutable snapshot of the whole flow. Optional parts are
// pointers to values that are never modified after publication; every change
// produces a new State through the with* helpers.
type State struct {
	Step     Step              `json:"step"`
	Asset    *swap.SourceAsset `json:"asset,omitempty"`
	Amount   *string           `json:"amount,omitempty"`
	Quote    *swap.Quote       `json:"quote,omitempty"`
	Progress *swap.Progress    `json:"progress,omitempty"`
	Err      string            `json:"error,omitempty"`
	ErrKind  ErrorKind         `json:"error_kind,omitempty"`
}

// Initial returns the state of a fresh flow.
func Initial() State {
	return State{Step: StepSelectCoin}
}

// Validate checks that the step agrees with the populated fields.
func (s State) Validate() error {
	switch s.Step {
	case StepSelectCoin:
		if s.Quote != nil || s.Progress != nil {
			return fmt.Errorf("step %s must not carry a quote or progress", s.Step)
		}
	case StepEnterAmount:
		if s.Asset == nil {
			return fmt.Errorf("step %s requires an asset", s.Step)
		}
	case StepQuote, StepConfirm:
		if s.Asset == nil || s.Amount == nil || s.Quote == nil {
			return fmt.Errorf("step %s requires asset, amount and quote", s.Step)
		}
	case StepProgress:
		if s.Quote == nil || s.Progress == nil {
			return fmt.Errorf("step %s requires quote and progress", s.Step)
		}
	case StepReceipt:
		if s.Progress == nil || !s.Progress.IsTerminal() {
			return fmt.Errorf("step %s requires terminal progress", s.Step)
		}
	default:
		return fmt.Errorf("unknown step %d", int(s.Step))
	}
	return nil
}

func (s State) withStep(step Step) State {
	s.Step = step
	return s
}

func (s State) withAsset(a swap.SourceAsset) State {
	s.Asset = &a
	return s
}

func (s State) withAmount(amount string) State {
	s.Amount = &amount
	return s
}

func (s State) withQuote(q *swap.Quote) State {
	s.Quote = q
	return s
}

func (s State) withProgress(p swap.Progress) State {
	s.Progress = &p
	return s
}

func (s State) withError(kind ErrorKind, msg string) State {
	s.ErrKind = kind
	s.Err = msg
	return s
}

func (s State) clearError() State {
	return s.withError(ErrorNone, "")
}
