package swap

import (
	"time"
)

// Execution is the engine's answer to an execute request.
type Execution struct {
	SwapUUID string
	Stage    Stage
}

// Status is a single observation of a running swap.
type Status struct {
	Stage Stage
	Error string
}

// Progress describes a running swap. Values are replaced, never edited in place.
type Progress struct {
	SwapUUID     string    `json:"swap_uuid"`
	Stage        Stage     `json:"stage"`
	SourceTicker string    `json:"source_ticker"`
	TargetTicker string    `json:"target_ticker"`
	SourceAmount string    `json:"source_amount"`
	TargetAmount string    `json:"target_amount"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Error        string    `json:"error,omitempty"`
}

// NewProgress starts tracking a swap spawned from quote q.
func NewProgress(exec Execution, q Quote, now time.Time) Progress {
	return Progress{
		SwapUUID:     exec.SwapUUID,
		Stage:        exec.Stage,
		SourceTicker: q.SourceTicker,
		TargetTicker: q.TargetTicker,
		SourceAmount: q.SourceAmount,
		TargetAmount: q.TargetAmount,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// Advance returns a copy of p at the observed stage. The error message is
// kept only for Failed.
func (p Progress) Advance(status Status, now time.Time) Progress {
	next := p
	next.Stage = status.Stage
	next.UpdatedAt = now
	next.Error = ""
	if status.Stage == StageFailed {
		next.Error = status.Error
	}
	return next
}

// Elapsed returns the time since the swap started.
func (p Progress) Elapsed(now time.Time) time.Duration {
	return now.Sub(p.StartedAt)
}

func (p Progress) Percent() int {
	return p.Stage.Percent()
}

func (p Progress) IsTerminal() bool {
	return p.Stage.IsTerminal()
}

func (p Progress) IsComplete() bool {
	return p.Stage == StageCompleted
}

func (p Progress) IsFailed() bool {
	return p.Stage == StageFailed
}

func (p Progress) IsRefunded() bool {
	return p.Stage == StageRefunded
}
