// Package sim is an in-process swap engine for demos and tests. Swaps walk
// through every stage on a fixed schedule.
package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"swapflow/pkg/swap"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStageDuration sets how long a swap stays in each stage.
func WithStageDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.stageDuration = d
		}
	}
}

// WithOutcome sets the terminal stage swaps end in.
func WithOutcome(stage swap.Stage) Option {
	return func(e *Engine) {
		if stage.IsTerminal() {
			e.outcome = stage
		}
	}
}

// WithRate sets the price of one unit of ticker, in target units.
func WithRate(ticker string, rate decimal.Decimal) Option {
	return func(e *Engine) { e.rates[strings.ToUpper(ticker)] = rate }
}

var progression = []swap.Stage{
	swap.StageInitiating,
	swap.StageNegotiating,
	swap.StageSendingFee,
	swap.StageWaitingForMakerPayment,
	swap.StageValidatingMakerPayment,
	swap.StageSendingTakerPayment,
	swap.StageWaitingForCompletion,
}

type simSwap struct {
	quote   swap.Quote
	started time.Time
}

// Engine simulates a swap engine.
type Engine struct {
	targetTicker  string
	quoteTTL      time.Duration
	stageDuration time.Duration
	outcome       swap.Stage
	now           func() time.Time

	mu     sync.Mutex
	rates  map[string]decimal.Decimal
	quotes map[string]swap.Quote
	swaps  map[string]simSwap
}

// New returns an engine selling targetTicker.
func New(targetTicker string, quoteTTL time.Duration, opts ...Option) *Engine {
	e := &Engine{
		targetTicker:  strings.ToUpper(targetTicker),
		quoteTTL:      quoteTTL,
		stageDuration: 3 * time.Second,
		outcome:       swap.StageCompleted,
		now:           time.Now,
		rates:         make(map[string]decimal.Decimal),
		quotes:        make(map[string]swap.Quote),
		swaps:         make(map[string]simSwap),
	}
	if e.quoteTTL <= 0 {
		e.quoteTTL = time.Minute
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) GetQuote(ctx context.Context, sourceTicker, sourceAmount string) (swap.Quote, error) {
	if err := ctx.Err(); err != nil {
		return swap.Quote{}, err
	}
	sourceTicker = strings.ToUpper(sourceTicker)
	amount, err := decimal.NewFromString(strings.TrimSpace(sourceAmount))
	if err != nil || !amount.IsPositive() {
		return swap.Quote{}, &swap.EngineError{Op: "get quote", Message: fmt.Sprintf("invalid amount %q", sourceAmount), Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rate, ok := e.rates[sourceTicker]
	if !ok {
		return swap.Quote{}, &swap.EngineError{
			Op:      "get quote",
			Message: fmt.Sprintf("no %s orders available for %s", e.targetTicker, sourceTicker),
		}
	}
	target := amount.Mul(rate).Truncate(8)
	q := swap.Quote{
		SourceTicker: sourceTicker,
		TargetTicker: e.targetTicker,
		SourceAmount: amount.String(),
		TargetAmount: target.String(),
		Rate:         decimal.NewFromInt(1).DivRound(rate, 8).String(),
		Fee:          amount.DivRound(decimal.NewFromInt(777), 8).String(),
		OrderUUID:    uuid.NewString(),
		ExpiresAt:    e.now().Add(e.quoteTTL),
	}
	e.quotes[q.OrderUUID] = q
	return q, nil
}

func (e *Engine) ExecuteSwap(ctx context.Context, q swap.Quote) (swap.Execution, error) {
	if err := ctx.Err(); err != nil {
		return swap.Execution{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	issued, ok := e.quotes[q.OrderUUID]
	if !ok {
		return swap.Execution{}, &swap.EngineError{Op: "execute swap", Message: fmt.Sprintf("order %s not found", q.OrderUUID)}
	}
	now := e.now()
	if !issued.IsValid(now) {
		return swap.Execution{}, &swap.EngineError{Op: "execute swap", Message: "order expired", Err: swap.ErrQuoteExpired}
	}
	delete(e.quotes, q.OrderUUID)

	id := uuid.NewString()
	e.swaps[id] = simSwap{quote: issued, started: now}
	return swap.Execution{SwapUUID: id, Stage: swap.StageInitiating}, nil
}

func (e *Engine) PollSwapStatus(ctx context.Context, swapUUID string) (swap.Status, error) {
	if err := ctx.Err(); err != nil {
		return swap.Status{}, err
	}
	e.mu.Lock()
	s, ok := e.swaps[swapUUID]
	e.mu.Unlock()
	if !ok {
		return swap.Status{}, &swap.EngineError{Op: "poll swap status", Message: fmt.Sprintf("swap %s not found", swapUUID)}
	}

	step := int(e.now().Sub(s.started) / e.stageDuration)
	if step < len(progression) {
		return swap.Status{Stage: progression[step]}, nil
	}
	st := swap.Status{Stage: e.outcome}
	if e.outcome == swap.StageFailed {
		st.Error = "simulated counterparty timeout"
	}
	return st, nil
}
