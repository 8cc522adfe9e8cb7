// Package flow drives a single user-facing swap from coin selection to the
// final receipt. The Orchestrator is the only writer of the flow State;
// observers read published snapshots.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"swapflow/pkg/swap"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultBackoffMax      = 60 * time.Second
	DefaultMaxPollFailures = 30
)

// Engine is the external swap engine as seen by the flow.
type Engine interface {
	GetQuote(ctx context.Context, sourceTicker, sourceAmount string) (swap.Quote, error)
	ExecuteSwap(ctx context.Context, quote swap.Quote) (swap.Execution, error)
	PollSwapStatus(ctx context.Context, swapUUID string) (swap.Status, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithPollInterval sets the delay between two successful status polls.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithBackoffMax caps the retry delay after failed polls.
func WithBackoffMax(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.backoffMax = d
		}
	}
}

// WithMaxPollFailures sets how many consecutive poll failures are tolerated
// before the failure is reported in the flow state. Polling continues either way.
func WithMaxPollFailures(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxPollFailures = n
		}
	}
}

// Orchestrator owns the flow State and the background monitor of the swap
// being executed.
type Orchestrator struct {
	engine          Engine
	logger          *slog.Logger
	now             func() time.Time
	pollInterval    time.Duration
	backoffMax      time.Duration
	maxPollFailures int

	cell *snapshotCell

	mu        sync.Mutex
	state     State
	epoch     uint64
	executing bool
	monitor   *monitor
	closed    bool
}

// New creates an Orchestrator in the initial SelectCoin state.
func New(engine Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:          engine,
		logger:          slog.Default(),
		now:             time.Now,
		pollInterval:    DefaultPollInterval,
		backoffMax:      DefaultBackoffMax,
		maxPollFailures: DefaultMaxPollFailures,
		state:           Initial(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.backoffMax < o.pollInterval {
		o.backoffMax = o.pollInterval
	}
	o.logger = o.logger.With(slog.String("component", "flow"))
	o.cell = newSnapshotCell(o.state)
	return o
}

// Snapshot returns the latest published State without blocking.
func (o *Orchestrator) Snapshot() State {
	return o.cell.load()
}

// Subscribe returns a channel carrying the current State followed by every
// later one. Values a slow reader missed are dropped in favour of the newest.
// The channel is closed when ctx ends or the orchestrator is closed.
func (o *Orchestrator) Subscribe(ctx context.Context) <-chan State {
	return o.cell.subscribe(ctx)
}

// commit must be called with o.mu held.
func (o *Orchestrator) commit(next State) {
	o.state = next
	o.cell.publish(next)
}

func (o *Orchestrator) ignore(op string, step Step) {
	o.logger.Debug("intent ignored",
		slog.String("op", op),
		slog.String("step", step.String()),
		slog.String("reason", swap.ErrPreconditionNotMet.Error()),
	)
}

// SelectAsset picks the coin to spend. Accepted from SelectCoin, and from
// EnterAmount as a correction.
func (o *Orchestrator) SelectAsset(asset swap.SourceAsset) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || (o.state.Step != StepSelectCoin && o.state.Step != StepEnterAmount) {
		o.ignore("select_asset", o.state.Step)
		return
	}
	o.commit(o.state.withAsset(asset).withStep(StepEnterAmount).clearError())
}

// SetAmount stores the raw amount text. It never fails; checking it against
// the balance is left to the presentation layer. A quote already shown for a
// previous amount is dropped.
func (o *Orchestrator) SetAmount(amount string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state.Asset == nil {
		o.ignore("set_amount", o.state.Step)
		return
	}
	switch o.state.Step {
	case StepProgress, StepReceipt:
		o.ignore("set_amount", o.state.Step)
	case StepQuote, StepConfirm:
		o.commit(o.state.withAmount(amount).withQuote(nil).withStep(StepEnterAmount).clearError())
	default:
		o.commit(o.state.withAmount(amount).clearError())
	}
}

func quotable(step Step) bool {
	return step == StepEnterAmount || step == StepQuote || step == StepConfirm
}

// RequestQuote asks the engine to price the selected asset and amount. The
// engine call runs without the writer lock, so other intents proceed while it
// is pending. Failures are recorded in the State and the step stays put.
func (o *Orchestrator) RequestQuote(ctx context.Context) {
	o.mu.Lock()
	st := o.state
	if o.closed || st.Asset == nil || st.Amount == nil || !quotable(st.Step) {
		o.mu.Unlock()
		o.ignore("request_quote", st.Step)
		return
	}
	epoch := o.epoch
	o.mu.Unlock()

	q, err := o.engine.GetQuote(ctx, st.Asset.Ticker, *st.Amount)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != epoch || o.state.Asset != st.Asset || o.state.Amount != st.Amount || !quotable(o.state.Step) {
		o.logger.Debug("discarding stale quote response",
			slog.String("ticker", st.Asset.Ticker),
			slog.String("amount", *st.Amount),
		)
		return
	}
	if err != nil {
		o.logger.Warn("quote request failed",
			slog.String("ticker", st.Asset.Ticker),
			slog.String("amount", *st.Amount),
			slog.String("error", err.Error()),
		)
		o.commit(o.state.withError(ErrorEngine, engineMessage(err)))
		return
	}

	o.logger.Info("quote received",
		slog.String("order_uuid", q.OrderUUID),
		slog.String("source_amount", q.SourceAmount),
		slog.String("target_amount", q.TargetAmount),
		slog.Time("expires_at", q.ExpiresAt),
	)
	o.commit(o.state.withQuote(&q).withStep(StepQuote).clearError())
}

// ConfirmSwap accepts the current quote. It returns swap.ErrQuoteExpired when
// the quote is no longer valid; the caller should request a new one.
func (o *Orchestrator) ConfirmSwap() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state.Step != StepQuote || o.state.Quote == nil {
		o.ignore("confirm_swap", o.state.Step)
		return nil
	}
	if !o.state.Quote.IsValid(o.now()) {
		o.commit(o.state.withError(ErrorQuoteExpired, swap.ErrQuoteExpired.Error()))
		return swap.ErrQuoteExpired
	}
	o.commit(o.state.withStep(StepConfirm).clearError())
	return nil
}

// ExecuteSwap hands the confirmed quote to the engine and, once the flow is
// in Progress, starts the monitor for the new swap. The quote is checked for
// expiry again because time may have passed since confirmation.
func (o *Orchestrator) ExecuteSwap(ctx context.Context) error {
	o.mu.Lock()
	if o.closed || o.state.Step != StepConfirm || o.state.Quote == nil || o.executing {
		st := o.state.Step
		o.mu.Unlock()
		o.ignore("execute_swap", st)
		return nil
	}
	q := *o.state.Quote
	if !q.IsValid(o.now()) {
		o.commit(o.state.withError(ErrorQuoteExpired, swap.ErrQuoteExpired.Error()))
		o.mu.Unlock()
		return swap.ErrQuoteExpired
	}
	o.executing = true
	epoch := o.epoch
	o.mu.Unlock()

	exec, err := o.engine.ExecuteSwap(ctx, q)
	if err == nil && exec.SwapUUID == "" {
		err = swap.NewEngineError("execute swap", errors.New("engine returned an empty swap uuid"))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != epoch {
		if err == nil {
			o.logger.Warn("swap started after the flow was reset; not monitoring it",
				slog.String("swap_uuid", exec.SwapUUID),
				slog.String("order_uuid", q.OrderUUID),
			)
		}
		return nil
	}
	o.executing = false

	if errors.Is(err, swap.ErrUnknownStage) {
		o.logger.Error("engine reported a stage this client does not know",
			slog.String("order_uuid", q.OrderUUID),
			slog.String("error", err.Error()),
		)
		o.commit(o.state.withError(ErrorUnknownStage, engineMessage(err)))
		return nil
	}
	if err != nil {
		o.logger.Warn("swap execution failed",
			slog.String("order_uuid", q.OrderUUID),
			slog.String("error", err.Error()),
		)
		o.commit(o.state.withError(ErrorEngine, engineMessage(err)))
		return nil
	}

	progress := swap.NewProgress(exec, q, o.now())
	next := o.state.withProgress(progress).withStep(StepProgress).clearError()
	if progress.IsTerminal() {
		o.commit(next.withStep(StepReceipt))
		return nil
	}
	o.commit(next)

	o.logger.Info("swap started",
		slog.String("swap_uuid", exec.SwapUUID),
		slog.String("order_uuid", q.OrderUUID),
		slog.String("stage", exec.Stage.String()),
	)
	o.startMonitor(exec.SwapUUID)
	return nil
}

// Reset abandons the current flow, stops any monitor and returns to the
// initial state.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.stopMonitor()
	o.epoch++
	o.executing = false
	o.commit(Initial())
}

// Close stops the monitor, waits for it to exit and closes all subscriptions.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	m := o.stopMonitor()
	o.epoch++
	o.mu.Unlock()

	if m != nil {
		<-m.done
	}
	o.cell.close()
}

func engineMessage(err error) string {
	var engErr *swap.EngineError
	if errors.As(err, &engErr) {
		return engErr.Message
	}
	return err.Error()
}
