// Package oneclick runs swaps through the NEAR Intents 1Click API. A quote
// carries a deposit address; the swap starts once the user funds it and is
// tracked by that address.
package oneclick

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"swapflow/pkg/address"
	"swapflow/pkg/swap"
)

// API is the part of the 1Click service the engine uses. *Client implements it.
type API interface {
	Quote(ctx context.Context, p QuoteParams) (DepositQuote, error)
	Status(ctx context.Context, depositAddress string) (ExecutionStatus, error)
}

// Config holds the route and addresses used for every quote
type Config struct {
	TargetTicker string
	SourceChain  string
	DestChain    string
	Recipient    string
	RefundTo     string
	QuoteTTL     time.Duration
}

// Engine adapts 1Click to the swap flow. Deposit addresses play the part of
// both order and swap identifiers.
type Engine struct {
	api    API
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	deposits map[string]DepositQuote
}

// New validates the configured addresses and returns the engine
func New(api API, cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := address.Validate(cfg.DestChain, cfg.Recipient); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	if cfg.RefundTo != "" {
		if err := address.Validate(cfg.SourceChain, cfg.RefundTo); err != nil {
			return nil, fmt.Errorf("refund address: %w", err)
		}
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		api:      api,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "oneclick")),
		now:      time.Now,
		deposits: make(map[string]DepositQuote),
	}, nil
}

// GetQuote requests a firm quote. The quote expires when the deposit
// deadline passes.
func (e *Engine) GetQuote(ctx context.Context, sourceTicker, sourceAmount string) (swap.Quote, error) {
	deadline := e.now().Add(e.cfg.QuoteTTL)
	dq, err := e.api.Quote(ctx, QuoteParams{
		SourceSymbol: sourceTicker,
		SourceChain:  e.cfg.SourceChain,
		DestSymbol:   e.cfg.TargetTicker,
		DestChain:    e.cfg.DestChain,
		Amount:       sourceAmount,
		Recipient:    e.cfg.Recipient,
		RefundTo:     e.cfg.RefundTo,
		Deadline:     deadline,
	})
	if err != nil {
		return swap.Quote{}, swap.NewEngineError("get quote", err)
	}

	e.mu.Lock()
	e.deposits[dq.DepositAddress] = dq
	e.mu.Unlock()

	e.logger.Debug("deposit quote received",
		slog.String("deposit_address", dq.DepositAddress),
		slog.String("amount_out", dq.AmountOut),
		slog.Duration("time_estimate", dq.TimeEstimate),
	)

	return swap.Quote{
		SourceTicker: strings.ToUpper(sourceTicker),
		TargetTicker: e.cfg.TargetTicker,
		SourceAmount: sourceAmount,
		TargetAmount: dq.AmountOut,
		Rate:         rate(sourceAmount, dq.AmountOut),
		Fee:          "0",
		OrderUUID:    dq.DepositAddress,
		ExpiresAt:    deadline,
	}, nil
}

// ExecuteSwap confirms that 1Click tracks the quoted deposit address. The
// swap itself starts when the deposit lands.
func (e *Engine) ExecuteSwap(ctx context.Context, q swap.Quote) (swap.Execution, error) {
	e.mu.Lock()
	_, ok := e.deposits[q.OrderUUID]
	e.mu.Unlock()
	if !ok {
		return swap.Execution{}, swap.NewEngineError("execute swap",
			fmt.Errorf("no quote was issued for deposit address %s", q.OrderUUID))
	}

	st, err := e.api.Status(ctx, q.OrderUUID)
	if err != nil {
		return swap.Execution{}, swap.NewEngineError("execute swap", err)
	}
	stage, err := MapStatus(st.Status)
	if err != nil {
		return swap.Execution{}, swap.NewEngineError("execute swap", err)
	}
	return swap.Execution{SwapUUID: q.OrderUUID, Stage: stage}, nil
}

// PollSwapStatus maps the current 1Click status of the deposit address
func (e *Engine) PollSwapStatus(ctx context.Context, swapUUID string) (swap.Status, error) {
	st, err := e.api.Status(ctx, swapUUID)
	if err != nil {
		return swap.Status{}, err
	}
	stage, err := MapStatus(st.Status)
	if err != nil {
		return swap.Status{}, err
	}
	status := swap.Status{Stage: stage}
	if stage == swap.StageFailed {
		status.Error = "1Click reported the swap as failed"
	}
	return status, nil
}

// Deposit returns where and how to fund the swap quoted under orderUUID
func (e *Engine) Deposit(orderUUID string) (DepositQuote, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dq, ok := e.deposits[orderUUID]
	return dq, ok
}

// MapStatus translates a 1Click execution status into a swap stage
func MapStatus(status string) (swap.Stage, error) {
	switch strings.ToUpper(status) {
	case "PENDING_DEPOSIT":
		return swap.StageInitiating, nil
	case "KNOWN_DEPOSIT_TX", "INCOMPLETE_DEPOSIT":
		return swap.StageSendingTakerPayment, nil
	case "PROCESSING":
		return swap.StageWaitingForCompletion, nil
	case "SUCCESS", "COMPLETED":
		return swap.StageCompleted, nil
	case "REFUNDED":
		return swap.StageRefunded, nil
	case "FAILED":
		return swap.StageFailed, nil
	default:
		return 0, fmt.Errorf("%w: 1Click status %q", swap.ErrUnknownStage, status)
	}
}

func rate(in, out string) string {
	a, errIn := decimal.NewFromString(in)
	b, errOut := decimal.NewFromString(out)
	if errIn != nil || errOut != nil || a.IsZero() {
		return ""
	}
	return b.Div(a).String()
}
