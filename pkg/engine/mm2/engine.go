// Package mm2 runs swaps on an AtomicDEX (mm2) node. Quotes come from the
// node's orderbook; swaps are taker buys matched against the quoted order.
package mm2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"swapflow/pkg/swap"
)

// dexFeeDivisor is the mm2 taker dex fee: 1/777 of the traded amount.
var dexFeeDivisor = decimal.NewFromInt(777)

// amountPlaces is the precision mm2 accepts for volumes.
const amountPlaces = 8

// RPC is the subset of the mm2 API the engine uses. *Client implements it.
type RPC interface {
	Orderbook(ctx context.Context, base, rel string) (*Orderbook, error)
	Buy(ctx context.Context, p BuyParams) (*SwapResult, error)
	SwapStatus(ctx context.Context, uuid string) (*SwapInfo, error)
}

// Engine implements the swap engine on top of mm2.
type Engine struct {
	rpc          RPC
	targetTicker string
	quoteTTL     time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewEngine returns an engine buying targetTicker. Quotes stay valid for quoteTTL.
func NewEngine(rpc RPC, targetTicker string, quoteTTL time.Duration, logger *slog.Logger) *Engine {
	if quoteTTL <= 0 {
		quoteTTL = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rpc:          rpc,
		targetTicker: strings.ToUpper(targetTicker),
		quoteTTL:     quoteTTL,
		logger:       logger.With(slog.String("component", "mm2")),
		now:          time.Now,
	}
}

// GetQuote prices sourceAmount of sourceTicker against the cheapest ask that
// can fill it.
func (e *Engine) GetQuote(ctx context.Context, sourceTicker, sourceAmount string) (swap.Quote, error) {
	sourceTicker = strings.ToUpper(sourceTicker)
	amount, err := decimal.NewFromString(strings.TrimSpace(sourceAmount))
	if err != nil || !amount.IsPositive() {
		return swap.Quote{}, &swap.EngineError{
			Op:      "get quote",
			Message: fmt.Sprintf("invalid amount %q", sourceAmount),
			Err:     err,
		}
	}

	book, err := e.rpc.Orderbook(ctx, e.targetTicker, sourceTicker)
	if err != nil {
		return swap.Quote{}, engineError("get quote", err)
	}

	order, price, volume, ok := bestAsk(book.Asks, amount)
	if !ok {
		return swap.Quote{}, &swap.EngineError{
			Op:      "get quote",
			Message: fmt.Sprintf("no %s orders can fill %s %s", e.targetTicker, amount, sourceTicker),
		}
	}

	fee := amount.Div(dexFeeDivisor).Round(amountPlaces)
	q := swap.Quote{
		SourceTicker: sourceTicker,
		TargetTicker: e.targetTicker,
		SourceAmount: amount.String(),
		TargetAmount: volume.String(),
		Rate:         price.String(),
		Fee:          fee.String(),
		OrderUUID:    order.UUID,
		ExpiresAt:    e.now().Add(e.quoteTTL),
	}
	e.logger.Debug("quote built from orderbook",
		slog.String("order_uuid", order.UUID),
		slog.String("maker", order.Address),
		slog.String("price", q.Rate),
		slog.Int("asks", len(book.Asks)),
	)
	return q, nil
}

// bestAsk returns the lowest-priced ask whose volume limits admit the target
// volume bought with amount.
func bestAsk(asks []Order, amount decimal.Decimal) (Order, decimal.Decimal, decimal.Decimal, bool) {
	var (
		best      Order
		bestPrice decimal.Decimal
		bestVol   decimal.Decimal
		found     bool
	)
	for _, ask := range asks {
		price, err := decimal.NewFromString(ask.Price)
		if err != nil || !price.IsPositive() || ask.UUID == "" {
			continue
		}
		volume := amount.DivRound(price, amountPlaces+4).Truncate(amountPlaces)
		if !volume.IsPositive() {
			continue
		}
		if maxVol, err := decimal.NewFromString(ask.MaxVolume); err == nil && volume.GreaterThan(maxVol) {
			continue
		}
		if minVol, err := decimal.NewFromString(ask.MinVolume); err == nil && volume.LessThan(minVol) {
			continue
		}
		if !found || price.LessThan(bestPrice) {
			best, bestPrice, bestVol, found = ask, price, volume, true
		}
	}
	return best, bestPrice, bestVol, found
}

// ExecuteSwap takes the quoted order with a taker buy.
func (e *Engine) ExecuteSwap(ctx context.Context, q swap.Quote) (swap.Execution, error) {
	res, err := e.rpc.Buy(ctx, BuyParams{
		Base:    q.TargetTicker,
		Rel:     q.SourceTicker,
		Volume:  q.TargetAmount,
		Price:   q.Rate,
		MatchBy: &MatchBy{Type: "Orders", Data: []string{q.OrderUUID}},
	})
	if err != nil {
		return swap.Execution{}, engineError("execute swap", err)
	}
	e.logger.Info("taker swap started",
		slog.String("swap_uuid", res.UUID),
		slog.String("order_uuid", q.OrderUUID),
		slog.String("base_amount", res.BaseAmount),
		slog.String("rel_amount", res.RelAmount),
	)
	return swap.Execution{SwapUUID: res.UUID, Stage: swap.StageInitiating}, nil
}

// PollSwapStatus reads the swap's event log and maps it to a stage.
func (e *Engine) PollSwapStatus(ctx context.Context, swapUUID string) (swap.Status, error) {
	info, err := e.rpc.SwapStatus(ctx, swapUUID)
	if err != nil {
		return swap.Status{}, err
	}
	return StatusFromEvents(info.Events)
}

// engineError keeps the node's own message for the user.
func engineError(op string, err error) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return &swap.EngineError{Op: op, Message: rpcErr.Message, Err: err}
	}
	return swap.NewEngineError(op, err)
}
