package sim

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapflow/pkg/swap"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestEngine(opts ...Option) (*Engine, *clock) {
	c := &clock{now: time.Date(2024, time.June, 7, 19, 15, 17, 0, time.UTC)}
	base := []Option{
		WithClock(c.Now),
		WithStageDuration(time.Second),
		WithRate("BTC", decimal.NewFromInt(10000)),
	}
	return New("arrr", time.Minute, append(base, opts...)...), c
}

func TestQuote(t *testing.T) {
	e, c := newTestEngine()
	q, err := e.GetQuote(context.Background(), "btc", "0.01")
	require.NoError(t, err)

	assert.Equal(t, "BTC", q.SourceTicker)
	assert.Equal(t, "ARRR", q.TargetTicker)
	assert.Equal(t, "100", q.TargetAmount)
	assert.Equal(t, "0.0001", q.Rate)
	assert.Equal(t, "0.00001287", q.Fee)
	assert.Equal(t, c.now.Add(time.Minute), q.ExpiresAt)
	_, err = uuid.Parse(q.OrderUUID)
	assert.NoError(t, err)
}

func TestQuoteUnknownCoin(t *testing.T) {
	e, _ := newTestEngine()
	_, err := e.GetQuote(context.Background(), "DOGE", "1")
	var engErr *swap.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "no ARRR orders available for DOGE", engErr.Message)
}

func TestSwapWalksThroughStages(t *testing.T) {
	e, c := newTestEngine()
	q, err := e.GetQuote(context.Background(), "BTC", "0.5")
	require.NoError(t, err)
	exec, err := e.ExecuteSwap(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, swap.StageInitiating, exec.Stage)

	var seen []swap.Stage
	for i := 0; i < 10; i++ {
		st, err := e.PollSwapStatus(context.Background(), exec.SwapUUID)
		require.NoError(t, err)
		seen = append(seen, st.Stage)
		c.now = c.now.Add(time.Second)
	}
	assert.Equal(t, []swap.Stage{
		swap.StageInitiating,
		swap.StageNegotiating,
		swap.StageSendingFee,
		swap.StageWaitingForMakerPayment,
		swap.StageValidatingMakerPayment,
		swap.StageSendingTakerPayment,
		swap.StageWaitingForCompletion,
		swap.StageCompleted,
		swap.StageCompleted,
		swap.StageCompleted,
	}, seen)
}

func TestFailingOutcome(t *testing.T) {
	e, c := newTestEngine(WithOutcome(swap.StageFailed))
	q, err := e.GetQuote(context.Background(), "BTC", "0.5")
	require.NoError(t, err)
	exec, err := e.ExecuteSwap(context.Background(), q)
	require.NoError(t, err)

	c.now = c.now.Add(time.Hour)
	st, err := e.PollSwapStatus(context.Background(), exec.SwapUUID)
	require.NoError(t, err)
	assert.Equal(t, swap.StageFailed, st.Stage)
	assert.NotEmpty(t, st.Error)
}

func TestExecuteRejectsExpiredOrUnknownOrders(t *testing.T) {
	e, c := newTestEngine()
	_, err := e.ExecuteSwap(context.Background(), swap.Quote{OrderUUID: "nope"})
	assert.Error(t, err)

	q, err := e.GetQuote(context.Background(), "BTC", "0.5")
	require.NoError(t, err)
	c.now = c.now.Add(2 * time.Minute)
	_, err = e.ExecuteSwap(context.Background(), q)
	assert.ErrorIs(t, err, swap.ErrQuoteExpired)
}

func TestOrdersAreSingleUse(t *testing.T) {
	e, _ := newTestEngine()
	q, err := e.GetQuote(context.Background(), "BTC", "0.5")
	require.NoError(t, err)
	_, err = e.ExecuteSwap(context.Background(), q)
	require.NoError(t, err)
	_, err = e.ExecuteSwap(context.Background(), q)
	assert.Error(t, err)
}
