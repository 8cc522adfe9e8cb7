package oneclick

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapflow/pkg/swap"
)

type fakeAPI struct {
	quote    DepositQuote
	quoteErr error
	params   QuoteParams
	statuses map[string]string
	statErr  error
}

func (f *fakeAPI) Quote(ctx context.Context, p QuoteParams) (DepositQuote, error) {
	f.params = p
	return f.quote, f.quoteErr
}

func (f *fakeAPI) Status(ctx context.Context, depositAddress string) (ExecutionStatus, error) {
	if f.statErr != nil {
		return ExecutionStatus{}, f.statErr
	}
	st, ok := f.statuses[depositAddress]
	if !ok {
		return ExecutionStatus{}, errors.New("API error (status 404): deposit address not found")
	}
	return ExecutionStatus{Status: st}, nil
}

const (
	recipient = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	deposit   = "0x0000000000000000000000000000000000000abc"
)

var testNow = time.Date(2024, time.June, 7, 19, 15, 17, 0, time.UTC)

func newTestEngine(t *testing.T, api *fakeAPI) *Engine {
	t.Helper()
	e, err := New(api, Config{
		TargetTicker: "USDC",
		SourceChain:  "btc",
		DestChain:    "eth",
		Recipient:    recipient,
		QuoteTTL:     2 * time.Minute,
	}, nil)
	require.NoError(t, err)
	e.now = func() time.Time { return testNow }
	return e
}

func TestNewRejectsBadRecipient(t *testing.T) {
	_, err := New(&fakeAPI{}, Config{DestChain: "eth", Recipient: "0x1234"}, nil)
	assert.ErrorContains(t, err, "recipient")

	_, err = New(&fakeAPI{}, Config{DestChain: "eth", Recipient: recipient, SourceChain: "sol", RefundTo: "0xnope"}, nil)
	assert.ErrorContains(t, err, "refund address")
}

func TestGetQuote(t *testing.T) {
	api := &fakeAPI{quote: DepositQuote{
		DepositAddress: deposit,
		AmountIn:       "0.01",
		AmountOut:      "650.5",
		TimeEstimate:   90 * time.Second,
	}}
	e := newTestEngine(t, api)

	q, err := e.GetQuote(context.Background(), "btc", "0.01")
	require.NoError(t, err)

	assert.Equal(t, "BTC", q.SourceTicker)
	assert.Equal(t, "USDC", q.TargetTicker)
	assert.Equal(t, "0.01", q.SourceAmount)
	assert.Equal(t, "650.5", q.TargetAmount)
	assert.Equal(t, "65050", q.Rate)
	assert.Equal(t, deposit, q.OrderUUID)
	assert.Equal(t, testNow.Add(2*time.Minute), q.ExpiresAt)

	assert.Equal(t, "btc", api.params.SourceChain)
	assert.Equal(t, "USDC", api.params.DestSymbol)
	assert.Equal(t, q.ExpiresAt, api.params.Deadline)

	dq, ok := e.Deposit(q.OrderUUID)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, dq.TimeEstimate)
}

func TestGetQuoteError(t *testing.T) {
	api := &fakeAPI{quoteErr: errors.New("API error (status 400): amount too low")}
	e := newTestEngine(t, api)

	_, err := e.GetQuote(context.Background(), "BTC", "0.00001")
	var engErr *swap.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "API error (status 400): amount too low", engErr.Message)
}

func TestExecuteSwap(t *testing.T) {
	api := &fakeAPI{
		quote:    DepositQuote{DepositAddress: deposit, AmountOut: "1"},
		statuses: map[string]string{deposit: "PENDING_DEPOSIT"},
	}
	e := newTestEngine(t, api)

	_, err := e.ExecuteSwap(context.Background(), swap.Quote{OrderUUID: deposit})
	assert.Error(t, err, "unquoted deposit address")

	q, err := e.GetQuote(context.Background(), "BTC", "0.01")
	require.NoError(t, err)
	exec, err := e.ExecuteSwap(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, deposit, exec.SwapUUID)
	assert.Equal(t, swap.StageInitiating, exec.Stage)
}

func TestPollSwapStatus(t *testing.T) {
	api := &fakeAPI{statuses: map[string]string{deposit: "PROCESSING"}}
	e := newTestEngine(t, api)

	st, err := e.PollSwapStatus(context.Background(), deposit)
	require.NoError(t, err)
	assert.Equal(t, swap.StageWaitingForCompletion, st.Stage)

	api.statuses[deposit] = "FAILED"
	st, err = e.PollSwapStatus(context.Background(), deposit)
	require.NoError(t, err)
	assert.Equal(t, swap.StageFailed, st.Stage)
	assert.NotEmpty(t, st.Error)

	api.statuses[deposit] = "TELEPORTING"
	_, err = e.PollSwapStatus(context.Background(), deposit)
	assert.ErrorIs(t, err, swap.ErrUnknownStage)
}

func TestMapStatus(t *testing.T) {
	tests := map[string]swap.Stage{
		"PENDING_DEPOSIT":    swap.StageInitiating,
		"KNOWN_DEPOSIT_TX":   swap.StageSendingTakerPayment,
		"INCOMPLETE_DEPOSIT": swap.StageSendingTakerPayment,
		"processing":         swap.StageWaitingForCompletion,
		"SUCCESS":            swap.StageCompleted,
		"REFUNDED":           swap.StageRefunded,
		"FAILED":             swap.StageFailed,
	}
	for raw, want := range tests {
		got, err := MapStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := MapStatus("")
	assert.ErrorIs(t, err, swap.ErrUnknownStage)
}

func TestToSmallestUnit(t *testing.T) {
	got, err := ToSmallestUnit("0.01", 8)
	require.NoError(t, err)
	assert.Equal(t, "1000000", got)

	got, err = ToSmallestUnit("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", got)

	_, err = ToSmallestUnit("0.000000001", 8)
	assert.ErrorContains(t, err, "decimal places")

	_, err = ToSmallestUnit("-1", 8)
	assert.Error(t, err)

	_, err = ToSmallestUnit("abc", 8)
	assert.Error(t, err)
}

func TestFindToken(t *testing.T) {
	tokens := []Token{
		{Symbol: "USDC", Blockchain: "sol", AssetID: "nep141:sol-usdc"},
		{Symbol: "USDC", Blockchain: "eth", AssetID: "nep141:eth-usdc"},
		{Symbol: "BTC", Blockchain: "btc", AssetID: "nep141:btc"},
	}

	tok, err := FindToken(tokens, "usdc", "ETH")
	require.NoError(t, err)
	assert.Equal(t, "nep141:eth-usdc", tok.AssetID)

	tok, err = FindToken(tokens, "usdc", "")
	require.NoError(t, err)
	assert.Equal(t, "nep141:sol-usdc", tok.AssetID)

	_, err = FindToken(tokens, "BTC", "eth")
	assert.ErrorContains(t, err, "not found on chain")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "amount too low", errorMessage([]byte(`{"message":"amount too low"}`)))
	assert.Equal(t, "[bad recipient]", errorMessage([]byte(`{"errors":["bad recipient"]}`)))
	assert.Equal(t, "gateway timeout", errorMessage([]byte("gateway timeout\n")))
}
