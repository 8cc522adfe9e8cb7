package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapflow/pkg/engine/sim"
	"swapflow/pkg/flow"
	"swapflow/pkg/history"
	"swapflow/pkg/relay"
	"swapflow/pkg/swap"
)

type recordingBus struct {
	mu        sync.Mutex
	published [][]byte
	closed    int
}

func (b *recordingBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, payload)
	return nil
}

func (b *recordingBus) StoreLatest(ctx context.Context, key string, payload []byte) error {
	return nil
}

func (b *recordingBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func TestConfirmSwapAnswers(t *testing.T) {
	for input, want := range map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
	} {
		got := confirmSwap(context.Background(), bufio.NewReader(strings.NewReader(input)))
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestConfirmSwapInterrupted(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { done <- confirmSwap(ctx, bufio.NewReader(pr)) }()

	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("prompt did not return after cancellation")
	}
}

func TestObserversShutdownRecordsReceiptAndClosesRelay(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := sim.New("ARRR", time.Minute,
		sim.WithStageDuration(time.Millisecond),
		sim.WithRate("BTC", decimal.RequireFromString("250000")),
	)
	orch := flow.New(engine, flow.WithLogger(logger), flow.WithPollInterval(time.Millisecond))

	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)
	bus := &recordingBus{}
	obs := startObservers(orch, history.NewRecorder(store, "sim", logger), relay.New(bus, "swapflow:state", logger), bus, logger)

	orch.SelectAsset(swap.SourceAsset{Ticker: "BTC", Name: "Bitcoin", Balance: decimal.RequireFromString("1")})
	orch.SetAmount("0.01")
	orch.RequestQuote(context.Background())
	require.NoError(t, orch.ConfirmSwap())
	require.NoError(t, orch.ExecuteSwap(context.Background()))
	require.Eventually(t, func() bool {
		return orch.Snapshot().Step == flow.StepReceipt
	}, 5*time.Second, time.Millisecond)
	swapUUID := orch.Snapshot().Progress.SwapUUID

	obs.shutdown()

	rec, err := store.Get(swapUUID)
	require.NoError(t, err)
	assert.Equal(t, swap.StageCompleted, rec.Stage)
	assert.NotNil(t, rec.FinishedAt)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Equal(t, 1, bus.closed)
	require.NotEmpty(t, bus.published)
	var last relay.Message
	require.NoError(t, json.Unmarshal(bus.published[len(bus.published)-1], &last))
	assert.Equal(t, flow.StepReceipt, last.State.Step)
}
