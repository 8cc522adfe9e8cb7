package mm2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapflow/pkg/swap"
)

// fakeNode answers mm2 legacy RPC calls from canned method responses.
type fakeNode struct {
	t         *testing.T
	mu        sync.Mutex
	responses map[string]string
	requests  []map[string]interface{}
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	require.NoError(n.t, json.NewDecoder(r.Body).Decode(&body))

	n.mu.Lock()
	n.requests = append(n.requests, body)
	resp, ok := n.responses[body["method"].(string)]
	n.mu.Unlock()

	if body["userpass"] != "secret" {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Userpass is invalid!"}`))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"No such method"}`))
		return
	}
	_, _ = w.Write([]byte(resp))
}

func (n *fakeNode) last(method string) map[string]interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.requests) - 1; i >= 0; i-- {
		if n.requests[i]["method"] == method {
			return n.requests[i]
		}
	}
	return nil
}

const orderbookJSON = `{
  "base": "ARRR", "rel": "BTC",
  "asks": [
    {"coin": "ARRR", "address": "RMaker1", "price": "0.00012", "maxvolume": "5000", "min_volume": "1", "uuid": "order-c"},
    {"coin": "ARRR", "address": "RMaker2", "price": "0.00009", "maxvolume": "50", "min_volume": "1", "uuid": "order-b"},
    {"coin": "ARRR", "address": "RMaker3", "price": "0.0001", "maxvolume": "1000", "min_volume": "1", "uuid": "order-a"},
    {"coin": "ARRR", "address": "RMaker4", "price": "0", "maxvolume": "1000", "min_volume": "1", "uuid": "order-zero"}
  ],
  "bids": []
}`

var testNow = time.Date(2024, time.June, 7, 19, 15, 17, 0, time.UTC)

func newTestEngine(t *testing.T, responses map[string]string, userpass string) (*Engine, *fakeNode) {
	t.Helper()
	node := &fakeNode{t: t, responses: responses}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{URL: srv.URL, Userpass: userpass})
	e := NewEngine(client, "arrr", 90*time.Second, nil)
	e.now = func() time.Time { return testNow }
	return e, node
}

func TestGetQuotePicksCheapestFillableAsk(t *testing.T) {
	e, node := newTestEngine(t, map[string]string{"orderbook": orderbookJSON}, "secret")

	q, err := e.GetQuote(context.Background(), "btc", "0.01")
	require.NoError(t, err)

	assert.Equal(t, "BTC", q.SourceTicker)
	assert.Equal(t, "ARRR", q.TargetTicker)
	assert.Equal(t, "0.01", q.SourceAmount)
	assert.Equal(t, "100", q.TargetAmount)
	assert.Equal(t, "0.0001", q.Rate)
	assert.Equal(t, "0.00001287", q.Fee)
	assert.Equal(t, "order-a", q.OrderUUID)
	assert.Equal(t, testNow.Add(90*time.Second), q.ExpiresAt)

	req := node.last("orderbook")
	require.NotNil(t, req)
	assert.Equal(t, "ARRR", req["base"])
	assert.Equal(t, "BTC", req["rel"])
}

func TestGetQuoteNoOrders(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"orderbook": `{"asks":[],"bids":[]}`}, "secret")

	_, err := e.GetQuote(context.Background(), "BTC", "0.01")
	var engErr *swap.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Contains(t, engErr.Message, "no ARRR orders")
}

func TestGetQuoteInvalidAmount(t *testing.T) {
	e, node := newTestEngine(t, map[string]string{"orderbook": orderbookJSON}, "secret")

	for _, amount := range []string{"", "abc", "0", "-1"} {
		_, err := e.GetQuote(context.Background(), "BTC", amount)
		var engErr *swap.EngineError
		require.ErrorAs(t, err, &engErr, amount)
	}
	assert.Nil(t, node.last("orderbook"))
}

func TestRPCErrorMessageIsPassedThrough(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"orderbook": orderbookJSON}, "wrong")

	_, err := e.GetQuote(context.Background(), "BTC", "0.01")
	var engErr *swap.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "Userpass is invalid!", engErr.Message)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "orderbook", rpcErr.Method)
}

func TestExecuteSwapMatchesQuotedOrder(t *testing.T) {
	e, node := newTestEngine(t, map[string]string{
		"buy": `{"result":{"uuid":"swap-42","action":"Buy","base":"ARRR","base_amount":"100","rel":"BTC","rel_amount":"0.01","method":"request"}}`,
	}, "secret")

	q := swap.Quote{
		SourceTicker: "BTC",
		TargetTicker: "ARRR",
		SourceAmount: "0.01",
		TargetAmount: "100",
		Rate:         "0.0001",
		OrderUUID:    "order-a",
	}
	exec, err := e.ExecuteSwap(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "swap-42", exec.SwapUUID)
	assert.Equal(t, swap.StageInitiating, exec.Stage)

	req := node.last("buy")
	require.NotNil(t, req)
	assert.Equal(t, "ARRR", req["base"])
	assert.Equal(t, "BTC", req["rel"])
	assert.Equal(t, "100", req["volume"])
	assert.Equal(t, "0.0001", req["price"])
	assert.Equal(t, map[string]interface{}{
		"type": "Orders",
		"data": []interface{}{"order-a"},
	}, req["match_by"])
}

func TestPollSwapStatus(t *testing.T) {
	e, node := newTestEngine(t, map[string]string{
		"my_swap_status": `{"result":{"uuid":"swap-42","type":"Taker","events":[
			{"timestamp":1,"event":{"type":"Started","data":{}}},
			{"timestamp":2,"event":{"type":"Negotiated","data":{}}},
			{"timestamp":3,"event":{"type":"TakerFeeSent","data":{}}}
		]}}`,
	}, "secret")

	st, err := e.PollSwapStatus(context.Background(), "swap-42")
	require.NoError(t, err)
	assert.Equal(t, swap.StageSendingFee, st.Stage)

	req := node.last("my_swap_status")
	assert.Equal(t, map[string]interface{}{"uuid": "swap-42"}, req["params"])
}

func TestPollSwapStatusTransportError(t *testing.T) {
	client := NewClient(ClientConfig{URL: "http://127.0.0.1:1", Userpass: "secret", Timeout: time.Second})
	e := NewEngine(client, "ARRR", time.Minute, nil)

	_, err := e.PollSwapStatus(context.Background(), "swap-42")
	require.Error(t, err)
	assert.NotErrorIs(t, err, swap.ErrUnknownStage)
}

func TestClientHonoursContext(t *testing.T) {
	client := NewClient(ClientConfig{URL: "http://127.0.0.1:1", Userpass: "secret", RequestsPerSecond: 0.001})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Version(ctx)
	assert.Error(t, err)
}

func TestVersionAndEnabledCoins(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"version":           `{"result":"2.1.0-beta_abc"}`,
		"get_enabled_coins": `{"result":[{"ticker":"BTC","address":"1x"},{"ticker":"ARRR","address":"zs1"}]}`,
	}, "secret")
	client := e.rpc.(*Client)

	v, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.1.0-beta_abc", v)

	coins, err := client.EnabledCoins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ARRR"}, coins)
}
