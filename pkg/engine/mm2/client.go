package mm2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is a thin wrapper around the mm2 legacy RPC: every call is a POST of
// a flat JSON object carrying method and userpass next to the parameters.
type Client struct {
	url        string
	userpass   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientConfig configures the RPC client.
type ClientConfig struct {
	URL               string
	Userpass          string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewClient constructs a client targeting the supplied URL.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		url:        strings.TrimSpace(cfg.URL),
		userpass:   cfg.Userpass,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// RPCError is an error object returned by mm2.
type RPCError struct {
	Method  string
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("mm2 %s: %s", e.Method, e.Message)
}

// Order is one entry of an orderbook side.
type Order struct {
	Coin      string `json:"coin"`
	Address   string `json:"address"`
	Price     string `json:"price"`
	MaxVolume string `json:"maxvolume"`
	MinVolume string `json:"min_volume"`
	UUID      string `json:"uuid"`
}

// Orderbook holds both sides of a base/rel market.
type Orderbook struct {
	Base string  `json:"base"`
	Rel  string  `json:"rel"`
	Asks []Order `json:"asks"`
	Bids []Order `json:"bids"`
}

// MatchBy restricts a taker request to specific orders.
type MatchBy struct {
	Type string   `json:"type"`
	Data []string `json:"data"`
}

// BuyParams are the parameters of the buy method.
type BuyParams struct {
	Base    string   `json:"base"`
	Rel     string   `json:"rel"`
	Volume  string   `json:"volume"`
	Price   string   `json:"price"`
	MatchBy *MatchBy `json:"match_by,omitempty"`
}

// SwapResult is returned when a taker swap is started.
type SwapResult struct {
	UUID       string `json:"uuid"`
	Action     string `json:"action"`
	Base       string `json:"base"`
	BaseAmount string `json:"base_amount"`
	Rel        string `json:"rel"`
	RelAmount  string `json:"rel_amount"`
	Method     string `json:"method"`
}

// SwapEvent is one entry of a swap's event log.
type SwapEvent struct {
	Timestamp int64 `json:"timestamp"`
	Event     struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data,omitempty"`
	} `json:"event"`
}

// SwapInfo holds what my_swap_status reports about a swap.
type SwapInfo struct {
	UUID   string      `json:"uuid"`
	Type   string      `json:"type"`
	Events []SwapEvent `json:"events"`
	MyInfo *struct {
		MyCoin      string `json:"my_coin"`
		OtherCoin   string `json:"other_coin"`
		MyAmount    string `json:"my_amount"`
		OtherAmount string `json:"other_amount"`
		StartedAt   int64  `json:"started_at"`
	} `json:"my_info,omitempty"`
}

// EventTypes lists the event type names in order.
func (s SwapInfo) EventTypes() []string {
	out := make([]string, 0, len(s.Events))
	for _, ev := range s.Events {
		out = append(out, ev.Event.Type)
	}
	return out
}

// Version returns the mm2 build version; used as a health check.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp struct {
		Result string `json:"result"`
	}
	if err := c.call(ctx, "version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Result, nil
}

// EnabledCoins returns the tickers mm2 currently trades.
func (c *Client) EnabledCoins(ctx context.Context) ([]string, error) {
	var resp struct {
		Result []struct {
			Ticker string `json:"ticker"`
		} `json:"result"`
	}
	if err := c.call(ctx, "get_enabled_coins", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Result))
	for _, coin := range resp.Result {
		out = append(out, coin.Ticker)
	}
	return out, nil
}

// Orderbook returns the base/rel orderbook. Asks sell base for rel at a price
// expressed in rel per base.
func (c *Client) Orderbook(ctx context.Context, base, rel string) (*Orderbook, error) {
	var book Orderbook
	params := map[string]interface{}{"base": base, "rel": rel}
	if err := c.call(ctx, "orderbook", params, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// Buy starts a taker swap buying base with rel.
func (c *Client) Buy(ctx context.Context, p BuyParams) (*SwapResult, error) {
	var resp struct {
		Result SwapResult `json:"result"`
	}
	params := map[string]interface{}{
		"base":   p.Base,
		"rel":    p.Rel,
		"volume": p.Volume,
		"price":  p.Price,
	}
	if p.MatchBy != nil {
		params["match_by"] = p.MatchBy
	}
	if err := c.call(ctx, "buy", params, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// SwapStatus returns the event log of a swap.
func (c *Client) SwapStatus(ctx context.Context, uuid string) (*SwapInfo, error) {
	var resp struct {
		Result SwapInfo `json:"result"`
	}
	params := map[string]interface{}{"params": map[string]string{"uuid": uuid}}
	if err := c.call(ctx, "my_swap_status", params, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

func (c *Client) call(ctx context.Context, method string, params map[string]interface{}, out interface{}) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("mm2: client not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body := make(map[string]interface{}, len(params)+2)
	for k, v := range params {
		body[k] = v
	}
	body["method"] = method
	body["userpass"] = c.userpass

	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mm2 %s: read response: %w", method, err)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return &RPCError{Method: method, Message: envelope.Error}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mm2 %s: unexpected status %d", method, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("mm2 %s: decode response: %w", method, err)
	}
	return nil
}
