package oneclick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/shopspring/decimal"
)

// Token is a 1Click supported asset
type Token struct {
	Symbol          string `json:"symbol"`
	Blockchain      string `json:"blockchain"`
	AssetID         string `json:"asset_id"`
	ContractAddress string `json:"contract_address,omitempty"`
	Decimals        int    `json:"decimals"`
}

// QuoteParams describes an exact-input quote request
type QuoteParams struct {
	SourceSymbol string
	SourceChain  string
	DestSymbol   string
	DestChain    string
	Amount       string // human readable, e.g. "0.01"
	Recipient    string
	RefundTo     string
	Deadline     time.Time
}

// slippageTolerance is expressed in basis points (1%)
const slippageTolerance = 100

// DepositQuote is a firm quote: funds sent to DepositAddress before the
// deadline are swapped.
type DepositQuote struct {
	DepositAddress string
	DepositMemo    string
	AmountIn       string
	AmountOut      string
	TimeEstimate   time.Duration
}

// ExecutionStatus is the 1Click view of a swap
type ExecutionStatus struct {
	Status        string
	UpdatedAt     time.Time
	AmountOut     string
	DepositTxs    []string
	WithdrawalTxs []string
}

// Client wraps the 1Click SDK
type Client struct {
	client *oneclick.APIClient
	ctx    context.Context
}

// NewClient creates a new 1Click API client
func NewClient(jwtToken, baseURL string) *Client {
	config := oneclick.NewConfiguration()
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: baseURL}}
	}

	// Authenticated base context; request contexts inherit the token from it.
	ctx := context.WithValue(context.Background(), oneclick.ContextAccessToken, jwtToken)

	return &Client{
		client: oneclick.NewAPIClient(config),
		ctx:    ctx,
	}
}

// withAuth carries the access token over to a caller supplied context
func (c *Client) withAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.ctx.Value(oneclick.ContextAccessToken))
}

// Tokens retrieves all supported tokens
func (c *Client) Tokens(ctx context.Context) ([]Token, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.withAuth(ctx)).Execute()
	if err != nil {
		return nil, apiError("get tokens", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	tokens := make([]Token, 0, len(resp))
	for _, t := range resp {
		tokens = append(tokens, Token{
			Symbol:          t.GetSymbol(),
			Blockchain:      t.GetBlockchain(),
			AssetID:         t.GetAssetId(),
			ContractAddress: t.GetContractAddress(),
			Decimals:        int(t.GetDecimals()),
		})
	}
	return tokens, nil
}

// FindToken looks a token up by symbol on chain, or on any chain when
// chain is empty
func FindToken(tokens []Token, symbol, chain string) (Token, error) {
	symbol = strings.ToUpper(symbol)
	chain = strings.ToLower(chain)

	for _, token := range tokens {
		if strings.ToUpper(token.Symbol) != symbol {
			continue
		}
		if chain == "" || strings.ToLower(token.Blockchain) == chain {
			return token, nil
		}
	}

	if chain != "" {
		return Token{}, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chain)
	}
	return Token{}, fmt.Errorf("token '%s' not found", symbol)
}

// ToSmallestUnit converts a human readable amount to the token's base unit
func ToSmallestUnit(amount string, decimals int) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount: %w", err)
	}
	if !d.IsPositive() {
		return "", fmt.Errorf("amount must be positive, got %s", amount)
	}
	base := d.Shift(int32(decimals))
	if !base.Equal(base.Truncate(0)) {
		return "", fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	return base.String(), nil
}

// Quote requests a firm exact-input quote with a deposit address
func (c *Client) Quote(ctx context.Context, p QuoteParams) (DepositQuote, error) {
	tokens, err := c.Tokens(ctx)
	if err != nil {
		return DepositQuote{}, err
	}
	sourceToken, err := FindToken(tokens, p.SourceSymbol, p.SourceChain)
	if err != nil {
		return DepositQuote{}, fmt.Errorf("source token error: %w", err)
	}
	destToken, err := FindToken(tokens, p.DestSymbol, p.DestChain)
	if err != nil {
		return DepositQuote{}, fmt.Errorf("destination token error: %w", err)
	}

	amount, err := ToSmallestUnit(p.Amount, sourceToken.Decimals)
	if err != nil {
		return DepositQuote{}, err
	}

	refundTo := p.RefundTo
	if refundTo == "" {
		refundTo = p.Recipient
	}

	quoteReq := oneclick.NewQuoteRequest(
		false,               // dry: false to get a real deposit address
		"EXACT_INPUT",       // swapType
		slippageTolerance,   // slippageTolerance
		sourceToken.AssetID, // originAsset
		"ORIGIN_CHAIN",      // depositType
		destToken.AssetID,   // destinationAsset
		amount,              // amount in smallest unit
		refundTo,            // refundTo
		"ORIGIN_CHAIN",      // refundType
		p.Recipient,         // recipient
		"DESTINATION_CHAIN", // recipientType
		p.Deadline,          // deadline
	)

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.withAuth(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return DepositQuote{}, apiError("get quote", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return DepositQuote{}, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return DepositQuote{}, fmt.Errorf("empty quote response")
	}

	q := resp.GetQuote()
	out := DepositQuote{
		DepositAddress: q.GetDepositAddress(),
		AmountIn:       q.GetAmountInFormatted(),
		AmountOut:      q.GetAmountOutFormatted(),
		TimeEstimate:   time.Duration(float64(q.GetTimeEstimate()) * float64(time.Second)),
	}
	if q.HasDepositMemo() {
		out.DepositMemo = q.GetDepositMemo()
	}
	if out.DepositAddress == "" {
		return DepositQuote{}, fmt.Errorf("quote carries no deposit address")
	}
	return out, nil
}

// Status checks the execution status of the swap behind depositAddress
func (c *Client) Status(ctx context.Context, depositAddress string) (ExecutionStatus, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(c.withAuth(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return ExecutionStatus{}, apiError("get status", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return ExecutionStatus{}, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	st := ExecutionStatus{
		Status:    resp.GetStatus(),
		UpdatedAt: resp.GetUpdatedAt(),
	}
	details := resp.GetSwapDetails()
	if details.HasAmountOutFormatted() {
		st.AmountOut = details.GetAmountOutFormatted()
	}
	for _, tx := range details.GetOriginChainTxHashes() {
		if h := tx.GetHash(); h != "" {
			st.DepositTxs = append(st.DepositTxs, h)
		}
	}
	for _, tx := range details.GetDestinationChainTxHashes() {
		if h := tx.GetHash(); h != "" {
			st.WithdrawalTxs = append(st.WithdrawalTxs, h)
		}
	}
	return st, nil
}

// SubmitDepositTx notifies 1Click of the deposit transaction hash, which
// speeds up deposit detection
func (c *Client) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := c.client.OneClickAPI.SubmitDepositTx(c.withAuth(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return apiError("submit deposit", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	return nil
}

// apiError extracts the server's message from a failed response when there is one
func apiError(op string, httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer httpResp.Body.Close()

	bodyBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(bodyBytes) == 0 {
		return fmt.Errorf("failed to %s (status: %d): %w", op, httpResp.StatusCode, err)
	}
	return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, errorMessage(bodyBytes))
}

func errorMessage(body []byte) string {
	var errorResp map[string]interface{}
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if message, ok := errorResp["message"].(string); ok {
			return message
		}
		if errors, ok := errorResp["errors"]; ok {
			return fmt.Sprintf("%v", errors)
		}
	}
	return strings.TrimSpace(string(body))
}
