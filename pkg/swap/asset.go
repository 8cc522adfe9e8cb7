// Package swap holds the value types shared by the swap flow and the engine
// adapters: assets, quotes, stages and progress.
package swap

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SourceAsset is a coin the user can spend. It is supplied by configuration
// and never modified by the flow.
type SourceAsset struct {
	Ticker  string          `json:"ticker" mapstructure:"ticker"`
	Name    string          `json:"name" mapstructure:"name"`
	Icon    string          `json:"icon,omitempty" mapstructure:"icon"`
	Balance decimal.Decimal `json:"balance" mapstructure:"-"`
}

// NewSourceAsset builds an asset from its textual balance.
func NewSourceAsset(ticker, name, icon, balance string) (SourceAsset, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return SourceAsset{}, fmt.Errorf("asset ticker is required")
	}
	bal := decimal.Zero
	if strings.TrimSpace(balance) != "" {
		var err error
		bal, err = decimal.NewFromString(balance)
		if err != nil {
			return SourceAsset{}, fmt.Errorf("invalid balance for %s: %w", ticker, err)
		}
	}
	if bal.IsNegative() {
		return SourceAsset{}, fmt.Errorf("balance for %s must not be negative", ticker)
	}
	if name == "" {
		name = ticker
	}
	return SourceAsset{Ticker: ticker, Name: name, Icon: icon, Balance: bal}, nil
}
