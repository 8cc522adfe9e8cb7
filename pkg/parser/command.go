package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"swapflow/pkg/types"
)

var commandPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)\s+([A-Z0-9]+)(?:\s+(?:TO|FOR)\s+([A-Z0-9]+))?$`)

// ParseSwapCommand parses a swap command
// Examples:
//   - "swap 0.01 BTC"
//   - "1.5 LTC for ARRR"
//   - "100 KMD to ARRR"
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	// Normalize the command
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")

	// Remove the word "SWAP" if present at the beginning
	command = strings.TrimPrefix(command, "SWAP ")

	matches := commandPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <coin> [to <coin>]' (e.g., 'swap 0.01 BTC')")
	}

	return &types.SwapRequest{
		Amount:      matches[1],
		SourceToken: NormalizeTokenSymbol(matches[2]),
		DestToken:   NormalizeTokenSymbol(matches[3]),
	}, nil
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if req.DestToken != "" && req.DestToken == req.SourceToken {
		return fmt.Errorf("cannot swap %s for itself", req.SourceToken)
	}
	return nil
}

// ValidateAmount checks amount against the spendable balance
func ValidateAmount(amount string, balance decimal.Decimal) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", amount)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be greater than zero")
	}
	if d.GreaterThan(balance) {
		return decimal.Zero, fmt.Errorf("amount %s exceeds balance %s", d, balance)
	}
	return d, nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"WBTC":   "BTC",
		"PIRATE": "ARRR",
		"KOMODO": "KMD",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
