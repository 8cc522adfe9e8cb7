package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapflow/pkg/types"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		in   string
		want types.SwapRequest
	}{
		{"swap 0.01 btc", types.SwapRequest{Amount: "0.01", SourceToken: "BTC"}},
		{"  1.5   LTC for arrr ", types.SwapRequest{Amount: "1.5", SourceToken: "LTC", DestToken: "ARRR"}},
		{"100 KMD to pirate", types.SwapRequest{Amount: "100", SourceToken: "KMD", DestToken: "ARRR"}},
		{".5 wbtc", types.SwapRequest{Amount: ".5", SourceToken: "BTC"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSwapCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}

	for _, bad := range []string{"", "swap", "BTC 0.01", "0.01", "1,5 BTC", "-1 BTC", "1 BTC into ARRR"} {
		_, err := ParseSwapCommand(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateSwapRequest(t *testing.T) {
	assert.NoError(t, ValidateSwapRequest(&types.SwapRequest{Amount: "1", SourceToken: "BTC"}))
	assert.Error(t, ValidateSwapRequest(&types.SwapRequest{SourceToken: "BTC"}))
	assert.Error(t, ValidateSwapRequest(&types.SwapRequest{Amount: "1"}))
	assert.Error(t, ValidateSwapRequest(&types.SwapRequest{Amount: "1", SourceToken: "ARRR", DestToken: "ARRR"}))
}

func TestValidateAmount(t *testing.T) {
	balance := decimal.RequireFromString("1.0")

	d, err := ValidateAmount("0.01", balance)
	require.NoError(t, err)
	assert.Equal(t, "0.01", d.String())

	_, err = ValidateAmount("1", balance)
	assert.NoError(t, err, "spending the whole balance is allowed")

	_, err = ValidateAmount("1.00000001", balance)
	assert.ErrorContains(t, err, "exceeds balance")

	_, err = ValidateAmount("0", balance)
	assert.Error(t, err)

	_, err = ValidateAmount("ten", balance)
	assert.Error(t, err)
}
