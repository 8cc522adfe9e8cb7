package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		chain string
		addr  string
		ok    bool
	}{
		{"eth", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},
		{"ETH", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"base", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", false},
		{"arb", "0x1234", false},
		{"eth", "", false},
		{"sol", "11111111111111111111111111111111", true},
		{"solana", "So11111111111111111111111111111111111111112", true},
		{"sol", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false},
		{"near", "alice.near", true},
		{"near", "98793cd91a3f870fb126f66285808c7e094afcfc4eda8a970f6648cdf0dbd6de", true},
		{"near", "Alice.near", false},
		{"near", "a", false},
		{"zec", "t1Rv4exT7bqhZqi2j7xz8bUHDMxwosrjADU", true},
		{"btc", "bc1q with space", false},
	}
	for _, tt := range tests {
		t.Run(tt.chain+"/"+tt.addr, func(t *testing.T) {
			err := Validate(tt.chain, tt.addr)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIsEVM(t *testing.T) {
	assert.True(t, IsEVM("ETH"))
	assert.True(t, IsEVM("polygon"))
	assert.False(t, IsEVM("sol"))
	assert.False(t, IsEVM("zec"))
}
