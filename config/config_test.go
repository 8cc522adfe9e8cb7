package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
engine: mm2
target_ticker: arrr
poll_interval: 2s
mm2:
  userpass: secret
  requests_per_second: 2
relay:
  redis_addr: localhost:6379
assets:
  - ticker: btc
    name: Bitcoin
    balance: "0.5"
  - ticker: LTC
    balance: "12.25"
`

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, EngineSim, cfg.Engine)
	assert.Equal(t, "ARRR", cfg.TargetTicker)
	assert.Equal(t, 60*time.Second, cfg.QuoteTTL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.PollBackoffMax)
	assert.Equal(t, 30, cfg.PollMaxFailures)
	assert.Equal(t, "http://127.0.0.1:7783", cfg.MM2.URL)
	assert.Equal(t, "https://1click.chaindefuser.com", cfg.OneClick.BaseURL)
	assert.Equal(t, "250000", cfg.Sim.Rates["BTC"])
	assert.Equal(t, "Completed", cfg.Sim.Outcome)
	assert.False(t, cfg.Relay.Enabled())
	assert.Empty(t, cfg.Assets)
	assert.NoError(t, cfg.Validate())
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromViper(newViper(t, sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, EngineMM2, cfg.Engine)
	assert.Equal(t, "ARRR", cfg.TargetTicker)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, "secret", cfg.MM2.Userpass)
	assert.Equal(t, 2.0, cfg.MM2.RequestsPerSecond)
	assert.True(t, cfg.Relay.Enabled())
	assert.Equal(t, "swapflow:state", cfg.Relay.Channel)

	require.Len(t, cfg.Assets, 2)
	btc, ok := cfg.FindAsset("btc")
	require.True(t, ok)
	assert.Equal(t, "Bitcoin", btc.Name)
	assert.Equal(t, "0.5", btc.Balance.String())

	ltc, ok := cfg.FindAsset("LTC")
	require.True(t, ok)
	assert.Equal(t, "LTC", ltc.Name)

	_, ok = cfg.FindAsset("DOGE")
	assert.False(t, ok)
}

func TestInvalidAssetBalance(t *testing.T) {
	v := newViper(t, "assets:\n  - ticker: BTC\n    balance: lots\n")
	_, err := FromViper(v)
	assert.ErrorContains(t, err, "BTC")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown engine", func(c *Config) { c.Engine = "uniswap" }, "unknown engine"},
		{"mm2 without userpass", func(c *Config) { c.Engine = EngineMM2 }, "userpass"},
		{"oneclick without token", func(c *Config) { c.Engine = EngineOneClick }, "JWT token"},
		{"oneclick without recipient", func(c *Config) {
			c.Engine = EngineOneClick
			c.OneClick.JWTToken = "jwt"
		}, "recipient"},
		{"oneclick without chains", func(c *Config) {
			c.Engine = EngineOneClick
			c.OneClick.JWTToken = "jwt"
			c.OneClick.Recipient = "0x0000000000000000000000000000000000000001"
		}, "source_chain"},
		{"sim outcome not terminal", func(c *Config) { c.Sim.Outcome = "Negotiating" }, "sim.outcome"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"zero ttl", func(c *Config) { c.QuoteTTL = 0 }, "quote_ttl"},
		{"duplicate asset", func(c *Config) {
			c.Assets = append(c.Assets, c.Assets[0], c.Assets[0])
		}, "configured twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromViper(newViper(t, "assets:\n  - ticker: BTC\n"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
