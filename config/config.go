package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"swapflow/pkg/swap"
)

const (
	EngineMM2      = "mm2"
	EngineOneClick = "oneclick"
	EngineSim      = "sim"
)

// Config holds the application configuration
type Config struct {
	Engine          string
	TargetTicker    string
	QuoteTTL        time.Duration
	PollInterval    time.Duration
	PollBackoffMax  time.Duration
	PollMaxFailures int
	HistoryPath     string
	LogLevel        string

	MM2      MM2Config
	OneClick OneClickConfig
	Sim      SimConfig
	Relay    RelayConfig
	Assets   []swap.SourceAsset
}

// MM2Config configures the AtomicDEX (mm2) JSON-RPC engine
type MM2Config struct {
	URL               string
	Userpass          string
	RequestsPerSecond float64
}

// OneClickConfig configures the NEAR Intents 1Click engine
type OneClickConfig struct {
	JWTToken    string
	BaseURL     string
	Recipient   string
	RefundTo    string
	SourceChain string
	DestChain   string
}

// SimConfig configures the simulated engine
type SimConfig struct {
	StageDuration time.Duration
	Outcome       string
	Rates         map[string]string // target units per source unit, by ticker
}

// RelayConfig configures the optional redis snapshot relay
type RelayConfig struct {
	RedisAddr     string
	RedisPassword string
	Channel       string
}

// Enabled reports whether snapshots should be relayed
func (r RelayConfig) Enabled() bool {
	return r.RedisAddr != ""
}

type assetEntry struct {
	Ticker  string `mapstructure:"ticker"`
	Name    string `mapstructure:"name"`
	Icon    string `mapstructure:"icon"`
	Balance string `mapstructure:"balance"`
}

var globalConfig *Config

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine", EngineSim)
	v.SetDefault("target_ticker", "ARRR")
	v.SetDefault("quote_ttl", 60*time.Second)
	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("poll_backoff_max", 60*time.Second)
	v.SetDefault("poll_max_failures", 30)
	v.SetDefault("history_path", "")
	v.SetDefault("log_level", "warn")

	v.SetDefault("mm2.url", "http://127.0.0.1:7783")
	v.SetDefault("mm2.requests_per_second", 5.0)

	v.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")

	v.SetDefault("sim.stage_duration", 3*time.Second)
	v.SetDefault("sim.outcome", "Completed")
	v.SetDefault("sim.rates", map[string]string{"BTC": "250000", "LTC": "400", "KMD": "1.5"})

	v.SetDefault("relay.channel", "swapflow:state")
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.GetViper()
	v.SetConfigName(".swapflow")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	SetDefaults(v)

	// Read from environment variables, e.g. SWAPFLOW_MM2_USERPASS
	v.SetEnvPrefix("SWAPFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// FromViper builds a Config from the values held by v
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Engine:          strings.ToLower(v.GetString("engine")),
		TargetTicker:    strings.ToUpper(v.GetString("target_ticker")),
		QuoteTTL:        v.GetDuration("quote_ttl"),
		PollInterval:    v.GetDuration("poll_interval"),
		PollBackoffMax:  v.GetDuration("poll_backoff_max"),
		PollMaxFailures: v.GetInt("poll_max_failures"),
		HistoryPath:     v.GetString("history_path"),
		LogLevel:        v.GetString("log_level"),
		MM2: MM2Config{
			URL:               v.GetString("mm2.url"),
			Userpass:          v.GetString("mm2.userpass"),
			RequestsPerSecond: v.GetFloat64("mm2.requests_per_second"),
		},
		OneClick: OneClickConfig{
			JWTToken:    v.GetString("oneclick.jwt_token"),
			BaseURL:     v.GetString("oneclick.base_url"),
			Recipient:   v.GetString("oneclick.recipient"),
			RefundTo:    v.GetString("oneclick.refund_to"),
			SourceChain: v.GetString("oneclick.source_chain"),
			DestChain:   v.GetString("oneclick.dest_chain"),
		},
		Sim: SimConfig{
			StageDuration: v.GetDuration("sim.stage_duration"),
			Outcome:       v.GetString("sim.outcome"),
			Rates:         make(map[string]string),
		},
		Relay: RelayConfig{
			RedisAddr:     v.GetString("relay.redis_addr"),
			RedisPassword: v.GetString("relay.redis_password"),
			Channel:       v.GetString("relay.channel"),
		},
	}

	for ticker, r := range v.GetStringMapString("sim.rates") {
		cfg.Sim.Rates[strings.ToUpper(ticker)] = r
	}

	var entries []assetEntry
	if err := v.UnmarshalKey("assets", &entries); err != nil {
		return nil, fmt.Errorf("failed to parse assets: %w", err)
	}
	for _, e := range entries {
		asset, err := swap.NewSourceAsset(e.Ticker, e.Name, e.Icon, e.Balance)
		if err != nil {
			return nil, fmt.Errorf("invalid asset: %w", err)
		}
		cfg.Assets = append(cfg.Assets, asset)
	}

	return cfg, nil
}

// Validate checks the settings the selected engine depends on
func (c *Config) Validate() error {
	if c.QuoteTTL <= 0 {
		return fmt.Errorf("quote_ttl must be positive, got %s", c.QuoteTTL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.PollMaxFailures <= 0 {
		return fmt.Errorf("poll_max_failures must be positive, got %d", c.PollMaxFailures)
	}
	if c.TargetTicker == "" {
		return fmt.Errorf("target_ticker is required")
	}

	switch c.Engine {
	case EngineSim:
		stage, err := swap.ParseStage(c.Sim.Outcome)
		if err != nil || !stage.IsTerminal() {
			return fmt.Errorf("sim.outcome must be Completed, Failed or Refunded, got %q", c.Sim.Outcome)
		}
	case EngineMM2:
		if c.MM2.URL == "" {
			return fmt.Errorf("mm2.url is required for the mm2 engine")
		}
		if c.MM2.Userpass == "" {
			return fmt.Errorf("mm2 userpass not found. Please set SWAPFLOW_MM2_USERPASS or add mm2.userpass to .swapflow.yaml")
		}
	case EngineOneClick:
		if c.OneClick.JWTToken == "" {
			return fmt.Errorf("JWT token not found. Please set SWAPFLOW_ONECLICK_JWT_TOKEN or add oneclick.jwt_token to .swapflow.yaml")
		}
		if c.OneClick.Recipient == "" {
			return fmt.Errorf("oneclick.recipient is required: the address that receives %s", c.TargetTicker)
		}
		if c.OneClick.SourceChain == "" || c.OneClick.DestChain == "" {
			return fmt.Errorf("oneclick.source_chain and oneclick.dest_chain are required")
		}
	default:
		return fmt.Errorf("unknown engine %q (expected %s, %s or %s)", c.Engine, EngineMM2, EngineOneClick, EngineSim)
	}

	seen := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if seen[a.Ticker] {
			return fmt.Errorf("asset %s is configured twice", a.Ticker)
		}
		seen[a.Ticker] = true
	}
	return nil
}

// FindAsset returns the configured asset with the given ticker
func (c *Config) FindAsset(ticker string) (swap.SourceAsset, bool) {
	ticker = strings.ToUpper(ticker)
	for _, a := range c.Assets {
		if a.Ticker == ticker {
			return a, true
		}
	}
	return swap.SourceAsset{}, false
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
