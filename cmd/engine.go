package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"swapflow/config"
	"swapflow/pkg/engine/mm2"
	"swapflow/pkg/engine/oneclick"
	"swapflow/pkg/engine/sim"
	"swapflow/pkg/flow"
	"swapflow/pkg/swap"
)

// engines holds the configured swap engine plus the concrete adapters some
// commands need beyond the flow.Engine surface
type engines struct {
	flow.Engine

	name      string
	mm2       *mm2.Client
	oneClick  *oneclick.Client
	depositor *oneclick.Engine
}

func newEngines(cfg *config.Config, logger *slog.Logger) (*engines, error) {
	switch cfg.Engine {
	case config.EngineMM2:
		client := mm2.NewClient(mm2.ClientConfig{
			URL:               cfg.MM2.URL,
			Userpass:          cfg.MM2.Userpass,
			RequestsPerSecond: cfg.MM2.RequestsPerSecond,
		})
		return &engines{
			Engine: mm2.NewEngine(client, cfg.TargetTicker, cfg.QuoteTTL, logger),
			name:   cfg.Engine,
			mm2:    client,
		}, nil

	case config.EngineOneClick:
		client := oneclick.NewClient(cfg.OneClick.JWTToken, cfg.OneClick.BaseURL)
		eng, err := oneclick.New(client, oneclick.Config{
			TargetTicker: cfg.TargetTicker,
			SourceChain:  cfg.OneClick.SourceChain,
			DestChain:    cfg.OneClick.DestChain,
			Recipient:    cfg.OneClick.Recipient,
			RefundTo:     cfg.OneClick.RefundTo,
			QuoteTTL:     cfg.QuoteTTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("oneclick engine: %w", err)
		}
		return &engines{Engine: eng, name: cfg.Engine, oneClick: client, depositor: eng}, nil

	case config.EngineSim:
		outcome, err := swap.ParseStage(cfg.Sim.Outcome)
		if err != nil {
			return nil, fmt.Errorf("sim engine: %w", err)
		}
		opts := []sim.Option{
			sim.WithStageDuration(cfg.Sim.StageDuration),
			sim.WithOutcome(outcome),
		}
		for ticker, raw := range cfg.Sim.Rates {
			r, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("sim engine: invalid rate for %s: %w", ticker, err)
			}
			opts = append(opts, sim.WithRate(ticker, r))
		}
		return &engines{Engine: sim.New(cfg.TargetTicker, cfg.QuoteTTL, opts...), name: cfg.Engine}, nil
	}
	return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
}

func newOrchestrator(cfg *config.Config, eng flow.Engine, logger *slog.Logger) *flow.Orchestrator {
	return flow.New(eng,
		flow.WithLogger(logger),
		flow.WithPollInterval(cfg.PollInterval),
		flow.WithBackoffMax(cfg.PollBackoffMax),
		flow.WithMaxPollFailures(cfg.PollMaxFailures),
	)
}
