package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swapflow/config"
	"swapflow/pkg/engine/oneclick"
)

var (
	remoteAssets bool
	filterChain  string
	filterSymbol string
)

var assetsCmd = &cobra.Command{
	Use:     "assets",
	Aliases: []string{"coins", "ls"},
	Short:   "List the coins you can swap",
	Long: `List the source coins configured in .swapflow.yaml with their balances.

With --remote the configured engine is asked which coins it supports instead.

Examples:
  swapflow assets
  swapflow assets --remote
  swapflow assets --remote --chain btc --symbol BTC`,
	Run: runListAssets,
}

func init() {
	rootCmd.AddCommand(assetsCmd)

	assetsCmd.Flags().BoolVar(&remoteAssets, "remote", false, "List coins supported by the engine")
	assetsCmd.Flags().StringVar(&filterChain, "chain", "", "Filter remote tokens by blockchain (oneclick)")
	assetsCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter remote tokens by symbol")
}

func runListAssets(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg, logger := loadConfig(cmd)

	if !remoteAssets {
		if jsonOutput {
			printJSON(cfg.Assets)
			return
		}
		displayAssets(cfg)
		return
	}

	eng, err := newEngines(cfg, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported coins..."
		s.Start()
	}

	ctx := cmd.Context()
	switch {
	case eng.oneClick != nil:
		tokens, err := eng.oneClick.Tokens(ctx)
		s.Stop()
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		filtered := filterTokens(tokens, filterChain, filterSymbol)
		if jsonOutput {
			printJSON(filtered)
			return
		}
		displayTokens(filtered)

	case eng.mm2 != nil:
		version, err := eng.mm2.Version(ctx)
		if err != nil {
			s.Stop()
			printError(fmt.Errorf("mm2 node unreachable: %w", err))
			os.Exit(1)
		}
		coins, err := eng.mm2.EnabledCoins(ctx)
		s.Stop()
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		coins = filterTickers(coins, filterSymbol)
		if jsonOutput {
			printJSON(map[string]interface{}{"version": version, "coins": coins})
			return
		}
		fmt.Printf("\nmm2 %s, %d enabled coins:\n\n", color.CyanString(version), len(coins))
		for _, c := range coins {
			fmt.Printf("  %s\n", color.YellowString(c))
		}
		fmt.Println()

	default:
		s.Stop()
		tickers := make([]string, 0, len(cfg.Sim.Rates))
		for t := range cfg.Sim.Rates {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		tickers = filterTickers(tickers, filterSymbol)
		if jsonOutput {
			printJSON(cfg.Sim.Rates)
			return
		}
		fmt.Printf("\nSimulated engine prices (in %s):\n\n", cfg.TargetTicker)
		for _, t := range tickers {
			fmt.Printf("  %-10s %s\n", color.YellowString(t), cfg.Sim.Rates[t])
		}
		fmt.Println()
	}
}

func displayAssets(cfg *config.Config) {
	if len(cfg.Assets) == 0 {
		fmt.Println("\nNo assets configured. Add an assets list to .swapflow.yaml")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      YOUR ASSETS")
	fmt.Println(strings.Repeat("=", 60) + "\n")

	for _, a := range cfg.Assets {
		fmt.Printf("  %-10s  %-20s  %s\n", color.YellowString(a.Ticker), a.Name, a.Balance)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("\nSwaps go to %s via the %s engine\n\n", color.CyanString(cfg.TargetTicker), cfg.Engine)
}

func filterTokens(tokens []oneclick.Token, chain, symbol string) []oneclick.Token {
	var out []oneclick.Token
	for _, token := range tokens {
		if chain != "" && !strings.EqualFold(token.Blockchain, chain) {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(symbol)) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func filterTickers(tickers []string, symbol string) []string {
	if symbol == "" {
		return tickers
	}
	var out []string
	for _, t := range tickers {
		if strings.Contains(strings.ToUpper(t), strings.ToUpper(symbol)) {
			out = append(out, t)
		}
	}
	return out
}

func displayTokens(tokens []oneclick.Token) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by blockchain
	tokensByChain := make(map[string][]oneclick.Token)
	for _, token := range tokens {
		tokensByChain[token.Blockchain] = append(tokensByChain[token.Blockchain], token)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			address := token.ContractAddress
			if len(address) > 40 {
				address = address[:37] + "..."
			}
			fmt.Printf("  %-10s  %2d decimals  %s\n",
				color.YellowString(token.Symbol),
				token.Decimals,
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
