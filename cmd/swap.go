package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"swapflow/config"
	"swapflow/pkg/engine/oneclick"
	"swapflow/pkg/flow"
	"swapflow/pkg/history"
	"swapflow/pkg/parser"
	"swapflow/pkg/relay"
	"swapflow/pkg/swap"
	"swapflow/pkg/types"
)

// maxRequotes bounds how often an expired quote is refreshed before giving up
const maxRequotes = 3

var noConfirm bool

var swapCmd = &cobra.Command{
	Use:   "swap [<amount> <coin>]",
	Short: "Swap one of your coins into the target coin",
	Long: `Swap a configured source coin into the target coin (ARRR by default).

Without arguments the coin and amount are asked for interactively.

Examples:
  # Quote, confirm and follow a swap
  swapflow swap 0.01 BTC

  # Pick the coin from your configured assets
  swapflow swap

  # Skip the confirmation prompt
  swapflow swap 100 KMD --yes`,
	Args: cobra.ArbitraryArgs,
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSwap(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg, logger := loadConfig(cmd)

	reader := bufio.NewReader(os.Stdin)
	asset, amount, err := resolveSwapRequest(cfg, args, reader, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	eng, err := newEngines(cfg, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	store, err := history.NewStore(cfg.HistoryPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	orch := newOrchestrator(cfg, eng, logger)

	var rl *relay.Relay
	var bus io.Closer
	if cfg.Relay.Enabled() {
		rb, err := relay.Dial(cmd.Context(), cfg.Relay.RedisAddr, cfg.Relay.RedisPassword)
		if err != nil {
			logger.Warn("relay disabled", slog.String("error", err.Error()))
		} else {
			rl = relay.New(rb, cfg.Relay.Channel, logger)
			bus = rb
		}
	}
	obs := startObservers(orch, history.NewRecorder(store, eng.name, logger), rl, bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := driveSwap(ctx, orch, eng, asset, amount, reader, jsonOutput)
	stop()

	obs.shutdown()
	if code != 0 {
		os.Exit(code)
	}
}

// observers consume flow snapshots next to the renderer
type observers struct {
	orch   *flow.Orchestrator
	group  *errgroup.Group
	bus    io.Closer
	logger *slog.Logger
}

// startObservers runs the history recorder, and the relay when rl is set,
// until the orchestrator closes their subscriptions
func startObservers(orch *flow.Orchestrator, recorder *history.Recorder, rl *relay.Relay, bus io.Closer, logger *slog.Logger) *observers {
	group, ctx := errgroup.WithContext(context.Background())
	updates := orch.Subscribe(ctx)
	group.Go(func() error { return recorder.Run(ctx, updates) })

	if rl != nil {
		relayed := orch.Subscribe(ctx)
		group.Go(func() error { return rl.Run(ctx, relayed) })
	}
	return &observers{orch: orch, group: group, bus: bus, logger: logger}
}

// shutdown closes the orchestrator, lets observers drain the final snapshot
// and releases the relay connection
func (o *observers) shutdown() {
	o.orch.Close()
	if err := o.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("observer stopped with error", slog.String("error", err.Error()))
	}
	if o.bus != nil {
		if err := o.bus.Close(); err != nil {
			o.logger.Warn("failed to close relay", slog.String("error", err.Error()))
		}
	}
}

// resolveSwapRequest turns the command arguments, or interactive answers when
// there are none, into a configured asset and a validated amount
func resolveSwapRequest(cfg *config.Config, args []string, reader *bufio.Reader, jsonOutput bool) (swap.SourceAsset, string, error) {
	if len(args) == 0 {
		if jsonOutput {
			return swap.SourceAsset{}, "", fmt.Errorf("interactive mode is not supported with JSON output; pass <amount> <coin>")
		}
		return promptSwapRequest(cfg, reader)
	}

	req, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return swap.SourceAsset{}, "", err
	}
	if err := parser.ValidateSwapRequest(req); err != nil {
		return swap.SourceAsset{}, "", err
	}
	if req.DestToken != "" && req.DestToken != cfg.TargetTicker {
		return swap.SourceAsset{}, "", fmt.Errorf("only swaps to %s are supported, got %s", cfg.TargetTicker, req.DestToken)
	}

	asset, ok := cfg.FindAsset(req.SourceToken)
	if !ok {
		return swap.SourceAsset{}, "", fmt.Errorf("%s is not a configured asset (see: swapflow assets)", req.SourceToken)
	}
	if _, err := parser.ValidateAmount(req.Amount, asset.Balance); err != nil {
		return swap.SourceAsset{}, "", err
	}
	return asset, req.Amount, nil
}

func promptSwapRequest(cfg *config.Config, reader *bufio.Reader) (swap.SourceAsset, string, error) {
	if len(cfg.Assets) == 0 {
		return swap.SourceAsset{}, "", fmt.Errorf("no assets configured. Add an assets list to .swapflow.yaml")
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  SELECT A COIN TO SWAP")
	fmt.Println(strings.Repeat("=", 60) + "\n")
	for i, a := range cfg.Assets {
		fmt.Printf("  %d) %-8s %-20s balance %s\n", i+1, color.YellowString(a.Ticker), a.Name, a.Balance)
	}

	fmt.Printf("\nCoin (1-%d): ", len(cfg.Assets))
	choice, err := readLine(reader)
	if err != nil {
		return swap.SourceAsset{}, "", err
	}
	asset, ok := cfg.FindAsset(choice)
	if !ok {
		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(cfg.Assets) {
			return swap.SourceAsset{}, "", fmt.Errorf("invalid choice %q", choice)
		}
		asset = cfg.Assets[n-1]
	}

	fmt.Printf("Amount of %s to swap for %s: ", asset.Ticker, cfg.TargetTicker)
	amount, err := readLine(reader)
	if err != nil {
		return swap.SourceAsset{}, "", err
	}
	if _, err := parser.ValidateAmount(amount, asset.Balance); err != nil {
		return swap.SourceAsset{}, "", err
	}
	return asset, amount, nil
}

// driveSwap runs the flow to its receipt and returns the process exit code.
// Interrupting resets the flow; a running swap continues on the engine.
func driveSwap(ctx context.Context, orch *flow.Orchestrator, eng *engines, asset swap.SourceAsset, amount string, reader *bufio.Reader, jsonOutput bool) int {
	orch.SelectAsset(asset)
	orch.SetAmount(amount)

	for attempt := 0; ; attempt++ {
		st, ok := fetchQuote(ctx, orch, jsonOutput)
		if !ok {
			return 1
		}
		q := *st.Quote

		if jsonOutput {
			printJSON(types.NewQuoteDisplay(q, time.Now()))
		} else {
			displayQuote(types.NewQuoteDisplay(q, time.Now()))
		}

		if !noConfirm && !jsonOutput {
			if !confirmSwap(ctx, reader) || ctx.Err() != nil {
				orch.Reset()
				fmt.Println("\nSwap cancelled.")
				return 0
			}
		}

		err := orch.ConfirmSwap()
		if errors.Is(err, swap.ErrQuoteExpired) && attempt < maxRequotes {
			color.Yellow("\nQuote expired before confirmation, fetching a new one...")
			continue
		}
		if err != nil {
			printError(err)
			orch.Reset()
			return 1
		}
		break
	}

	if eng.depositor != nil && !jsonOutput {
		if dq, ok := eng.depositor.Deposit(orch.Snapshot().Quote.OrderUUID); ok {
			displayDepositInstructions(dq, *orch.Snapshot().Quote)
		}
	}

	if err := orch.ExecuteSwap(ctx); err != nil {
		printError(err)
		orch.Reset()
		return 1
	}
	if st := orch.Snapshot(); st.Step == flow.StepConfirm && st.Err != "" {
		printError(errors.New(st.Err))
		orch.Reset()
		return 1
	}

	return followSwap(ctx, orch, jsonOutput)
}

func fetchQuote(ctx context.Context, orch *flow.Orchestrator, jsonOutput bool) (flow.State, bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}
	orch.RequestQuote(ctx)
	if !jsonOutput {
		s.Stop()
	}

	st := orch.Snapshot()
	if st.Err != "" || st.Step != flow.StepQuote || st.Quote == nil {
		msg := st.Err
		if msg == "" {
			msg = "no quote available"
		}
		printError(errors.New(msg))
		return st, false
	}
	return st, true
}

func followSwap(ctx context.Context, orch *flow.Orchestrator, jsonOutput bool) int {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !jsonOutput {
		fmt.Println("\nFollowing swap progress. Press Ctrl+C to stop watching.")
	}

	var lastStage swap.Stage = -1
	var lastErr string
	for st := range orch.Subscribe(subCtx) {
		if st.Progress == nil {
			continue
		}
		p := *st.Progress

		if p.Stage != lastStage {
			lastStage = p.Stage
			if jsonOutput {
				printJSON(types.NewSwapStatus(p, time.Now()))
			} else {
				displayProgress(p)
			}
		}
		if st.Err != lastErr {
			lastErr = st.Err
			if st.Err != "" && !jsonOutput {
				color.Yellow("  ! %s", st.Err)
			}
		}

		if st.Step == flow.StepReceipt {
			if !jsonOutput {
				displayReceipt(p)
			}
			if p.IsComplete() {
				return 0
			}
			return 1
		}
	}

	// Interrupted: stop monitoring locally, the engine keeps the swap going
	st := orch.Snapshot()
	orch.Reset()
	if st.Progress != nil && !jsonOutput {
		fmt.Println("\n\nStopped watching. The swap continues; check it with:")
		color.Cyan("  swapflow status %s --watch\n", st.Progress.SwapUUID)
	}
	return 130
}

func displayQuote(q types.QuoteDisplay) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", q.SourceAmount, color.YellowString(q.SourceToken))
	fmt.Printf("  To:                ~%s %s\n", q.DestAmount, color.YellowString(q.DestToken))
	fmt.Printf("  Rate:              %s\n", q.Rate)
	fmt.Printf("  Fee:               %s\n", q.Fee)
	fmt.Printf("  Order:             %s\n", color.HiBlackString(q.OrderUUID))
	if q.Expired {
		fmt.Printf("  Expires In:        %s\n", color.RedString(q.ExpiresIn))
	} else {
		fmt.Printf("  Expires In:        %s\n", q.ExpiresIn)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayDepositInstructions(dq oneclick.DepositQuote, q swap.Quote) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Yellow("                 DEPOSIT INSTRUCTIONS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\nTo complete the swap, send %s %s to:\n\n", q.SourceAmount, q.SourceTicker)
	color.Cyan("  %s\n", dq.DepositAddress)

	if dq.DepositMemo != "" {
		fmt.Printf("\nMemo (REQUIRED): %s\n", color.MagentaString(dq.DepositMemo))
	}
	fmt.Printf("\nSend before %s. Estimated swap time: %s\n", q.ExpiresAt.Local().Format("15:04:05"), dq.TimeEstimate)
	fmt.Println("Already sent it? Speed things up with: swapflow status " + dq.DepositAddress + " --submit-tx <hash>")

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayProgress(p swap.Progress) {
	bar := progressBar(p.Percent(), 30)
	fmt.Printf("  [%s] %3d%%  %s\n", bar, p.Percent(), coloredStage(p.Stage))
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}

func displayReceipt(p swap.Progress) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	switch {
	case p.IsComplete():
		color.Green("                    SWAP COMPLETED")
	case p.IsRefunded():
		color.Yellow("                    SWAP REFUNDED")
	default:
		color.Red("                     SWAP FAILED")
	}
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Swap:              %s\n", color.CyanString(p.SwapUUID))
	fmt.Printf("  Sent:              %s %s\n", p.SourceAmount, color.YellowString(p.SourceTicker))
	if p.IsComplete() {
		fmt.Printf("  Received:          %s %s\n", p.TargetAmount, color.YellowString(p.TargetTicker))
	}
	if p.IsRefunded() {
		fmt.Printf("  Refunded:          %s %s\n", p.SourceAmount, color.YellowString(p.SourceTicker))
	}
	if p.Error != "" {
		fmt.Printf("  Error:             %s\n", color.RedString(p.Error))
	}
	fmt.Printf("  Duration:          %s\n", p.UpdatedAt.Sub(p.StartedAt).Truncate(time.Second))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func coloredStage(stage swap.Stage) string {
	switch {
	case stage == swap.StageCompleted:
		return color.GreenString(stage.DisplayName())
	case stage == swap.StageFailed:
		return color.RedString(stage.DisplayName())
	case stage == swap.StageRefunded:
		return color.MagentaString(stage.DisplayName())
	default:
		return color.YellowString(stage.DisplayName())
	}
}

// confirmSwap asks for a y/N answer. It returns false when ctx ends first,
// so an interrupt at the prompt cancels the swap.
func confirmSwap(ctx context.Context, reader *bufio.Reader) bool {
	fmt.Print("\nProceed with swap? (y/N): ")

	answer := make(chan string, 1)
	go func() {
		response, err := readLine(reader)
		if err != nil {
			response = ""
		}
		answer <- response
	}()

	select {
	case <-ctx.Done():
		return false
	case response := <-answer:
		response = strings.ToLower(response)
		return response == "y" || response == "yes"
	}
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printJSON(v interface{}) {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonData))
}
