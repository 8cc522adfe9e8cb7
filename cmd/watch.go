package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swapflow/pkg/flow"
	"swapflow/pkg/relay"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the swap flow of another swapflow process",
	Long: `Print the flow snapshots relayed over redis by a running "swapflow swap".

Requires relay.redis_addr in .swapflow.yaml (or SWAPFLOW_RELAY_REDIS_ADDR).

Examples:
  swapflow watch
  swapflow watch --json`,
	Args: cobra.NoArgs,
	Run:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg, _ := loadConfig(cmd)

	if !cfg.Relay.Enabled() {
		printError(fmt.Errorf("relay is not configured. Set relay.redis_addr in .swapflow.yaml"))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := relay.Dial(ctx, cfg.Relay.RedisAddr, cfg.Relay.RedisPassword)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer bus.Close()

	// Subscribe before reading the latest snapshot so nothing is missed in between
	messages, err := bus.Follow(ctx, cfg.Relay.Channel)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var lastSeq uint64
	if latest, ok, err := bus.Latest(ctx, cfg.Relay.Channel); err != nil {
		color.Red("Error: %v", err)
	} else if ok {
		lastSeq = latest.Seq
		displaySnapshot(latest, jsonOutput)
	}

	if !jsonOutput {
		fmt.Printf("\nFollowing %s. Press Ctrl+C to stop.\n\n", color.CyanString(cfg.Relay.Channel))
	}
	for msg := range messages {
		// Sequence numbers restart with every swap process
		if msg.Seq == lastSeq && msg.Seq != 0 {
			continue
		}
		lastSeq = msg.Seq
		displaySnapshot(msg, jsonOutput)
	}
}

func displaySnapshot(msg relay.Message, jsonOutput bool) {
	if jsonOutput {
		printJSON(msg)
		return
	}

	st := msg.State
	line := fmt.Sprintf("%s  %-11s", msg.At.Local().Format("15:04:05"), st.Step)
	switch {
	case st.Progress != nil:
		p := st.Progress
		line += fmt.Sprintf("  %s %s -> %s  [%s] %3d%%  %s",
			p.SourceAmount, p.SourceTicker, p.TargetTicker,
			progressBar(p.Percent(), 20), p.Percent(), coloredStage(p.Stage))
	case st.Quote != nil:
		q := st.Quote
		line += fmt.Sprintf("  %s %s -> ~%s %s", q.SourceAmount, q.SourceTicker, q.TargetAmount, q.TargetTicker)
	case st.Asset != nil && st.Amount != nil:
		line += fmt.Sprintf("  %s %s", *st.Amount, st.Asset.Ticker)
	case st.Asset != nil:
		line += "  " + st.Asset.Ticker
	}
	fmt.Println(line)

	if st.Err != "" {
		color.Yellow("          ! %s", st.Err)
	}
	if st.Step == flow.StepReceipt {
		fmt.Println()
	}
}
