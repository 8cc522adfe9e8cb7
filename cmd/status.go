package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swapflow/pkg/engine/oneclick"
	"swapflow/pkg/history"
	"swapflow/pkg/swap"
)

var (
	watchStatus   bool
	watchInterval time.Duration
	submitTxHash  string
)

var statusCmd = &cobra.Command{
	Use:   "status <swap-uuid>",
	Short: "Check the status of a swap",
	Long: `Ask the configured engine for the current stage of a swap.

For the oneclick engine the swap uuid is the deposit address.

Examples:
  swapflow status 2c3b8a4e-5d1f-4a8e-9d42-6f0e1c7b9a11
  swapflow status 2c3b8a4e-5d1f-4a8e-9d42-6f0e1c7b9a11 --watch
  swapflow status 0x1234...abcd --submit-tx 0xdeadbeef...`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the swap finishes")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Polling interval when watching (default: poll_interval)")
	statusCmd.Flags().StringVar(&submitTxHash, "submit-tx", "", "Report the deposit transaction hash to 1Click (oneclick engine)")
}

func runStatus(cmd *cobra.Command, args []string) {
	swapUUID := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg, logger := loadConfig(cmd)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if submitTxHash != "" {
		if eng.oneClick == nil {
			printError(fmt.Errorf("--submit-tx is only supported by the oneclick engine"))
			os.Exit(1)
		}
		if err := eng.oneClick.SubmitDepositTx(ctx, swapUUID, submitTxHash); err != nil {
			printError(err)
			os.Exit(1)
		}
		if !jsonOutput {
			color.Green("\n✓ Deposit transaction submitted")
		}
	}

	if !watchStatus {
		status, err := checkSwapStatus(ctx, eng, swapUUID, jsonOutput)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		recordStatus(store, swapUUID, status, logger)
		showStatus(ctx, eng, swapUUID, status, jsonOutput)
		return
	}

	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	interval := watchInterval
	if interval <= 0 {
		interval = cfg.PollInterval
	}
	fmt.Printf("\nWatching swap %s\n", color.CyanString(swapUUID))
	fmt.Printf("Checking every %s. Press Ctrl+C to stop.\n\n", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := eng.PollSwapStatus(ctx, swapUUID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Show it and retry on the next tick
			color.Red("Error: %v", err)
		} else {
			recordStatus(store, swapUUID, status, logger)
			showStatus(ctx, eng, swapUUID, status, false)
			if status.Stage.IsTerminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func checkSwapStatus(ctx context.Context, eng *engines, swapUUID string, jsonOutput bool) (swap.Status, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking swap status..."
		s.Start()
	}

	status, err := eng.PollSwapStatus(ctx, swapUUID)
	if !jsonOutput {
		s.Stop()
	}
	return status, err
}

// recordStatus brings a swap already in the history up to date
func recordStatus(store *history.Store, swapUUID string, status swap.Status, logger *slog.Logger) {
	rec, err := store.Get(swapUUID)
	if err != nil {
		return
	}
	if rec.Stage == status.Stage && rec.Error == status.Error {
		return
	}

	now := time.Now()
	rec.Stage = status.Stage
	rec.Error = status.Error
	rec.UpdatedAt = now
	if status.Stage.IsTerminal() && rec.FinishedAt == nil {
		rec.FinishedAt = &now
	}
	if err := store.Put(rec); err != nil {
		logger.Warn("failed to update history", slog.String("swap_uuid", swapUUID), slog.String("error", err.Error()))
	}
}

func showStatus(ctx context.Context, eng *engines, swapUUID string, status swap.Status, jsonOutput bool) {
	// 1Click knows about the on-chain transactions too
	var details *oneclick.ExecutionStatus
	if eng.oneClick != nil {
		if st, err := eng.oneClick.Status(ctx, swapUUID); err == nil {
			details = &st
		}
	}

	if jsonOutput {
		out := map[string]interface{}{
			"swap_uuid": swapUUID,
			"stage":     status.Stage.String(),
			"percent":   status.Stage.Percent(),
			"terminal":  status.Stage.IsTerminal(),
		}
		if status.Error != "" {
			out["error"] = status.Error
		}
		if details != nil {
			out["engine_status"] = details.Status
			out["deposit_txs"] = details.DepositTxs
			out["withdrawal_txs"] = details.WithdrawalTxs
		}
		printJSON(out)
		return
	}

	displayStatus(swapUUID, status, details)
}

func displayStatus(swapUUID string, status swap.Status, details *oneclick.ExecutionStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Swap:            %s\n", color.CyanString(swapUUID))
	fmt.Printf("  Stage:           %s\n", coloredStage(status.Stage))
	fmt.Printf("  Progress:        [%s] %d%%\n", progressBar(status.Stage.Percent(), 30), status.Stage.Percent())
	if status.Error != "" {
		fmt.Printf("  Error:           %s\n", color.RedString(status.Error))
	}

	if details != nil {
		fmt.Printf("  1Click Status:   %s\n", details.Status)
		if !details.UpdatedAt.IsZero() {
			fmt.Printf("  Last Updated:    %s\n", details.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		for _, tx := range details.DepositTxs {
			fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(tx))
		}
		for _, tx := range details.WithdrawalTxs {
			fmt.Printf("  Withdrawal Tx:   %s\n", color.HiBlackString(tx))
		}
		if details.AmountOut != "" {
			fmt.Printf("  Amount Out:      %s\n", details.AmountOut)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
