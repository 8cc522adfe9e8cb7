package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swapflow/pkg/history"
)

var (
	showActive    bool
	showCompleted bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List swaps started from this machine",
	Long: `List the swaps recorded in the local history file.

Examples:
  swapflow history
  swapflow history --active
  swapflow history --completed
  swapflow history delete <swap-uuid>`,
	Run: runHistory,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <swap-uuid>",
	Short: "Remove a swap from the history",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryDelete,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyCmd.Flags().BoolVar(&showActive, "active", false, "Only show swaps still in progress")
	historyCmd.Flags().BoolVar(&showCompleted, "completed", false, "Only show swaps that completed")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cfg, _ := loadConfig(cmd)

	store, err := history.NewStore(cfg.HistoryPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var records []history.Record
	switch {
	case showActive:
		records = store.Active()
	case showCompleted:
		records = store.Completed()
	default:
		records = store.All()
	}

	if jsonOutput {
		printJSON(records)
		return
	}

	if len(records) == 0 {
		fmt.Println("\nNo swaps found.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	color.Green("                                       SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 100) + "\n")

	for _, r := range records {
		fmt.Printf("  %s  %-36s  %s %s -> %s %s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			color.CyanString(r.SwapUUID),
			r.SourceAmount, r.SourceTicker,
			r.TargetAmount, r.TargetTicker,
			coloredStage(r.Stage))
		if r.Error != "" {
			fmt.Printf("  %16s  %s\n", "", color.RedString(r.Error))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	fmt.Printf("\nShowing %d of %d swaps (%s)\n\n", len(records), store.Count(), store.FilePath())
}

func runHistoryDelete(cmd *cobra.Command, args []string) {
	cfg, _ := loadConfig(cmd)

	store, err := history.NewStore(cfg.HistoryPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := store.Delete(args[0]); err != nil {
		printError(err)
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Removed swap %s from the history.", args[0]))
}
