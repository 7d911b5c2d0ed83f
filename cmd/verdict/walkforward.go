package main

import (
	"fmt"
	"os"

	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/logger"
	"github.com/quantlab/verdict/internal/strategy"
	"github.com/quantlab/verdict/internal/validate/walkforward"
	"github.com/spf13/cobra"
)

var (
	wfSymbol    string
	wfFrom      string
	wfTo        string
	wfTimeframe string
	wfSplits    int
	wfCapital   float64
	wfLot       float64
	wfLeverage  float64
)

var walkforwardCmd = &cobra.Command{
	Use:   "walkforward [strategy.json]",
	Short: "Validate a strategy with walk-forward analysis",
	Long:  "Split the historical range into in-sample and out-of-sample partitions and compare performance across them",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalkforwardCmd,
}

func init() {
	walkforwardCmd.Flags().StringVar(&wfSymbol, "symbol", "", "Symbol to validate (required)")
	walkforwardCmd.Flags().StringVar(&wfFrom, "from", "", "Start date YYYY-MM-DD (required)")
	walkforwardCmd.Flags().StringVar(&wfTo, "to", "", "End date YYYY-MM-DD (required)")
	walkforwardCmd.Flags().StringVar(&wfTimeframe, "timeframe", "", "Backtest timeframe (default from config)")
	walkforwardCmd.Flags().IntVar(&wfSplits, "splits", 0, "Requested split count (default from config)")
	walkforwardCmd.Flags().Float64Var(&wfCapital, "capital", 10000, "Initial capital")
	walkforwardCmd.Flags().Float64Var(&wfLot, "lot", 1000, "Lot size in units")
	walkforwardCmd.Flags().Float64Var(&wfLeverage, "leverage", 30, "Account leverage")

	walkforwardCmd.MarkFlagRequired("symbol")
	walkforwardCmd.MarkFlagRequired("from")
	walkforwardCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(walkforwardCmd)
}

func runWalkforwardCmd(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading strategy file: %w", err)
	}
	strat, err := strategy.ParseStrategy(data)
	if err != nil {
		return fmt.Errorf("parsing strategy: %w", err)
	}

	period, err := parsePeriod(wfFrom, wfTo)
	if err != nil {
		return err
	}

	timeframe := core.Timeframe(wfTimeframe)
	if wfTimeframe == "" {
		timeframe = core.Timeframe(cfg.Engine.DefaultTimeframe)
	}
	if !timeframe.IsValid() {
		return fmt.Errorf("unknown timeframe %q", wfTimeframe)
	}

	splits := wfSplits
	if splits == 0 {
		splits = cfg.WalkForward.DefaultSplits
	}

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.svc.RunWalkForward(cmd.Context(), strat, walkforward.Request{
		Symbol:         wfSymbol,
		Period:         period,
		Timeframe:      timeframe,
		SplitCount:     splits,
		InitialCapital: wfCapital,
		LotSize:        wfLot,
		Leverage:       wfLeverage,
	})
	if err != nil {
		return err
	}

	fmt.Println("=== VERDICT Walk-Forward ===")
	fmt.Printf("Strategy:  %s\n", strat.Name)
	fmt.Printf("Symbol:    %s\n", wfSymbol)
	fmt.Printf("Splits:    %d\n", result.SplitCount)
	fmt.Println()

	for _, split := range result.Splits {
		fmt.Printf("Split %d\n", split.SplitNumber)
		fmt.Printf("  In-sample      %s to %s  win rate %.1f%% (%d trades)\n",
			split.InSamplePeriod.Start.Format("2006-01-02"),
			split.InSamplePeriod.End.Format("2006-01-02"),
			split.InSampleStats.WinRate*100,
			split.InSampleStats.TotalTrades)
		fmt.Printf("  Out-of-sample  %s to %s  win rate %.1f%% (%d trades)\n",
			split.OutOfSamplePeriod.Start.Format("2006-01-02"),
			split.OutOfSamplePeriod.End.Format("2006-01-02"),
			split.OutOfSampleStats.WinRate*100,
			split.OutOfSampleStats.TotalTrades)
		fmt.Printf("  Win rate diff  %+.1f points\n", split.WinRateDiff*100)
	}

	fmt.Println()
	fmt.Printf("Overfit score: %.2f\n", result.OverfitScore)
	if result.OverfitWarning {
		fmt.Println("WARNING: in-sample performance degrades out of sample; the strategy is likely overfit")
	}

	fmt.Println()
	fmt.Println("Full-period baseline:")
	printSummary(result.Summary)
	return nil
}
