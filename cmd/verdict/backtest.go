package main

import (
	"fmt"
	"os"

	"github.com/quantlab/verdict/internal/backtest"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/logger"
	"github.com/quantlab/verdict/internal/strategy"
	"github.com/spf13/cobra"
)

var (
	backtestSymbol    string
	backtestFrom      string
	backtestTo        string
	backtestTimeframe string
	backtestCapital   float64
	backtestLot       float64
	backtestLeverage  float64
	backtestStage2    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy.json]",
	Short: "Run a strategy against historical data",
	Long:  "Replay a strategy definition bar-by-bar over the stored history and show performance statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktestCmd,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTimeframe, "timeframe", "", "Stage 1 timeframe (default from config)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 10000, "Initial capital")
	backtestCmd.Flags().Float64Var(&backtestLot, "lot", 1000, "Lot size in units")
	backtestCmd.Flags().Float64Var(&backtestLeverage, "leverage", 30, "Account leverage")
	backtestCmd.Flags().BoolVar(&backtestStage2, "stage2", false, "Refine trades on 1-minute bars")

	backtestCmd.MarkFlagRequired("symbol")
	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktestCmd(cmd *cobra.Command, args []string) error {
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

	period, err := parsePeriod(backtestFrom, backtestTo)
	if err != nil {
		return err
	}

	timeframe := core.Timeframe(backtestTimeframe)
	if backtestTimeframe == "" {
		timeframe = core.Timeframe(cfg.Engine.DefaultTimeframe)
	}
	if !timeframe.IsValid() {
		return fmt.Errorf("unknown timeframe %q", backtestTimeframe)
	}

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.svc.RunBacktest(cmd.Context(), strat, backtest.Request{
		Symbol:          backtestSymbol,
		Period:          period,
		Stage1Timeframe: timeframe,
		RunStage2:       backtestStage2,
		InitialCapital:  backtestCapital,
		LotSize:         backtestLot,
		Leverage:        backtestLeverage,
	})
	if err != nil {
		return err
	}

	fmt.Println("=== VERDICT Backtest ===")
	fmt.Printf("Strategy:  %s\n", strat.Name)
	fmt.Printf("Symbol:    %s\n", backtestSymbol)
	fmt.Printf("Period:    %s to %s\n", backtestFrom, backtestTo)
	fmt.Printf("Stage:     %d (%s)\n", result.Stage, result.Timeframe)
	fmt.Printf("Run ID:    %s\n", result.ID)
	fmt.Println()

	if result.Status == core.RunStatusFailed {
		fmt.Printf("Run failed: %s\n", result.ErrorMessage)
		return nil
	}

	printSummary(result.Summary)
	return nil
}
