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
	analyzeSymbol    string
	analyzeFrom      string
	analyzeTo        string
	analyzeTimeframe string
	analyzeCapital   float64
	analyzeLot       float64
	analyzeLeverage  float64
	analyzeVerify    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [strategy.json]",
	Short: "Find indicator filters that separate winning trades from losing ones",
	Long: `Backtest the strategy, then scan a catalogue of indicators at each
trade's entry bar to find filters whose values differ between winners and
losers, with optional verification of the suggested filter set`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyzeCmd,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSymbol, "symbol", "", "Symbol to analyze (required)")
	analyzeCmd.Flags().StringVar(&analyzeFrom, "from", "", "Start date YYYY-MM-DD (required)")
	analyzeCmd.Flags().StringVar(&analyzeTo, "to", "", "End date YYYY-MM-DD (required)")
	analyzeCmd.Flags().StringVar(&analyzeTimeframe, "timeframe", "", "Backtest timeframe (default from config)")
	analyzeCmd.Flags().Float64Var(&analyzeCapital, "capital", 10000, "Initial capital")
	analyzeCmd.Flags().Float64Var(&analyzeLot, "lot", 1000, "Lot size in units")
	analyzeCmd.Flags().Float64Var(&analyzeLeverage, "leverage", 30, "Account leverage")
	analyzeCmd.Flags().IntVar(&analyzeVerify, "verify", 0, "Verify the suggestion with this many filters (0 skips)")

	analyzeCmd.MarkFlagRequired("symbol")
	analyzeCmd.MarkFlagRequired("from")
	analyzeCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
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

	period, err := parsePeriod(analyzeFrom, analyzeTo)
	if err != nil {
		return err
	}

	timeframe := core.Timeframe(analyzeTimeframe)
	if analyzeTimeframe == "" {
		timeframe = core.Timeframe(cfg.Engine.DefaultTimeframe)
	}
	if !timeframe.IsValid() {
		return fmt.Errorf("unknown timeframe %q", analyzeTimeframe)
	}

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	result, err := app.svc.RunBacktest(ctx, strat, backtest.Request{
		Symbol:          analyzeSymbol,
		Period:          period,
		Stage1Timeframe: timeframe,
		InitialCapital:  analyzeCapital,
		LotSize:         analyzeLot,
		Leverage:        analyzeLeverage,
	})
	if err != nil {
		return err
	}
	if result.Status == core.RunStatusFailed {
		return fmt.Errorf("backtest failed: %s", result.ErrorMessage)
	}

	analysis, err := app.svc.AnalyzeFilters(ctx, result.ID)
	if err != nil {
		return err
	}

	fmt.Println("=== VERDICT Filter Analysis ===")
	fmt.Printf("Strategy: %s\n", strat.Name)
	fmt.Printf("Symbol:   %s (%d trades)\n", analyzeSymbol, len(result.Trades))
	fmt.Println()

	if len(analysis.Insights) == 0 {
		fmt.Println("No indicator separates winners from losers on this run.")
		return nil
	}

	fmt.Println("Indicators ranked by separation strength:")
	for _, insight := range analysis.Insights {
		fmt.Printf("  %-20s win avg %.4f  lose avg %.4f  significance %.1f  est +%.1fpp\n",
			insight.Label,
			insight.WinAverage,
			insight.LoseAverage,
			insight.SignificanceScore,
			insight.EstimatedImprovement)
		fmt.Printf("    suggested filter: %s %s %.4f\n",
			insight.Suggested.Indicator.Key(), insight.Suggested.Op, insight.Suggested.Threshold)
	}

	fmt.Println()
	for _, suggestion := range analysis.Suggestions {
		fmt.Printf("Filter set (%d): est win rate %.1f%%, profit factor %s, trades retained %.0f%%\n",
			len(suggestion.Filters),
			suggestion.EstimatedWinRate*100,
			formatFactor(suggestion.EstimatedProfitFactor),
			suggestion.EstimatedTradesRetained*100)
	}

	if analyzeVerify > 0 {
		if analyzeVerify > len(analysis.Suggestions) {
			return fmt.Errorf("no suggestion with %d filters available", analyzeVerify)
		}
		filters := analysis.Suggestions[analyzeVerify-1].Filters

		verification, err := app.svc.VerifyFilters(ctx, result.ID, filters, analyzeCapital)
		if err != nil {
			return err
		}

		fmt.Println()
		fmt.Printf("Verification with %d filter(s):\n", len(filters))
		fmt.Printf("  Trades:        %d -> %d\n", verification.TradesBefore, verification.TradesAfter)
		fmt.Printf("  Win rate:      %.1f%% -> %.1f%% (%+.1f)\n",
			verification.WinRateBefore*100, verification.WinRateAfter*100, verification.WinRateDelta*100)
		fmt.Printf("  Profit factor: %s -> %s\n",
			formatFactor(verification.ProfitFactorBefore), formatFactor(verification.ProfitFactorAfter))
		fmt.Printf("  Net profit:    %.2f -> %.2f (%+.2f)\n",
			verification.NetProfitBefore, verification.NetProfitAfter, verification.NetProfitDelta)
	}
	return nil
}
