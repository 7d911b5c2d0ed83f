package main

import (
	"fmt"
	"os"

	"github.com/quantlab/verdict/internal/backtest"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/logger"
	"github.com/quantlab/verdict/internal/strategy"
	"github.com/quantlab/verdict/internal/validate/montecarlo"
	"github.com/spf13/cobra"
)

var (
	mcSymbol     string
	mcFrom       string
	mcTo         string
	mcTimeframe  string
	mcIterations int
	mcEntryProb  float64
	mcCapital    float64
	mcLot        float64
	mcLeverage   float64
)

var montecarloCmd = &cobra.Command{
	Use:   "montecarlo [strategy.json]",
	Short: "Compare a strategy against random-entry simulations",
	Long: `Backtest the strategy, then run Monte Carlo simulations with random
entries and the same exit rules, and rank the real result against the
resulting distribution`,
	Args: cobra.ExactArgs(1),
	RunE: runMontecarloCmd,
}

func init() {
	montecarloCmd.Flags().StringVar(&mcSymbol, "symbol", "", "Symbol to validate (required)")
	montecarloCmd.Flags().StringVar(&mcFrom, "from", "", "Start date YYYY-MM-DD (required)")
	montecarloCmd.Flags().StringVar(&mcTo, "to", "", "End date YYYY-MM-DD (required)")
	montecarloCmd.Flags().StringVar(&mcTimeframe, "timeframe", "", "Backtest timeframe (default from config)")
	montecarloCmd.Flags().IntVar(&mcIterations, "iterations", 0, "Simulation count: 100, 500 or 1000 (default from config)")
	montecarloCmd.Flags().Float64Var(&mcEntryProb, "entry-prob", 0, "Per-bar random entry probability (default from config)")
	montecarloCmd.Flags().Float64Var(&mcCapital, "capital", 10000, "Initial capital")
	montecarloCmd.Flags().Float64Var(&mcLot, "lot", 1000, "Lot size in units")
	montecarloCmd.Flags().Float64Var(&mcLeverage, "leverage", 30, "Account leverage")

	montecarloCmd.MarkFlagRequired("symbol")
	montecarloCmd.MarkFlagRequired("from")
	montecarloCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(montecarloCmd)
}

func runMontecarloCmd(cmd *cobra.Command, args []string) error {
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

	period, err := parsePeriod(mcFrom, mcTo)
	if err != nil {
		return err
	}

	timeframe := core.Timeframe(mcTimeframe)
	if mcTimeframe == "" {
		timeframe = core.Timeframe(cfg.Engine.DefaultTimeframe)
	}
	if !timeframe.IsValid() {
		return fmt.Errorf("unknown timeframe %q", mcTimeframe)
	}

	iterations := mcIterations
	if iterations == 0 {
		iterations = cfg.MonteCarlo.DefaultIterations
	}
	entryProb := mcEntryProb
	if entryProb == 0 {
		entryProb = cfg.MonteCarlo.EntryProbability
	}

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	// The real run supplies the summary the simulations are ranked against.
	actual, err := app.svc.RunBacktest(cmd.Context(), strat, backtest.Request{
		Symbol:          mcSymbol,
		Period:          period,
		Stage1Timeframe: timeframe,
		InitialCapital:  mcCapital,
		LotSize:         mcLot,
		Leverage:        mcLeverage,
	})
	if err != nil {
		return err
	}
	if actual.Status == core.RunStatusFailed {
		return fmt.Errorf("baseline backtest failed: %s", actual.ErrorMessage)
	}

	result, err := app.svc.RunMonteCarlo(cmd.Context(), strat.Exit, montecarlo.Request{
		Symbol:           mcSymbol,
		Period:           period,
		Timeframe:        timeframe,
		Iterations:       iterations,
		EntryProbability: entryProb,
		InitialCapital:   mcCapital,
		LotSize:          mcLot,
		Leverage:         mcLeverage,
	}, &actual.Summary)
	if err != nil {
		return err
	}

	fmt.Println("=== VERDICT Monte Carlo ===")
	fmt.Printf("Strategy:    %s\n", strat.Name)
	fmt.Printf("Symbol:      %s\n", mcSymbol)
	fmt.Printf("Simulations: %d\n", result.Iterations)
	fmt.Println()

	printDistribution("Win rate", result.WinRate, "%.1f%%", 100)
	printDistribution("Profit factor", result.ProfitFactor, "%.2f", 1)
	printDistribution("Max drawdown", result.Drawdown, "%.2f%%", 1)
	printDistribution("Net profit", result.NetProfit, "%.2f%%", 1)

	if c := result.Comparison; c != nil {
		fmt.Println()
		fmt.Printf("Strategy vs random entries (percentile of simulations beaten):\n")
		fmt.Printf("  Win rate       %.0f%%\n", c.WinRateRank)
		fmt.Printf("  Profit factor  %.0f%%\n", c.ProfitFactorRank)
		fmt.Printf("  Drawdown       %.0f%% (lower is better)\n", c.DrawdownRank)
		fmt.Printf("  Net profit     %.0f%%\n", c.NetProfitRank)
		fmt.Printf("Overall: %.0f%% - %s\n", c.OverallScore, c.Tier)
		fmt.Println(c.Comment)
	}
	return nil
}

func printDistribution(name string, d montecarlo.Distribution, format string, scale float64) {
	f := func(v float64) string { return fmt.Sprintf(format, v*scale) }
	fmt.Printf("%-14s mean %s  median %s  p5 %s  p95 %s\n",
		name, f(d.Mean), f(d.Median), f(d.Percentiles[5]), f(d.Percentiles[95]))
}
