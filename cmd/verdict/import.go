package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/logger"
	"github.com/spf13/cobra"
)

var (
	importSymbol    string
	importTimeframe string
)

var importCmd = &cobra.Command{
	Use:   "import [bars.csv]",
	Short: "Import historical bars from a CSV file",
	Long: `Load OHLCV bars into the bar store. The CSV columns are
time,open,high,low,close,volume with RFC 3339 timestamps; a header row is
skipped automatically`,
	Args: cobra.ExactArgs(1),
	RunE: runImportCmd,
}

func init() {
	importCmd.Flags().StringVar(&importSymbol, "symbol", "", "Symbol the bars belong to (required)")
	importCmd.Flags().StringVar(&importTimeframe, "timeframe", "", "Bar timeframe, e.g. 15m (required)")

	importCmd.MarkFlagRequired("symbol")
	importCmd.MarkFlagRequired("timeframe")

	rootCmd.AddCommand(importCmd)
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if cfg.Storage.Bars.Path == "" {
		return fmt.Errorf("importing requires storage.bars.path in the config")
	}

	timeframe := core.Timeframe(importTimeframe)
	if !timeframe.IsValid() {
		return fmt.Errorf("unknown timeframe %q", importTimeframe)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening csv file: %w", err)
	}
	defer f.Close()

	bars, err := readBarsCSV(f)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no bars found in %s", args[0])
	}

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.barStore.SaveBars(cmd.Context(), importSymbol, timeframe, bars); err != nil {
		return fmt.Errorf("saving bars: %w", err)
	}

	fmt.Printf("Imported %d %s bars for %s (%s to %s)\n",
		len(bars), timeframe, importSymbol,
		bars[0].Time.Format(time.RFC3339),
		bars[len(bars)-1].Time.Format(time.RFC3339))
	return nil
}

func readBarsCSV(r io.Reader) ([]core.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	var bars []core.Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line++

		ts, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			if line == 1 {
				// Header row.
				continue
			}
			return nil, fmt.Errorf("line %d: invalid timestamp %q", line, record[0])
		}

		var values [5]float64
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid number %q", line, field)
			}
			values[i] = v
		}

		bars = append(bars, core.Bar{
			Time:   ts,
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}
	return bars, nil
}
