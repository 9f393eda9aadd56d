// Command ohlcv-pipeline fetches a window of exchange OHLCV bars, validates
// and repairs them, and persists the result as date-partitioned files with a
// manifest.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quantgate/ohlcv-pipeline/internal/config"
	"github.com/quantgate/ohlcv-pipeline/internal/exchange"
	"github.com/quantgate/ohlcv-pipeline/internal/logger"
	"github.com/quantgate/ohlcv-pipeline/internal/pipeline"
	"github.com/quantgate/ohlcv-pipeline/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to JSON config file")
		symbolsArg = flag.String("symbols", "", "comma-separated symbols (e.g. BTC/USDT,ETH/USDT)")
		interval   = flag.String("interval", "15min", "bar interval label")
		startArg   = flag.String("start", "", "window start (RFC3339 or YYYY-MM-DD)")
		endArg     = flag.String("end", "", "window end (RFC3339 or YYYY-MM-DD), defaults to now")
		rootArg    = flag.String("root", "", "override storage root directory")
		formatArg  = flag.String("format", "", "override partition format (parquet or csv)")
	)
	flag.Parse()

	symbols := splitSymbols(*symbolsArg)
	if len(symbols) == 0 {
		return fmt.Errorf("at least one symbol is required (-symbols)")
	}

	start, err := parseTimeArg(*startArg)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if start.IsZero() {
		return fmt.Errorf("-start is required")
	}

	end := time.Now().UTC()
	if *endArg != "" {
		end, err = parseTimeArg(*endArg)
		if err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *rootArg != "" {
		cfg.Storage.Root = *rootArg
	}
	if *formatArg != "" {
		cfg.Storage.Format = *formatArg
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := exchange.NewClient(cfg.Exchange, log)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Storage.Root, cfg.Exchange.ID, cfg.Storage.Format, log)
	if err != nil {
		return err
	}

	p, err := pipeline.New(client, st, cfg, log)
	if err != nil {
		return err
	}

	log.Info("starting ingestion run",
		"exchange", cfg.Exchange.ID,
		"symbols", symbols,
		"interval", *interval,
		"start", start,
		"end", end)

	results, err := p.Run(ctx, symbols, *interval, start, end)
	for _, result := range results {
		fmt.Printf("%s %s: rows=%d filled=%d gaps=%d outliers=%d -> %s .. %s\n",
			result.Symbol,
			result.Interval,
			result.Report.TotalRows,
			result.RowsFilled,
			result.Report.GapsDetected,
			result.Report.OutliersDetected,
			result.Manifest.StartTimestamp.Format(time.RFC3339),
			result.Manifest.EndTimestamp.Format(time.RFC3339))
	}
	return err
}

func splitSymbols(arg string) []string {
	var symbols []string
	for _, s := range strings.Split(arg, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func parseTimeArg(arg string) (time.Time, error) {
	if arg == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, arg); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", arg)
	}
	return t.UTC(), nil
}
