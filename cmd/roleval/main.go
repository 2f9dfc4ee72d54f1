// Command roleval enriches a batch of Montreal addresses with property
// assessment data scraped from the city's evaluation site.
//
// Usage:
//
//	roleval -input addresses.csv                  # enrich a CSV in place
//	roleval -input in.csv -output out.csv         # enrich to a new file
//	roleval -sheet <spreadsheet-id> -tab Feuille1 # enrich a Google Sheet
//	roleval -input in.csv -preflight              # selector health check only
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MugiZer/roleval/browser"
	"github.com/MugiZer/roleval/cache"
	"github.com/MugiZer/roleval/locator"
	"github.com/MugiZer/roleval/rate"
	"github.com/MugiZer/roleval/role"
)

type options struct {
	input      string
	output     string
	configPath string
	headless   bool
	debug      bool
	noCache    bool
	noBackup   bool
	maxRows    int
	startRow   int
	chunkSize  int
	sheet      string
	tab        string
	fromRow    int
	preflight  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "input CSV file with addresses")
	flag.StringVar(&opts.output, "output", "", "output CSV file (default: input file)")
	flag.StringVar(&opts.configPath, "config", "", "path to roleval.yaml config file")
	flag.BoolVar(&opts.headless, "headless", false, "run the browser headless")
	flag.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&opts.noCache, "no-cache", false, "disable the lookup cache")
	flag.BoolVar(&opts.noBackup, "no-backup", false, "skip the input file backup")
	flag.IntVar(&opts.maxRows, "max-rows", 0, "maximum rows to process (0 = all)")
	flag.IntVar(&opts.startRow, "start-row", 0, "CSV data row to start from (0-based)")
	flag.IntVar(&opts.chunkSize, "chunk-size", 0, "rows per incremental save")
	flag.StringVar(&opts.sheet, "sheet", "", "Google spreadsheet id to process instead of a CSV")
	flag.StringVar(&opts.tab, "tab", "", "worksheet tab name")
	flag.IntVar(&opts.fromRow, "from-row", 0, "first sheet data row (1-based)")
	flag.BoolVar(&opts.preflight, "preflight", false, "validate selectors against the live site and exit")
	flag.Parse()

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, opts); err != nil {
		logger.Error("roleval: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.chunkSize > 0 {
		cfg.ChunkSize = opts.chunkSize
	}
	if opts.sheet != "" {
		cfg.Sheets.Spreadsheet = opts.sheet
	}
	if opts.tab != "" {
		cfg.Sheets.Tab = opts.tab
	}
	if opts.fromRow > 0 {
		cfg.Sheets.FromRow = opts.fromRow
	}

	if opts.input == "" && cfg.Sheets.Spreadsheet == "" {
		fmt.Fprintln(os.Stderr, "usage: roleval -input <file.csv> | -sheet <spreadsheet-id> -tab <name>")
		os.Exit(1)
	}

	session, err := browser.Launch(browser.Config{
		Headless:  opts.headless || cfg.Browser.Headless,
		RemoteURL: cfg.Browser.Remote,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer session.Close()

	page, err := session.NewPage()
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}

	var store role.Cache
	if !opts.noCache {
		s, err := cache.Open(cfg.CachePath)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	var limiter role.Limiter
	if !cfg.Scraper.NoDelay {
		limiter = &rate.Limiter{Min: cfg.Scraper.DelayMin, Max: cfg.Scraper.DelayMax}
	}

	scraper := role.New(page, store, limiter, role.Config{
		BaseURL:           cfg.Scraper.BaseURL,
		StreetAPI:         cfg.Scraper.StreetAPI,
		LoginEmail:        cfg.LoginEmail,
		LoginPassword:     cfg.LoginPassword,
		MaxAttempts:       cfg.Scraper.MaxAttempts,
		DelayAfterActions: !cfg.Scraper.NoDelay,
		Logger:            logger,
	})

	if err := checkSelectors(scraper, logger); err != nil {
		return err
	}
	if opts.preflight {
		logger.Info("selector pre-flight passed")
		return nil
	}

	if cfg.Sheets.Spreadsheet != "" {
		return processSheet(ctx, logger, scraper, cfg, opts)
	}
	return processCSV(ctx, logger, scraper, cfg, opts)
}

// checkSelectors validates the search-form selectors against the live
// page. A broken field means the site changed; starting the batch would
// burn every row, so this is fatal.
func checkSelectors(scraper *role.Scraper, logger *slog.Logger) error {
	if err := scraper.OpenSearchPage(); err != nil {
		return fmt.Errorf("reach search page: %w", err)
	}
	groups := map[string]locator.Group{"search_form": locator.Selectors["search_form"]}
	err := scraper.Finder().Validate(groups)
	var health *locator.HealthError
	if errors.As(err, &health) {
		logger.Error("selector health check failed", "broken", health.Broken)
		return err
	}
	return err
}
