package scrape

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/dataset"
	"github.com/dtnitsch/rn-table-scraper/pkg/db"
	"github.com/dtnitsch/rn-table-scraper/pkg/extractor"
	"github.com/dtnitsch/rn-table-scraper/pkg/fetcher"
	"github.com/dtnitsch/rn-table-scraper/pkg/pipeline"
	"github.com/dtnitsch/rn-table-scraper/pkg/storage"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func newFetcher(cfg models.FetchConfig) *fetcher.Fetcher {
	return fetcher.NewFetcher(fetcher.Options{
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
		UserAgent: cfg.UserAgent,
	})
}

// RunAction resolves the latest release notes page and refreshes the dataset.
func RunAction(c *cli.Context) error {
	cfg, err := LoadConfig(c)
	if err != nil {
		return fatal(nil, "failed to load config", err)
	}
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return fatal(nil, "failed to create logger", err)
	}
	defer syncLogger(logger)

	var opts []pipeline.Option
	if cfg.History.DBPath != "" {
		database, err := db.Open(cfg.History.DBPath)
		if err != nil {
			// history is optional; the run goes on without it
			logger.Warn("failed to open history database", zap.String("path", cfg.History.DBPath), zap.Error(err))
		} else {
			defer database.Close()
			logger.Info("recording run history", zap.String("path", database.Path()))
			opts = append(opts, pipeline.WithHistory(database))
		}
	}

	p, err := pipeline.New(cfg, newFetcher(cfg.Fetch), logger, opts...)
	if err != nil {
		return fatal(logger, "failed to prepare output directories", err)
	}

	out, err := p.Run(c.Context)
	if err != nil {
		return fatal(logger, "run failed", err)
	}

	if err := printYAML(summarizeOutcome(out, p.Archive().CurrentDir())); err != nil {
		return fatal(logger, "failed to print summary", err)
	}
	if out.Write != nil && out.Write.Partial() {
		return cli.Exit(fmt.Sprintf("%d of %d tables could not be written", len(out.Write.Failures), out.Write.Attempted), models.ExitPartial)
	}
	return nil
}

// ResolveAction prints the URL of the latest release notes page.
func ResolveAction(c *cli.Context) error {
	cfg, err := LoadConfig(c)
	if err != nil {
		return fatal(nil, "failed to load config", err)
	}
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return fatal(nil, "failed to create logger", err)
	}
	defer syncLogger(logger)

	root, err := newFetcher(cfg.Fetch).Fetch(c.Context, cfg.URLs.MainURL)
	if err != nil {
		return fatal(logger, "failed to fetch landing page", err)
	}

	latest, err := pipeline.ResolveLatest(cfg.URLs, root)
	if models.IsNotFound(err) {
		logger.Info("no release notes link found", zap.Error(err))
		fmt.Fprintln(os.Stderr, "No release notes link found")
		return nil
	}
	if err != nil {
		return fatal(logger, "failed to resolve latest link", err)
	}

	fmt.Println(latest)
	return nil
}

// ExtractAction extracts the tables of a saved page into --out without
// touching the current/previous slots.
func ExtractAction(c *cli.Context) error {
	cfg := models.DefaultConfig()
	if c.IsSet("config") {
		loaded, err := LoadConfig(c)
		if err != nil {
			return fatal(nil, "failed to load config", err)
		}
		cfg = loaded
	} else if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return fatal(nil, "failed to create logger", err)
	}
	defer syncLogger(logger)

	input := c.String("input")
	page, err := (&storage.Storage{}).ReadFile(filepath.Clean(input))
	if err != nil {
		return fatal(logger, "failed to read input", err)
	}

	sourceURL := c.String("source-url")
	if sourceURL == "" {
		sourceURL = "file://" + input
	}

	res, err := extractor.New(extractor.OptionsFromConfig(cfg.Extraction), logger.Named("extractor")).Extract(page, sourceURL)
	if err != nil {
		return fatal(logger, "failed to parse input", err)
	}
	for _, d := range res.Diagnostics {
		logger.Warn("extraction diagnostic",
			zap.String("scope", string(d.Scope)),
			zap.Int("section", d.SectionIndex),
			zap.Int("table", d.TableIndex),
			zap.Int("row", d.Row),
			zap.String("message", d.Message))
	}

	outDir := c.String("out")
	wr, err := dataset.NewWriter(&storage.Storage{}, logger.Named("writer")).Write(res.Snapshot, outDir)
	if err != nil {
		return fatal(logger, "failed to write tables", err)
	}

	status := db.RunSuccess
	if wr.Partial() {
		status = db.RunPartialFailure
	}
	if err := printYAML(summarize(status, outDir, res.Snapshot, res.Diagnostics, wr)); err != nil {
		return fatal(logger, "failed to print summary", err)
	}
	if wr.Partial() {
		return cli.Exit(fmt.Sprintf("%d of %d tables could not be written", len(wr.Failures), wr.Attempted), models.ExitPartial)
	}
	return nil
}
