package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dtnitsch/rn-table-scraper/internal/history"
	"github.com/dtnitsch/rn-table-scraper/internal/scrape"
	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "rn-table-scraper",
		Usage:   "Scrape the tables of the latest release notes page into CSV files",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the YAML config file",
				EnvVars: []string{models.EnvPrefix + "_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides logging.level)",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "base directory of the current/previous slots (overrides output.base_dir)",
			},
			&cli.StringFlag{
				Name:  "rotation",
				Usage: "all or last (overrides output.rotation)",
			},
			&cli.StringFlag{
				Name:  "history-db",
				Usage: "SQLite run history path (overrides history.db_path)",
			},
			&cli.StringFlag{
				Name:  "metrics-textfile",
				Usage: "Prometheus textfile path (overrides metrics.textfile)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Resolve the latest release notes page, rotate the output slots and write one CSV per table",
				Action: scrape.RunAction,
			},
			{
				Name:   "resolve",
				Usage:  "Print the URL of the latest release notes page",
				Action: scrape.ResolveAction,
			},
			{
				Name:  "extract",
				Usage: "Extract the tables of a saved page into a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "saved HTML page",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "source-url",
						Usage: "URL recorded in the source_url column (default file://<input>)",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Value:   "extracted",
						Usage:   "directory receiving table_<n>.csv",
					},
				},
				Action: scrape.ExtractAction,
			},
			{
				Name:      "history",
				Usage:     "List recorded runs, or the tables of one run",
				ArgsUsage: "[run-id]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "number of runs to list (0 for all)",
					},
				},
				Action: history.HistoryAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(models.ExitFatal)
	}
}
