package history

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dtnitsch/rn-table-scraper/models"
	dbpkg "github.com/dtnitsch/rn-table-scraper/pkg/db"
	"github.com/urfave/cli/v2"
)

// dbPath prefers --history-db, then history.db_path from the config file.
// Empty means history is disabled.
func dbPath(c *cli.Context) string {
	if c.IsSet("history-db") {
		return c.String("history-db")
	}
	if cfg, err := models.LoadConfig(c.String("config")); err == nil {
		return cfg.History.DBPath
	}
	return ""
}

// HistoryAction lists recent runs, or the tables of one run when a run ID is given.
func HistoryAction(c *cli.Context) error {
	path := dbPath(c)
	if path == "" {
		fmt.Println("Run history is disabled: set history.db_path in the config or pass --history-db")
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("No run history at %s\n", path)
		return nil
	}

	database, err := dbpkg.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open database: %v", err), models.ExitFatal)
	}
	defer database.Close()

	if c.NArg() > 0 {
		runID, err := strconv.ParseInt(c.Args().First(), 10, 64)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid run ID %q", c.Args().First()), models.ExitFatal)
		}
		return showRun(database, runID)
	}
	return listRuns(database, c.Int("limit"))
}

func listRuns(database *dbpkg.DB, limit int) error {
	runs, err := database.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("%-6s %-20s %-16s %-7s %-8s %-6s %s\n",
		"ID", "Started", "Status", "Tables", "Records", "Diags", "Source URL")
	fmt.Println(strings.Repeat("-", 110))

	for _, r := range runs {
		fmt.Printf("%-6d %-20s %-16s %-7d %-8d %-6d %s\n",
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.TablesExtracted,
			r.RecordsExtracted,
			r.DiagnosticCount,
			r.SourceURL,
		)
	}

	fmt.Printf("\nTotal: %d runs\n", len(runs))
	fmt.Printf("\nTip: Use 'rn-table-scraper history <id>' to see the tables of a run\n")
	return nil
}

func showRun(database *dbpkg.DB, runID int64) error {
	run, err := database.GetRun(runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	tables, err := database.GetRunTables(runID)
	if err != nil {
		return fmt.Errorf("failed to get run tables: %w", err)
	}

	fmt.Printf("Run %d\n", run.RunID)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Started:     %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Printf("Finished:    %s\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Status:      %s\n", run.Status)
	fmt.Printf("Root URL:    %s\n", run.RootURL)
	fmt.Printf("Source URL:  %s\n", run.SourceURL)
	if run.PageTitle != "" {
		fmt.Printf("Page title:  %s\n", run.PageTitle)
	}
	fmt.Printf("Extracted:   %d tables, %d records, %d diagnostics\n",
		run.TablesExtracted, run.RecordsExtracted, run.DiagnosticCount)
	if run.ErrorMessage != "" {
		fmt.Printf("Error:       %s\n", run.ErrorMessage)
	}

	if len(tables) == 0 {
		return nil
	}
	fmt.Printf("\nTables (%d):\n", len(tables))
	fmt.Println(strings.Repeat("-", 60))
	for _, t := range tables {
		fmt.Printf("%2d. %s [%s]\n", t.Position, t.Title, t.SectionLabel)
		fmt.Printf("    File: %s | Records: %d | Columns: %d | sha256: %.12s\n",
			t.FileName, t.RecordCount, t.ColumnCount, t.ContentHash)
	}
	return nil
}
