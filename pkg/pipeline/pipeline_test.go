package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/dataset"
	"github.com/dtnitsch/rn-table-scraper/pkg/db"
	"github.com/dtnitsch/rn-table-scraper/pkg/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mainURL   = "https://kb.example.com/rn"
	latestURL = "https://kb.example.com/rn/2025-03"
)

const landingPage = `<html><body>
<div class="rn-list">
  <ul>
    <li><a>no link yet</a></li>
    <li><a href="/rn/2025-03">March 2025</a></li>
    <li><a href="/rn/2025-02">February 2025</a></li>
  </ul>
</div>
</body></html>`

const releasePage = `<html><head><title>March 2025 Release Notes</title></head><body>
<div class="rnsub">
  <span class="AlmaRNTag">Week 1</span>
  <h2>Features</h2>
  <table>
    <tr><th>ID</th><th>Description</th></tr>
    <tr><td>1</td><td>Search</td></tr>
    <tr><td>2</td><td>Export</td></tr>
    <tr><td>3</td><td>Import</td></tr>
  </table>
  <h2>Resolved Issues</h2>
  <table>
    <tr><th>Case</th><th>Summary</th></tr>
    <tr><td>A</td><td>Fix 1</td></tr>
    <tr><td>B</td><td>Fix 2</td></tr>
  </table>
</div>
</body></html>`

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &models.FetchError{URL: url, StatusCode: 404}
	}
	return []byte(body), nil
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{
		mainURL:   landingPage,
		latestURL: releasePage,
	}}
}

func testConfig(t *testing.T) *models.Config {
	t.Helper()
	cfg := models.DefaultConfig()
	cfg.URLs.MainURL = mainURL
	cfg.URLs.LinkSelectors.Container = "div.rn-list"
	cfg.URLs.LinkSelectors.List = "li a"
	cfg.Output.BaseDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func newPipeline(t *testing.T, cfg *models.Config, f Fetcher, opts ...Option) *Pipeline {
	t.Helper()
	opts = append(opts, WithClock(func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }))
	p, err := New(cfg, f, nil, opts...)
	require.NoError(t, err)
	return p
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunWritesOneFilePerTable(t *testing.T) {
	cfg := testConfig(t)
	f := newFetcher()
	p := newPipeline(t, cfg, f)

	out, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, out.NoUpdate)
	assert.Equal(t, latestURL, out.SourceURL, "relative link resolved against the landing page")
	assert.Equal(t, []string{mainURL, latestURL}, f.calls)
	assert.Equal(t, db.RunSuccess, out.Status())

	require.Len(t, out.Snapshot.Tables, 2)
	assert.Equal(t, 2, out.Write.Written)

	current := p.Archive().CurrentDir()
	assert.Equal(t, []string{"table_1.csv", "table_2.csv"}, listDir(t, current))

	cols, rows, err := dataset.ReadTable(filepath.Join(current, "table_1.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Description", "week_info", "source_url", "table_title"}, cols)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "Search", "Week 1", latestURL, "Features"}, rows[0])

	_, rows, err = dataset.ReadTable(filepath.Join(current, "table_2.csv"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	m, err := manifest.Read(cfg.Output.BaseDir)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, manifest.StatusSuccess, m.Status)
	assert.Equal(t, latestURL, m.SourceURL)
	assert.Equal(t, "March 2025 Release Notes", m.PageTitle)
	assert.Len(t, m.Tables, 2)

	assert.FileExists(t, out.SourcePath)
}

func TestRunWithoutLinkIsNoUpdate(t *testing.T) {
	tests := []struct {
		name    string
		landing string
	}{
		{"missing container", `<html><body><div class="other"><a href="/x">x</a></div></body></html>`},
		{"container without links", `<html><body><div class="rn-list"><ul><li><a>soon</a></li></ul></div></body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			f := newFetcher()
			f.pages[mainURL] = tt.landing
			p := newPipeline(t, cfg, f)

			out, err := p.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, out.NoUpdate)
			assert.NotEmpty(t, out.Reason)
			assert.Equal(t, db.RunNoUpdate, out.Status())
			assert.Equal(t, []string{mainURL}, f.calls)

			assert.Empty(t, listDir(t, p.Archive().CurrentDir()))
			assert.NoFileExists(t, manifest.Path(cfg.Output.BaseDir))
		})
	}
}

func TestRunFetchErrorIsFatal(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"landing page", mainURL},
		{"release page", latestURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			f := newFetcher()
			f.errs = map[string]error{tt.url: &models.FetchError{URL: tt.url, StatusCode: 503}}
			p := newPipeline(t, cfg, f)

			_, err := p.Run(context.Background())
			require.Error(t, err)
			var ferr *models.FetchError
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, 503, ferr.StatusCode)
			assert.Empty(t, listDir(t, p.Archive().CurrentDir()))
		})
	}
}

func TestRunRotatesPreviousOutput(t *testing.T) {
	cfg := testConfig(t)
	p := newPipeline(t, cfg, newFetcher())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	out, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"table_1.csv", "table_2.csv"}, out.Rotation.Moved)
	assert.Equal(t, []string{"table_1.csv", "table_2.csv"}, listDir(t, p.Archive().PreviousDir()))
	assert.Equal(t, []string{"table_1.csv", "table_2.csv"}, listDir(t, p.Archive().CurrentDir()))
}

func TestRunRecordsHistoryAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "rnscrape.prom")

	database, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer database.Close()

	p := newPipeline(t, cfg, newFetcher(), WithHistory(database))
	out, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotZero(t, out.RunID)

	run, err := database.GetRun(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, db.RunSuccess, run.Status)
	assert.Equal(t, latestURL, run.SourceURL)
	assert.Equal(t, 2, run.TablesExtracted)
	assert.Equal(t, 5, run.RecordsExtracted)
	assert.Equal(t, 2, run.FilesWritten)

	tables, err := database.GetRunTables(out.RunID)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "table_1.csv", tables[0].FileName)
	assert.Equal(t, "Features", tables[0].Title)

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rnscrape_files_written 2")
	assert.Contains(t, string(data), "rnscrape_last_run_success 1")
}

func TestRunRecordsFailedRun(t *testing.T) {
	cfg := testConfig(t)
	database, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer database.Close()

	f := newFetcher()
	f.errs = map[string]error{mainURL: &models.FetchError{URL: mainURL, StatusCode: 500}}
	p := newPipeline(t, cfg, f, WithHistory(database))

	out, err := p.Run(context.Background())
	require.Error(t, err)

	run, err := database.GetRun(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, db.RunFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "500")
}
