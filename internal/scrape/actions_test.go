package scrape

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const landing = `<html><body><div id="listing"><ul>
<li><a href="/rn/latest">Latest</a></li>
</ul></div></body></html>`

const release = `<html><head><title>Release Notes</title></head><body>
<div class="rnsub"><span class="AlmaRNTag">Week 2</span>
<h2>Features</h2>
<table><tr><th>ID</th><th>Name</th></tr><tr><td>1</td><td>a</td></tr></table>
<h2>Fixes</h2>
<table><tr><th>ID</th></tr><tr><td>7</td></tr><tr><td>8</td></tr></table>
</div></body></html>`

func testApp() *cli.App {
	return &cli.App{
		Name:           "rn-table-scraper",
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml"},
			&cli.StringFlag{Name: "log-level"},
			&cli.StringFlag{Name: "output-dir"},
			&cli.StringFlag{Name: "rotation"},
			&cli.StringFlag{Name: "history-db"},
			&cli.StringFlag{Name: "metrics-textfile"},
		},
		Commands: []*cli.Command{
			{Name: "run", Action: RunAction},
			{Name: "resolve", Action: ResolveAction},
			{
				Name: "extract",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Required: true},
					&cli.StringFlag{Name: "source-url"},
					&cli.StringFlag{Name: "out", Value: "extracted"},
				},
				Action: ExtractAction,
			},
		},
	}
}

func newServer(t *testing.T, landingBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, landingBody)
	})
	mux.HandleFunc("/rn/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, release)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, mainURL, baseDir string) string {
	t.Helper()
	cfg := fmt.Sprintf(`urls:
  main_url: %s/
  link_selectors:
    container: "#listing"
    list: "li a"
output:
  base_dir: %s
logging:
  level: error
`, mainURL, baseDir)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if err != nil {
		return -1
	}
	return models.ExitOK
}

func TestRunActionWritesTables(t *testing.T) {
	srv := newServer(t, landing)
	base := t.TempDir()
	cfgPath := writeConfig(t, srv.URL, base)

	err := testApp().Run([]string{"rn-table-scraper", "--config", cfgPath, "run"})
	require.NoError(t, err)

	cols, rows, err := dataset.ReadTable(filepath.Join(base, "current", "table_1.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Name", "week_info", "source_url", "table_title"}, cols)
	assert.Equal(t, [][]string{{"1", "a", "Week 2", srv.URL + "/rn/latest", "Features"}}, rows)

	_, rows, err = dataset.ReadTable(filepath.Join(base, "current", "table_2.csv"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	assert.FileExists(t, filepath.Join(base, "index.yaml"))
}

func TestRunActionWithoutLinkExitsCleanly(t *testing.T) {
	srv := newServer(t, `<html><body><p>maintenance</p></body></html>`)
	base := t.TempDir()
	cfgPath := writeConfig(t, srv.URL, base)

	err := testApp().Run([]string{"rn-table-scraper", "--config", cfgPath, "run"})
	assert.Equal(t, models.ExitOK, exitCode(err))

	entries, err := os.ReadDir(filepath.Join(base, "current"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunActionFatalErrors(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		err := testApp().Run([]string{"rn-table-scraper", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "run"})
		assert.Equal(t, models.ExitFatal, exitCode(err))
	})

	t.Run("invalid rotation override", func(t *testing.T) {
		cfgPath := writeConfig(t, "https://kb.example.com", t.TempDir())
		err := testApp().Run([]string{"rn-table-scraper", "--config", cfgPath, "--rotation", "sideways", "run"})
		assert.Equal(t, models.ExitFatal, exitCode(err))
	})

	t.Run("unknown log level", func(t *testing.T) {
		cfgPath := writeConfig(t, "https://kb.example.com", t.TempDir())
		err := testApp().Run([]string{"rn-table-scraper", "--config", cfgPath, "--log-level", "chatty", "run"})
		assert.Equal(t, models.ExitFatal, exitCode(err))
		assert.ErrorContains(t, err, "logging.level")
	})

	t.Run("landing page unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		cfgPath := writeConfig(t, srv.URL, t.TempDir())
		err := testApp().Run([]string{"rn-table-scraper", "--config", cfgPath, "run"})
		assert.Equal(t, models.ExitFatal, exitCode(err))
	})
}

func TestRunActionOverridesOutputDir(t *testing.T) {
	srv := newServer(t, landing)
	cfgPath := writeConfig(t, srv.URL, t.TempDir())
	override := t.TempDir()

	err := testApp().Run([]string{"rn-table-scraper", "--config", cfgPath, "--output-dir", override, "run"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(override, "current", "table_1.csv"))
}

func TestResolveAction(t *testing.T) {
	srv := newServer(t, landing)
	cfgPath := writeConfig(t, srv.URL, t.TempDir())

	err := testApp().Run([]string{"rn-table-scraper", "--config", cfgPath, "resolve"})
	assert.NoError(t, err)
}

func TestExtractActionWritesIntoOut(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(input, []byte(release), 0644))
	out := filepath.Join(dir, "out")

	err := testApp().Run([]string{"rn-table-scraper", "--log-level", "error", "extract",
		"--input", input, "--source-url", "https://kb.example.com/rn/1", "--out", out})
	require.NoError(t, err)

	_, rows, err := dataset.ReadTable(filepath.Join(out, "table_1.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://kb.example.com/rn/1", rows[0][3])
	assert.FileExists(t, filepath.Join(out, "table_2.csv"))
}

func TestExtractActionMissingInput(t *testing.T) {
	err := testApp().Run([]string{"rn-table-scraper", "extract", "--input", filepath.Join(t.TempDir(), "missing.html")})
	assert.Equal(t, models.ExitFatal, exitCode(err))
}
