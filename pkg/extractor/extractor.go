// Package extractor turns the tables of a release notes page into tagged records.
//
// A page is split into section blocks (by default every div whose class
// contains "rnsub"). Each block carries a label taken from its tag element
// and any number of tables. Every table becomes a models.Table whose columns
// are the table headers followed by the synthetic provenance columns
// week_info, source_url and table_title.
//
// Extraction is best effort. Problems confined to a row or a table are
// recovered at that granularity and returned as diagnostics; only a document
// that cannot be parsed at all is an error.
package extractor

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/parser"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Options selects the structural markers the extractor relies on.
type Options struct {
	SectionSelector string
	LabelSelector   string
	TitleTag        string
	HeaderMode      string
}

// DefaultOptions matches the markup of the Alma knowledge base.
func DefaultOptions() Options {
	return Options{
		SectionSelector: `div[class*="rnsub"]`,
		LabelSelector:   "span.AlmaRNTag",
		TitleTag:        "h2",
		HeaderMode:      models.HeaderModeFlat,
	}
}

// OptionsFromConfig maps the extraction section of the config file.
func OptionsFromConfig(c models.ExtractionConfig) Options {
	return Options{
		SectionSelector: c.SectionSelector,
		LabelSelector:   c.LabelSelector,
		TitleTag:        c.TitleTag,
		HeaderMode:      c.HeaderMode,
	}
}

type Extractor struct {
	opts   Options
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{opts: opts, logger: logger}
}

// Result is the outcome of one extraction: the snapshot plus everything that
// was recovered from along the way.
type Result struct {
	Snapshot    *models.Snapshot
	Sections    []models.Section
	Diagnostics []models.Diagnostic
}

// Extract parses document and extracts every table of every section block.
func (e *Extractor) Extract(document []byte, sourceURL string) (*Result, error) {
	doc, err := parser.Document(document)
	if err != nil {
		return nil, err
	}

	titles := e.precedingTitles(doc)
	blocks := doc.Find(e.opts.SectionSelector)
	e.logger.Info("found section blocks", zap.Int("count", blocks.Length()))

	res := &Result{}
	blocks.Each(func(i int, block *goquery.Selection) {
		res.Sections = append(res.Sections, e.extractSection(i+1, block, sourceURL, titles, res))
	})

	res.Snapshot = models.NewSnapshot(sourceURL, res.Sections)
	res.Snapshot.PageTitle = parser.PageTitle(document, sourceURL)

	e.logger.Info("completed table extraction",
		zap.Int("tables", len(res.Snapshot.Tables)),
		zap.Int("records", res.Snapshot.RecordCount()),
		zap.Int("diagnostics", len(res.Diagnostics)),
	)
	return res, nil
}

type position struct {
	sectionIndex int
	section      string
	tableIndex   int
	table        string
}

func (p position) diagnostic(scope models.DiagnosticScope, row int, format string, args ...any) models.Diagnostic {
	return models.Diagnostic{
		Scope:        scope,
		SectionIndex: p.sectionIndex,
		Section:      p.section,
		TableIndex:   p.tableIndex,
		Table:        p.table,
		Row:          row,
		Message:      fmt.Sprintf(format, args...),
	}
}

func (e *Extractor) extractSection(idx int, block *goquery.Selection, sourceURL string, titles map[*html.Node]string, res *Result) models.Section {
	label := models.UnknownSection
	if tag := block.Find(e.opts.LabelSelector).First(); tag.Length() > 0 {
		label = parser.Text(tag)
	}

	tables := block.Find("table")
	e.logger.Debug("processing section",
		zap.Int("section", idx),
		zap.String("label", label),
		zap.Int("tables", tables.Length()),
	)

	section := models.Section{Label: label}
	tables.Each(func(j int, table *goquery.Selection) {
		pos := position{sectionIndex: idx, section: label, tableIndex: j + 1, table: models.UntitledTable}
		if len(table.Nodes) > 0 {
			if title, ok := titles[table.Nodes[0]]; ok {
				pos.table = title
			}
		}

		var t *models.Table
		err := guard(models.ScopeTable, func() error {
			var diags []models.Diagnostic
			t, diags = e.extractTable(table, sourceURL, pos)
			res.Diagnostics = append(res.Diagnostics, diags...)
			return nil
		})
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, pos.diagnostic(models.ScopeTable, 0, "table skipped: %v", err))
			return
		}
		section.Tables = append(section.Tables, t)
		e.logger.Debug("extracted table",
			zap.String("title", t.Title),
			zap.Int("records", len(t.Records)),
		)
	})
	return section
}

func (e *Extractor) extractTable(table *goquery.Selection, sourceURL string, pos position) (*models.Table, []models.Diagnostic) {
	var diags []models.Diagnostic

	headers := e.headers(table)
	if len(headers) == 0 {
		diags = append(diags, pos.diagnostic(models.ScopeTable, 0, "table has no header cells; records carry only synthetic columns"))
	}
	synthetic := make(map[string]bool, 3)
	for _, c := range models.SyntheticColumns() {
		synthetic[c] = true
	}
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		switch {
		case synthetic[h]:
			diags = append(diags, pos.diagnostic(models.ScopeTable, 0, "header %q collides with a provenance column; the provenance value wins", h))
		case seen[h]:
			diags = append(diags, pos.diagnostic(models.ScopeTable, 0, "duplicate header %q; the later column wins", h))
		}
		seen[h] = true
	}

	t := models.NewTable(pos.table, pos.section, headers)

	rows := table.Find("tr")
	if rows.Length() <= 1 {
		return t, diags
	}
	rows.Slice(1, goquery.ToEnd).Each(func(i int, row *goquery.Selection) {
		rowNum := i + 1
		var rec models.Record
		err := guard(models.ScopeRow, func() error {
			var note string
			rec, note = buildRecord(row, headers, sourceURL, pos)
			if note != "" {
				diags = append(diags, pos.diagnostic(models.ScopeRow, rowNum, "%s", note))
			}
			return nil
		})
		if err != nil {
			diags = append(diags, pos.diagnostic(models.ScopeRow, rowNum, "row skipped: %v", err))
			return
		}
		t.Records = append(t.Records, rec)
	})
	return t, diags
}

// headers returns the header labels according to the configured mode.
func (e *Extractor) headers(table *goquery.Selection) []string {
	var cells *goquery.Selection
	if e.opts.HeaderMode == models.HeaderModeFirstRow {
		first := table.Find("tr").First()
		cells = first.ChildrenFiltered("th")
		if cells.Length() == 0 {
			cells = first.ChildrenFiltered("td")
		}
	} else {
		cells = table.Find("th")
	}

	headers := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		headers = append(headers, parser.Text(c))
	})
	return headers
}

// buildRecord zips the row's data cells with headers. Cells beyond the header
// count are dropped; headers beyond the cell count are omitted from the record.
func buildRecord(row *goquery.Selection, headers []string, sourceURL string, pos position) (models.Record, string) {
	var cells []string
	row.Find("td").Each(func(_ int, c *goquery.Selection) {
		cells = append(cells, parser.Text(c))
	})

	n := min(len(cells), len(headers))
	rec := make(models.Record, n+3)
	for i := 0; i < n; i++ {
		rec[headers[i]] = cells[i]
	}
	rec[models.ColumnSection] = pos.section
	rec[models.ColumnSourceURL] = sourceURL
	rec[models.ColumnTitle] = pos.table

	var note string
	switch {
	case len(headers) == 0:
	case len(cells) < len(headers):
		note = fmt.Sprintf("row has %d cells for %d headers; trailing columns omitted", len(cells), len(headers))
	case len(cells) > len(headers):
		note = fmt.Sprintf("row has %d cells for %d headers; excess cells dropped", len(cells), len(headers))
	}
	return rec, note
}

// precedingTitles maps every table node to the text of the nearest title tag
// that starts before it in document order.
func (e *Extractor) precedingTitles(doc *goquery.Document) map[*html.Node]string {
	titles := make(map[*html.Node]string)
	var last *html.Node

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case e.opts.TitleTag:
				last = n
			case "table":
				if last != nil {
					titles[n] = parser.Text(doc.FindNodes(last))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return titles
}

// guard runs fn and converts a panic into an *models.ExtractionError of the given scope.
func guard(scope models.DiagnosticScope, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &models.ExtractionError{Scope: scope, Err: fmt.Errorf("recovered: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		return &models.ExtractionError{Scope: scope, Err: err}
	}
	return nil
}
