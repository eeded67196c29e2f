// Package models defines data structures for configuration and extraction results.
package models

import "time"

const (
	// UnknownSection labels a section block that has no tag element.
	UnknownSection = "Unknown Week"
	// UntitledTable titles a table with no preceding heading.
	UntitledTable = "Untitled Table"
)

// Synthetic columns appended to every table, in this order.
const (
	ColumnSection   = "week_info"
	ColumnSourceURL = "source_url"
	ColumnTitle     = "table_title"
)

// SyntheticColumns returns the provenance columns appended after the headers.
func SyntheticColumns() []string {
	return []string{ColumnSection, ColumnSourceURL, ColumnTitle}
}

// Record is one extracted row keyed by column name.
type Record map[string]string

// Table is a single extracted HTML table.
type Table struct {
	Title   string   `json:"title" yaml:"title"`
	Section string   `json:"section" yaml:"section"`
	Headers []string `json:"headers" yaml:"headers"`
	Columns []string `json:"columns" yaml:"columns"`
	Records []Record `json:"records" yaml:"-"`
}

// NewTable fixes the column list before any record is added. Each name
// appears once: a repeated header keeps its first position, and a header
// named like a synthetic column is left to the synthetic one.
func NewTable(title, section string, headers []string) *Table {
	synthetic := SyntheticColumns()
	seen := make(map[string]bool, len(headers)+len(synthetic))
	for _, c := range synthetic {
		seen[c] = true
	}

	columns := make([]string, 0, len(headers)+len(synthetic))
	for _, h := range headers {
		if seen[h] {
			continue
		}
		seen[h] = true
		columns = append(columns, h)
	}
	columns = append(columns, synthetic...)
	return &Table{
		Title:   title,
		Section: section,
		Headers: headers,
		Columns: columns,
	}
}

// Row returns a record's values in column order. Absent fields are empty.
func (t *Table) Row(r Record) []string {
	row := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		row[i] = r[col]
	}
	return row
}

// Section groups the tables found under one section block.
type Section struct {
	Label  string
	Tables []*Table
}

// Snapshot is everything extracted from one page during one run.
type Snapshot struct {
	SourceURL   string    `json:"source_url" yaml:"source_url"`
	PageTitle   string    `json:"page_title,omitempty" yaml:"page_title,omitempty"`
	ExtractedAt time.Time `json:"extracted_at" yaml:"extracted_at"`
	Tables      []*Table  `json:"tables" yaml:"tables"`
}

// NewSnapshot flattens sections into section order, then table order.
func NewSnapshot(sourceURL string, sections []Section) *Snapshot {
	s := &Snapshot{
		SourceURL:   sourceURL,
		ExtractedAt: time.Now(),
	}
	for _, sec := range sections {
		s.Tables = append(s.Tables, sec.Tables...)
	}
	return s
}

// RecordCount sums records across all tables.
func (s *Snapshot) RecordCount() int {
	n := 0
	for _, t := range s.Tables {
		n += len(t.Records)
	}
	return n
}

// DiagnosticScope is the granularity at which a problem was recovered.
type DiagnosticScope string

const (
	ScopeRow   DiagnosticScope = "row"
	ScopeTable DiagnosticScope = "table"
)

// Diagnostic is a non-fatal extraction finding.
type Diagnostic struct {
	Scope        DiagnosticScope `json:"scope" yaml:"scope"`
	SectionIndex int             `json:"section_index" yaml:"section_index"`
	Section      string          `json:"section" yaml:"section"`
	TableIndex   int             `json:"table_index" yaml:"table_index"`
	Table        string          `json:"table" yaml:"table"`
	Row          int             `json:"row,omitempty" yaml:"row,omitempty"` // 1-based data row, 0 for table scope
	Message      string          `json:"message" yaml:"message"`
}
