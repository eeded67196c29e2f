// Package dataset persists extracted tables as one CSV file per table.
package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dtnitsch/rn-table-scraper/internal/common"
	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/storage"
	"go.uber.org/zap"
)

// FileName is the deterministic name of the table at 1-based position n.
func FileName(n int) string {
	return fmt.Sprintf("table_%d.csv", n)
}

// File describes one written table.
type File struct {
	Position  int      `yaml:"position"`
	Name      string   `yaml:"file"`
	Path      string   `yaml:"-"`
	Title     string   `yaml:"title"`
	Section   string   `yaml:"section"`
	Records   int      `yaml:"records"`
	Columns   []string `yaml:"columns"`
	SizeBytes int64    `yaml:"size_bytes"`
	SHA256    string   `yaml:"sha256"`
}

// WriteResult reports how many of the attempted tables reached disk.
type WriteResult struct {
	Attempted int
	Written   int
	Files     []File
	Failures  []error
}

// Partial reports whether some but not all tables were written.
func (r *WriteResult) Partial() bool {
	return r.Written < r.Attempted
}

type Writer struct {
	storage *storage.Storage
	logger  *zap.Logger
}

func NewWriter(s *storage.Storage, logger *zap.Logger) *Writer {
	if s == nil {
		s = &storage.Storage{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{storage: s, logger: logger}
}

// Write stores every table of snap under outputDir. Failing to create the
// directory is fatal; a failure on a single table is recorded and the
// remaining tables are still written.
func (w *Writer) Write(snap *models.Snapshot, outputDir string) (*WriteResult, error) {
	w.logger.Info("saving tables", zap.String("dir", outputDir), zap.Int("tables", len(snap.Tables)))
	if err := w.storage.EnsureDir(outputDir); err != nil {
		return nil, &models.WriteError{Path: outputDir, Err: err}
	}

	res := &WriteResult{Attempted: len(snap.Tables)}
	for i, t := range snap.Tables {
		pos := i + 1
		path := filepath.Join(outputDir, FileName(pos))

		data, err := Encode(t)
		if err == nil {
			err = w.storage.SaveFile(path, data)
		}
		if err != nil {
			werr := &models.WriteError{Path: path, Err: err}
			res.Failures = append(res.Failures, werr)
			w.logger.Error("error saving table", zap.Int("position", pos), zap.String("title", t.Title), zap.Error(err))
			continue
		}

		res.Written++
		res.Files = append(res.Files, File{
			Position:  pos,
			Name:      FileName(pos),
			Path:      path,
			Title:     t.Title,
			Section:   t.Section,
			Records:   len(t.Records),
			Columns:   t.Columns,
			SizeBytes: int64(len(data)),
			SHA256:    common.ContentHash(data),
		})
		w.logger.Info("saved table", zap.String("title", t.Title), zap.String("path", path), zap.Int("records", len(t.Records)))
	}

	w.logger.Info("finished saving tables", zap.Int("written", res.Written), zap.Int("attempted", res.Attempted))
	return res, nil
}

// Encode renders a table as CSV: the column line, then one line per record.
func Encode(t *models.Table) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Columns); err != nil {
		return nil, err
	}
	for _, rec := range t.Records {
		if err := cw.Write(t.Row(rec)); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadTable parses a file written by Write back into its columns and rows.
func ReadTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	lines, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%s: missing column line", path)
	}
	return lines[0], lines[1:], nil
}
