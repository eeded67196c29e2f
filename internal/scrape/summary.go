package scrape

import (
	"io"
	"os"

	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/dataset"
	"github.com/dtnitsch/rn-table-scraper/pkg/pipeline"
	"gopkg.in/yaml.v3"
)

// Summary is printed to stdout at the end of run and extract.
type Summary struct {
	RunID       int64          `yaml:"run_id,omitempty"`
	Status      string         `yaml:"status"`
	Reason      string         `yaml:"reason,omitempty"`
	SourceURL   string         `yaml:"source_url,omitempty"`
	PageTitle   string         `yaml:"page_title,omitempty"`
	OutputDir   string         `yaml:"output_dir,omitempty"`
	Tables      int            `yaml:"tables"`
	Records     int            `yaml:"records"`
	Diagnostics int            `yaml:"diagnostics"`
	Moved       []string       `yaml:"moved_to_previous,omitempty"`
	Files       []dataset.File `yaml:"files,omitempty"`
	Failed      []string       `yaml:"failed,omitempty"`
	Manifest    string         `yaml:"manifest,omitempty"`
}

func summarize(status, outputDir string, snap *models.Snapshot, diags []models.Diagnostic, wr *dataset.WriteResult) *Summary {
	s := &Summary{Status: status, OutputDir: outputDir, Diagnostics: len(diags)}
	if snap != nil {
		s.SourceURL = snap.SourceURL
		s.PageTitle = snap.PageTitle
		s.Tables = len(snap.Tables)
		s.Records = snap.RecordCount()
	}
	if wr != nil {
		s.Files = wr.Files
		for _, f := range wr.Failures {
			s.Failed = append(s.Failed, f.Error())
		}
	}
	return s
}

func summarizeOutcome(out *pipeline.Outcome, outputDir string) *Summary {
	s := summarize(out.Status(), outputDir, out.Snapshot, out.Diagnostics, out.Write)
	s.RunID = out.RunID
	s.Reason = out.Reason
	if s.SourceURL == "" {
		s.SourceURL = out.SourceURL
	}
	if out.Rotation != nil {
		s.Moved = out.Rotation.Moved
	}
	s.Manifest = out.ManifestPath
	if out.NoUpdate {
		s.OutputDir = ""
	}
	return s
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func printYAML(v any) error {
	return writeYAML(os.Stdout, v)
}
