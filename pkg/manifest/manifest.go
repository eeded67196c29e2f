// Package manifest writes index.yaml, the description of the latest run kept
// next to the current and previous slots.
package manifest

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/archive"
	"github.com/dtnitsch/rn-table-scraper/pkg/dataset"
	"github.com/dtnitsch/rn-table-scraper/pkg/storage"
	"gopkg.in/yaml.v3"
)

const FileName = "index.yaml"

const (
	StatusSuccess        = "success"
	StatusPartialFailure = "partial_failure"
)

// Manifest describes the files of one run.
type Manifest struct {
	GeneratedAt time.Time           `yaml:"generated_at"`
	RootURL     string              `yaml:"root_url"`
	SourceURL   string              `yaml:"source_url"`
	PageTitle   string              `yaml:"page_title,omitempty"`
	Status      string              `yaml:"status"`
	OutputDir   string              `yaml:"output_dir"`
	Rotation    *archive.Rotation   `yaml:"rotation,omitempty"`
	Tables      []dataset.File      `yaml:"tables"`
	Failed      []string            `yaml:"failed,omitempty"`
	Diagnostics []models.Diagnostic `yaml:"diagnostics,omitempty"`
}

// Path returns the manifest location under baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, FileName)
}

// Write replaces <baseDir>/index.yaml with m.
func Write(baseDir string, m *Manifest) (string, error) {
	out, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := Path(baseDir)
	s := &storage.Storage{}
	if err := s.SaveFile(path, out); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// Read loads the manifest of the latest run. A missing file returns (nil, nil).
func Read(baseDir string) (*Manifest, error) {
	s := &storage.Storage{}
	path := Path(baseDir)
	if !s.HasFile(path) {
		return nil, nil
	}
	data, err := s.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
