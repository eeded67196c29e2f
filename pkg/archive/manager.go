// Package archive manages the two output slots under the base directory:
// "current" holds the latest run and "previous" the run before it.
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/storage"
	"go.uber.org/zap"
)

const (
	DefaultCurrentDir  = "current"
	DefaultPreviousDir = "previous"
	RawDir             = "raw"
)

// Options names the slots and the rotation mode.
type Options struct {
	CurrentDir  string
	PreviousDir string
	Mode        string // models.RotateAll or models.RotateLast
}

// Manager owns the slot layout under baseDir.
type Manager struct {
	baseDir string
	opts    Options
	storage *storage.Storage
	logger  *zap.Logger
}

// NewManager creates both slots under baseDir if they are missing.
func NewManager(baseDir string, opts Options, logger *zap.Logger) (*Manager, error) {
	if opts.CurrentDir == "" {
		opts.CurrentDir = DefaultCurrentDir
	}
	if opts.PreviousDir == "" {
		opts.PreviousDir = DefaultPreviousDir
	}
	if opts.Mode == "" {
		opts.Mode = models.RotateAll
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{baseDir: baseDir, opts: opts, storage: &storage.Storage{}, logger: logger}
	if err := m.ensureSlots(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) BaseDir() string     { return m.baseDir }
func (m *Manager) CurrentDir() string  { return filepath.Join(m.baseDir, m.opts.CurrentDir) }
func (m *Manager) PreviousDir() string { return filepath.Join(m.baseDir, m.opts.PreviousDir) }

func (m *Manager) ensureSlots() error {
	for _, dir := range []string{m.CurrentDir(), m.PreviousDir()} {
		if err := m.storage.EnsureDir(dir); err != nil {
			return &models.ArchiveError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	return nil
}

// Rotation reports what a call to Rotate did.
type Rotation struct {
	Mode     string   `yaml:"mode"`
	Moved    []string `yaml:"moved,omitempty"`
	Replaced []string `yaml:"replaced,omitempty"`
}

// Rotate moves the current slot into the previous slot.
//
// In RotateAll mode every entry of current is moved, replacing a same-named
// entry in previous. RotateLast reproduces the legacy behavior: same-named
// entries are removed from previous for every entry of current, but only the
// last entry of the name-sorted listing is moved. Entries that are not moved
// stay in current and are overwritten by the next write.
func (m *Manager) Rotate() (*Rotation, error) {
	if err := m.ensureSlots(); err != nil {
		return nil, err
	}

	cur, prev := m.CurrentDir(), m.PreviousDir()
	entries, err := os.ReadDir(cur)
	if err != nil {
		return nil, &models.ArchiveError{Op: "list", Path: cur, Err: err}
	}

	rot := &Rotation{Mode: m.opts.Mode}
	if len(entries) == 0 {
		m.logger.Info("current slot is empty; nothing to rotate", zap.String("dir", cur))
		return rot, nil
	}

	m.logger.Info("moving current files to previous slot",
		zap.String("from", cur), zap.String("to", prev),
		zap.Int("entries", len(entries)), zap.String("mode", m.opts.Mode))

	for _, e := range entries {
		replaced, err := m.clear(filepath.Join(prev, e.Name()))
		if err != nil {
			return rot, err
		}
		if replaced {
			rot.Replaced = append(rot.Replaced, e.Name())
		}
		if m.opts.Mode == models.RotateAll {
			if err := m.move(e.Name()); err != nil {
				return rot, err
			}
			rot.Moved = append(rot.Moved, e.Name())
		}
	}

	if m.opts.Mode == models.RotateLast {
		last := entries[len(entries)-1].Name()
		if err := m.move(last); err != nil {
			return rot, err
		}
		rot.Moved = append(rot.Moved, last)
	}

	m.logger.Info("rotation complete", zap.Int("moved", len(rot.Moved)), zap.Int("replaced", len(rot.Replaced)))
	return rot, nil
}

// clear removes path if it exists and reports whether it did.
func (m *Manager) clear(path string) (bool, error) {
	_, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &models.ArchiveError{Op: "stat", Path: path, Err: err}
	}
	if err := os.RemoveAll(path); err != nil {
		return false, &models.ArchiveError{Op: "remove", Path: path, Err: err}
	}
	return true, nil
}

func (m *Manager) move(name string) error {
	src := filepath.Join(m.CurrentDir(), name)
	dst := filepath.Join(m.PreviousDir(), name)
	if err := os.Rename(src, dst); err != nil {
		return &models.ArchiveError{Op: "move", Path: src, Err: err}
	}
	return nil
}

var invalidFilenameChar = regexp.MustCompile(`[^a-zA-Z0-9\-_]+`)

// sourceSlug turns a page URL into a filesystem-safe name.
func sourceSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.Trim(invalidFilenameChar.ReplaceAllString(rawURL, "_"), "_")
	}

	host := strings.ReplaceAll(u.Host, ".", "_")
	path := strings.Trim(invalidFilenameChar.ReplaceAllString(strings.TrimPrefix(u.Path, "/"), "_"), "_")
	if path == "" {
		return host
	}
	return fmt.Sprintf("%s_%s", host, path)
}

// SaveSource keeps the raw markup of the extracted page under <base>/raw so
// a run can be re-extracted offline. It returns the written path.
func (m *Manager) SaveSource(sourceURL string, html []byte) (string, error) {
	dir := filepath.Join(m.baseDir, RawDir)
	if err := m.storage.EnsureDir(dir); err != nil {
		return "", &models.WriteError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, sourceSlug(sourceURL)+".html")
	if err := m.storage.SaveFile(path, html); err != nil {
		return "", &models.WriteError{Path: path, Err: err}
	}
	return path, nil
}
