// Package pipeline runs one scrape: resolve the latest release notes page from
// the landing page, extract its tables, rotate the output slots and write the
// new dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtnitsch/rn-table-scraper/internal/common"
	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/archive"
	"github.com/dtnitsch/rn-table-scraper/pkg/dataset"
	"github.com/dtnitsch/rn-table-scraper/pkg/db"
	"github.com/dtnitsch/rn-table-scraper/pkg/extractor"
	"github.com/dtnitsch/rn-table-scraper/pkg/manifest"
	"github.com/dtnitsch/rn-table-scraper/pkg/metrics"
	"github.com/dtnitsch/rn-table-scraper/pkg/resolver"
	"github.com/dtnitsch/rn-table-scraper/pkg/storage"
	"go.uber.org/zap"
)

// Fetcher retrieves the body of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Outcome describes a finished run.
type Outcome struct {
	RunID        int64
	RootURL      string
	SourceURL    string
	NoUpdate     bool
	Reason       string
	Snapshot     *models.Snapshot
	Diagnostics  []models.Diagnostic
	Rotation     *archive.Rotation
	Write        *dataset.WriteResult
	SourcePath   string
	ManifestPath string
}

// Status is the run status recorded in history and the manifest.
func (o *Outcome) Status() string {
	switch {
	case o.NoUpdate:
		return db.RunNoUpdate
	case o.Write != nil && o.Write.Partial():
		return db.RunPartialFailure
	default:
		return db.RunSuccess
	}
}

type Pipeline struct {
	cfg       *models.Config
	fetcher   Fetcher
	extractor *extractor.Extractor
	archive   *archive.Manager
	writer    *dataset.Writer
	history   *db.DB
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Pipeline)

// WithHistory records every run in database.
func WithHistory(database *db.DB) Option {
	return func(p *Pipeline) { p.history = database }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New prepares the output layout under cfg.Output.BaseDir. cfg must already
// be validated.
func New(cfg *models.Config, f Fetcher, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	mgr, err := archive.NewManager(cfg.Output.BaseDir, archive.Options{
		CurrentDir:  cfg.Output.CurrentDir,
		PreviousDir: cfg.Output.PreviousDir,
		Mode:        cfg.Output.Rotation,
	}, logger.Named("archive"))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		fetcher:   f,
		extractor: extractor.New(extractor.OptionsFromConfig(cfg.Extraction), logger.Named("extractor")),
		archive:   mgr,
		writer:    dataset.NewWriter(&storage.Storage{}, logger.Named("writer")),
		logger:    logger,
		now:       time.Now,
	}
	if cfg.Metrics.Textfile != "" {
		p.metrics = metrics.New()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Archive exposes the slot manager.
func (p *Pipeline) Archive() *archive.Manager { return p.archive }

// Run executes the whole pipeline. A landing page without a link is not an
// error: the outcome is flagged NoUpdate and nothing on disk changes. A
// partial write is reported through the outcome, not the error.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	start := p.now()
	out := &Outcome{RootURL: p.cfg.URLs.MainURL}

	if p.history != nil {
		id, err := p.history.StartRun(out.RootURL)
		if err != nil {
			p.logger.Warn("failed to record run start", zap.Error(err))
		}
		out.RunID = id
	}

	err := p.run(ctx, out)
	if err != nil {
		p.logger.Error("run failed", zap.Error(err), zap.Duration("elapsed", p.now().Sub(start)))
	} else {
		p.logger.Info("run finished",
			zap.String("status", out.Status()),
			zap.Duration("elapsed", p.now().Sub(start)))
	}

	p.recordHistory(out, err)
	p.publishMetrics(out, err)
	return out, err
}

func (p *Pipeline) run(ctx context.Context, out *Outcome) error {
	p.logger.Info("fetching landing page", zap.String("url", out.RootURL))
	root, err := p.fetcher.Fetch(ctx, out.RootURL)
	if err != nil {
		return err
	}

	source, err := ResolveLatest(p.cfg.URLs, root)
	if models.IsNotFound(err) {
		out.NoUpdate = true
		out.Reason = err.Error()
		p.logger.Info("no release notes link found; nothing to update", zap.String("reason", out.Reason))
		return nil
	}
	if err != nil {
		return err
	}
	out.SourceURL = source
	p.compareWithLastRun(source)

	p.logger.Info("fetching release notes page", zap.String("url", source))
	page, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		return err
	}

	res, err := p.extractor.Extract(page, source)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", source, err)
	}
	out.Snapshot = res.Snapshot
	out.Diagnostics = res.Diagnostics
	for _, d := range res.Diagnostics {
		p.logger.Warn("extraction diagnostic",
			zap.String("scope", string(d.Scope)),
			zap.Int("section", d.SectionIndex),
			zap.Int("table", d.TableIndex),
			zap.Int("row", d.Row),
			zap.String("message", d.Message))
	}

	if path, err := p.archive.SaveSource(source, page); err != nil {
		p.logger.Warn("failed to keep source page", zap.Error(err))
	} else {
		out.SourcePath = path
	}

	if out.Rotation, err = p.archive.Rotate(); err != nil {
		return err
	}

	if out.Write, err = p.writer.Write(res.Snapshot, p.archive.CurrentDir()); err != nil {
		return err
	}
	for _, f := range out.Write.Failures {
		p.logger.Error("table not written", zap.Error(f))
	}

	p.writeManifest(out)
	return nil
}

// ResolveLatest returns the absolute URL of the latest release notes page
// linked from the landing page.
func ResolveLatest(urls models.URLsConfig, root []byte) (string, error) {
	href, err := resolver.Resolve(root, urls.LinkSelectors.Container, urls.LinkSelectors.List)
	if err != nil {
		return "", err
	}
	if common.IsAbsoluteURL(href) {
		return href, nil
	}
	return resolver.ResolveURL(href, urls.MainURL)
}

func (p *Pipeline) writeManifest(out *Outcome) {
	status := manifest.StatusSuccess
	if out.Write.Partial() {
		status = manifest.StatusPartialFailure
	}
	m := &manifest.Manifest{
		GeneratedAt: p.now().UTC(),
		RootURL:     out.RootURL,
		SourceURL:   out.SourceURL,
		PageTitle:   out.Snapshot.PageTitle,
		Status:      status,
		OutputDir:   p.cfg.Output.CurrentDir,
		Rotation:    out.Rotation,
		Tables:      out.Write.Files,
		Diagnostics: out.Diagnostics,
	}
	for _, f := range out.Write.Failures {
		var werr *models.WriteError
		if errors.As(f, &werr) {
			m.Failed = append(m.Failed, werr.Path)
		} else {
			m.Failed = append(m.Failed, f.Error())
		}
	}

	path, err := manifest.Write(p.archive.BaseDir(), m)
	if err != nil {
		p.logger.Warn("failed to write manifest", zap.Error(err))
		return
	}
	out.ManifestPath = path
}

// compareWithLastRun logs whether the landing page still points at the page
// extracted by the previous recorded run. The run proceeds either way.
func (p *Pipeline) compareWithLastRun(source string) {
	if p.history == nil {
		return
	}
	last, err := p.history.LastSourceURL()
	if err != nil {
		p.logger.Warn("failed to read last source URL", zap.Error(err))
		return
	}
	if last == source {
		p.logger.Info("latest page unchanged since last run", zap.String("url", source))
	} else if last != "" {
		p.logger.Info("new release notes page", zap.String("url", source), zap.String("previous", last))
	}
}

func (p *Pipeline) recordHistory(out *Outcome, runErr error) {
	if p.history == nil || out.RunID == 0 {
		return
	}

	r := db.RunResult{
		Status:          out.Status(),
		SourceURL:       out.SourceURL,
		DiagnosticCount: len(out.Diagnostics),
		Err:             runErr,
	}
	if runErr != nil {
		r.Status = db.RunFailed
	}
	if out.Snapshot != nil {
		r.PageTitle = out.Snapshot.PageTitle
		r.TablesExtracted = len(out.Snapshot.Tables)
		r.RecordsExtracted = out.Snapshot.RecordCount()
	}
	if out.Write != nil {
		r.FilesWritten = out.Write.Written
		for _, f := range out.Write.Files {
			err := p.history.InsertRunTable(out.RunID, db.RunTable{
				Position:     f.Position,
				Title:        f.Title,
				SectionLabel: f.Section,
				RecordCount:  f.Records,
				ColumnCount:  len(f.Columns),
				FileName:     f.Name,
				ContentHash:  f.SHA256,
			})
			if err != nil {
				p.logger.Warn("failed to record run table", zap.Int("position", f.Position), zap.Error(err))
			}
		}
	}

	if err := p.history.FinishRun(out.RunID, r); err != nil {
		p.logger.Warn("failed to record run result", zap.Int64("run_id", out.RunID), zap.Error(err))
	}
}

func (p *Pipeline) publishMetrics(out *Outcome, runErr error) {
	if p.metrics == nil {
		return
	}
	m := p.metrics
	if out.Snapshot != nil {
		m.TablesExtracted.Set(float64(len(out.Snapshot.Tables)))
		m.RecordsExtracted.Set(float64(out.Snapshot.RecordCount()))
	}
	if out.Write != nil {
		m.FilesWritten.Set(float64(out.Write.Written))
		m.FilesFailed.Set(float64(len(out.Write.Failures)))
	}
	for _, scope := range []models.DiagnosticScope{models.ScopeRow, models.ScopeTable} {
		n := 0
		for _, d := range out.Diagnostics {
			if d.Scope == scope {
				n++
			}
		}
		m.Diagnostics.WithLabelValues(string(scope)).Set(float64(n))
	}
	m.Finish(p.now(), runErr == nil)

	if err := m.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		p.logger.Warn("failed to write metrics", zap.String("path", p.cfg.Metrics.Textfile), zap.Error(err))
	}
}
