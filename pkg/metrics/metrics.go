// Package metrics exposes the counts of the last run in the Prometheus
// textfile format, for pickup by node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gauges of one run on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	TablesExtracted  prometheus.Gauge
	RecordsExtracted prometheus.Gauge
	FilesWritten     prometheus.Gauge
	FilesFailed      prometheus.Gauge
	Diagnostics      *prometheus.GaugeVec
	LastRunTimestamp prometheus.Gauge
	LastRunSuccess   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TablesExtracted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rnscrape_tables_extracted",
			Help: "Tables extracted by the last run.",
		}),
		RecordsExtracted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rnscrape_records_extracted",
			Help: "Records extracted by the last run.",
		}),
		FilesWritten: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rnscrape_files_written",
			Help: "Table files written by the last run.",
		}),
		FilesFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rnscrape_files_failed",
			Help: "Table files the last run failed to write.",
		}),
		Diagnostics: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rnscrape_diagnostics",
			Help: "Non-fatal extraction diagnostics of the last run by scope.",
		}, []string{"scope"}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rnscrape_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rnscrape_last_run_success",
			Help: "1 if the last run completed without a fatal error.",
		}),
	}
	m.Registry.MustRegister(
		m.TablesExtracted,
		m.RecordsExtracted,
		m.FilesWritten,
		m.FilesFailed,
		m.Diagnostics,
		m.LastRunTimestamp,
		m.LastRunSuccess,
	)
	return m
}

// Finish stamps the run time and outcome.
func (m *Metrics) Finish(at time.Time, success bool) {
	m.LastRunTimestamp.Set(float64(at.Unix()))
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
}

// WriteTextfile writes every registered metric to path.
func (m *Metrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
