package scrape

import (
	"errors"
	"fmt"

	"github.com/dtnitsch/rn-table-scraper/models"
	"github.com/dtnitsch/rn-table-scraper/pkg/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// LoadConfig reads --config and applies the command line overrides on top of
// the file and the environment.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if applyOverrides(c, cfg) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return nil, &models.ConfigurationError{Field: "logging.level", Reason: fmt.Sprintf("unknown level %q", cfg.Logging.Level), Err: err}
	}
	return cfg, nil
}

// applyOverrides copies the global flags that were set into cfg and reports
// whether anything changed.
func applyOverrides(c *cli.Context, cfg *models.Config) bool {
	changed := false
	set := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = c.String(flag)
			changed = true
		}
	}
	set("log-level", &cfg.Logging.Level)
	set("output-dir", &cfg.Output.BaseDir)
	set("rotation", &cfg.Output.Rotation)
	set("history-db", &cfg.History.DBPath)
	set("metrics-textfile", &cfg.Metrics.Textfile)
	return changed
}

// NewLogger builds the logger for one invocation. The caller syncs it.
func NewLogger(cfg models.LogConfig) (*zap.Logger, error) {
	logger, logFile, err := logging.New(logging.Config{
		Level:       cfg.Level,
		Development: cfg.Development,
		Dir:         cfg.Dir,
	})
	if err != nil {
		return nil, err
	}
	if logFile != "" {
		logger.Info("logging to file", zap.String("path", logFile))
	}
	return logger, nil
}

// fatal reports err and exits with models.ExitFatal.
func fatal(logger *zap.Logger, msg string, err error) error {
	if logger != nil {
		logger.Error(msg, zap.Error(err))
	}
	var cerr *models.ConfigurationError
	if errors.As(err, &cerr) {
		return cli.Exit(fmt.Sprintf("configuration error: %v", err), models.ExitFatal)
	}
	return cli.Exit(fmt.Sprintf("%s: %v", msg, err), models.ExitFatal)
}

func syncLogger(logger *zap.Logger) {
	// stderr sync returns EINVAL on some platforms
	_ = logger.Sync()
}
