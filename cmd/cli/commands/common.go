package commands

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/pricecast/cmd/cli/config"
	"github.com/inferloop/pricecast/internal/analytics"
	"github.com/inferloop/pricecast/internal/observability/metrics"
)

// GlobalOptions holds the persistent flags shared by every command
type GlobalOptions struct {
	ConfigFile string
	Verbose    bool
	Input      string

	// LogOutput receives log lines; nil means stderr
	LogOutput io.Writer
}

// AddPersistentFlags registers the global flags on root
func (g *GlobalOptions) AddPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&g.ConfigFile, "config", "", "config file (default is ./pricecast.yaml or "+config.GetDefaultConfigPath()+")")
	root.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVarP(&g.Input, "input", "i", "", "input CSV file (overrides input.path)")
}

// session is the per-invocation state built from the global options
type session struct {
	config  *config.CLIConfig
	logger  *logrus.Entry
	engine  *analytics.Engine
	metrics *metrics.PrometheusMetrics
	input   string
}

func (g *GlobalOptions) newSession(command string, configure func(*config.CLIConfig)) (*session, error) {
	cfg, err := config.LoadConfig(g.ConfigFile)
	if err != nil {
		return nil, err
	}

	if g.Input != "" {
		cfg.Input.Path = g.Input
	}
	if configure != nil {
		configure(cfg)
	}

	level := cfg.Log.Level
	if g.Verbose {
		level = "debug"
	}
	logger := setupLogger(level, cfg.Log.Format)
	if g.LogOutput != nil {
		logger.SetOutput(g.LogOutput)
	}

	engine, err := analytics.NewEngine(cfg.EngineConfig(), logger)
	if err != nil {
		return nil, err
	}

	s := &session{
		config: cfg,
		logger: logger.WithFields(logrus.Fields{
			"command":    command,
			"session_id": uuid.New().String(),
		}),
		engine: engine,
		input:  cfg.Input.Path,
	}

	if cfg.Metrics.Enabled || cfg.Metrics.TextfilePath != "" {
		s.metrics, err = metrics.NewPrometheusMetrics(&cfg.Metrics, logger)
		if err != nil {
			return nil, err
		}
		engine.SetMetrics(s.metrics)
	}

	return s, nil
}

// flushMetrics writes the metrics textfile when metrics are on. A write
// failure is logged and does not fail the command.
func (s *session) flushMetrics() {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.WriteTextfile(""); err != nil {
		s.logger.WithError(err).Warn("Failed to write metrics")
	}
}

// finish records the command as one run and writes the metrics textfile. It is
// used by commands that do not go through Engine.Run.
func (s *session) finish(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRun(err)
	s.flushMetrics()
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set log format
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
