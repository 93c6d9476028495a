package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/runnerr0/studylog/internal/compute"
	"github.com/runnerr0/studylog/internal/config"
	"github.com/runnerr0/studylog/internal/corrections"
	"github.com/runnerr0/studylog/internal/logging"
	"github.com/runnerr0/studylog/internal/metrics"
	"github.com/runnerr0/studylog/internal/storage"
	"github.com/runnerr0/studylog/internal/urls"
)

// envFile is read from the working directory when present.
const envFile = ".env"

// session is everything one command run needs: resolved config, an open
// store, a logger and the run's metrics.
type session struct {
	cfg     *config.Config
	dbPath  string
	store   *storage.SQLiteStore
	logger  *slog.Logger
	metrics *metrics.PassMetrics
	closers []io.Closer
}

// loadConfig resolves configuration: file (or the default, created on first
// use), then .env and STUDYLOG_* variables, then command-line overrides.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if globals.Config != "" {
		cfg, err = config.Load(globals.Config)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, envFile); err != nil {
		return nil, err
	}
	if globals.DB != "" {
		cfg.Storage.Path = globals.DB
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession loads config, sets up logging to stderr and opens the migrated store.
func openSession(globals *GlobalFlags) (*session, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(cfg.Logging, os.Stderr, globals.Verbose)
	if err != nil {
		return nil, err
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	store, err := storage.Open(cfg.Storage.Driver, dbPath, cfg.Storage.JournalMode)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	logger.Debug("opened database", "path", dbPath, "driver", cfg.Storage.Driver)

	return &session{
		cfg:     cfg,
		dbPath:  dbPath,
		store:   store,
		logger:  logger,
		metrics: metrics.New(),
		closers: []io.Closer{store, logCloser},
	}, nil
}

// Close writes the metrics textfile, if configured, and releases resources.
func (s *session) Close() error {
	var firstErr error
	if s.cfg.Metrics.Textfile != "" {
		path, err := config.ExpandPath(s.cfg.Metrics.Textfile)
		if err == nil {
			err = s.metrics.WriteTextfile(path)
		}
		if err != nil {
			s.logger.Warn("metrics not written", "error", err)
			firstErr = err
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *session) runner() *compute.Runner {
	return compute.NewRunner(s.store, compute.Options{
		Logger:       s.logger,
		Metrics:      s.metrics,
		ConcernCount: s.cfg.Study.ConcernCount,
	})
}

// classifier picks the page type table when one is given, otherwise the
// configured or built-in rule table.
func (s *session) classifier(pageTypes string) (urls.Classifier, error) {
	if pageTypes == "" {
		pageTypes = s.cfg.Classifier.PageTypesFile
	}
	if pageTypes != "" {
		path, err := config.ExpandPath(pageTypes)
		if err != nil {
			return nil, err
		}
		lookup, err := urls.LoadLookup(path)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("loaded page type table", "path", path, "urls", lookup.Len())
		return lookup, nil
	}
	return s.rules()
}

func (s *session) rules() (*urls.RuleSet, error) {
	if s.cfg.Classifier.RulesFile == "" {
		return urls.DefaultRuleSet(), nil
	}
	path, err := config.ExpandPath(s.cfg.Classifier.RulesFile)
	if err != nil {
		return nil, err
	}
	return urls.LoadRuleSet(path)
}

func (s *session) corrections(override string) (*corrections.Corrections, error) {
	path := override
	if path == "" {
		path = s.cfg.Corrections.File
	}
	if path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return nil, err
		}
		path = expanded
	}
	return corrections.Load(path)
}

// withSession opens a session for the duration of fn.
func withSession(globals *GlobalFlags, fn func(*session) error) error {
	sess, err := openSession(globals)
	if err != nil {
		return err
	}
	runErr := fn(sess)
	closeErr := sess.Close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
