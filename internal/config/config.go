package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/studylog/config.yaml"

// Environment variables that override values loaded from the config file.
const (
	EnvDBPath   = "STUDYLOG_DB_PATH"
	EnvDBDriver = "STUDYLOG_DB_DRIVER"
	EnvLogLevel = "STUDYLOG_LOG_LEVEL"
)

// Config holds all studylog configuration.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Study       StudyConfig       `yaml:"study"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Corrections CorrectionsConfig `yaml:"corrections"`
	Ngrams      NgramConfig       `yaml:"ngrams"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Export      ExportConfig      `yaml:"export"`
}

type StorageConfig struct {
	Path        string `yaml:"path" validate:"required"`
	Driver      string `yaml:"driver" validate:"oneof=sqlite3 sqlite"`
	JournalMode string `yaml:"journal_mode" validate:"oneof=wal delete truncate memory"`
}

type StudyConfig struct {
	// ConcernCount is the number of concerns participants were counter-balanced over.
	ConcernCount int `yaml:"concern_count" validate:"gte=1"`
	// RatingTime selects which event timestamp aligns ratings to task periods.
	RatingTime    string `yaml:"rating_time" validate:"oneof=log visit"`
	ExcludedUsers []int  `yaml:"excluded_users"`
}

type ClassifierConfig struct {
	// RulesFile is an ordered YAML table of label rules. Empty means the built-in table.
	RulesFile string `yaml:"rules_file"`
	// PageTypesFile is a JSON map of URL to page type, used by graph and n-gram passes.
	PageTypesFile string `yaml:"page_types_file"`
}

type CorrectionsConfig struct {
	File string `yaml:"file"`
}

type NgramConfig struct {
	MinLength int `yaml:"min_length" validate:"gte=1"`
	MaxLength int `yaml:"max_length" validate:"gtefield=MinLength"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
	File   string `yaml:"file"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text format.
	Textfile string `yaml:"textfile"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// ApplyEnv overlays STUDYLOG_* environment variables onto cfg. Values found in
// envFile (a dotenv file) are loaded first without clobbering variables that are
// already set in the process environment. A missing envFile is not an error.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("loading env file: %w", err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBDriver)); v != "" {
		cfg.Storage.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints declared in the struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DBPath returns the absolute database path with ~ expanded.
func (c *Config) DBPath() (string, error) {
	return ExpandPath(c.Storage.Path)
}

// ExcludedUsersString renders the excluded user list for human output.
func (c *Config) ExcludedUsersString() string {
	parts := make([]string, len(c.Study.ExcludedUsers))
	for i, id := range c.Study.ExcludedUsers {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
