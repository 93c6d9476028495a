package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:        "~/.config/studylog/studylog.db",
			Driver:      "sqlite3",
			JournalMode: "wal",
		},
		Study: StudyConfig{
			ConcernCount:  6,
			RatingTime:    "log",
			ExcludedUsers: DefaultExcludedUsers(),
		},
		Classifier: ClassifierConfig{
			RulesFile:     "",
			PageTypesFile: "",
		},
		Corrections: CorrectionsConfig{
			File: "",
		},
		Ngrams: NgramConfig{
			MinLength: 2,
			MaxLength: 6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Metrics: MetricsConfig{
			Textfile: "",
		},
		Export: ExportConfig{
			Dir: ".",
		},
	}
}

// DefaultExcludedUsers returns the participant ids left out of cross-participant
// analyses. These are the pilot sessions run before the study protocol was fixed.
func DefaultExcludedUsers() []int {
	return []int{1, 2, 3, 4}
}
