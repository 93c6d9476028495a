package cli

import (
	"fmt"

	"github.com/runnerr0/studylog/internal/storage"
)

// migrateJSON is the JSON output structure for the migrate command.
type migrateJSON struct {
	DatabasePath string `json:"database_path"`
	Applied      []int  `json:"applied"`
	Version      int    `json:"version"`
}

// Execute implements the go-flags Commander interface for MigrateCommand.
func (c *MigrateCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	dbPath, err := cfg.DBPath()
	if err != nil {
		return err
	}
	db, err := storage.OpenDB(cfg.Storage.Driver, dbPath, cfg.Storage.JournalMode)
	if err != nil {
		return err
	}
	defer db.Close()

	return c.executeWithRunner(storage.NewMigrationRunner(db.DB), dbPath)
}

// executeWithRunner applies migrations and reports the newly applied ones.
func (c *MigrateCommand) executeWithRunner(runner *storage.MigrationRunner, dbPath string) error {
	before, err := runner.Applied()
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}
	if err := runner.Run(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	after, err := runner.Applied()
	if err != nil {
		return err
	}

	seen := make(map[int]bool, len(before))
	for _, v := range before {
		seen[v] = true
	}
	out := migrateJSON{DatabasePath: dbPath, Applied: []int{}}
	for _, v := range after {
		if !seen[v] {
			out.Applied = append(out.Applied, v)
		}
		out.Version = v
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(out)
	}
	if len(out.Applied) == 0 {
		fmt.Printf("Database %s is up to date (schema version %d)\n", dbPath, out.Version)
		return nil
	}
	fmt.Printf("Applied %d migration(s) to %s, schema version %d\n", len(out.Applied), dbPath, out.Version)
	return nil
}
