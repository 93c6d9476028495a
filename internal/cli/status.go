package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/studylog/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string           `json:"version"`
	DatabasePath      string           `json:"database_path"`
	DatabaseSizeBytes int64            `json:"database_size_bytes"`
	LocationEvents    int64            `json:"location_events"`
	QuestionEvents    int64            `json:"question_events"`
	Users             int64            `json:"users"`
	ExcludedUsers     []int            `json:"excluded_users"`
	OldestEvent       string           `json:"oldest_event,omitempty"`
	NewestEvent       string           `json:"newest_event,omitempty"`
	Generations       []generationJSON `json:"generations"`
}

type generationJSON struct {
	Entity      string `json:"entity"`
	Latest      int64  `json:"latest"`
	Generations int64  `json:"generations"`
	Rows        int64  `json:"rows"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return withSession(c.globals, c.executeWithSession)
}

// executeWithSession runs status against an open session (used by tests).
func (c *StatusCommand) executeWithSession(sess *session) error {
	stats, err := sess.store.GetStats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbSize := getDatabaseSize(sess.store.DB().DB, sess.dbPath)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, sess.dbPath, dbSize, sess.cfg.Study.ExcludedUsers)
	}
	return c.printStatusHuman(stats, sess.dbPath, dbSize, sess.cfg.ExcludedUsersString())
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, dbPath string, dbSize int64, excluded string) error {
	fmt.Println("Study Log Status")
	fmt.Println("================")
	fmt.Printf("Version:         %s\n", c.version)
	fmt.Printf("Database:        %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Location events: %s\n", formatNumber(stats.LocationEvents))
	fmt.Printf("Question events: %s\n", formatNumber(stats.QuestionEvents))
	fmt.Printf("Participants:    %s\n", formatNumber(stats.Users))
	if excluded != "" {
		fmt.Printf("Excluded:        %s\n", excluded)
	}

	if stats.LocationEvents > 0 {
		fmt.Printf("Oldest:          %s\n", stats.OldestEvent.UTC().Format("2006-01-02 15:04"))
		fmt.Printf("Newest:          %s\n", stats.NewestEvent.UTC().Format("2006-01-02 15:04"))
	}

	fmt.Println()
	fmt.Printf("  %-20s %8s %12s %10s\n", "Entity", "Latest", "Generations", "Rows")
	for _, g := range stats.Generations {
		if g.Latest == 0 {
			fmt.Printf("  %-20s %8s %12s %10s\n", g.Entity, "-", "0", "-")
			continue
		}
		fmt.Printf("  %-20s %8d %12d %10s\n", g.Entity, g.Latest, g.Generations, formatNumber(g.Rows))
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, dbPath string, dbSize int64, excluded []int) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		LocationEvents:    stats.LocationEvents,
		QuestionEvents:    stats.QuestionEvents,
		Users:             stats.Users,
		ExcludedUsers:     append([]int{}, excluded...),
		Generations:       make([]generationJSON, len(stats.Generations)),
	}

	if stats.LocationEvents > 0 {
		out.OldestEvent = stats.OldestEvent.UTC().Format(time.RFC3339)
		out.NewestEvent = stats.NewestEvent.UTC().Format(time.RFC3339)
	}

	for i, g := range stats.Generations {
		out.Generations[i] = generationJSON{
			Entity:      string(g.Entity),
			Latest:      g.Latest,
			Generations: g.Generations,
			Rows:        g.Rows,
		}
	}

	return printJSON(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
