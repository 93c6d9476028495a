package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/runnerr0/studylog/internal/storage"
)

// maxLineBytes bounds one JSON-lines record; page titles can be long.
const maxLineBytes = 4 << 20

// locationEventJSON is one line of a browser events file.
type locationEventJSON struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	TabID     string    `json:"tab_id"`
	TabIndex  int64     `json:"tab_index"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	EventType string    `json:"event_type"`
	VisitDate time.Time `json:"visit_date"`
	LogDate   time.Time `json:"log_date"`
}

// questionEventJSON is one line of a form events file.
type questionEventJSON struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	QuestionIndex int64     `json:"question_index"`
	Time          time.Time `json:"time"`
	EventType     string    `json:"event_type"`
}

// importJSON is the JSON output structure for the import command.
type importJSON struct {
	LocationEvents int64 `json:"location_events"`
	QuestionEvents int64 `json:"question_events"`
}

// readJSONLines decodes one value per non-empty line of r.
func readJSONLines[T any](r io.Reader) ([]T, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var out []T
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func readJSONLinesFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := readJSONLines[T](f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Execute implements the go-flags Commander interface for ImportCommand.
func (c *ImportCommand) Execute(args []string) error {
	if c.Events == "" && c.Questions == "" {
		return fmt.Errorf("--events or --questions is required for import command")
	}
	return withSession(c.globals, c.executeWithSession)
}

// executeWithSession runs the import against an open session (used by tests).
func (c *ImportCommand) executeWithSession(sess *session) error {
	ctx := context.Background()
	var out importJSON

	if c.Events != "" {
		records, err := readJSONLinesFile[locationEventJSON](c.Events)
		if err != nil {
			return fmt.Errorf("reading events: %w", err)
		}
		events := make([]storage.LocationEvent, len(records))
		for i, r := range records {
			events[i] = storage.LocationEvent{
				ID:        r.ID,
				UserID:    r.UserID,
				TabID:     r.TabID,
				TabIndex:  r.TabIndex,
				URL:       r.URL,
				Title:     r.Title,
				EventType: r.EventType,
				VisitDate: r.VisitDate,
				LogDate:   r.LogDate,
			}
			if events[i].LogDate.IsZero() {
				events[i].LogDate = r.VisitDate
			}
		}
		n, err := sess.store.InsertLocationEvents(ctx, events)
		if err != nil {
			return fmt.Errorf("storing events: %w", err)
		}
		out.LocationEvents = n
		sess.logger.Info("imported location events", "path", c.Events, "rows", n)
	}

	if c.Questions != "" {
		records, err := readJSONLinesFile[questionEventJSON](c.Questions)
		if err != nil {
			return fmt.Errorf("reading questions: %w", err)
		}
		events := make([]storage.QuestionEvent, len(records))
		for i, r := range records {
			events[i] = storage.QuestionEvent{
				ID:            r.ID,
				UserID:        r.UserID,
				QuestionIndex: r.QuestionIndex,
				Time:          r.Time,
				EventType:     r.EventType,
			}
		}
		n, err := sess.store.InsertQuestionEvents(ctx, events)
		if err != nil {
			return fmt.Errorf("storing questions: %w", err)
		}
		out.QuestionEvents = n
		sess.logger.Info("imported question events", "path", c.Questions, "rows", n)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(out)
	}
	fmt.Printf("Imported %s location events, %s question events\n",
		formatNumber(out.LocationEvents), formatNumber(out.QuestionEvents))
	return nil
}
