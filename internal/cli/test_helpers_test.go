package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/runnerr0/studylog/internal/config"
	"github.com/runnerr0/studylog/internal/logging"
	"github.com/runnerr0/studylog/internal/metrics"
	"github.com/runnerr0/studylog/internal/storage"
	"github.com/stretchr/testify/require"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestSession opens a session on a fresh database in a temp directory.
func newTestSession(t *testing.T) *session {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "studylog.db")
	cfg.Export.Dir = filepath.Join(dir, "export")

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path, cfg.Storage.JournalMode)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &session{
		cfg:     cfg,
		dbPath:  cfg.Storage.Path,
		store:   store,
		logger:  logging.Discard(),
		metrics: metrics.New(),
	}
}

// writeFile writes content to name in a temp directory and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const testQuestions = `{"id": 1, "user_id": 5, "question_index": 1, "time": "2016-03-01T12:00:00Z", "event_type": "get task"}
{"id": 2, "user_id": 5, "question_index": 1, "time": "2016-03-01T12:10:00Z", "event_type": "post task"}
`

const testEvents = `{"id": 1, "user_id": 5, "tab_id": "1", "url": "http://url1.com", "title": "One", "event_type": "Tab activated", "visit_date": "2016-03-01T12:01:00Z", "log_date": "2016-03-01T12:01:00Z"}

{"id": 2, "user_id": 5, "tab_id": "1", "url": "http://url1.com", "event_type": "Window deactivated", "visit_date": "2016-03-01T12:04:00Z"}
{"id": 3, "user_id": 5, "tab_id": "1", "url": "http://url1.com", "event_type": "Rating: 2", "visit_date": "2016-03-01T12:40:00Z", "log_date": "2016-03-01T12:40:00Z"}
`

// importStudy loads the test events and questions into sess.
func importStudy(t *testing.T, sess *session) {
	t.Helper()
	cmd := &ImportCommand{
		Events:    writeFile(t, "events.jsonl", testEvents),
		Questions: writeFile(t, "questions.jsonl", testQuestions),
		globals:   &GlobalFlags{},
	}
	captureOutput(t, func() {
		require.NoError(t, cmd.executeWithSession(sess))
	})
}
