package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/runnerr0/studylog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(min, sec int) time.Time {
	return time.Date(2016, 3, 1, 12, min, sec, 0, time.UTC)
}

func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.Open(storage.DriverMattn, filepath.Join(t.TempDir(), "studylog.db"), "wal")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return records
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"location-events",
		"location-ratings",
		"location-visits",
		"navigation-edges",
		"navigation-ngrams",
		"navigation-vertices",
		"task-periods",
		"unique-cues",
		"unique-urls",
	}, Names())
}

func TestDump_UnknownName(t *testing.T) {
	d := NewDumper(openTestStore(t), nil)
	_, err := d.Dump(context.Background(), "page-visits", 0, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUnknownDump)
	assert.False(t, Known("page-visits"))
	assert.True(t, Known("location-visits"))
}

func TestDump_LocationEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.InsertLocationEvents(ctx, []storage.LocationEvent{
		{ID: 4, UserID: 2, TabID: "9", URL: "https://github.com/x", Title: "X, the repo", EventType: "Tab activated",
			VisitDate: at(1, 0), LogDate: at(1, 2)},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	summary, err := NewDumper(store, nil).Dump(ctx, "location-events", 0, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rows)

	records := readCSV(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Id", "User", "Visit Date", "Log Date", "Title", "URL", "Event type", "Tab ID"}, records[0])
	assert.Equal(t, []string{
		"4", "2", "2016-03-01 12:01:00", "2016-03-01 12:01:02", "X, the repo",
		"https://github.com/x", "Tab activated", "9",
	}, records[1])
}

func TestDump_LocationVisitsSelectsGeneration(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.WriteLocationVisits(ctx, 1, []storage.LocationVisit{
		{UserID: 5, TaskIndex: 1, ConcernIndex: 0, TabID: "1", URL: "https://stackoverflow.com/questions/1", Start: at(1, 0), End: at(2, 0)},
	})
	require.NoError(t, err)
	_, err = store.WriteLocationVisits(ctx, 1, []storage.LocationVisit{
		{UserID: 5, TaskIndex: 1, ConcernIndex: 0, TabID: "1", URL: "https://example.com", Start: at(1, 0), End: at(2, 0)},
		{UserID: 6, TaskIndex: 1, ConcernIndex: 1, TabID: "1", URL: "https://github.com", Start: at(1, 0), End: at(2, 0)},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	summary, err := NewDumper(store, nil).Dump(ctx, "location-visits", 1, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.ComputeIndex)

	records := readCSV(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, "Domain", records[0][6])
	assert.Equal(t, "Stack Overflow", records[1][6])
	assert.Equal(t, "2016-03-01 12:02:00", records[1][9])

	buf.Reset()
	summary, err = NewDumper(store, nil).Dump(ctx, "location-visits", 0, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.ComputeIndex)
	records = readCSV(t, &buf)
	require.Len(t, records, 3)
	assert.Equal(t, "Unclassified", records[1][6])
}

func TestDump_NothingComputedWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	summary, err := NewDumper(openTestStore(t), nil).Dump(context.Background(), "navigation-ngrams", 0, &buf)
	require.NoError(t, err)
	assert.Zero(t, summary.Rows)
	assert.Zero(t, summary.ComputeIndex)

	records := readCSV(t, &buf)
	assert.Equal(t, [][]string{{"Compute Index", "User", "Concern Index", "Length", "Ngram"}}, records)
}

func TestDump_MissingExplicitGenerationFails(t *testing.T) {
	_, err := NewDumper(openTestStore(t), nil).Dump(context.Background(), "task-periods", 3, &bytes.Buffer{})
	assert.ErrorIs(t, err, storage.ErrGenerationNotFound)
}

func TestDump_NavigationGraph(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.WriteNavigationGraph(ctx, 1,
		[]storage.NavigationVertex{
			{PageType: "End", Occurrences: 1},
			{PageType: "Start", Occurrences: 1},
			{PageType: "Docs", Occurrences: 2, TotalTime: 30, MeanTime: 15},
		},
		[]storage.NavigationEdge{
			{SourcePageType: "Start", TargetPageType: "Docs", Occurrences: 1, Probability: 1},
			{SourcePageType: "Docs", TargetPageType: "End", Occurrences: 1, Probability: 1},
		})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = NewDumper(store, nil).Dump(ctx, "navigation-vertices", 0, &buf)
	require.NoError(t, err)
	records := readCSV(t, &buf)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"1", "Docs", "2", "30", "15"}, records[1])

	buf.Reset()
	_, err = NewDumper(store, nil).Dump(ctx, "navigation-edges", 0, &buf)
	require.NoError(t, err)
	records = readCSV(t, &buf)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"1", "Docs", "End", "1", "1"}, records[1])
	assert.Equal(t, []string{"1", "Start", "Docs", "1", "1"}, records[2])
}

func TestDump_UniqueTables(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.WriteUniqueURLs(ctx, 1, []storage.UniqueURL{{UserID: 5, URL: "github.com", Unique: true}})
	require.NoError(t, err)
	_, err = store.WriteUniqueCues(ctx, []storage.UniqueCue{{ParticipantID: 2, Cue: "docs", Unique: false}})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = NewDumper(store, nil).Dump(ctx, "unique-urls", 0, &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "5", "github.com", "true"}, readCSV(t, &buf)[1])

	buf.Reset()
	_, err = NewDumper(store, nil).Dump(ctx, "unique-cues", 0, &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "docs", "false"}, readCSV(t, &buf)[1])
}
