package storage

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner_FreshDB(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	err := runner.Run()
	require.NoError(t, err)

	expectedTables := []string{
		"location_events",
		"question_events",
		"task_periods",
		"location_visits",
		"location_ratings",
		"navigation_vertices",
		"navigation_edges",
		"navigation_ngrams",
		"unique_urls",
		"unique_cues",
		"compute_runs",
		"schema_migrations",
	}
	for _, table := range expectedTables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrationRunner_IndexesCreated(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	expectedIndexes := []string{
		"idx_location_events_user_visit",
		"idx_question_events_user_time",
		"idx_task_periods_compute",
		"idx_location_visits_compute",
		"idx_navigation_edges_compute",
		"idx_unique_cues_compute",
		"idx_task_periods_start",
		"idx_task_periods_end",
	}
	for _, idx := range expectedIndexes {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx,
		).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
		assert.Equal(t, idx, name)
	}
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	require.NoError(t, runner.Run())
	require.NoError(t, runner.Run())

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "each migration should be recorded once after double-run")

	applied, err := runner.Applied()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, applied)
}

func TestMigrationRunner_AppliedBeforeFirstRun(t *testing.T) {
	runner := NewMigrationRunner(openTestDB(t))
	applied, err := runner.Applied()
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrationRunner_AppliedReportsQueryErrors(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Close())

	_, err := NewMigrationRunner(db).Applied()
	assert.Error(t, err)
}

func TestMigrationRunner_SchemaMigrationsTracking(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	names := map[int]string{
		1: "initial_schema",
		2: "task_period_time_indexes",
		3: "location_rating_hand_aligned",
	}
	for version, want := range names {
		var name string
		err := db.QueryRow("SELECT name FROM schema_migrations WHERE version = ?", version).Scan(&name)
		require.NoError(t, err)
		assert.Equal(t, want, name)
	}
}

func TestMigrationRunner_HandAlignedColumnAdded(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('location_ratings') WHERE name = 'hand_aligned'",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Rows written without the column default to not hand aligned.
	_, err = db.Exec(`
		INSERT INTO location_ratings (compute_index, user_id, task_index, concern_index, event_id, url, rating, visit_date)
		VALUES (1, 5, 2, 1, 99, 'https://example.com', 3, '2016-03-01 12:00:00.000000000')
	`)
	require.NoError(t, err)

	var handAligned bool
	require.NoError(t, db.QueryRow("SELECT hand_aligned FROM location_ratings").Scan(&handAligned))
	assert.False(t, handAligned)
}

func TestMigrationRunner_ForeignKeys(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	var fk int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	require.NoError(t, err)
	assert.Equal(t, 1, fk, "foreign_keys should be enabled")
}

func TestMigrationRunner_ForeignKeyEnforcement(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	_, err := db.Exec(
		"INSERT INTO navigation_edges (compute_index, source_vertex_id, target_vertex_id) VALUES (1, 41, 42)",
	)
	assert.Error(t, err, "foreign key constraint should prevent edges between missing vertices")
}

func TestMigrationRunner_ComputeRunsUniquePerEntity(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	insert := `INSERT INTO compute_runs (id, entity, compute_index, started_at, finished_at) VALUES (?, ?, ?, '2016-01-01', '2016-01-01')`
	_, err := db.Exec(insert, "a", "task_periods", 1)
	require.NoError(t, err)
	_, err = db.Exec(insert, "b", "location_visits", 1)
	require.NoError(t, err, "different entities may share an index")
	_, err = db.Exec(insert, "c", "task_periods", 1)
	assert.Error(t, err, "one entity cannot record the same index twice")
}
