package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrGenerationNotFound is returned when an entity has no generation at the
// requested compute index, or no generation at all.
var ErrGenerationNotFound = errors.New("generation not found")

// EventRepository reads and loads the raw study events.
type EventRepository interface {
	InsertLocationEvents(ctx context.Context, events []LocationEvent) (int64, error)
	InsertQuestionEvents(ctx context.Context, events []QuestionEvent) (int64, error)
	LocationEvents(ctx context.Context) ([]LocationEvent, error)
	QuestionEvents(ctx context.Context) ([]QuestionEvent, error)
}

// VersionAllocator resolves and allocates compute indexes per entity.
type VersionAllocator interface {
	NextComputeIndex(ctx context.Context, entity Entity) (int64, error)
	LatestComputeIndex(ctx context.Context, entity Entity) (int64, error)
	ResolveComputeIndex(ctx context.Context, entity Entity, requested int64) (int64, error)
}

// GenerationReader reads one generation of each derived entity.
type GenerationReader interface {
	TaskPeriods(ctx context.Context, computeIndex int64) ([]TaskPeriod, error)
	LocationVisits(ctx context.Context, computeIndex int64) ([]LocationVisit, error)
	FilterLocationVisits(ctx context.Context, computeIndex int64, f VisitFilter) ([]LocationVisit, error)
	LocationRatings(ctx context.Context, computeIndex int64) ([]LocationRating, error)
	NavigationVertices(ctx context.Context, computeIndex int64) ([]NavigationVertex, error)
	NavigationEdges(ctx context.Context, computeIndex int64) ([]NavigationEdge, error)
	NavigationNgrams(ctx context.Context, computeIndex int64) ([]NavigationNgram, error)
	UniqueURLs(ctx context.Context, computeIndex int64) ([]UniqueURL, error)
	UniqueCues(ctx context.Context, computeIndex int64) ([]UniqueCue, error)
}

// GenerationWriter appends a new generation of a derived entity. Every write
// allocates the next compute index inside the transaction that stores the rows.
type GenerationWriter interface {
	WriteTaskPeriods(ctx context.Context, upstream int64, periods []TaskPeriod) (*ComputeRun, error)
	WriteLocationVisits(ctx context.Context, upstream int64, visits []LocationVisit) (*ComputeRun, error)
	WriteLocationRatings(ctx context.Context, upstream int64, ratings []LocationRating) (*ComputeRun, error)
	WriteNavigationGraph(ctx context.Context, upstream int64, vertices []NavigationVertex, edges []NavigationEdge) (*ComputeRun, error)
	WriteNavigationNgrams(ctx context.Context, upstream int64, ngrams []NavigationNgram) (*ComputeRun, error)
	WriteUniqueURLs(ctx context.Context, upstream int64, rows []UniqueURL) (*ComputeRun, error)
	WriteUniqueCues(ctx context.Context, rows []UniqueCue) (*ComputeRun, error)
}

// Store defines the record store used by compute and dump passes.
type Store interface {
	EventRepository
	VersionAllocator
	GenerationReader
	GenerationWriter
	ComputeRuns(ctx context.Context) ([]ComputeRun, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps an already-opened and migrated database. The store
// takes ownership of db and closes it in Close.
func NewSQLiteStore(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// DB exposes the underlying handle for migrations and tests.
func (s *SQLiteStore) DB() *sqlx.DB {
	return s.db
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// entityTable maps an entity to the table holding its rows. The navigation
// graph is versioned through its vertices.
func entityTable(entity Entity) (string, error) {
	switch entity {
	case EntityTaskPeriods, EntityLocationVisits, EntityLocationRatings,
		EntityNavigationNgrams, EntityUniqueURLs, EntityUniqueCues:
		return string(entity), nil
	case EntityNavigationGraph:
		return "navigation_vertices", nil
	default:
		return "", fmt.Errorf("unknown entity %q", entity)
	}
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return tx.Commit()
}

// maxComputeIndex returns the highest compute index recorded for entity, in
// either the run ledger or the entity's own table, or 0 when there is none.
func maxComputeIndex(ctx context.Context, q sqlx.QueryerContext, entity Entity) (int64, error) {
	table, err := entityTable(entity)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		SELECT MAX(
			COALESCE((SELECT MAX(compute_index) FROM compute_runs WHERE entity = ?), 0),
			COALESCE((SELECT MAX(compute_index) FROM %s), 0)
		)`, table)

	var idx int64
	if err := sqlx.GetContext(ctx, q, &idx, query, string(entity)); err != nil {
		return 0, fmt.Errorf("max compute index for %s: %w", entity, err)
	}
	return idx, nil
}

// NextComputeIndex returns the index the next generation of entity would get.
func (s *SQLiteStore) NextComputeIndex(ctx context.Context, entity Entity) (int64, error) {
	idx, err := maxComputeIndex(ctx, s.db, entity)
	if err != nil {
		return 0, err
	}
	return idx + 1, nil
}

// LatestComputeIndex returns the newest generation of entity, or
// ErrGenerationNotFound if none has been computed.
func (s *SQLiteStore) LatestComputeIndex(ctx context.Context, entity Entity) (int64, error) {
	idx, err := maxComputeIndex(ctx, s.db, entity)
	if err != nil {
		return 0, err
	}
	if idx == 0 {
		return 0, fmt.Errorf("%s: %w", entity, ErrGenerationNotFound)
	}
	return idx, nil
}

// ResolveComputeIndex returns requested if that generation exists, or the
// latest generation when requested is zero or negative.
func (s *SQLiteStore) ResolveComputeIndex(ctx context.Context, entity Entity, requested int64) (int64, error) {
	if requested <= 0 {
		return s.LatestComputeIndex(ctx, entity)
	}

	table, err := entityTable(entity)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM compute_runs WHERE entity = ? AND compute_index = ?) +
			(SELECT COUNT(*) FROM %s WHERE compute_index = ?)`, table)

	var count int64
	if err := s.db.GetContext(ctx, &count, query, string(entity), requested, requested); err != nil {
		return 0, fmt.Errorf("resolve %s generation %d: %w", entity, requested, err)
	}
	if count == 0 {
		return 0, fmt.Errorf("%s generation %d: %w", entity, requested, ErrGenerationNotFound)
	}
	return requested, nil
}

// writeGeneration allocates the next compute index for entity, runs write
// with it and records the run, all in one transaction. The UNIQUE constraint
// on compute_runs rejects a second writer that raced for the same index.
func (s *SQLiteStore) writeGeneration(
	ctx context.Context,
	entity Entity,
	upstream int64,
	write func(tx *sqlx.Tx, computeIndex int64) (int64, error),
) (*ComputeRun, error) {
	started := s.now().UTC()
	var run *ComputeRun

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		last, err := maxComputeIndex(ctx, tx, entity)
		if err != nil {
			return err
		}
		computeIndex := last + 1

		n, err := write(tx, computeIndex)
		if err != nil {
			return fmt.Errorf("write %s generation %d: %w", entity, computeIndex, err)
		}

		run = &ComputeRun{
			ID:            uuid.NewString(),
			Entity:        entity,
			ComputeIndex:  computeIndex,
			UpstreamIndex: upstream,
			StartedAt:     started,
			FinishedAt:    s.now().UTC(),
			RowsWritten:   n,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO compute_runs (id, entity, compute_index, upstream_index, started_at, finished_at, rows_written)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, string(run.Entity), run.ComputeIndex, run.UpstreamIndex,
			formatTime(run.StartedAt), formatTime(run.FinishedAt), run.RowsWritten,
		)
		if err != nil {
			return fmt.Errorf("record compute run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// execEach prepares query once and executes it with the args of every row.
func execEach(ctx context.Context, tx *sqlx.Tx, query string, n int, args func(i int) []interface{}) (int64, error) {
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return int64(i), err
		}
	}
	return int64(n), nil
}

// ── Raw events ─────────────────────────────────────────────

// InsertLocationEvents stores raw browser events. Events with a zero ID get
// one assigned by the database.
func (s *SQLiteStore) InsertLocationEvents(ctx context.Context, events []LocationEvent) (int64, error) {
	var n int64
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		n, err = execEach(ctx, tx, `
			INSERT INTO location_events (id, user_id, tab_id, tab_index, url, title, event_type, visit_date, log_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			len(events), func(i int) []interface{} {
				e := events[i]
				return []interface{}{
					nullIfZero(e.ID), e.UserID, e.TabID, e.TabIndex, e.URL, e.Title, e.EventType,
					formatTime(e.VisitDate), formatTime(e.LogDate),
				}
			})
		if err != nil {
			return fmt.Errorf("insert location event: %w", err)
		}
		return nil
	})
	return n, err
}

// InsertQuestionEvents stores raw form events.
func (s *SQLiteStore) InsertQuestionEvents(ctx context.Context, events []QuestionEvent) (int64, error) {
	var n int64
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		n, err = execEach(ctx, tx, `
			INSERT INTO question_events (id, user_id, question_index, time, event_type)
			VALUES (?, ?, ?, ?, ?)`,
			len(events), func(i int) []interface{} {
				e := events[i]
				return []interface{}{nullIfZero(e.ID), e.UserID, e.QuestionIndex, formatTime(e.Time), e.EventType}
			})
		if err != nil {
			return fmt.Errorf("insert question event: %w", err)
		}
		return nil
	})
	return n, err
}

func nullIfZero(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}

// LocationEvents returns every browser event ordered by user, then visit time.
func (s *SQLiteStore) LocationEvents(ctx context.Context) ([]LocationEvent, error) {
	events := []LocationEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, user_id, tab_id, tab_index, url, title, event_type, visit_date, log_date
		FROM location_events
		ORDER BY user_id, visit_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query location events: %w", err)
	}
	return events, nil
}

// QuestionEvents returns every form event ordered by user, then time.
func (s *SQLiteStore) QuestionEvents(ctx context.Context) ([]QuestionEvent, error) {
	events := []QuestionEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, user_id, question_index, time, event_type
		FROM question_events
		ORDER BY user_id, time, id`)
	if err != nil {
		return nil, fmt.Errorf("query question events: %w", err)
	}
	return events, nil
}

// ── Task periods ───────────────────────────────────────────

// TaskPeriods returns one generation ordered by user, task index and start.
func (s *SQLiteStore) TaskPeriods(ctx context.Context, computeIndex int64) ([]TaskPeriod, error) {
	periods := []TaskPeriod{}
	err := s.db.SelectContext(ctx, &periods, `
		SELECT id, compute_index, user_id, task_index, concern_index, start, "end"
		FROM task_periods
		WHERE compute_index = ?
		ORDER BY user_id, task_index, start, id`, computeIndex)
	if err != nil {
		return nil, fmt.Errorf("query task periods: %w", err)
	}
	return periods, nil
}

// WriteTaskPeriods appends a new task period generation.
func (s *SQLiteStore) WriteTaskPeriods(ctx context.Context, upstream int64, periods []TaskPeriod) (*ComputeRun, error) {
	return s.writeGeneration(ctx, EntityTaskPeriods, upstream, func(tx *sqlx.Tx, computeIndex int64) (int64, error) {
		return execEach(ctx, tx, `
			INSERT INTO task_periods (compute_index, user_id, task_index, concern_index, start, "end")
			VALUES (?, ?, ?, ?, ?, ?)`,
			len(periods), func(i int) []interface{} {
				p := periods[i]
				return []interface{}{computeIndex, p.UserID, p.TaskIndex, p.ConcernIndex, formatTime(p.Start), formatTime(p.End)}
			})
	})
}

// ── Location visits ────────────────────────────────────────

// LocationVisits returns one generation ordered by user, concern and start.
func (s *SQLiteStore) LocationVisits(ctx context.Context, computeIndex int64) ([]LocationVisit, error) {
	visits := []LocationVisit{}
	err := s.db.SelectContext(ctx, &visits, `
		SELECT id, compute_index, user_id, task_index, concern_index, tab_id, url, title, start, "end"
		FROM location_visits
		WHERE compute_index = ?
		ORDER BY user_id, concern_index, start, id`, computeIndex)
	if err != nil {
		return nil, fmt.Errorf("query location visits: %w", err)
	}
	return visits, nil
}

// WriteLocationVisits appends a new location visit generation.
func (s *SQLiteStore) WriteLocationVisits(ctx context.Context, upstream int64, visits []LocationVisit) (*ComputeRun, error) {
	return s.writeGeneration(ctx, EntityLocationVisits, upstream, func(tx *sqlx.Tx, computeIndex int64) (int64, error) {
		return execEach(ctx, tx, `
			INSERT INTO location_visits (compute_index, user_id, task_index, concern_index, tab_id, url, title, start, "end")
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			len(visits), func(i int) []interface{} {
				v := visits[i]
				return []interface{}{
					computeIndex, v.UserID, v.TaskIndex, v.ConcernIndex, v.TabID, v.URL, v.Title,
					formatTime(v.Start), formatTime(v.End),
				}
			})
	})
}

// VisitFilter narrows a location visit generation. A nil ConcernIndex keeps
// every concern.
type VisitFilter struct {
	ConcernIndex *int64
	ExcludeUsers []int64
}

// FilterLocationVisits returns the visits of one generation matching f, in
// the same order as LocationVisits.
func (s *SQLiteStore) FilterLocationVisits(ctx context.Context, computeIndex int64, f VisitFilter) ([]LocationVisit, error) {
	query := `
		SELECT id, compute_index, user_id, task_index, concern_index, tab_id, url, title, start, "end"
		FROM location_visits
		WHERE compute_index = ?`
	args := []interface{}{computeIndex}
	if f.ConcernIndex != nil {
		query += " AND concern_index = ?"
		args = append(args, *f.ConcernIndex)
	}
	if len(f.ExcludeUsers) > 0 {
		query += " AND user_id NOT IN (?)"
		args = append(args, f.ExcludeUsers)
	}
	query += " ORDER BY user_id, concern_index, start, id"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand visit filter: %w", err)
	}

	visits := []LocationVisit{}
	if err := s.db.SelectContext(ctx, &visits, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query location visits: %w", err)
	}
	return visits, nil
}

// ── Location ratings ───────────────────────────────────────

// LocationRatings returns one generation ordered by user, task index and visit date.
func (s *SQLiteStore) LocationRatings(ctx context.Context, computeIndex int64) ([]LocationRating, error) {
	ratings := []LocationRating{}
	err := s.db.SelectContext(ctx, &ratings, `
		SELECT id, compute_index, user_id, task_index, concern_index, event_id, url, title, rating, visit_date, hand_aligned
		FROM location_ratings
		WHERE compute_index = ?
		ORDER BY user_id, task_index, visit_date, id`, computeIndex)
	if err != nil {
		return nil, fmt.Errorf("query location ratings: %w", err)
	}
	return ratings, nil
}

// WriteLocationRatings appends a new location rating generation.
func (s *SQLiteStore) WriteLocationRatings(ctx context.Context, upstream int64, ratings []LocationRating) (*ComputeRun, error) {
	return s.writeGeneration(ctx, EntityLocationRatings, upstream, func(tx *sqlx.Tx, computeIndex int64) (int64, error) {
		return execEach(ctx, tx, `
			INSERT INTO location_ratings (compute_index, user_id, task_index, concern_index, event_id, url, title, rating, visit_date, hand_aligned)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			len(ratings), func(i int) []interface{} {
				r := ratings[i]
				return []interface{}{
					computeIndex, r.UserID, r.TaskIndex, r.ConcernIndex, r.EventID, r.URL, r.Title,
					r.Rating, formatTime(r.VisitDate), r.HandAligned,
				}
			})
	})
}

// ── Navigation graph ───────────────────────────────────────

// NavigationVertices returns one graph generation's vertices ordered by page type.
func (s *SQLiteStore) NavigationVertices(ctx context.Context, computeIndex int64) ([]NavigationVertex, error) {
	vertices := []NavigationVertex{}
	err := s.db.SelectContext(ctx, &vertices, `
		SELECT id, compute_index, page_type, occurrences, total_time, mean_time
		FROM navigation_vertices
		WHERE compute_index = ?
		ORDER BY page_type`, computeIndex)
	if err != nil {
		return nil, fmt.Errorf("query navigation vertices: %w", err)
	}
	return vertices, nil
}

// NavigationEdges returns one graph generation's edges with the page types of
// their endpoints, ordered by source then target page type.
func (s *SQLiteStore) NavigationEdges(ctx context.Context, computeIndex int64) ([]NavigationEdge, error) {
	edges := []NavigationEdge{}
	err := s.db.SelectContext(ctx, &edges, `
		SELECT e.id, e.compute_index, e.source_vertex_id, e.target_vertex_id,
		       src.page_type AS source_page_type, dst.page_type AS target_page_type,
		       e.occurrences, e.probability
		FROM navigation_edges e
		JOIN navigation_vertices src ON src.id = e.source_vertex_id
		JOIN navigation_vertices dst ON dst.id = e.target_vertex_id
		WHERE e.compute_index = ?
		ORDER BY src.page_type, dst.page_type`, computeIndex)
	if err != nil {
		return nil, fmt.Errorf("query navigation edges: %w", err)
	}
	return edges, nil
}

// WriteNavigationGraph appends a new graph generation. Edges are linked to
// vertices by SourcePageType and TargetPageType; the vertex ids are assigned here.
func (s *SQLiteStore) WriteNavigationGraph(ctx context.Context, upstream int64, vertices []NavigationVertex, edges []NavigationEdge) (*ComputeRun, error) {
	return s.writeGeneration(ctx, EntityNavigationGraph, upstream, func(tx *sqlx.Tx, computeIndex int64) (int64, error) {
		ids := make(map[string]int64, len(vertices))
		for _, v := range vertices {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO navigation_vertices (compute_index, page_type, occurrences, total_time, mean_time)
				VALUES (?, ?, ?, ?, ?)`,
				computeIndex, v.PageType, v.Occurrences, v.TotalTime, v.MeanTime,
			)
			if err != nil {
				return 0, fmt.Errorf("insert vertex %q: %w", v.PageType, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return 0, err
			}
			ids[v.PageType] = id
		}

		for _, e := range edges {
			src, ok := ids[e.SourcePageType]
			if !ok {
				return 0, fmt.Errorf("edge source %q has no vertex", e.SourcePageType)
			}
			dst, ok := ids[e.TargetPageType]
			if !ok {
				return 0, fmt.Errorf("edge target %q has no vertex", e.TargetPageType)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO navigation_edges (compute_index, source_vertex_id, target_vertex_id, occurrences, probability)
				VALUES (?, ?, ?, ?, ?)`,
				computeIndex, src, dst, e.Occurrences, e.Probability,
			); err != nil {
				return 0, fmt.Errorf("insert edge %q -> %q: %w", e.SourcePageType, e.TargetPageType, err)
			}
		}
		return int64(len(vertices) + len(edges)), nil
	})
}

// ── Navigation n-grams ─────────────────────────────────────

// NavigationNgrams returns one generation in insertion order.
func (s *SQLiteStore) NavigationNgrams(ctx context.Context, computeIndex int64) ([]NavigationNgram, error) {
	ngrams := []NavigationNgram{}
	err := s.db.SelectContext(ctx, &ngrams, `
		SELECT id, compute_index, user_id, concern_index, length, ngram
		FROM navigation_ngrams
		WHERE compute_index = ?
		ORDER BY id`, computeIndex)
	if err != nil {
		return nil, fmt.Errorf("query navigation ngrams: %w", err)
	}
	return ngrams, nil
}

// WriteNavigationNgrams appends a new n-gram generation.
func (s *SQLiteStore) WriteNavigationNgrams(ctx context.Context, upstream int64, ngrams []NavigationNgram) (*ComputeRun, error) {
	return s.writeGeneration(ctx, EntityNavigationNgrams, upstream, func(tx *sqlx.Tx, computeIndex int64) (int64, error) {
		return execEach(ctx, tx, `
			INSERT INTO navigation_ngrams (compute_index, user_id, concern_index, length, ngram)
			VALUES (?, ?, ?, ?, ?)`,
			len(ngrams), func(i int) []interface{} {
				g := ngrams[i]
				return []interface{}{computeIndex, g.UserID, g.ConcernIndex, g.Length, g.Ngram}
			})
	})
}

// ── Uniqueness ─────────────────────────────────────────────

// UniqueURLs returns one generation ordered by user then URL.
func (s *SQLiteStore) UniqueURLs(ctx context.Context, computeIndex int64) ([]UniqueURL, error) {
	rows := []UniqueURL{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, compute_index, user_id, url, is_unique
		FROM unique_urls
		WHERE compute_index = ?
		ORDER BY user_id, url`, computeIndex)
	if err != nil {
		return nil, fmt.Errorf("query unique urls: %w", err)
	}
	return rows, nil
}

// WriteUniqueURLs appends a new unique URL generation.
func (s *SQLiteStore) WriteUniqueURLs(ctx context.Context, upstream int64, rows []UniqueURL) (*ComputeRun, error) {
	return s.writeGeneration(ctx, EntityUniqueURLs, upstream, func(tx *sqlx.Tx, computeIndex int64) (int64, error) {
		return execEach(ctx, tx, `
			INSERT INTO unique_urls (compute_index, user_id, url, is_unique)
			VALUES (?, ?, ?, ?)`,
			len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{computeIndex, r.UserID, r.URL, r.Unique}
			})
	})
}

// UniqueCues returns one generation ordered by participant then cue.
func (s *SQLiteStore) UniqueCues(ctx context.Context, computeIndex int64) ([]UniqueCue, error) {
	rows := []UniqueCue{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, compute_index, participant_id, cue, is_unique
		FROM unique_cues
		WHERE compute_index = ?
		ORDER BY participant_id, cue`, computeIndex)
	if err != nil {
		return nil, fmt.Errorf("query unique cues: %w", err)
	}
	return rows, nil
}

// WriteUniqueCues appends a new unique cue generation. Cues come from a file,
// so there is no upstream generation.
func (s *SQLiteStore) WriteUniqueCues(ctx context.Context, rows []UniqueCue) (*ComputeRun, error) {
	return s.writeGeneration(ctx, EntityUniqueCues, 0, func(tx *sqlx.Tx, computeIndex int64) (int64, error) {
		return execEach(ctx, tx, `
			INSERT INTO unique_cues (compute_index, participant_id, cue, is_unique)
			VALUES (?, ?, ?, ?)`,
			len(rows), func(i int) []interface{} {
				r := rows[i]
				return []interface{}{computeIndex, r.ParticipantID, r.Cue, r.Unique}
			})
	})
}

// ── Runs and stats ─────────────────────────────────────────

// ComputeRuns returns the run ledger ordered by entity then compute index.
func (s *SQLiteStore) ComputeRuns(ctx context.Context) ([]ComputeRun, error) {
	runs := []ComputeRun{}
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, entity, compute_index, upstream_index, started_at, finished_at, rows_written
		FROM compute_runs
		ORDER BY entity, compute_index`)
	if err != nil {
		return nil, fmt.Errorf("query compute runs: %w", err)
	}
	return runs, nil
}

// GetStats returns input counts and a summary of every entity's generations.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.GetContext(ctx, &stats.LocationEvents, "SELECT COUNT(*) FROM location_events"); err != nil {
		return nil, fmt.Errorf("count location events: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.QuestionEvents, "SELECT COUNT(*) FROM question_events"); err != nil {
		return nil, fmt.Errorf("count question events: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.Users, `
		SELECT COUNT(*) FROM (
			SELECT user_id FROM location_events
			UNION
			SELECT user_id FROM question_events
		)`); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	if stats.LocationEvents > 0 {
		var oldest, newest sql.NullString
		err := s.db.QueryRowContext(ctx, "SELECT MIN(visit_date), MAX(visit_date) FROM location_events").Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("event time range: %w", err)
		}
		if stats.OldestEvent, err = parseTimestamp(oldest.String); err != nil {
			return nil, fmt.Errorf("oldest event: %w", err)
		}
		if stats.NewestEvent, err = parseTimestamp(newest.String); err != nil {
			return nil, fmt.Errorf("newest event: %w", err)
		}
	}

	for _, entity := range Entities() {
		gen, err := s.generationStat(ctx, entity)
		if err != nil {
			return nil, err
		}
		stats.Generations = append(stats.Generations, gen)
	}

	return stats, nil
}

func (s *SQLiteStore) generationStat(ctx context.Context, entity Entity) (GenerationStat, error) {
	gen := GenerationStat{Entity: entity}

	latest, err := maxComputeIndex(ctx, s.db, entity)
	if err != nil {
		return gen, err
	}
	gen.Latest = latest
	if latest == 0 {
		return gen, nil
	}

	table, err := entityTable(entity)
	if err != nil {
		return gen, err
	}
	if err := s.db.GetContext(ctx, &gen.Generations,
		fmt.Sprintf(`SELECT COUNT(*) FROM (
			SELECT compute_index FROM compute_runs WHERE entity = ?
			UNION
			SELECT DISTINCT compute_index FROM %s
		)`, table), string(entity)); err != nil {
		return gen, fmt.Errorf("count %s generations: %w", entity, err)
	}
	if err := s.db.GetContext(ctx, &gen.Rows,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE compute_index = ?", table), latest); err != nil {
		return gen, fmt.Errorf("count %s rows: %w", entity, err)
	}
	return gen, nil
}
