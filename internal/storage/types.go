package storage

import "time"

// Entity names a versioned output table. Compute indexes are allocated per entity.
type Entity string

const (
	EntityTaskPeriods     Entity = "task_periods"
	EntityLocationVisits  Entity = "location_visits"
	EntityLocationRatings Entity = "location_ratings"
	// EntityNavigationGraph covers both navigation_vertices and navigation_edges,
	// which always share a compute index.
	EntityNavigationGraph  Entity = "navigation_graph"
	EntityNavigationNgrams Entity = "navigation_ngrams"
	EntityUniqueURLs       Entity = "unique_urls"
	EntityUniqueCues       Entity = "unique_cues"
)

// Entities lists every versioned entity in pipeline order.
func Entities() []Entity {
	return []Entity{
		EntityTaskPeriods,
		EntityLocationVisits,
		EntityLocationRatings,
		EntityNavigationGraph,
		EntityNavigationNgrams,
		EntityUniqueURLs,
		EntityUniqueCues,
	}
}

// LocationEvent is a raw browser event logged by the study's extension.
type LocationEvent struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	TabID     string    `db:"tab_id"`
	TabIndex  int64     `db:"tab_index"`
	URL       string    `db:"url"`
	Title     string    `db:"title"`
	EventType string    `db:"event_type"`
	VisitDate time.Time `db:"visit_date"`
	LogDate   time.Time `db:"log_date"`
}

// QuestionEvent is a raw event from the study's form ("get task", "post task", ...).
type QuestionEvent struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	QuestionIndex int64     `db:"question_index"`
	Time          time.Time `db:"time"`
	EventType     string    `db:"event_type"`
}

// TaskPeriod is the window one user spent on one task.
type TaskPeriod struct {
	ID           int64     `db:"id"`
	ComputeIndex int64     `db:"compute_index"`
	UserID       int64     `db:"user_id"`
	TaskIndex    int64     `db:"task_index"`
	ConcernIndex int64     `db:"concern_index"`
	Start        time.Time `db:"start"`
	End          time.Time `db:"end"`
}

// LocationVisit is a half-open interval [Start, End) during which URL was the
// active content of TabID.
type LocationVisit struct {
	ID           int64     `db:"id"`
	ComputeIndex int64     `db:"compute_index"`
	UserID       int64     `db:"user_id"`
	TaskIndex    int64     `db:"task_index"`
	ConcernIndex int64     `db:"concern_index"`
	TabID        string    `db:"tab_id"`
	URL          string    `db:"url"`
	Title        string    `db:"title"`
	Start        time.Time `db:"start"`
	End          time.Time `db:"end"`
}

// LocationRating is a participant's rating of a page, aligned to a task period.
type LocationRating struct {
	ID           int64     `db:"id"`
	ComputeIndex int64     `db:"compute_index"`
	UserID       int64     `db:"user_id"`
	TaskIndex    int64     `db:"task_index"`
	ConcernIndex int64     `db:"concern_index"`
	EventID      int64     `db:"event_id"`
	URL          string    `db:"url"`
	Title        string    `db:"title"`
	Rating       int64     `db:"rating"`
	VisitDate    time.Time `db:"visit_date"`
	HandAligned  bool      `db:"hand_aligned"`
}

// NavigationVertex is one page type in a navigation graph generation.
type NavigationVertex struct {
	ID           int64   `db:"id"`
	ComputeIndex int64   `db:"compute_index"`
	PageType     string  `db:"page_type"`
	Occurrences  int64   `db:"occurrences"`
	TotalTime    float64 `db:"total_time"`
	MeanTime     float64 `db:"mean_time"`
}

// NavigationEdge is a transition between two vertices of the same generation.
type NavigationEdge struct {
	ID             int64   `db:"id"`
	ComputeIndex   int64   `db:"compute_index"`
	SourceVertexID int64   `db:"source_vertex_id"`
	TargetVertexID int64   `db:"target_vertex_id"`
	SourcePageType string  `db:"source_page_type"`
	TargetPageType string  `db:"target_page_type"`
	Occurrences    int64   `db:"occurrences"`
	Probability    float64 `db:"probability"`
}

// NavigationNgram is one sliding-window position over a page-type sequence.
type NavigationNgram struct {
	ID           int64  `db:"id"`
	ComputeIndex int64  `db:"compute_index"`
	UserID       int64  `db:"user_id"`
	ConcernIndex int64  `db:"concern_index"`
	Length       int64  `db:"length"`
	Ngram        string `db:"ngram"`
}

// UniqueURL flags whether a participant was the only one to visit a canonical URL.
type UniqueURL struct {
	ID           int64  `db:"id"`
	ComputeIndex int64  `db:"compute_index"`
	UserID       int64  `db:"user_id"`
	URL          string `db:"url"`
	Unique       bool   `db:"is_unique"`
}

// UniqueCue flags whether a participant was the only one to report a cue.
type UniqueCue struct {
	ID            int64  `db:"id"`
	ComputeIndex  int64  `db:"compute_index"`
	ParticipantID int64  `db:"participant_id"`
	Cue           string `db:"cue"`
	Unique        bool   `db:"is_unique"`
}

// ComputeRun records one compute pass and the generation it produced.
type ComputeRun struct {
	ID            string    `db:"id"`
	Entity        Entity    `db:"entity"`
	ComputeIndex  int64     `db:"compute_index"`
	UpstreamIndex int64     `db:"upstream_index"`
	StartedAt     time.Time `db:"started_at"`
	FinishedAt    time.Time `db:"finished_at"`
	RowsWritten   int64     `db:"rows_written"`
}

// GenerationStat summarizes the latest generation of one entity.
type GenerationStat struct {
	Entity      Entity
	Latest      int64
	Generations int64
	Rows        int64
}

// Stats holds aggregate statistics about the studylog database.
type Stats struct {
	LocationEvents int64
	QuestionEvents int64
	Users          int64
	OldestEvent    time.Time
	NewestEvent    time.Time
	Generations    []GenerationStat
}
