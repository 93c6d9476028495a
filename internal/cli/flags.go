package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DB      string `long:"db" description:"Path to the study database (overrides config)"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// MigrateCommand applies pending schema migrations.
type MigrateCommand struct {
	globals *GlobalFlags
	version string
}

// ImportCommand loads raw study events from JSON-lines files.
type ImportCommand struct {
	Events    string `long:"events" description:"JSON-lines file of browser (location) events"`
	Questions string `long:"questions" description:"JSON-lines file of form (question) events"`

	globals *GlobalFlags
	version string
}

// ComputeCommand groups the compute passes.
type ComputeCommand struct{}

// TaskPeriodsCommand derives a task period generation.
type TaskPeriodsCommand struct {
	Corrections string `long:"corrections" description:"Corrections file (overrides config)"`

	globals *GlobalFlags
	version string
}

// VisitsCommand reconstructs a location visit generation.
type VisitsCommand struct {
	TaskComputeIndex int64 `long:"task-compute-index" description:"Task period generation to use (default: latest)"`

	globals *GlobalFlags
	version string
}

// RatingsCommand aligns page ratings to task periods.
type RatingsCommand struct {
	TaskComputeIndex int64  `long:"task-compute-index" description:"Task period generation to use (default: latest)"`
	Corrections      string `long:"corrections" description:"Corrections file with rating labels (overrides config)"`
	RatingTime       string `long:"rating-time" description:"Timestamp to align by: log | visit (overrides config)"`

	globals *GlobalFlags
	version string
}

// GraphCommand aggregates visits into a navigation graph.
type GraphCommand struct {
	PageTypes         string `long:"page-types" description:"JSON page type table (default: rule table)"`
	VisitComputeIndex int64  `long:"visit-compute-index" description:"Visit generation to use (default: latest)"`
	ConcernIndex      *int64 `long:"concern-index" description:"Only include visits for this concern"`

	globals *GlobalFlags
	version string
}

// NgramsCommand extracts page-type n-grams.
type NgramsCommand struct {
	PageTypes         string `long:"page-types" description:"JSON page type table (default: rule table)"`
	VisitComputeIndex int64  `long:"visit-compute-index" description:"Visit generation to use (default: latest)"`
	MinLength         int    `long:"min-length" description:"Shortest n-gram (default: config)"`
	MaxLength         int    `long:"max-length" description:"Longest n-gram (default: config)"`

	globals *GlobalFlags
	version string
}

// UniqueURLsCommand flags URLs only one participant visited.
type UniqueURLsCommand struct {
	VisitComputeIndex int64   `long:"visit-compute-index" description:"Visit generation to use (default: latest)"`
	ExcludeUser       []int64 `long:"exclude-user" description:"Participant to leave out (repeatable, default: config)"`

	globals *GlobalFlags
	version string
}

// UniqueCuesCommand flags cues only one participant reported.
type UniqueCuesCommand struct {
	Cues string `long:"cues" description:"JSON file of coded cues (required)"`

	globals *GlobalFlags
	version string
}

// DumpCommand exports one entity as CSV.
type DumpCommand struct {
	ComputeIndex int64  `long:"compute-index" description:"Generation to export (default: latest)"`
	Out          string `long:"out" description:"Output file, - for stdout (default: <export dir>/<entity>.csv)"`

	Args struct {
		Entity string `positional-arg-name:"ENTITY" description:"What to dump"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows input counts and generation summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}
