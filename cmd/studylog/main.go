// Command studylog derives task periods, visits, ratings and navigation
// aggregates from a browsing study database and dumps them as CSV.
//
// Usage:
//
//	studylog migrate
//	studylog import --events events.jsonl --questions questions.jsonl
//	studylog compute task-periods
//	studylog compute visits
//	studylog compute graph --page-types page_types.json
//	studylog dump location-visits --out visits.csv
package main

import (
	"os"

	"github.com/runnerr0/studylog/internal/cli"
)

var version = "dev"

func main() {
	// The parser has already printed the error.
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
