package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Migrate     *MigrateCommand
	Import      *ImportCommand
	TaskPeriods *TaskPeriodsCommand
	Visits      *VisitsCommand
	Ratings     *RatingsCommand
	Graph       *GraphCommand
	Ngrams      *NgramsCommand
	UniqueURLs  *UniqueURLsCommand
	UniqueCues  *UniqueCuesCommand
	Dump        *DumpCommand
	Status      *StatusCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "studylog"
	parser.LongDescription = "Import browser user-study logs, derive task periods, visits, ratings and navigation models, and export them as CSV."

	cmds := &commands{
		Migrate:     &MigrateCommand{globals: &globals, version: version},
		Import:      &ImportCommand{globals: &globals, version: version},
		TaskPeriods: &TaskPeriodsCommand{globals: &globals, version: version},
		Visits:      &VisitsCommand{globals: &globals, version: version},
		Ratings:     &RatingsCommand{globals: &globals, version: version},
		Graph:       &GraphCommand{globals: &globals, version: version},
		Ngrams:      &NgramsCommand{globals: &globals, version: version},
		UniqueURLs:  &UniqueURLsCommand{globals: &globals, version: version},
		UniqueCues:  &UniqueCuesCommand{globals: &globals, version: version},
		Dump:        &DumpCommand{globals: &globals, version: version},
		Status:      &StatusCommand{globals: &globals, version: version},
	}

	parser.AddCommand("migrate", "Apply schema migrations", "Create or upgrade the study database schema.", cmds.Migrate)
	parser.AddCommand("import", "Import raw study events", "Import browser and form events from JSON-lines files.", cmds.Import)

	computeCmd, _ := parser.AddCommand("compute", "Run a derivation pass", "Run one derivation pass. Each run writes a new generation of its entity.", &ComputeCommand{})
	computeCmd.AddCommand("task-periods", "Derive task periods", "Derive task periods from form events, applying corrections.", cmds.TaskPeriods)
	computeCmd.AddCommand("visits", "Reconstruct page visits", "Reconstruct focused page visits and assign them to task periods.", cmds.Visits)
	computeCmd.AddCommand("ratings", "Align page ratings", "Align rating events and hand labels to task periods.", cmds.Ratings)
	computeCmd.AddCommand("graph", "Build the navigation graph", "Aggregate page-type transitions of visits into a navigation graph.", cmds.Graph)
	computeCmd.AddCommand("ngrams", "Extract page-type n-grams", "Extract page-type n-grams from each participant's walk per concern.", cmds.Ngrams)
	computeCmd.AddCommand("unique-urls", "Flag URLs visited by one participant", "Flag canonical URLs that only one participant visited.", cmds.UniqueURLs)
	computeCmd.AddCommand("unique-cues", "Flag cues reported by one participant", "Flag coded cues that only one participant reported.", cmds.UniqueCues)

	parser.AddCommand("dump", "Export an entity as CSV", "Export raw events or one generation of a derived entity as CSV.", cmds.Dump)
	parser.AddCommand("status", "Show database statistics", "Show input counts and the latest generation of each derived entity.", cmds.Status)

	return parser, &globals, cmds
}

// Run is the main entry point for the studylog CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("studylog %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
