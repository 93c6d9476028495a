package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseOnly parses args without executing the matched command.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands, error) {
	t.Helper()
	parser, globals, cmds := buildParser("test")
	parser.Options &^= goflags.PrintErrors
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs(args)
	return globals, cmds, err
}

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "studylog 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})

	assert.Equal(t, "studylog 1.2.3", strings.TrimSpace(output))
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs("test", []string{"--help"})
	assert.NoError(t, err)
}

func TestAllSubcommandsExist(t *testing.T) {
	parser, _, _ := buildParser("test")
	for _, name := range []string{"migrate", "import", "compute", "dump", "status"} {
		assert.NotNil(t, parser.Find(name), "subcommand %q should exist", name)
	}

	compute := parser.Find("compute")
	require.NotNil(t, compute)
	for _, name := range []string{"task-periods", "visits", "ratings", "graph", "ngrams", "unique-urls", "unique-cues"} {
		assert.NotNil(t, compute.Find(name), "compute subcommand %q should exist", name)
	}
}

func TestUnknownSubcommandFails(t *testing.T) {
	_, _, err := parseOnly(t, "nonexistent")
	require.Error(t, err)
}

func TestComputeRequiresPass(t *testing.T) {
	_, _, err := parseOnly(t, "compute")
	require.Error(t, err)
}

func TestDumpRequiresEntity(t *testing.T) {
	_, _, err := parseOnly(t, "dump")
	require.Error(t, err)
}

func TestGlobalFlags(t *testing.T) {
	globals, _, err := parseOnly(t, "--json", "--verbose", "--config", "/tmp/test.yaml", "--db", "/tmp/study.db", "status")
	require.NoError(t, err)
	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
	assert.Equal(t, "/tmp/study.db", globals.DB)
}

func TestGraphFlags(t *testing.T) {
	_, cmds, err := parseOnly(t, "compute", "graph", "--page-types", "types.json", "--visit-compute-index", "3", "--concern-index", "0")
	require.NoError(t, err)
	assert.Equal(t, "types.json", cmds.Graph.PageTypes)
	assert.Equal(t, int64(3), cmds.Graph.VisitComputeIndex)
	require.NotNil(t, cmds.Graph.ConcernIndex)
	assert.Equal(t, int64(0), *cmds.Graph.ConcernIndex)
}

func TestGraphConcernIndexUnsetByDefault(t *testing.T) {
	_, cmds, err := parseOnly(t, "compute", "graph")
	require.NoError(t, err)
	assert.Nil(t, cmds.Graph.ConcernIndex)
}

func TestNgramsFlags(t *testing.T) {
	_, cmds, err := parseOnly(t, "compute", "ngrams", "--min-length", "3", "--max-length", "4")
	require.NoError(t, err)
	assert.Equal(t, 3, cmds.Ngrams.MinLength)
	assert.Equal(t, 4, cmds.Ngrams.MaxLength)
}

func TestUniqueURLsExcludeUserRepeats(t *testing.T) {
	_, cmds, err := parseOnly(t, "compute", "unique-urls", "--exclude-user", "1", "--exclude-user", "9")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 9}, cmds.UniqueURLs.ExcludeUser)
}

func TestDumpFlags(t *testing.T) {
	_, cmds, err := parseOnly(t, "dump", "--compute-index", "2", "--out", "-", "location-visits")
	require.NoError(t, err)
	assert.Equal(t, "location-visits", cmds.Dump.Args.Entity)
	assert.Equal(t, int64(2), cmds.Dump.ComputeIndex)
	assert.Equal(t, "-", cmds.Dump.Out)
}

func TestImportRequiresInput(t *testing.T) {
	err := RunWithArgs("test", []string{"import"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--events or --questions is required")
}

func TestUniqueCuesRequiresFile(t *testing.T) {
	err := RunWithArgs("test", []string{"compute", "unique-cues"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--cues is required")
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
storage:
  path: `+filepath.Join(dir, "study.db")+`
export:
  dir: `+filepath.Join(dir, "out")+`
`), 0644))
	events := writeFile(t, "events.jsonl", testEvents)
	questions := writeFile(t, "questions.jsonl", testQuestions)

	run := func(args ...string) string {
		var err error
		output := captureOutput(t, func() {
			err = RunWithArgs("test", append([]string{"--config", cfgPath}, args...))
		})
		require.NoError(t, err, "studylog %v", args)
		return output
	}

	assert.Contains(t, run("migrate"), "Applied 3 migration(s)")
	assert.Contains(t, run("import", "--events", events, "--questions", questions), "Imported 3 location events, 2 question events")
	assert.Contains(t, run("compute", "task-periods"), "Computed task_periods generation 1: 1 rows")
	assert.Contains(t, run("compute", "visits"), "Computed location_visits generation 1 from generation 1: 1 rows")
	assert.Contains(t, run("dump", "location-visits"), "Wrote 1 rows of location-visits")

	data, err := os.ReadFile(filepath.Join(dir, "out", "location-visits.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "http://url1.com")
}
