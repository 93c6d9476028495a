package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/runnerr0/studylog/internal/config"
	"github.com/runnerr0/studylog/internal/export"
)

// createOutput opens a dump's output file.
var createOutput = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// Execute implements the go-flags Commander interface for DumpCommand.
func (c *DumpCommand) Execute(args []string) error {
	return withSession(c.globals, c.executeWithSession)
}

func (c *DumpCommand) outputPath(sess *session) (string, error) {
	if c.Out != "" {
		return c.Out, nil
	}
	dir, err := config.ExpandPath(sess.cfg.Export.Dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Args.Entity+".csv"), nil
}

func (c *DumpCommand) executeWithSession(sess *session) error {
	if !export.Known(c.Args.Entity) {
		return fmt.Errorf("%w %q (choose from %s)", export.ErrUnknownDump, c.Args.Entity, strings.Join(export.Names(), ", "))
	}
	rules, err := sess.rules()
	if err != nil {
		return err
	}
	dumper := export.NewDumper(sess.store, rules)

	path, err := c.outputPath(sess)
	if err != nil {
		return err
	}

	var (
		w   io.Writer = os.Stdout
		out io.WriteCloser
	)
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		out, err = createOutput(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		w = out
	}

	summary, err := dumper.Dump(context.Background(), c.Args.Entity, c.ComputeIndex, w)
	if out != nil {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output file %s: %w", path, closeErr)
		}
	}
	if err != nil {
		return err
	}
	sess.logger.Info("dumped records", "entity", summary.Name, "compute_index", summary.ComputeIndex, "rows", summary.Rows, "path", path)

	if path == "-" {
		return nil
	}
	if c.globals != nil && c.globals.JSON {
		return printJSON(struct {
			*export.Summary
			Path string `json:"path"`
		}{summary, path})
	}
	fmt.Printf("Wrote %s rows of %s to %s\n", formatNumber(int64(summary.Rows)), summary.Name, path)
	return nil
}
