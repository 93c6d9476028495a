// Package compute runs the versioned passes that derive study records from
// raw events. Every pass reads one upstream generation, runs a pure core over
// it and appends the result as a new generation.
package compute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/runnerr0/studylog/internal/align"
	"github.com/runnerr0/studylog/internal/intervals"
	"github.com/runnerr0/studylog/internal/logging"
	"github.com/runnerr0/studylog/internal/metrics"
	"github.com/runnerr0/studylog/internal/storage"
)

// Result describes one completed pass.
type Result struct {
	Run *storage.ComputeRun

	// Discarded counts detected task periods removed by corrections.
	Discarded int `json:",omitempty"`

	// Dropped counts visits that fell outside every task period.
	Dropped int `json:",omitempty"`

	// Unclassified counts visits whose URL had no page type.
	Unclassified int `json:",omitempty"`

	// Unmatched lists rating events no task period was found for.
	Unmatched []align.Unmatched `json:",omitempty"`
}

// Options configures a Runner.
type Options struct {
	Logger       *slog.Logger
	Metrics      *metrics.PassMetrics
	ConcernCount int
}

// Runner executes compute passes against a store. Passes must not run
// concurrently against the same store.
type Runner struct {
	store        storage.Store
	logger       *slog.Logger
	metrics      *metrics.PassMetrics
	concernCount int
}

// NewRunner creates a Runner. A nil logger discards output; nil metrics are
// not recorded.
func NewRunner(store storage.Store, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	concernCount := opts.ConcernCount
	if concernCount <= 0 {
		concernCount = 6
	}
	return &Runner{
		store:        store,
		logger:       logger,
		metrics:      opts.Metrics,
		concernCount: concernCount,
	}
}

// resolveUpstream picks the upstream generation to read. An explicit index
// must exist. Without one the latest is used, and when the upstream entity
// has never been computed the pass proceeds over nothing.
func (r *Runner) resolveUpstream(ctx context.Context, entity storage.Entity, requested int64) (int64, bool, error) {
	idx, err := r.store.ResolveComputeIndex(ctx, entity, requested)
	if err == nil {
		return idx, true, nil
	}
	if requested <= 0 && errors.Is(err, storage.ErrGenerationNotFound) {
		r.logger.Warn("no upstream generation, output will be empty", "upstream", entity)
		return 0, false, nil
	}
	return 0, false, err
}

func (r *Runner) start(entity storage.Entity, upstream int64) time.Time {
	r.logger.Info("compute pass started", "entity", entity, "upstream_index", upstream)
	return time.Now()
}

func (r *Runner) finish(entity storage.Entity, run *storage.ComputeRun, started time.Time) {
	elapsed := time.Since(started)
	r.metrics.ObservePass(string(entity), run.ComputeIndex, int(run.RowsWritten), elapsed)
	r.logger.Info("compute pass finished",
		"entity", entity,
		"compute_index", run.ComputeIndex,
		"upstream_index", run.UpstreamIndex,
		"rows", run.RowsWritten,
		"elapsed", elapsed,
	)
}

func (r *Runner) periods(ctx context.Context, computeIndex int64, found bool) (*intervals.Periods, error) {
	if !found {
		return intervals.NewPeriods(nil), nil
	}
	rows, err := r.store.TaskPeriods(ctx, computeIndex)
	if err != nil {
		return nil, fmt.Errorf("load task periods: %w", err)
	}
	periods := make([]intervals.Period, len(rows))
	for i, p := range rows {
		periods[i] = intervals.Period{
			UserID:       p.UserID,
			TaskIndex:    p.TaskIndex,
			ConcernIndex: p.ConcernIndex,
			Start:        p.Start,
			End:          p.End,
		}
	}
	loaded := intervals.NewPeriods(periods)
	r.logger.Debug("loaded task periods", "compute_index", computeIndex, "periods", loaded.Len())
	return loaded, nil
}
