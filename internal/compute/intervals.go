package compute

import (
	"context"
	"fmt"

	"github.com/runnerr0/studylog/internal/align"
	"github.com/runnerr0/studylog/internal/corrections"
	"github.com/runnerr0/studylog/internal/intervals"
	"github.com/runnerr0/studylog/internal/storage"
)

// TaskPeriods derives a task period generation from the raw form events.
// Corrections, when given, are applied to the detected periods.
func (r *Runner) TaskPeriods(ctx context.Context, corr *corrections.Corrections) (*Result, error) {
	started := r.start(storage.EntityTaskPeriods, 0)

	rows, err := r.store.QuestionEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load question events: %w", err)
	}
	events := make([]intervals.FormEvent, len(rows))
	for i, e := range rows {
		events[i] = intervals.FormEvent{
			UserID:    e.UserID,
			TaskIndex: e.QuestionIndex,
			Type:      e.EventType,
			Time:      e.Time,
		}
	}

	periods := intervals.ExtractTaskPeriods(events, r.concernCount)
	res := &Result{}
	if corr != nil {
		periods, res.Discarded = corr.Apply(periods, r.concernCount)
		r.logger.Debug("applied task period corrections",
			"discarded", res.Discarded, "extra", len(corr.Extra))
	}

	out := make([]storage.TaskPeriod, len(periods))
	for i, p := range periods {
		out[i] = storage.TaskPeriod{
			UserID:       p.UserID,
			TaskIndex:    p.TaskIndex,
			ConcernIndex: p.ConcernIndex,
			Start:        p.Start,
			End:          p.End,
		}
	}

	run, err := r.store.WriteTaskPeriods(ctx, 0, out)
	if err != nil {
		return nil, err
	}
	res.Run = run
	r.finish(storage.EntityTaskPeriods, run, started)
	return res, nil
}

// Visits reconstructs location visits from the raw browser events and
// attributes them to a task period generation. taskComputeIndex <= 0 selects
// the latest one.
func (r *Runner) Visits(ctx context.Context, taskComputeIndex int64) (*Result, error) {
	upstream, found, err := r.resolveUpstream(ctx, storage.EntityTaskPeriods, taskComputeIndex)
	if err != nil {
		return nil, err
	}
	started := r.start(storage.EntityLocationVisits, upstream)

	periods, err := r.periods(ctx, upstream, found)
	if err != nil {
		return nil, err
	}

	var assigned []intervals.TaskVisit
	res := &Result{}
	if found {
		rows, err := r.store.LocationEvents(ctx)
		if err != nil {
			return nil, fmt.Errorf("load location events: %w", err)
		}
		events := make([]intervals.BrowserEvent, len(rows))
		for i, e := range rows {
			events[i] = intervals.BrowserEvent{
				ID:     e.ID,
				UserID: e.UserID,
				TabID:  e.TabID,
				URL:    e.URL,
				Title:  e.Title,
				Type:   e.EventType,
				Time:   e.VisitDate,
			}
		}
		assigned, res.Dropped = intervals.AssignVisits(intervals.ReconstructVisits(events), periods)
		if res.Dropped > 0 {
			r.logger.Debug("visits outside every task period", "dropped", res.Dropped)
		}
		r.metrics.AddDroppedVisits(res.Dropped)
	}

	out := make([]storage.LocationVisit, len(assigned))
	for i, v := range assigned {
		out[i] = storage.LocationVisit{
			UserID:       v.UserID,
			TaskIndex:    v.TaskIndex,
			ConcernIndex: v.ConcernIndex,
			TabID:        v.TabID,
			URL:          v.URL,
			Title:        v.Title,
			Start:        v.Start,
			End:          v.End,
		}
	}

	run, err := r.store.WriteLocationVisits(ctx, upstream, out)
	if err != nil {
		return nil, err
	}
	res.Run = run
	r.finish(storage.EntityLocationVisits, run, started)
	return res, nil
}

// RatingOptions configures a ratings pass.
type RatingOptions struct {
	// TaskComputeIndex selects the task period generation; <= 0 means latest.
	TaskComputeIndex int64
	Labels           []align.HandLabel
	Basis            align.TimeBasis
}

// Ratings aligns every "Rating: N" browser event to a task period. Ratings
// that match no period are reported in the result, not stored.
func (r *Runner) Ratings(ctx context.Context, opts RatingOptions) (*Result, error) {
	upstream, found, err := r.resolveUpstream(ctx, storage.EntityTaskPeriods, opts.TaskComputeIndex)
	if err != nil {
		return nil, err
	}
	started := r.start(storage.EntityLocationRatings, upstream)

	periods, err := r.periods(ctx, upstream, found)
	if err != nil {
		return nil, err
	}

	rows, err := r.store.LocationEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load location events: %w", err)
	}
	var events []align.RatingEvent
	for _, e := range rows {
		rating, ok := align.ParseRating(e.EventType)
		if !ok {
			continue
		}
		events = append(events, align.RatingEvent{
			EventID:   e.ID,
			UserID:    e.UserID,
			URL:       e.URL,
			Title:     e.Title,
			Rating:    rating,
			VisitTime: e.VisitDate,
			LogTime:   e.LogDate,
		})
	}

	basis := opts.Basis
	if basis == "" {
		basis = align.LogTime
	}
	ratings, unmatched := align.NewAligner(periods, opts.Labels, basis).AlignAll(events)
	for _, u := range unmatched {
		r.logger.Warn("rating matched no task period", "user_id", u.UserID, "event_id", u.EventID)
	}
	r.metrics.AddUnmatchedRatings(len(unmatched))

	out := make([]storage.LocationRating, len(ratings))
	for i, rt := range ratings {
		out[i] = storage.LocationRating{
			UserID:       rt.UserID,
			TaskIndex:    rt.TaskIndex,
			ConcernIndex: rt.ConcernIndex,
			EventID:      rt.EventID,
			URL:          rt.URL,
			Title:        rt.Title,
			Rating:       rt.Rating,
			VisitDate:    rt.VisitTime,
			HandAligned:  rt.HandAligned,
		}
	}

	run, err := r.store.WriteLocationRatings(ctx, upstream, out)
	if err != nil {
		return nil, err
	}
	r.finish(storage.EntityLocationRatings, run, started)
	return &Result{Run: run, Unmatched: unmatched}, nil
}
