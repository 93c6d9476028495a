package compute

import (
	"context"
	"fmt"

	"github.com/runnerr0/studylog/internal/navgraph"
	"github.com/runnerr0/studylog/internal/storage"
	"github.com/runnerr0/studylog/internal/unique"
	"github.com/runnerr0/studylog/internal/urls"
)

// GraphOptions configures a navigation graph pass.
type GraphOptions struct {
	Classifier urls.Classifier
	// VisitComputeIndex selects the visit generation; <= 0 means latest.
	VisitComputeIndex int64
	// ConcernIndex restricts the graph to one concern when set.
	ConcernIndex *int64
}

func (r *Runner) visits(ctx context.Context, requested int64, filter storage.VisitFilter) (int64, []navgraph.Visit, error) {
	upstream, found, err := r.resolveUpstream(ctx, storage.EntityLocationVisits, requested)
	if err != nil || !found {
		return upstream, nil, err
	}
	rows, err := r.store.FilterLocationVisits(ctx, upstream, filter)
	if err != nil {
		return 0, nil, fmt.Errorf("load location visits: %w", err)
	}
	visits := make([]navgraph.Visit, len(rows))
	for i, v := range rows {
		visits[i] = navgraph.Visit{
			ID:           v.ID,
			UserID:       v.UserID,
			ConcernIndex: v.ConcernIndex,
			URL:          v.URL,
			Start:        v.Start,
			End:          v.End,
		}
	}
	return upstream, visits, nil
}

// Graph aggregates a visit generation into a navigation graph generation.
func (r *Runner) Graph(ctx context.Context, opts GraphOptions) (*Result, error) {
	if opts.Classifier == nil {
		return nil, fmt.Errorf("navigation graph: no classifier")
	}
	upstream, visits, err := r.visits(ctx, opts.VisitComputeIndex, storage.VisitFilter{ConcernIndex: opts.ConcernIndex})
	if err != nil {
		return nil, err
	}
	started := r.start(storage.EntityNavigationGraph, upstream)

	resolver := navgraph.NewResolver(opts.Classifier, r.logger.With("entity", storage.EntityNavigationGraph))
	g := navgraph.Build(resolver, visits)
	r.metrics.AddUnclassified(string(storage.EntityNavigationGraph), resolver.Unclassified)

	vertices := make([]storage.NavigationVertex, len(g.Vertices))
	for i, v := range g.Vertices {
		vertices[i] = storage.NavigationVertex{
			PageType:    v.PageType,
			Occurrences: v.Occurrences,
			TotalTime:   v.TotalTime,
			MeanTime:    v.MeanTime,
		}
	}
	edges := make([]storage.NavigationEdge, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = storage.NavigationEdge{
			SourcePageType: e.Source,
			TargetPageType: e.Target,
			Occurrences:    e.Occurrences,
			Probability:    e.Probability,
		}
	}

	run, err := r.store.WriteNavigationGraph(ctx, upstream, vertices, edges)
	if err != nil {
		return nil, err
	}
	r.finish(storage.EntityNavigationGraph, run, started)
	return &Result{Run: run, Unclassified: resolver.Unclassified}, nil
}

// NgramOptions configures an n-gram pass.
type NgramOptions struct {
	Classifier        urls.Classifier
	VisitComputeIndex int64
	MinLength         int
	MaxLength         int
}

// Ngrams extracts page-type n-grams of every length in [MinLength, MaxLength]
// into a single generation.
func (r *Runner) Ngrams(ctx context.Context, opts NgramOptions) (*Result, error) {
	if opts.Classifier == nil {
		return nil, fmt.Errorf("navigation ngrams: no classifier")
	}
	if opts.MinLength < 1 || opts.MaxLength < opts.MinLength {
		return nil, fmt.Errorf("navigation ngrams: invalid length range [%d, %d]", opts.MinLength, opts.MaxLength)
	}
	upstream, visits, err := r.visits(ctx, opts.VisitComputeIndex, storage.VisitFilter{})
	if err != nil {
		return nil, err
	}
	started := r.start(storage.EntityNavigationNgrams, upstream)

	resolver := navgraph.NewResolver(opts.Classifier, r.logger.With("entity", storage.EntityNavigationNgrams))
	ngrams := navgraph.ExtractNgrams(resolver, visits, opts.MinLength, opts.MaxLength)
	r.metrics.AddUnclassified(string(storage.EntityNavigationNgrams), resolver.Unclassified)

	out := make([]storage.NavigationNgram, len(ngrams))
	for i, n := range ngrams {
		out[i] = storage.NavigationNgram{
			UserID:       n.UserID,
			ConcernIndex: n.ConcernIndex,
			Length:       int64(n.Length),
			Ngram:        n.Value,
		}
	}

	run, err := r.store.WriteNavigationNgrams(ctx, upstream, out)
	if err != nil {
		return nil, err
	}
	r.finish(storage.EntityNavigationNgrams, run, started)
	return &Result{Run: run, Unclassified: resolver.Unclassified}, nil
}

// UniqueURLs flags, per participant, the canonical URLs nobody else visited.
// Visits of excludeUsers are ignored entirely.
func (r *Runner) UniqueURLs(ctx context.Context, visitComputeIndex int64, excludeUsers []int64) (*Result, error) {
	upstream, visits, err := r.visits(ctx, visitComputeIndex, storage.VisitFilter{ExcludeUsers: excludeUsers})
	if err != nil {
		return nil, err
	}
	started := r.start(storage.EntityUniqueURLs, upstream)

	touches := make([]unique.Touch, len(visits))
	for i, v := range visits {
		touches[i] = unique.Touch{Subject: v.UserID, Item: urls.Canonicalize(v.URL)}
	}
	results := unique.Analyze(touches)

	out := make([]storage.UniqueURL, len(results))
	for i, res := range results {
		out[i] = storage.UniqueURL{UserID: res.Subject, URL: res.Item, Unique: res.Unique}
	}

	run, err := r.store.WriteUniqueURLs(ctx, upstream, out)
	if err != nil {
		return nil, err
	}
	r.finish(storage.EntityUniqueURLs, run, started)
	return &Result{Run: run}, nil
}

// UniqueCues flags, per participant, the coded cues nobody else reported.
func (r *Runner) UniqueCues(ctx context.Context, cues []unique.Cue) (*Result, error) {
	started := r.start(storage.EntityUniqueCues, 0)

	results := unique.Analyze(unique.CueTouches(cues))
	out := make([]storage.UniqueCue, len(results))
	for i, res := range results {
		out[i] = storage.UniqueCue{ParticipantID: res.Subject, Cue: res.Item, Unique: res.Unique}
	}

	run, err := r.store.WriteUniqueCues(ctx, out)
	if err != nil {
		return nil, err
	}
	r.finish(storage.EntityUniqueCues, run, started)
	return &Result{Run: run}, nil
}
