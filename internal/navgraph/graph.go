// Package navgraph turns ordered page visits into an aggregate transition
// graph of page types, and into page-type n-grams.
package navgraph

import (
	"log/slog"
	"sort"
	"time"

	"github.com/runnerr0/studylog/internal/urls"
)

// Synthetic vertices bracketing every walk, and the type given to pages the
// classifier does not know.
const (
	StartVertex     = "Start"
	EndVertex       = "End"
	UnknownPageType = "Unknown"

	// reservedSuffix renames classifier page types that collide with the
	// synthetic vertices.
	reservedSuffix = " page"
)

// Visit is one page visit of a participant while working on a concern.
type Visit struct {
	ID           int64
	UserID       int64
	ConcernIndex int64
	URL          string
	Start        time.Time
	End          time.Time
}

// Vertex aggregates every visit to one page type.
type Vertex struct {
	PageType    string
	Occurrences int64
	TotalTime   float64
	MeanTime    float64
}

// Edge counts transitions between two page types. Probability is the share of
// the source vertex's outgoing transitions taken along this edge.
type Edge struct {
	Source      string
	Target      string
	Occurrences int64
	Probability float64
}

// Graph is sorted by page type, and edges by (source, target).
type Graph struct {
	Vertices []Vertex
	Edges    []Edge
}

// Resolver maps URLs to page types, tracking the ones the classifier misses.
type Resolver struct {
	classifier urls.Classifier
	logger     *slog.Logger
	warned     map[string]struct{}

	// Unclassified counts lookups that fell back to UnknownPageType.
	Unclassified int
}

// NewResolver wraps classifier. A nil logger discards warnings.
func NewResolver(classifier urls.Classifier, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		classifier: classifier,
		logger:     logger,
		warned:     make(map[string]struct{}),
	}
}

// PageType returns the page type of rawURL and whether it is a redirect.
// Page types named like StartVertex or EndVertex get reservedSuffix.
func (r *Resolver) PageType(rawURL string) (string, bool) {
	label, ok := r.classifier.Classify(rawURL)
	if !ok {
		r.Unclassified++
		if _, seen := r.warned[rawURL]; !seen {
			r.warned[rawURL] = struct{}{}
			r.logger.Warn("URL not in page type table, using Unknown", "url", rawURL)
		}
		return UnknownPageType, false
	}
	if label.Name == StartVertex || label.Name == EndVertex {
		renamed := label.Name + reservedSuffix
		if _, seen := r.warned[label.Name]; !seen {
			r.warned[label.Name] = struct{}{}
			r.logger.Warn("page type collides with a reserved vertex, renaming", "page_type", label.Name, "renamed", renamed)
		}
		return renamed, label.Redirect
	}
	return label.Name, label.Redirect
}

type edgeKey struct {
	source string
	target string
}

// Builder accumulates walks into a graph. Walks must be fed in ascending
// (user, concern) order for the output to be reproducible.
type Builder struct {
	resolver *Resolver
	vertices map[string]*Vertex
	edges    map[edgeKey]*Edge
}

// NewBuilder returns a builder seeded with the Start and End vertices.
func NewBuilder(resolver *Resolver) *Builder {
	return &Builder{
		resolver: resolver,
		vertices: map[string]*Vertex{
			StartVertex: {PageType: StartVertex, Occurrences: 1},
			EndVertex:   {PageType: EndVertex, Occurrences: 1},
		},
		edges: make(map[edgeKey]*Edge),
	}
}

func (b *Builder) vertex(pageType string) *Vertex {
	v, ok := b.vertices[pageType]
	if !ok {
		v = &Vertex{PageType: pageType}
		b.vertices[pageType] = v
	}
	return v
}

func (b *Builder) traverse(source, target string) {
	key := edgeKey{source, target}
	e, ok := b.edges[key]
	if !ok {
		e = &Edge{Source: source, Target: target}
		b.edges[key] = e
	}
	e.Occurrences++
}

// Walk adds one participant's visits for one concern, in visit order.
// Redirect pages are skipped; the pages around them are linked directly.
func (b *Builder) Walk(visits []Visit) {
	last := StartVertex
	for _, visit := range visits {
		pageType, redirect := b.resolver.PageType(visit.URL)
		if redirect {
			continue
		}
		v := b.vertex(pageType)
		v.Occurrences++
		v.TotalTime += visit.End.Sub(visit.Start).Seconds()

		b.traverse(last, pageType)
		last = pageType
	}
	b.traverse(last, EndVertex)
}

// Graph computes mean times and transition probabilities and returns the
// sorted result. The builder can keep accepting walks afterwards.
func (b *Builder) Graph() Graph {
	outgoing := make(map[string]int64)
	for key, e := range b.edges {
		outgoing[key.source] += e.Occurrences
	}

	g := Graph{
		Vertices: make([]Vertex, 0, len(b.vertices)),
		Edges:    make([]Edge, 0, len(b.edges)),
	}
	for _, v := range b.vertices {
		out := *v
		if out.Occurrences > 0 {
			out.MeanTime = out.TotalTime / float64(out.Occurrences)
		}
		g.Vertices = append(g.Vertices, out)
	}
	for key, e := range b.edges {
		out := *e
		out.Probability = float64(out.Occurrences) / float64(outgoing[key.source])
		g.Edges = append(g.Edges, out)
	}

	sort.Slice(g.Vertices, func(i, j int) bool {
		return g.Vertices[i].PageType < g.Vertices[j].PageType
	})
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].Source != g.Edges[j].Source {
			return g.Edges[i].Source < g.Edges[j].Source
		}
		return g.Edges[i].Target < g.Edges[j].Target
	})
	return g
}

// Walk is the visits of one participant for one concern.
type Walk struct {
	UserID       int64
	ConcernIndex int64
	Visits       []Visit
}

// GroupWalks splits visits into walks ordered by (user, concern), each walk
// ordered by start time then id.
func GroupWalks(visits []Visit) []Walk {
	type walkKey struct{ user, concern int64 }
	index := make(map[walkKey]int)
	var walks []Walk
	for _, v := range visits {
		key := walkKey{v.UserID, v.ConcernIndex}
		i, ok := index[key]
		if !ok {
			i = len(walks)
			index[key] = i
			walks = append(walks, Walk{UserID: v.UserID, ConcernIndex: v.ConcernIndex})
		}
		walks[i].Visits = append(walks[i].Visits, v)
	}

	sort.Slice(walks, func(i, j int) bool {
		if walks[i].UserID != walks[j].UserID {
			return walks[i].UserID < walks[j].UserID
		}
		return walks[i].ConcernIndex < walks[j].ConcernIndex
	})
	for _, w := range walks {
		sort.SliceStable(w.Visits, func(i, j int) bool {
			a, b := w.Visits[i], w.Visits[j]
			if !a.Start.Equal(b.Start) {
				return a.Start.Before(b.Start)
			}
			return a.ID < b.ID
		})
	}
	return walks
}

// Build runs every walk in visits through a fresh builder.
func Build(resolver *Resolver, visits []Visit) Graph {
	b := NewBuilder(resolver)
	for _, w := range GroupWalks(visits) {
		b.Walk(w.Visits)
	}
	return b.Graph()
}
