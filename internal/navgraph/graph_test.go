package navgraph

import (
	"testing"
	"time"

	"github.com/runnerr0/studylog/internal/urls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(sec int) time.Time {
	return time.Date(2000, 1, 1, 12, 0, sec, 0, time.UTC)
}

func testResolver() *Resolver {
	return NewResolver(urls.NewLookup(map[string]urls.PageType{
		"http://url1.com":     {MainType: "page_type_1"},
		"http://url2.com":     {MainType: "page_type_2"},
		"http://redirect.com": {MainType: "redirect", Redirect: true},
	}), nil)
}

func visit(id, user, concern int64, url string, start, end int) Visit {
	return Visit{ID: id, UserID: user, ConcernIndex: concern, URL: url, Start: at(start), End: at(end)}
}

func vertexByType(t *testing.T, g Graph, pageType string) Vertex {
	t.Helper()
	for _, v := range g.Vertices {
		if v.PageType == pageType {
			return v
		}
	}
	require.Failf(t, "missing vertex", "page type %q", pageType)
	return Vertex{}
}

func edgeBetween(t *testing.T, g Graph, source, target string) Edge {
	t.Helper()
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return e
		}
	}
	require.Failf(t, "missing edge", "%s -> %s", source, target)
	return Edge{}
}

func TestBuild_CountsVerticesAndEdges(t *testing.T) {
	g := Build(testResolver(), []Visit{
		visit(1, 0, 0, "http://url1.com", 0, 10),
		visit(2, 0, 0, "http://url1.com", 10, 20),
		visit(3, 0, 0, "http://url1.com", 20, 30),
		visit(4, 0, 0, "http://url2.com", 30, 40),
		visit(5, 0, 0, "http://url1.com", 40, 50),
	})

	p1 := vertexByType(t, g, "page_type_1")
	assert.Equal(t, int64(4), p1.Occurrences)
	assert.InDelta(t, 40.0, p1.TotalTime, 1e-9)
	assert.InDelta(t, 10.0, p1.MeanTime, 1e-9)

	p2 := vertexByType(t, g, "page_type_2")
	assert.Equal(t, int64(1), p2.Occurrences)

	assert.Equal(t, int64(1), vertexByType(t, g, StartVertex).Occurrences)
	assert.Equal(t, int64(1), vertexByType(t, g, EndVertex).Occurrences)

	assert.Equal(t, int64(1), edgeBetween(t, g, StartVertex, "page_type_1").Occurrences)
	self := edgeBetween(t, g, "page_type_1", "page_type_1")
	assert.Equal(t, int64(2), self.Occurrences)
	assert.InDelta(t, 0.5, self.Probability, 1e-9)
	assert.InDelta(t, 0.25, edgeBetween(t, g, "page_type_1", "page_type_2").Probability, 1e-9)
	assert.InDelta(t, 0.25, edgeBetween(t, g, "page_type_1", EndVertex).Probability, 1e-9)
	assert.InDelta(t, 1.0, edgeBetween(t, g, "page_type_2", "page_type_1").Probability, 1e-9)
}

func TestBuild_ProbabilitiesSumToOnePerSource(t *testing.T) {
	g := Build(testResolver(), []Visit{
		visit(1, 0, 0, "http://url1.com", 0, 10),
		visit(2, 0, 0, "http://url2.com", 10, 20),
		visit(3, 1, 0, "http://url2.com", 0, 5),
		visit(4, 1, 1, "http://url1.com", 0, 5),
		visit(5, 1, 1, "http://unknown.com", 5, 6),
	})

	sums := make(map[string]float64)
	for _, e := range g.Edges {
		sums[e.Source] += e.Probability
	}
	for source, sum := range sums {
		assert.InDelta(t, 1.0, sum, 1e-9, source)
	}
	assert.NotContains(t, sums, EndVertex)
}

func TestBuild_RedirectsAreSkippedButChained(t *testing.T) {
	g := Build(testResolver(), []Visit{
		visit(1, 0, 0, "http://url1.com", 0, 10),
		visit(2, 0, 0, "http://redirect.com", 10, 11),
		visit(3, 0, 0, "http://url2.com", 11, 20),
	})

	for _, v := range g.Vertices {
		assert.NotEqual(t, "redirect", v.PageType)
	}
	assert.Equal(t, int64(1), edgeBetween(t, g, "page_type_1", "page_type_2").Occurrences)
	assert.Len(t, g.Edges, 3)
}

func TestBuild_NoEdgesAcrossParticipantsOrConcerns(t *testing.T) {
	g := Build(testResolver(), []Visit{
		visit(1, 0, 0, "http://url1.com", 0, 10),
		visit(2, 0, 1, "http://url2.com", 10, 20),
		visit(3, 1, 0, "http://url2.com", 20, 30),
	})

	for _, e := range g.Edges {
		assert.False(t, e.Source == "page_type_1" && e.Target == "page_type_2", "edge across walks")
	}
	assert.Equal(t, int64(2), edgeBetween(t, g, StartVertex, "page_type_2").Occurrences)
	assert.Equal(t, int64(1), edgeBetween(t, g, "page_type_1", EndVertex).Occurrences)
}

func TestBuild_EmptyVisitsKeepStartAndEnd(t *testing.T) {
	g := Build(testResolver(), nil)

	require.Len(t, g.Vertices, 2)
	assert.Equal(t, EndVertex, g.Vertices[0].PageType)
	assert.Equal(t, StartVertex, g.Vertices[1].PageType)
	for _, v := range g.Vertices {
		assert.Equal(t, int64(1), v.Occurrences)
		assert.Zero(t, v.TotalTime)
		assert.Zero(t, v.MeanTime)
	}
	assert.Empty(t, g.Edges)
}

func TestBuild_UnknownURLsAreCounted(t *testing.T) {
	r := testResolver()
	g := Build(r, []Visit{
		visit(1, 0, 0, "http://nowhere.com/a", 0, 10),
		visit(2, 0, 0, "http://nowhere.com/a", 10, 20),
	})

	assert.Equal(t, int64(2), vertexByType(t, g, UnknownPageType).Occurrences)
	assert.Equal(t, 2, r.Unclassified)
}

func TestBuild_ReservedPageTypesDoNotMergeWithSentinels(t *testing.T) {
	resolver := NewResolver(urls.NewLookup(map[string]urls.PageType{
		"http://start.com": {MainType: StartVertex},
		"http://end.com":   {MainType: EndVertex},
	}), nil)

	g := Build(resolver, []Visit{
		visit(1, 0, 0, "http://start.com", 0, 10),
		visit(2, 0, 0, "http://end.com", 10, 20),
	})

	assert.Equal(t, int64(1), vertexByType(t, g, StartVertex).Occurrences)
	assert.Equal(t, int64(1), vertexByType(t, g, EndVertex).Occurrences)
	assert.Equal(t, int64(1), vertexByType(t, g, "Start page").Occurrences)
	assert.Equal(t, int64(1), vertexByType(t, g, "End page").Occurrences)
	assert.Len(t, g.Vertices, 4)
	assert.Len(t, g.Edges, 3)
}

func TestBuild_OutputIsSorted(t *testing.T) {
	g := Build(testResolver(), []Visit{
		visit(1, 0, 0, "http://url2.com", 0, 10),
		visit(2, 0, 0, "http://url1.com", 10, 20),
	})

	for i := 1; i < len(g.Vertices); i++ {
		assert.Less(t, g.Vertices[i-1].PageType, g.Vertices[i].PageType)
	}
	for i := 1; i < len(g.Edges); i++ {
		prev, cur := g.Edges[i-1], g.Edges[i]
		assert.True(t, prev.Source < cur.Source || (prev.Source == cur.Source && prev.Target < cur.Target))
	}
}

func TestGroupWalks_OrdersByUserConcernAndStart(t *testing.T) {
	walks := GroupWalks([]Visit{
		visit(3, 2, 0, "c", 5, 6),
		visit(2, 1, 1, "b", 0, 1),
		visit(5, 1, 0, "a2", 9, 10),
		visit(1, 1, 0, "a1", 0, 1),
		visit(4, 1, 0, "a0", 0, 1),
	})

	require.Len(t, walks, 3)
	assert.Equal(t, int64(1), walks[0].UserID)
	assert.Equal(t, int64(0), walks[0].ConcernIndex)
	assert.Equal(t, int64(1), walks[1].ConcernIndex)
	assert.Equal(t, int64(2), walks[2].UserID)

	var got []string
	for _, v := range walks[0].Visits {
		got = append(got, v.URL)
	}
	assert.Equal(t, []string{"a1", "a0", "a2"}, got)
}
