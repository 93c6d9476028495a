// Package export writes raw events and derived generations as CSV files.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/runnerr0/studylog/internal/storage"
	"github.com/runnerr0/studylog/internal/urls"
)

// timeFormat matches how timestamps were written by earlier dumps of the
// study database.
const timeFormat = "2006-01-02 15:04:05.999999"

// ErrUnknownDump is returned for a dump name that does not exist.
var ErrUnknownDump = errors.New("unknown dump")

// DomainNamer maps a URL to the readable name of its site.
type DomainNamer interface {
	DomainName(rawURL string) string
}

type dump struct {
	entity storage.Entity
	header []string
	rows   func(ctx context.Context, d *Dumper, computeIndex int64) ([][]string, error)
}

// Dumper exports records from a store.
type Dumper struct {
	store   storage.Store
	domains DomainNamer
}

// NewDumper creates a Dumper. A nil namer uses the built-in domain table.
func NewDumper(store storage.Store, domains DomainNamer) *Dumper {
	if domains == nil {
		domains = urls.DefaultRuleSet()
	}
	return &Dumper{store: store, domains: domains}
}

// Names lists the available dumps.
func Names() []string {
	names := make([]string, 0, len(dumps))
	for name := range dumps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is an available dump.
func Known(name string) bool {
	_, ok := dumps[name]
	return ok
}

// Summary describes a finished dump.
type Summary struct {
	Name         string `json:"name"`
	ComputeIndex int64  `json:"compute_index,omitempty"`
	Rows         int    `json:"rows"`
}

// Dump writes the named dump to w as CSV with a header row. computeIndex
// selects the generation of derived entities; <= 0 means the latest. When an
// entity has never been computed only the header is written.
func (d *Dumper) Dump(ctx context.Context, name string, computeIndex int64, w io.Writer) (*Summary, error) {
	entry, ok := dumps[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDump, name)
	}

	summary := &Summary{Name: name}
	var rows [][]string
	resolved, err := d.resolve(ctx, entry.entity, computeIndex)
	if err != nil {
		return nil, err
	}
	if resolved > 0 || entry.entity == "" {
		summary.ComputeIndex = resolved
		rows, err = entry.rows(ctx, d, resolved)
		if err != nil {
			return nil, fmt.Errorf("dump %s: %w", name, err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(entry.header); err != nil {
		return nil, err
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	summary.Rows = len(rows)
	return summary, nil
}

func (d *Dumper) resolve(ctx context.Context, entity storage.Entity, requested int64) (int64, error) {
	if entity == "" {
		return 0, nil
	}
	idx, err := d.store.ResolveComputeIndex(ctx, entity, requested)
	if requested <= 0 && errors.Is(err, storage.ErrGenerationNotFound) {
		return 0, nil
	}
	return idx, err
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

var dumps = map[string]dump{
	"location-events": {
		header: []string{"Id", "User", "Visit Date", "Log Date", "Title", "URL", "Event type", "Tab ID"},
		rows: func(ctx context.Context, d *Dumper, _ int64) ([][]string, error) {
			events, err := d.store.LocationEvents(ctx)
			if err != nil {
				return nil, err
			}
			out := make([][]string, len(events))
			for i, e := range events {
				out[i] = []string{
					itoa(e.ID), itoa(e.UserID), formatTime(e.VisitDate), formatTime(e.LogDate),
					e.Title, e.URL, e.EventType, e.TabID,
				}
			}
			return out, nil
		},
	},
	"task-periods": {
		entity: storage.EntityTaskPeriods,
		header: []string{"Compute Index", "User", "Task Index", "Concern Index", "Start Time", "End Time"},
		rows: func(ctx context.Context, d *Dumper, idx int64) ([][]string, error) {
			periods, err := d.store.TaskPeriods(ctx, idx)
			if err != nil {
				return nil, err
			}
			out := make([][]string, len(periods))
			for i, p := range periods {
				out[i] = []string{
					itoa(p.ComputeIndex), itoa(p.UserID), itoa(p.TaskIndex), itoa(p.ConcernIndex),
					formatTime(p.Start), formatTime(p.End),
				}
			}
			return out, nil
		},
	},
	"location-visits": {
		entity: storage.EntityLocationVisits,
		header: []string{
			"Compute Index", "User", "Task Index", "Concern Index", "Tab ID",
			"URL", "Domain", "Page Title", "Start Time", "End Time",
		},
		rows: func(ctx context.Context, d *Dumper, idx int64) ([][]string, error) {
			visits, err := d.store.LocationVisits(ctx, idx)
			if err != nil {
				return nil, err
			}
			out := make([][]string, len(visits))
			for i, v := range visits {
				out[i] = []string{
					itoa(v.ComputeIndex), itoa(v.UserID), itoa(v.TaskIndex), itoa(v.ConcernIndex), v.TabID,
					v.URL, d.domains.DomainName(v.URL), v.Title, formatTime(v.Start), formatTime(v.End),
				}
			}
			return out, nil
		},
	},
	"location-ratings": {
		entity: storage.EntityLocationRatings,
		header: []string{
			"Compute Index", "User", "Task Index", "Concern Index",
			"URL", "Domain", "Rating", "Page Title", "Visit Date", "Hand Aligned",
		},
		rows: func(ctx context.Context, d *Dumper, idx int64) ([][]string, error) {
			ratings, err := d.store.LocationRatings(ctx, idx)
			if err != nil {
				return nil, err
			}
			out := make([][]string, len(ratings))
			for i, r := range ratings {
				out[i] = []string{
					itoa(r.ComputeIndex), itoa(r.UserID), itoa(r.TaskIndex), itoa(r.ConcernIndex),
					r.URL, d.domains.DomainName(r.URL), itoa(r.Rating), r.Title, formatTime(r.VisitDate),
					strconv.FormatBool(r.HandAligned),
				}
			}
			return out, nil
		},
	},
	"navigation-vertices": {
		entity: storage.EntityNavigationGraph,
		header: []string{"Compute Index", "Page Type", "Occurrences", "Total Time", "Mean Time"},
		rows: func(ctx context.Context, d *Dumper, idx int64) ([][]string, error) {
			vertices, err := d.store.NavigationVertices(ctx, idx)
			if err != nil {
				return nil, err
			}
			out := make([][]string, len(vertices))
			for i, v := range vertices {
				out[i] = []string{
					itoa(v.ComputeIndex), v.PageType, itoa(v.Occurrences), ftoa(v.TotalTime), ftoa(v.MeanTime),
				}
			}
			return out, nil
		},
	},
	"navigation-edges": {
		entity: storage.EntityNavigationGraph,
		header: []string{"Compute Index", "Source", "Target", "Occurrences", "Probability"},
		rows: func(ctx context.Context, d *Dumper, idx int64) ([][]string, error) {
			edges, err := d.store.NavigationEdges(ctx, idx)
			if err != nil {
				return nil, err
			}
			out := make([][]string, len(edges))
			for i, e := range edges {
				out[i] = []string{
					itoa(e.ComputeIndex), e.SourcePageType, e.TargetPageType, itoa(e.Occurrences), ftoa(e.Probability),
				}
			}
			return out, nil
		},
	},
	"navigation-ngrams": {
		entity: storage.EntityNavigationNgrams,
		header: []string{"Compute Index", "User", "Concern Index", "Length", "Ngram"},
		rows: func(ctx context.Context, d *Dumper, idx int64) ([][]string, error) {
			ngrams, err := d.store.NavigationNgrams(ctx, idx)
			if err != nil {
				return nil, err
			}
			out := make([][]string, len(ngrams))
			for i, n := range ngrams {
				out[i] = []string{itoa(n.ComputeIndex), itoa(n.UserID), itoa(n.ConcernIndex), itoa(n.Length), n.Ngram}
			}
			return out, nil
		},
	},
	"unique-urls": {
		entity: storage.EntityUniqueURLs,
		header: []string{"Compute Index", "User", "URL", "Unique"},
		rows: func(ctx context.Context, d *Dumper, idx int64) ([][]string, error) {
			rows, err := d.store.UniqueURLs(ctx, idx)
			if err != nil {
				return nil, err
			}
			out := make([][]string, len(rows))
			for i, r := range rows {
				out[i] = []string{itoa(r.ComputeIndex), itoa(r.UserID), r.URL, strconv.FormatBool(r.Unique)}
			}
			return out, nil
		},
	},
	"unique-cues": {
		entity: storage.EntityUniqueCues,
		header: []string{"Compute Index", "Participant", "Cue", "Unique"},
		rows: func(ctx context.Context, d *Dumper, idx int64) ([][]string, error) {
			rows, err := d.store.UniqueCues(ctx, idx)
			if err != nil {
				return nil, err
			}
			out := make([][]string, len(rows))
			for i, r := range rows {
				out[i] = []string{itoa(r.ComputeIndex), itoa(r.ParticipantID), r.Cue, strconv.FormatBool(r.Unique)}
			}
			return out, nil
		},
	},
}
