// Package corrections loads hand corrections to automatically detected task
// periods and rating alignments.
package corrections

import (
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/studylog/internal/align"
	"github.com/runnerr0/studylog/internal/intervals"
	"gopkg.in/yaml.v3"
)

// Discard drops detected periods. A nil field matches any value.
type Discard struct {
	UserID    *int64 `yaml:"user_id"`
	TaskIndex *int64 `yaml:"task_index"`
}

func (d Discard) matches(p intervals.Period) bool {
	if d.UserID != nil && *d.UserID != p.UserID {
		return false
	}
	if d.TaskIndex != nil && *d.TaskIndex != p.TaskIndex {
		return false
	}
	return true
}

// Extra is a period added by hand.
type Extra struct {
	UserID    int64     `yaml:"user_id"`
	TaskIndex int64     `yaml:"task_index"`
	Start     time.Time `yaml:"start"`
	End       time.Time `yaml:"end"`
}

// RatingLabel assigns a rating event to a task by hand.
type RatingLabel struct {
	UserID    int64 `yaml:"user_id"`
	TaskIndex int64 `yaml:"task_index"`
	EventID   int64 `yaml:"event_id"`
}

// Corrections is the contents of a corrections file.
type Corrections struct {
	Discard      []Discard     `yaml:"discard"`
	Extra        []Extra       `yaml:"extra"`
	RatingLabels []RatingLabel `yaml:"rating_labels"`
}

// Load reads a corrections file. An empty path yields no corrections.
func Load(path string) (*Corrections, error) {
	if path == "" {
		return &Corrections{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corrections file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("corrections file %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a corrections document.
func Parse(data []byte) (*Corrections, error) {
	var c Corrections
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing corrections: %w", err)
	}
	for i, d := range c.Discard {
		if d.UserID == nil && d.TaskIndex == nil {
			return nil, fmt.Errorf("discard %d: user_id or task_index is required", i)
		}
	}
	for i, e := range c.Extra {
		if !e.End.After(e.Start) {
			return nil, fmt.Errorf("extra %d: end must be after start", i)
		}
	}
	return &c, nil
}

// Apply removes discarded periods from detected and appends the extra
// periods. Discards only apply to detected periods, so an extra period is
// kept even when a discard matches it.
func (c *Corrections) Apply(detected []intervals.Period, concernCount int) ([]intervals.Period, int) {
	var (
		out       []intervals.Period
		discarded int
	)
	for _, p := range detected {
		if c.discards(p) {
			discarded++
			continue
		}
		out = append(out, p)
	}
	for _, e := range c.Extra {
		out = append(out, intervals.Period{
			UserID:       e.UserID,
			TaskIndex:    e.TaskIndex,
			ConcernIndex: intervals.ConcernIndex(e.UserID, e.TaskIndex, concernCount),
			Start:        e.Start,
			End:          e.End,
		})
	}
	return out, discarded
}

func (c *Corrections) discards(p intervals.Period) bool {
	for _, d := range c.Discard {
		if d.matches(p) {
			return true
		}
	}
	return false
}

// HandLabels returns the rating labels in the form the aligner takes.
func (c *Corrections) HandLabels() []align.HandLabel {
	labels := make([]align.HandLabel, len(c.RatingLabels))
	for i, l := range c.RatingLabels {
		labels[i] = align.HandLabel{UserID: l.UserID, TaskIndex: l.TaskIndex, EventID: l.EventID}
	}
	return labels
}
