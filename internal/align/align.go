// Package align attaches rating events to the task periods they were made in.
package align

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/runnerr0/studylog/internal/intervals"
)

var ratingPattern = regexp.MustCompile(`^Rating: (\d+)$`)

// ParseRating extracts the score from a "Rating: N" event type.
func ParseRating(eventType string) (int64, bool) {
	m := ratingPattern.FindStringSubmatch(eventType)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// TimeBasis selects which event timestamp places a rating on the timeline.
type TimeBasis string

const (
	// LogTime is when the extension logged the rating event.
	LogTime   TimeBasis = "log"
	VisitTime TimeBasis = "visit"
)

// ParseTimeBasis validates a configured time basis.
func ParseTimeBasis(s string) (TimeBasis, error) {
	switch TimeBasis(s) {
	case LogTime, VisitTime:
		return TimeBasis(s), nil
	case "":
		return LogTime, nil
	default:
		return "", fmt.Errorf("unknown rating time basis %q (want log or visit)", s)
	}
}

// RatingEvent is a "Rating: N" browser event.
type RatingEvent struct {
	EventID   int64
	UserID    int64
	URL       string
	Title     string
	Rating    int64
	VisitTime time.Time
	LogTime   time.Time
}

// HandLabel assigns a rating event to a task by hand.
type HandLabel struct {
	UserID    int64
	TaskIndex int64
	EventID   int64
}

// Rating is a rating event matched to a task period.
type Rating struct {
	RatingEvent
	TaskIndex    int64
	ConcernIndex int64
	HandAligned  bool
}

// Unmatched identifies a rating event no period could be found for.
type Unmatched struct {
	UserID  int64 `json:"user_id"`
	EventID int64 `json:"event_id"`
}

type labelKey struct {
	userID  int64
	eventID int64
}

// Aligner matches rating events against one generation of task periods.
type Aligner struct {
	periods *intervals.Periods
	labels  map[labelKey]int64
	basis   TimeBasis
}

// NewAligner builds an Aligner. Hand labels take precedence over time windows.
func NewAligner(periods *intervals.Periods, labels []HandLabel, basis TimeBasis) *Aligner {
	a := &Aligner{
		periods: periods,
		labels:  make(map[labelKey]int64, len(labels)),
		basis:   basis,
	}
	for _, l := range labels {
		a.labels[labelKey{l.UserID, l.EventID}] = l.TaskIndex
	}
	return a
}

// Align finds the period for e. A hand label naming a task the user has a
// period for wins regardless of time; otherwise the period strictly containing
// the rating's time is used.
func (a *Aligner) Align(e RatingEvent) (Rating, bool) {
	if task, ok := a.labels[labelKey{e.UserID, e.EventID}]; ok {
		if period, ok := a.periods.ForTask(e.UserID, task); ok {
			return Rating{
				RatingEvent:  e,
				TaskIndex:    period.TaskIndex,
				ConcernIndex: period.ConcernIndex,
				HandAligned:  true,
			}, true
		}
	}

	t := e.LogTime
	if a.basis == VisitTime {
		t = e.VisitTime
	}
	period, ok := a.periods.ContainingInstant(e.UserID, t)
	if !ok {
		return Rating{}, false
	}
	return Rating{
		RatingEvent:  e,
		TaskIndex:    period.TaskIndex,
		ConcernIndex: period.ConcernIndex,
	}, true
}

// AlignAll aligns every event and reports those that matched no period.
func (a *Aligner) AlignAll(events []RatingEvent) ([]Rating, []Unmatched) {
	var (
		ratings   []Rating
		unmatched []Unmatched
	)
	for _, e := range events {
		r, ok := a.Align(e)
		if !ok {
			unmatched = append(unmatched, Unmatched{UserID: e.UserID, EventID: e.EventID})
			continue
		}
		ratings = append(ratings, r)
	}
	return ratings, unmatched
}
