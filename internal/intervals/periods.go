package intervals

import (
	"sort"
	"time"
)

// ExtractTaskPeriods pairs each "get task" with the next end-of-task marker.
// Events must be ordered by time within each user; users may be interleaved.
// A period is emitted only when the end marker carries the same task index as
// the most recent "get task". Any end marker resets the user's state, so an
// orphaned or mismatched "get task" yields nothing.
func ExtractTaskPeriods(events []FormEvent, concernCount int) []Period {
	started := make(map[int64]FormEvent)
	var periods []Period

	for _, e := range events {
		switch e.Type {
		case EventGetTask:
			started[e.UserID] = e

		case EventPostTask, EventPostResponses:
			start, ok := started[e.UserID]
			delete(started, e.UserID)
			if !ok || start.TaskIndex != e.TaskIndex {
				continue
			}
			if !e.Time.After(start.Time) {
				continue
			}
			periods = append(periods, Period{
				UserID:       e.UserID,
				TaskIndex:    e.TaskIndex,
				ConcernIndex: ConcernIndex(e.UserID, e.TaskIndex, concernCount),
				Start:        start.Time,
				End:          e.Time,
			})
		}
	}
	return periods
}

// Periods indexes task periods by user for containment queries.
type Periods struct {
	byUser map[int64][]Period
}

// NewPeriods indexes periods. Within a user they are ordered by task index,
// then start, which is the tie-break order of every lookup.
func NewPeriods(periods []Period) *Periods {
	p := &Periods{byUser: make(map[int64][]Period)}
	for _, period := range periods {
		p.byUser[period.UserID] = append(p.byUser[period.UserID], period)
	}
	for _, list := range p.byUser {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].TaskIndex != list[j].TaskIndex {
				return list[i].TaskIndex < list[j].TaskIndex
			}
			return list[i].Start.Before(list[j].Start)
		})
	}
	return p
}

// Len returns the number of indexed periods.
func (p *Periods) Len() int {
	n := 0
	for _, list := range p.byUser {
		n += len(list)
	}
	return n
}

// ContainingVisit returns the user's period that strictly contains v:
// period.Start < v.Start and v.End < period.End.
func (p *Periods) ContainingVisit(v Visit) (Period, bool) {
	for _, period := range p.byUser[v.UserID] {
		if period.Start.Before(v.Start) && v.End.Before(period.End) {
			return period, true
		}
	}
	return Period{}, false
}

// ContainingInstant returns the user's period with Start < t < End.
func (p *Periods) ContainingInstant(userID int64, t time.Time) (Period, bool) {
	for _, period := range p.byUser[userID] {
		if period.Start.Before(t) && t.Before(period.End) {
			return period, true
		}
	}
	return Period{}, false
}

// ForTask returns the user's period for taskIndex.
func (p *Periods) ForTask(userID, taskIndex int64) (Period, bool) {
	for _, period := range p.byUser[userID] {
		if period.TaskIndex == taskIndex {
			return period, true
		}
	}
	return Period{}, false
}
