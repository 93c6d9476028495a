package intervals

// VisitReconstructor follows the single foreground tab of one participant and
// emits a visit each time the content the participant is looking at changes.
// Only one tab is tracked: the study's browser reports one watched tab at a
// time, so background tabs accrue no dwell time.
type VisitReconstructor struct {
	active *BrowserEvent
}

// Push feeds the next event, in visit time order, and returns the visit it
// closes, if any.
//
//   - A page load in the active tab with a new URL closes the old URL's visit
//     and tracks the new one. Reloads of the same URL and loads in other tabs
//     are ignored.
//   - A deactivation closes the active visit and clears the active tab. With
//     no active tab it is a no-op, and a "Tab closed" for a background tab
//     is ignored.
//   - An activation closes the previous tab's visit at this event's time and
//     makes this tab active. Re-activating the content already in focus is
//     ignored.
func (r *VisitReconstructor) Push(e BrowserEvent) (Visit, bool) {
	switch Kind(e.Type) {
	case KindPageLoad:
		if r.active == nil || r.active.TabID != e.TabID || r.active.URL == e.URL {
			return Visit{}, false
		}
		v, ok := r.closeAt(e)
		r.active = &e
		return v, ok

	case KindDeactivate:
		if r.active == nil {
			return Visit{}, false
		}
		if e.Type == EventTabClosed && e.TabID != r.active.TabID {
			return Visit{}, false
		}
		v, ok := r.closeAt(e)
		r.active = nil
		return v, ok

	case KindActivate:
		if r.active != nil && r.active.TabID == e.TabID && r.active.URL == e.URL {
			return Visit{}, false
		}
		var (
			v  Visit
			ok bool
		)
		if r.active != nil {
			v, ok = r.closeAt(e)
		}
		r.active = &e
		return v, ok
	}
	return Visit{}, false
}

// closeAt ends the active visit at e. Empty or inverted intervals are never
// emitted.
func (r *VisitReconstructor) closeAt(e BrowserEvent) (Visit, bool) {
	start := r.active
	v := Visit{
		UserID: start.UserID,
		TabID:  start.TabID,
		URL:    start.URL,
		Title:  start.Title,
		Start:  start.Time,
		End:    e.Time,
	}
	if v.Duration() <= 0 {
		return Visit{}, false
	}
	return v, true
}

// ReconstructVisits runs one VisitReconstructor per user over events, which
// must be ordered by time within each user. A visit still open when a user's
// events run out has no end and is not emitted.
func ReconstructVisits(events []BrowserEvent) []Visit {
	reconstructors := make(map[int64]*VisitReconstructor)
	var visits []Visit

	for _, e := range events {
		r, ok := reconstructors[e.UserID]
		if !ok {
			r = &VisitReconstructor{}
			reconstructors[e.UserID] = r
		}
		if v, ok := r.Push(e); ok {
			visits = append(visits, v)
		}
	}
	return visits
}

// TaskVisit is a visit attributed to the task period containing it.
type TaskVisit struct {
	Visit
	TaskIndex    int64
	ConcernIndex int64
}

// AssignVisits attributes each visit to the period strictly containing it.
// Visits outside every period are dropped and counted.
func AssignVisits(visits []Visit, periods *Periods) ([]TaskVisit, int) {
	var (
		assigned []TaskVisit
		dropped  int
	)
	for _, v := range visits {
		period, ok := periods.ContainingVisit(v)
		if !ok {
			dropped++
			continue
		}
		assigned = append(assigned, TaskVisit{
			Visit:        v,
			TaskIndex:    period.TaskIndex,
			ConcernIndex: period.ConcernIndex,
		})
	}
	return assigned, dropped
}
