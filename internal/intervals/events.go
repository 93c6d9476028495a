// Package intervals reconstructs task periods and location visits from the
// ordered event streams logged during a study session.
package intervals

import (
	"strings"
	"time"
)

// EventKind is the role a browser event plays in visit reconstruction.
type EventKind int

const (
	KindOther EventKind = iota
	KindActivate
	KindDeactivate
	KindPageLoad
)

func (k EventKind) String() string {
	switch k {
	case KindActivate:
		return "activate"
	case KindDeactivate:
		return "deactivate"
	case KindPageLoad:
		return "page-load"
	default:
		return "other"
	}
}

// Browser event types logged by the study extension.
const (
	EventTabActivated      = "Tab activated"
	EventTabOpened         = "Tab opened"
	EventWindowActivated   = "Window activated"
	EventWindowDeactivated = "Window deactivated"
	EventTabClosed         = "Tab closed"
	EventWindowClosed      = "Window closed"
	eventContentLoaded     = "Tab content loaded"
)

// Form event types marking task boundaries.
const (
	EventGetTask       = "get task"
	EventPostTask      = "post task"
	EventPostResponses = "post responses"
)

// Kind classifies a browser event type. Every "Tab content loaded" variant,
// such as "Tab content loaded (pageshow)", is a page load.
func Kind(eventType string) EventKind {
	switch eventType {
	case EventTabActivated, EventTabOpened, EventWindowActivated:
		return KindActivate
	case EventWindowDeactivated, EventTabClosed, EventWindowClosed:
		return KindDeactivate
	}
	if strings.HasPrefix(eventType, eventContentLoaded) {
		return KindPageLoad
	}
	return KindOther
}

// IntroConcernIndex is the concern of the introductory task 0, which sits
// outside the counter-balanced range.
const IntroConcernIndex = -1

// ConcernIndex recovers the concern a participant worked on for a task from
// the study's counter-balancing: each participant starts at an offset of
// their id and walks the concerns in order.
func ConcernIndex(userID, taskIndex int64, concernCount int) int64 {
	if taskIndex == 0 {
		return IntroConcernIndex
	}
	n := int64(concernCount)
	return (userID%n + taskIndex) % n
}

// FormEvent is a question form event.
type FormEvent struct {
	UserID    int64
	TaskIndex int64
	Type      string
	Time      time.Time
}

// BrowserEvent is a browser event placed on the timeline by its visit time.
type BrowserEvent struct {
	ID     int64
	UserID int64
	TabID  string
	URL    string
	Title  string
	Type   string
	Time   time.Time
}

// Period is the window a participant spent on one task.
type Period struct {
	UserID       int64
	TaskIndex    int64
	ConcernIndex int64
	Start        time.Time
	End          time.Time
}

// Visit is a half-open interval [Start, End) during which URL was the active
// content of TabID.
type Visit struct {
	UserID int64
	TabID  string
	URL    string
	Title  string
	Start  time.Time
	End    time.Time
}

// Duration returns End - Start.
func (v Visit) Duration() time.Duration {
	return v.End.Sub(v.Start)
}
