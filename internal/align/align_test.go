package align

import (
	"testing"
	"time"

	"github.com/runnerr0/studylog/internal/intervals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2000, 1, 1, hour, min, sec, 0, time.UTC)
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		eventType string
		want      int64
		ok        bool
	}{
		{"Rating: 0", 0, true},
		{"Rating: 4", 4, true},
		{"Rating: 10", 10, true},
		{"Rating: ", 0, false},
		{"Rating: 4 stars", 0, false},
		{"Tab activated", 0, false},
	}
	for _, tc := range tests {
		got, ok := ParseRating(tc.eventType)
		assert.Equal(t, tc.ok, ok, tc.eventType)
		assert.Equal(t, tc.want, got, tc.eventType)
	}
}

func TestParseTimeBasis(t *testing.T) {
	b, err := ParseTimeBasis("visit")
	require.NoError(t, err)
	assert.Equal(t, VisitTime, b)

	b, err = ParseTimeBasis("")
	require.NoError(t, err)
	assert.Equal(t, LogTime, b)

	_, err = ParseTimeBasis("wall")
	assert.Error(t, err)
}

func onePeriod(userID, task int64) *intervals.Periods {
	return intervals.NewPeriods([]intervals.Period{{
		UserID: userID, TaskIndex: task, ConcernIndex: 4,
		Start: at(12, 0, 0), End: at(12, 2, 0),
	}})
}

func TestAlign_ByLogTimeByDefault(t *testing.T) {
	a := NewAligner(onePeriod(0, 1), nil, LogTime)

	r, ok := a.Align(RatingEvent{EventID: 1, UserID: 0, Rating: 3, VisitTime: at(11, 0, 0), LogTime: at(12, 0, 1)})
	require.True(t, ok)
	assert.Equal(t, int64(1), r.TaskIndex)
	assert.Equal(t, int64(4), r.ConcernIndex)
	assert.False(t, r.HandAligned)

	_, ok = a.Align(RatingEvent{EventID: 2, UserID: 0, VisitTime: at(12, 0, 1), LogTime: at(13, 0, 0)})
	assert.False(t, ok)
}

func TestAlign_ByVisitTime(t *testing.T) {
	a := NewAligner(onePeriod(0, 1), nil, VisitTime)

	_, ok := a.Align(RatingEvent{UserID: 0, VisitTime: at(12, 1, 0), LogTime: at(13, 0, 0)})
	assert.True(t, ok)
}

func TestAlign_MustMatchUser(t *testing.T) {
	a := NewAligner(onePeriod(0, 1), nil, LogTime)

	_, ok := a.Align(RatingEvent{UserID: 1, LogTime: at(12, 1, 0)})
	assert.False(t, ok)
}

func TestAlign_WindowIsStrict(t *testing.T) {
	a := NewAligner(onePeriod(0, 1), nil, LogTime)

	_, ok := a.Align(RatingEvent{UserID: 0, LogTime: at(12, 0, 0)})
	assert.False(t, ok)
	_, ok = a.Align(RatingEvent{UserID: 0, LogTime: at(12, 2, 0)})
	assert.False(t, ok)
}

func TestAlign_HandLabelIgnoresTime(t *testing.T) {
	a := NewAligner(onePeriod(2, 4), []HandLabel{{UserID: 2, TaskIndex: 4, EventID: 77}}, LogTime)

	r, ok := a.Align(RatingEvent{EventID: 77, UserID: 2, Rating: 1, LogTime: at(12, 3, 0)})
	require.True(t, ok)
	assert.Equal(t, int64(4), r.TaskIndex)
	assert.True(t, r.HandAligned)
}

func TestAlign_HandLabelForMissingPeriodFallsBackToTime(t *testing.T) {
	a := NewAligner(onePeriod(2, 4), []HandLabel{{UserID: 2, TaskIndex: 9, EventID: 77}}, LogTime)

	r, ok := a.Align(RatingEvent{EventID: 77, UserID: 2, LogTime: at(12, 1, 0)})
	require.True(t, ok)
	assert.Equal(t, int64(4), r.TaskIndex)
	assert.False(t, r.HandAligned)
}

func TestAlign_HandLabelKeyedByUserAndEvent(t *testing.T) {
	a := NewAligner(onePeriod(2, 4), []HandLabel{{UserID: 3, TaskIndex: 4, EventID: 77}}, LogTime)

	_, ok := a.Align(RatingEvent{EventID: 77, UserID: 2, LogTime: at(12, 3, 0)})
	assert.False(t, ok)
}

func TestAlignAll_ReportsUnmatched(t *testing.T) {
	a := NewAligner(onePeriod(0, 1), nil, LogTime)

	ratings, unmatched := a.AlignAll([]RatingEvent{
		{EventID: 10, UserID: 0, Rating: 0, LogTime: at(11, 0, 0)},
		{EventID: 11, UserID: 0, Rating: 1, LogTime: at(12, 0, 1)},
		{EventID: 12, UserID: 0, Rating: 2, LogTime: at(13, 0, 0)},
	})

	require.Len(t, ratings, 1)
	assert.Equal(t, int64(1), ratings[0].Rating)
	assert.Equal(t, []Unmatched{{UserID: 0, EventID: 10}, {UserID: 0, EventID: 12}}, unmatched)
}
