// Package unique decides, for every item a subject touched, whether that
// subject was the only one to touch it.
package unique

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Touch records that Subject interacted with Item.
type Touch struct {
	Subject int64
	Item    string
}

// Result is one distinct (subject, item) pair.
type Result struct {
	Subject int64
	Item    string
	Unique  bool
}

// Analyze collapses touches to distinct (subject, item) pairs and flags the
// pairs whose item no other subject touched. Output is sorted by subject,
// then item.
func Analyze(touches []Touch) []Result {
	subjects := make(map[string]map[int64]struct{})
	for _, t := range touches {
		s, ok := subjects[t.Item]
		if !ok {
			s = make(map[int64]struct{})
			subjects[t.Item] = s
		}
		s[t.Subject] = struct{}{}
	}

	results := make([]Result, 0, len(touches))
	for item, s := range subjects {
		for subject := range s {
			results = append(results, Result{Subject: subject, Item: item, Unique: len(s) == 1})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Subject != results[j].Subject {
			return results[i].Subject < results[j].Subject
		}
		return results[i].Item < results[j].Item
	})
	return results
}

// Cue is one entry of a coded cue file.
type Cue struct {
	ParticipantID int64  `json:"participant_id"`
	Cue           string `json:"cue"`
}

// LoadCues reads a JSON array of cues.
func LoadCues(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cues file: %w", err)
	}
	var cues []Cue
	if err := json.Unmarshal(data, &cues); err != nil {
		return nil, fmt.Errorf("parsing cues file %s: %w", path, err)
	}
	return cues, nil
}

// CueTouches converts cues into touches keyed by participant.
func CueTouches(cues []Cue) []Touch {
	touches := make([]Touch, len(cues))
	for i, c := range cues {
		touches[i] = Touch{Subject: c.ParticipantID, Item: c.Cue}
	}
	return touches
}
