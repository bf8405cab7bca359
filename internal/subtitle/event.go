// Package subtitle fetches the two upstream caption sources (timedtext
// cues and annotations), parses both, and unifies them into one ordered
// event timeline serialized as an ASS subtitle track.
package subtitle

import (
	"sort"
	"time"
)

// StyleClass distinguishes caption-derived events from annotation-derived
// ones so the renderer can style them apart.
type StyleClass int

const (
	ClassCaption StyleClass = iota
	ClassAnnotation
)

func (c StyleClass) String() string {
	if c == ClassAnnotation {
		return "Annotation"
	}
	return "Caption"
}

// Event is one unified subtitle event. Times are normalized to
// time.Duration before any merging or comparison; the two parsers use
// different native units.
type Event struct {
	Start  time.Duration
	End    time.Duration
	Text   string
	Author string
	Class  StyleClass
}

// MergeEvents produces the unified timeline: ascending start time, stable,
// with captions preceding annotations at equal start.
func MergeEvents(captions, annotations []Event) []Event {
	merged := make([]Event, 0, len(captions)+len(annotations))
	merged = append(merged, captions...)
	merged = append(merged, annotations...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})
	return merged
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
