package subtitle

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yavdl/yavdl/internal/types"
)

type annotationDoc struct {
	Annotations []annotationNode `xml:"annotations>annotation"`
}

type annotationNode struct {
	ID       string         `xml:"id,attr"`
	Author   string         `xml:"author,attr"`
	Type     string         `xml:"type,attr"`
	Text     string         `xml:"TEXT"`
	Rects    []regionNode   `xml:"segment>movingRegion>rectRegion"`
	Anchored []regionNode   `xml:"segment>movingRegion>anchoredRegion"`
	Metadata []metadataNode `xml:"metadata"`
}

type regionNode struct {
	T string `xml:"t,attr"`
}

type metadataNode struct {
	SpamFlag string `xml:"yt_spam_flag,attr"`
}

func (n annotationNode) regions() []regionNode {
	return append(append([]regionNode(nil), n.Rects...), n.Anchored...)
}

func (n annotationNode) spamFlagged() bool {
	for _, m := range n.Metadata {
		if m.SpamFlag == "true" {
			return true
		}
	}
	return false
}

// ParseAnnotations parses an annotation document into annotation events.
// Non-text annotation types, empty text, and missing or never-visible time
// windows are not sublike and are dropped silently; a malformed timestamp
// is recorded as a warning. Overlapping or adjacent events by the same
// author are coalesced into one. filterSpam drops spam-flagged annotations.
func ParseAnnotations(data []byte, filterSpam bool) ([]Event, []*types.ParseError) {
	var doc annotationDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, []*types.ParseError{{Stream: "annotations", Detail: fmt.Sprintf("unparsable document: %v", err)}}
	}

	var events []Event
	var warnings []*types.ParseError
	for _, anno := range doc.Annotations {
		if anno.Type != "text" || strings.TrimSpace(anno.Text) == "" {
			continue
		}
		if filterSpam && anno.spamFlagged() {
			continue
		}
		regions := anno.regions()
		if len(regions) < 2 {
			continue
		}
		start, visible, err := parseAnnotationTime(regions[0].T)
		if err != nil {
			warnings = append(warnings, &types.ParseError{
				Stream: "annotations",
				Detail: fmt.Sprintf("annotation %s: bad timestamp %q", anno.ID, regions[0].T),
			})
			continue
		}
		end, endVisible, err := parseAnnotationTime(regions[1].T)
		if err != nil {
			warnings = append(warnings, &types.ParseError{
				Stream: "annotations",
				Detail: fmt.Sprintf("annotation %s: bad timestamp %q", anno.ID, regions[1].T),
			})
			continue
		}
		if !visible || !endVisible {
			continue
		}
		events = append(events, Event{
			Start:  start,
			End:    end,
			Text:   anno.Text,
			Author: anno.Author,
			Class:  ClassAnnotation,
		})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Start < events[j].Start })
	return coalesce(events), warnings
}

// parseAnnotationTime parses the region timestamp format "h:mm:ss.s".
// The literal "never" marks a region that is never shown.
func parseAnnotationTime(raw string) (d time.Duration, visible bool, err error) {
	if raw == "" || raw == "never" {
		return 0, false, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, false, fmt.Errorf("bad timestamp %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, false, fmt.Errorf("bad timestamp %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 {
		return 0, false, fmt.Errorf("bad timestamp %q", raw)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 {
		return 0, false, fmt.Errorf("bad timestamp %q", raw)
	}
	total := float64(hours*3600+minutes*60) + seconds
	return secondsToDuration(total), true, nil
}

// coalesce merges same-author events whose windows overlap or touch.
// Input must be sorted by start time.
func coalesce(events []Event) []Event {
	if len(events) < 2 {
		return events
	}
	out := events[:1]
	for _, e := range events[1:] {
		last := &out[len(out)-1]
		if e.Author == last.Author && e.Start <= last.End {
			if e.End > last.End {
				last.End = e.End
			}
			last.Text += "\n" + e.Text
			continue
		}
		out = append(out, e)
	}
	return out
}
