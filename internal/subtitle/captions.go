package subtitle

import (
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/yavdl/yavdl/internal/types"
)

type transcriptDoc struct {
	XMLName xml.Name     `xml:"transcript"`
	Cues    []captionCue `xml:"text"`
}

type captionCue struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Body  string `xml:",innerxml"`
}

// ParseCaptions parses a timedtext transcript document into caption events.
// A cue with a malformed start time is skipped with a recorded warning and
// parsing continues; an unparsable document contributes zero events and one
// warning, never an error.
func ParseCaptions(data []byte) ([]Event, []*types.ParseError) {
	var doc transcriptDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, []*types.ParseError{{Stream: "captions", Detail: fmt.Sprintf("unparsable transcript: %v", err)}}
	}

	var events []Event
	var warnings []*types.ParseError
	for i, cue := range doc.Cues {
		start, err := strconv.ParseFloat(cue.Start, 64)
		if err != nil || start < 0 {
			warnings = append(warnings, &types.ParseError{
				Stream: "captions",
				Detail: fmt.Sprintf("cue %d: bad start time %q", i, cue.Start),
			})
			continue
		}
		// Duration is optional; a cue without one is a zero-length event.
		dur := 0.0
		if cue.Dur != "" {
			dur, err = strconv.ParseFloat(cue.Dur, 64)
			if err != nil || dur < 0 {
				warnings = append(warnings, &types.ParseError{
					Stream: "captions",
					Detail: fmt.Sprintf("cue %d: bad duration %q", i, cue.Dur),
				})
				dur = 0
			}
		}
		events = append(events, Event{
			Start: secondsToDuration(start),
			End:   secondsToDuration(start + dur),
			Text:  renderCueText(cue.Body),
			Class: ClassCaption,
		})
	}
	return events, warnings
}

var cueMarkup = strings.NewReplacer(
	"<b>", `{\b1}`,
	"</b>", `{\b0}`,
	"<i>", `{\i1}`,
	"</i>", `{\i0}`,
)

// renderCueText converts a cue's inline bold/italic spans to ASS override
// tags and resolves XML entities.
func renderCueText(body string) string {
	return html.UnescapeString(cueMarkup.Replace(body))
}
