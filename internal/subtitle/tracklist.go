package subtitle

import (
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Track identifies one timedtext caption track as listed by the remote side.
type Track struct {
	Name     string
	LangCode string
}

type trackListDoc struct {
	XMLName xml.Name `xml:"transcript_list"`
	Tracks  []struct {
		Name     string `xml:"name,attr"`
		LangCode string `xml:"lang_code,attr"`
	} `xml:"track"`
}

// ParseTrackList parses the timedtext track listing document.
func ParseTrackList(data []byte) ([]Track, error) {
	var doc trackListDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse track list: %w", err)
	}
	tracks := make([]Track, 0, len(doc.Tracks))
	for _, t := range doc.Tracks {
		tracks = append(tracks, Track{Name: t.Name, LangCode: t.LangCode})
	}
	return tracks, nil
}

// The remote side has been known to emit deprecated ISO 639-1 codes; map
// them to their preferred values before normalization.
var deprecatedLangCodes = map[string]string{
	"in": "id",
	"iw": "he",
	"ji": "yi",
	"jw": "jv",
	"mo": "ro",
}

// LanguageTag normalizes a track's language code to an ISO 639-2 tag for
// container track tagging. Subtags are ignored; anything unrecognized maps
// to "und".
func LanguageTag(code string) string {
	code, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(code)), "-")
	if code == "" {
		return "und"
	}
	if preferred, ok := deprecatedLangCodes[code]; ok {
		code = preferred
	}
	base, err := language.ParseBase(code)
	if err != nil {
		return "und"
	}
	return base.ISO3()
}
