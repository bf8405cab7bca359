package types

import (
	"regexp"
	"strings"
)

// VideoID is the canonical opaque identifier for one remote video,
// immutable once resolved from an accepted input form.
type VideoID string

var (
	videoIDPattern  = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	watchURLPattern = regexp.MustCompile(`(?:[?&]v=|/v/|/embed/|youtu\.be/)([0-9A-Za-z_-]{11})(?:$|[^0-9A-Za-z_-])`)
)

// NormalizeVideoID accepts a raw id, a watch-page URL, or an embed URL and
// resolves the canonical VideoID.
func NormalizeVideoID(input string) (VideoID, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrInvalidInput
	}
	if videoIDPattern.MatchString(s) {
		return VideoID(s), nil
	}
	if m := watchURLPattern.FindStringSubmatch(s); len(m) == 2 {
		return VideoID(m[1]), nil
	}
	return "", ErrInvalidInput
}
