package orchestrator

import (
	"fmt"
	"strings"

	"github.com/yavdl/yavdl/internal/types"
)

// DataMask selects which of a video's data streams a run fetches:
// media (v), annotations (a), timedtext captions (t).
type DataMask struct {
	Media       bool
	Annotations bool
	TimedText   bool
}

// AllData is the default mask: fetch everything.
func AllData() DataMask {
	return DataMask{Media: true, Annotations: true, TimedText: true}
}

// ParseDataMask reads a mask string such as "vat" or "v". An empty
// string means everything.
func ParseDataMask(s string) (DataMask, error) {
	if s == "" {
		return AllData(), nil
	}
	var mask DataMask
	for _, c := range s {
		switch c {
		case 'v':
			mask.Media = true
		case 'a':
			mask.Annotations = true
		case 't':
			mask.TimedText = true
		default:
			return DataMask{}, fmt.Errorf("unknown data type %q (want v, a, or t)", string(c))
		}
	}
	return mask, nil
}

func (m DataMask) subtitles() bool {
	return m.Annotations || m.TimedText
}

// outputBaseName derives the output file stem from the video's title, id,
// and chosen format, keeping the historical naming shape.
func outputBaseName(title string, videoID types.VideoID, formatID int) string {
	return fmt.Sprintf("yt_%s.[%s][%d]", sanitizeTitle(title), videoID, formatID)
}

// sanitizeTitle keeps letters, digits, and dashes; whitespace and
// underscores collapse to single underscores; everything else is dropped.
func sanitizeTitle(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '_':
			pendingSep = true
		}
	}
	if b.Len() == 0 {
		return "video"
	}
	return b.String()
}
