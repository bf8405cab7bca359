package types

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatDefault is the preference-list sentinel matching whatever format
// the remote catalog designates as its default.
const FormatDefault FormatID = -1

// FormatID identifies one remote encoding. Non-negative values are literal
// format numbers; FormatDefault is the platform-default sentinel.
type FormatID int

func (f FormatID) IsDefault() bool { return f == FormatDefault }

func (f FormatID) String() string {
	if f.IsDefault() {
		return "default"
	}
	return strconv.Itoa(int(f))
}

// ParseFormatID accepts a literal format number or the word "default".
func ParseFormatID(s string) (FormatID, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "default" {
		return FormatDefault, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid format id %q", s)
	}
	return FormatID(n), nil
}

// MediaClass distinguishes what a format carries.
type MediaClass string

const (
	MediaClassAV        MediaClass = "av"
	MediaClassVideoOnly MediaClass = "video"
	MediaClassAudioOnly MediaClass = "audio"
)

// FormatDescriptor is the normalized public format model: one offered
// encoding for a video. QualityRank is informational only; selection is
// driven by preference lists, never by rank.
type FormatDescriptor struct {
	ID          int
	QualityRank int
	Container   string
	MediaClass  MediaClass
	SourceURL   string
}
