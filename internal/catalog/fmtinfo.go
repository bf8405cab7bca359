package catalog

import (
	"sort"

	"github.com/yavdl/yavdl/internal/types"
)

type fmtInfo struct {
	container   string
	qualityRank int
	class       types.MediaClass
}

// Known format numbers and their containers. QualityRank is the nominal
// vertical resolution; informational only, never consulted for selection.
var fmtTable = map[int]fmtInfo{
	5:  {"flv", 240, types.MediaClassAV},
	6:  {"flv", 270, types.MediaClassAV},
	13: {"3gp", 144, types.MediaClassAV},
	17: {"3gp", 144, types.MediaClassAV},
	18: {"mp4", 360, types.MediaClassAV},
	22: {"mp4", 720, types.MediaClassAV},
	34: {"flv", 360, types.MediaClassAV},
	35: {"flv", 480, types.MediaClassAV},
	37: {"mp4", 1080, types.MediaClassAV},
	38: {"mp4", 3072, types.MediaClassAV},
	43: {"webm", 360, types.MediaClassAV},
	44: {"webm", 480, types.MediaClassAV},
	45: {"webm", 720, types.MediaClassAV},
	46: {"webm", 1080, types.MediaClassAV},
}

func describeFormat(id int, sourceURL string) types.FormatDescriptor {
	info, ok := fmtTable[id]
	if !ok {
		info = fmtInfo{container: "bin", class: types.MediaClassAV}
	}
	return types.FormatDescriptor{
		ID:          id,
		QualityRank: info.qualityRank,
		Container:   info.container,
		MediaClass:  info.class,
		SourceURL:   sourceURL,
	}
}

// ContainerExt returns the filename extension for a format id.
func ContainerExt(id int) string {
	if info, ok := fmtTable[id]; ok {
		return info.container
	}
	return "bin"
}

// KnownFormats lists every format number the table describes, ascending.
func KnownFormats() []types.FormatDescriptor {
	formats := make([]types.FormatDescriptor, 0, len(fmtTable))
	for id := range fmtTable {
		formats = append(formats, describeFormat(id, ""))
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i].ID < formats[j].ID })
	return formats
}
