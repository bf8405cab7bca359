package downloader

import (
	"github.com/yavdl/yavdl/internal/types"
)

// State is the lifecycle position of one download session.
type State string

const (
	StateInit        State = "init"
	StateProbing     State = "probing"
	StateDownloading State = "downloading"
	StateComplete    State = "complete"
	StateInterrupted State = "interrupted"
	StateFailed      State = "failed"
)

// Session tracks one media download. The only durable state is the temp
// file itself; resumability is derived by re-probing the remote resource
// and comparing against the partial file's size, so a session survives
// process restarts with no separate metadata record.
type Session struct {
	VideoID   types.VideoID
	FormatID  int
	SourceURL string
	TempPath  string
	FinalPath string

	// TotalBytes is the probed remote size; -1 until PROBING succeeds.
	TotalBytes   int64
	BytesWritten int64
	State        State
}

// TempSuffix is appended to the final path to derive the temp path, so a
// second invocation for the same video/format locates the same partial file.
const TempSuffix = ".part"

// NewSession constructs an INIT session for a source URL and final path.
func NewSession(videoID types.VideoID, formatID int, sourceURL, finalPath string) *Session {
	return &Session{
		VideoID:    videoID,
		FormatID:   formatID,
		SourceURL:  sourceURL,
		TempPath:   finalPath + TempSuffix,
		FinalPath:  finalPath,
		TotalBytes: -1,
		State:      StateInit,
	}
}
