package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates malformed input (not a video id/url).
	ErrInvalidInput = errors.New("invalid input")

	// ErrVideoUnavailable indicates that the video is unavailable (deleted, private, etc.).
	ErrVideoUnavailable = errors.New("video unavailable")

	// ErrSessionBusy indicates another downloader holds the session's temp path.
	ErrSessionBusy = errors.New("download session busy")
)

// NotAvailableError is returned when a preference list is exhausted against
// a catalog without a match. Non-retryable without changing input.
type NotAvailableError struct {
	VideoID  VideoID
	ListName string
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("no preferred format available for video %s (preference list %q exhausted)", e.VideoID, e.ListName)
}

// NetworkError wraps a transient transport failure. Retried with bounded
// backoff at the layer that produced it; exhausting retries surfaces the
// wrapped error to the caller.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure for %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// CorruptionError indicates the remote resource shrank relative to an
// existing partial file. Within tolerance it forces a restart from zero;
// beyond tolerance it is terminal for the session.
type CorruptionError struct {
	VideoID     VideoID
	TempBytes   int64
	RemoteBytes int64
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("partial file for video %s has %d bytes but remote declares %d", e.VideoID, e.TempBytes, e.RemoteBytes)
}

// ParseError records one malformed caption or annotation entry. These are
// collected as warnings; a bad entry never fails the stream it came from.
type ParseError struct {
	Stream string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stream, e.Detail)
}

// MuxError reports an external muxer failure, carrying the tail of the
// collaborator's diagnostic output. Fatal to that video's mux step only;
// already-downloaded media and subtitle files are preserved.
type MuxError struct {
	VideoID    VideoID
	Diagnostic string
	Err        error
}

func (e *MuxError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("mux failed for video %s: %v", e.VideoID, e.Err)
	}
	return fmt.Sprintf("mux failed for video %s: %v: %s", e.VideoID, e.Err, e.Diagnostic)
}

func (e *MuxError) Unwrap() error { return e.Err }
