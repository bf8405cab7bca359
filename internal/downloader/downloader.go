// Package downloader fetches a selected format's bytes to local storage,
// tolerating interruption and resuming without re-fetching already-written
// bytes.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/yavdl/yavdl/internal/types"
	"github.com/yavdl/yavdl/internal/urlmangle"
)

// Config controls downloader behavior.
type Config struct {
	// HTTPClient is the client used for requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Transform is applied to every outbound URL before dispatch.
	Transform urlmangle.Transform

	// Transport controls retry/backoff for transient failures.
	Transport TransportConfig

	// Progress receives rate-limited progress reports. May be nil.
	Progress ProgressFunc

	// ProgressInterval bounds the progress delivery rate. Default 500ms.
	ProgressInterval time.Duration

	// ShrinkTolerance bounds how far the remote resource may shrink below
	// an existing partial file before the session is considered terminally
	// corrupt rather than restartable. Default 4 MiB.
	ShrinkTolerance int64

	// ResumeVerifyBytes re-fetches and compares this many bytes of overlap
	// with the partial file's tail before resuming. 0 disables verification.
	ResumeVerifyBytes int64
}

// Downloader drives Sessions through their state machine. Safe for
// concurrent use across distinct sessions; concurrent runs against the
// same temp path are excluded via an advisory lock.
type Downloader struct {
	client           *http.Client
	transform        urlmangle.Transform
	transport        effectiveTransportConfig
	progress         ProgressFunc
	progressInterval time.Duration
	shrinkTolerance  int64
	verifyBytes      int64
}

func New(cfg Config) *Downloader {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	transform := cfg.Transform
	if transform == nil {
		transform = urlmangle.Identity
	}
	tolerance := cfg.ShrinkTolerance
	if tolerance <= 0 {
		tolerance = 4 << 20
	}
	return &Downloader{
		client:           client,
		transform:        transform,
		transport:        normalizeTransportConfig(cfg.Transport),
		progress:         cfg.Progress,
		progressInterval: cfg.ProgressInterval,
		shrinkTolerance:  tolerance,
		verifyBytes:      cfg.ResumeVerifyBytes,
	}
}

var (
	errRangeNotSatisfiable = errors.New("range not satisfiable")
	errRangeNotSupported   = errors.New("range not supported")
	errTailMismatch        = errors.New("resume tail mismatch")
)

// Download runs the session to a terminal or resumable state. A session
// that returns in INTERRUPTED state may be passed in again to resume; the
// temp file is preserved exactly as written.
func (d *Downloader) Download(ctx context.Context, s *Session) error {
	if s.State == StateComplete {
		return nil
	}
	if _, err := os.Stat(s.FinalPath); err == nil {
		// Idempotent re-run: the final file exists, nothing to fetch.
		s.State = StateComplete
		return nil
	}

	lock := flock.New(s.TempPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.TempPath, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", types.ErrSessionBusy, s.TempPath)
	}
	defer func() { _ = lock.Unlock() }()

	return d.run(ctx, s)
}

func (d *Downloader) run(ctx context.Context, s *Session) error {
	logger := zerolog.Ctx(ctx)
	sourceURL := d.transform(s.SourceURL)

	s.State = StateProbing
	total, rangeOK, err := d.probeWithRetry(ctx, sourceURL)
	if err != nil {
		return d.settle(s, err)
	}
	s.TotalBytes = total

	tempLen := fileSize(s.TempPath)
	if total >= 0 && tempLen > total {
		corruption := &types.CorruptionError{VideoID: s.VideoID, TempBytes: tempLen, RemoteBytes: total}
		if tempLen-total > d.shrinkTolerance {
			s.State = StateFailed
			return corruption
		}
		// Never resume past a shrink; restart from zero.
		logger.Warn().Err(corruption).Msg("discarding stale partial file")
		if err := os.Remove(s.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return d.settle(s, err)
		}
		tempLen = 0
	}
	s.BytesWritten = tempLen

	if total > 0 && tempLen == total {
		// The partial file is already complete; promote it without fetching.
		if err := d.finalize(s); err != nil {
			return d.settle(s, err)
		}
		if d.progress != nil {
			d.progress(total, total)
		}
		return nil
	}

	if !rangeOK && tempLen > 0 {
		logger.Warn().Msg("server does not honor byte ranges; restarting from zero")
		if err := os.Remove(s.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return d.settle(s, err)
		}
		s.BytesWritten = 0
	}

	s.State = StateDownloading
	reporter := newProgressReporter(d.progress, d.progressInterval)

	var lastErr error
	for attempt := 0; attempt <= d.transport.MaxRetries; attempt++ {
		err := d.fetchOnce(ctx, s, sourceURL, rangeOK, reporter)
		if err == nil {
			if err := d.finalize(s); err != nil {
				lastErr = err
				break
			}
			reporter.Close(s.BytesWritten, s.TotalBytes)
			return nil
		}
		lastErr = err
		if errors.Is(err, errTailMismatch) || errors.Is(err, errRangeNotSatisfiable) {
			// The remote content no longer matches our partial file.
			logger.Warn().Err(&types.CorruptionError{
				VideoID:     s.VideoID,
				TempBytes:   s.BytesWritten,
				RemoteBytes: s.TotalBytes,
			}).Msg("discarding stale partial file")
			if rmErr := os.Remove(s.TempPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				lastErr = rmErr
				break
			}
			s.BytesWritten = 0
			continue
		}
		if !isRetryableError(err, d.transport) || attempt == d.transport.MaxRetries {
			break
		}
		if waitErr := waitBackoff(ctx, d.transport.backoffFor(attempt)); waitErr != nil {
			lastErr = waitErr
			break
		}
	}
	reporter.Close(s.BytesWritten, s.TotalBytes)
	return d.settle(s, lastErr)
}

// settle maps a failure onto the session's terminal-or-resumable state.
func (d *Downloader) settle(s *Session, err error) error {
	if isPermanentStatus(err) {
		s.State = StateFailed
		return err
	}
	s.State = StateInterrupted
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &types.NetworkError{URL: s.SourceURL, Err: err}
}

// probeWithRetry issues a zero-length ranged request to learn the remote
// size and whether the server honors byte ranges.
func (d *Downloader) probeWithRetry(ctx context.Context, url string) (total int64, rangeOK bool, err error) {
	var lastErr error
	for attempt := 0; attempt <= d.transport.MaxRetries; attempt++ {
		total, rangeOK, err = d.probeOnce(ctx, url)
		if err == nil {
			return total, rangeOK, nil
		}
		lastErr = err
		if !isRetryableError(err, d.transport) || attempt == d.transport.MaxRetries {
			return 0, false, err
		}
		if waitErr := waitBackoff(ctx, d.transport.backoffFor(attempt)); waitErr != nil {
			return 0, false, waitErr
		}
	}
	return 0, false, lastErr
}

func (d *Downloader) probeOnce(ctx context.Context, url string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusPartialContent:
		total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range"))
		if !ok {
			return -1, true, nil
		}
		return total, true, nil
	case http.StatusOK:
		// Server ignored the range: full fetch only, no resume capability.
		return resp.ContentLength, false, nil
	default:
		return 0, false, &httpStatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
}

// fetchOnce streams one ranged (or full) request, appending to the temp
// file from its current length. Chunks are fully written before the
// cancellation check, so an interrupt never leaves a torn chunk.
func (d *Downloader) fetchOnce(ctx context.Context, s *Session, url string, rangeOK bool, reporter *progressReporter) error {
	offset := fileSize(s.TempPath)
	s.BytesWritten = offset

	verify := int64(0)
	if rangeOK && offset > 0 && d.verifyBytes > 0 {
		verify = d.verifyBytes
		if verify > offset {
			verify = offset
		}
	}
	requestStart := offset - verify

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	ranged := rangeOK && requestStart > 0
	if ranged {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", requestStart))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case ranged && resp.StatusCode == http.StatusPartialContent:
	case ranged && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return errRangeNotSatisfiable
	case ranged && resp.StatusCode == http.StatusOK:
		// Server quietly dropped the range; start over from zero.
		if err := os.Truncate(s.TempPath, 0); err != nil {
			return err
		}
		offset = 0
		s.BytesWritten = 0
		verify = 0
	case !ranged && resp.StatusCode == http.StatusOK:
	case !ranged && resp.StatusCode == http.StatusPartialContent:
	default:
		return &httpStatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if verify > 0 {
		if err := verifyTail(s.TempPath, resp.Body, offset-verify, verify); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(s.TempPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, 128*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			s.BytesWritten += int64(n)
			reporter.Update(s.BytesWritten, s.TotalBytes)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if err := file.Sync(); err != nil {
		return err
	}
	if s.TotalBytes >= 0 && s.BytesWritten != s.TotalBytes {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// verifyTail consumes the overlap bytes from the response body and compares
// them against the partial file's tail starting at off.
func verifyTail(tempPath string, body io.Reader, off, n int64) error {
	local := make([]byte, n)
	file, err := os.Open(tempPath)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.ReadAt(local, off); err != nil {
		return err
	}
	remote := make([]byte, n)
	if _, err := io.ReadFull(body, remote); err != nil {
		return fmt.Errorf("%w: %v", errTailMismatch, err)
	}
	if !bytes.Equal(local, remote) {
		return errTailMismatch
	}
	return nil
}

// finalize atomically promotes the temp file to the final path.
func (d *Downloader) finalize(s *Session) error {
	if err := os.Rename(s.TempPath, s.FinalPath); err != nil {
		return err
	}
	s.State = StateComplete
	return nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
